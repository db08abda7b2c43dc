package service

import (
	"context"
	"fmt"

	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/ports"
	"github.com/rs/zerolog"
)

// DashboardService serves the merchant dashboard: the tip feed and QR stickers
type DashboardService struct {
	feed     ports.TipFeed
	qr       ports.QREncoder
	fallback func(address string) []core.Tip
	logger   zerolog.Logger
}

// NewDashboardService creates a dashboard service. feed may be nil when no
// RPC endpoint is reachable; fallback supplies demo tips in that case.
func NewDashboardService(
	feed ports.TipFeed,
	qr ports.QREncoder,
	fallback func(address string) []core.Tip,
	logger zerolog.Logger,
) *DashboardService {
	return &DashboardService{
		feed:     feed,
		qr:       qr,
		fallback: fallback,
		logger:   logger,
	}
}

// RecentTips returns the latest tips received by address. When the chain has
// none, or cannot be read, demo tips are returned and mock is true.
func (s *DashboardService) RecentTips(ctx context.Context, address string, limit int) (tips []core.Tip, mock bool) {
	if s.feed != nil {
		found, err := s.feed.RecentTips(ctx, address, limit)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("address", address).Msg("failed to read tips from chain")
		case len(found) > 0:
			return found, false
		default:
			s.logger.Debug().Str("address", address).Msg("no recent tips on chain")
		}
	}

	if s.fallback == nil {
		return []core.Tip{}, true
	}
	tips = s.fallback(address)
	if limit > 0 && len(tips) > limit {
		tips = tips[:limit]
	}
	return tips, true
}

// QRDataURL renders the payment sticker as a data URL for inline display
func (s *DashboardService) QRDataURL(address string, size int) (string, error) {
	url, err := s.qr.DataURL(address, size)
	if err != nil {
		return "", fmt.Errorf("failed to render sticker: %w", err)
	}
	return url, nil
}

// QRCode renders the payment sticker for address
func (s *DashboardService) QRCode(address string, size int) ([]byte, error) {
	png, err := s.qr.PNG(address, size)
	if err != nil {
		return nil, fmt.Errorf("failed to render sticker: %w", err)
	}
	return png, nil
}
