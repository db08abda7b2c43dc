package ports

import (
	"context"

	"github.com/layer-3/basetips/core"
)

// TipFeed lists recent incoming tips for an address
type TipFeed interface {
	RecentTips(ctx context.Context, address string, limit int) ([]core.Tip, error)
}

// QREncoder renders payment QR codes
type QREncoder interface {
	PNG(address string, size int) ([]byte, error)
	DataURL(address string, size int) (string, error)
}
