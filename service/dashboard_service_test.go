package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/basetips/adapters/chain"
	"github.com/layer-3/basetips/adapters/qr"
	"github.com/layer-3/basetips/core"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const merchant = "0x742D35Cc6634c0532925a3B8d0Cd1c62C3b86eB4"

type stubFeed struct {
	tips []core.Tip
	err  error
}

func (f stubFeed) RecentTips(ctx context.Context, address string, limit int) ([]core.Tip, error) {
	return f.tips, f.err
}

func mockTips(address string) []core.Tip {
	return chain.MockTips(time.Now(), address, decimal.NewFromInt(2400))
}

func TestRecentTips(t *testing.T) {
	onChain := []core.Tip{{ID: "0xabc", To: merchant, AmountInEth: "0.01"}}

	tests := []struct {
		name     string
		feed     *stubFeed
		limit    int
		wantMock bool
		wantLen  int
	}{
		{"chain tips", &stubFeed{tips: onChain}, 10, false, 1},
		{"empty chain falls back", &stubFeed{}, 10, true, 3},
		{"chain error falls back", &stubFeed{err: errors.New("rpc down")}, 10, true, 3},
		{"fallback honours limit", &stubFeed{}, 2, true, 2},
		{"no feed configured", nil, 10, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewDashboardService(nil, qr.NewEncoder(), mockTips, zerolog.Nop())
			if tt.feed != nil {
				svc.feed = *tt.feed
			}

			tips, mock := svc.RecentTips(context.Background(), merchant, tt.limit)
			assert.Equal(t, tt.wantMock, mock)
			require.Len(t, tips, tt.wantLen)
			for _, tip := range tips {
				assert.Equal(t, merchant, tip.To)
			}
		})
	}
}

func TestRecentTipsWithoutFallback(t *testing.T) {
	svc := NewDashboardService(stubFeed{}, qr.NewEncoder(), nil, zerolog.Nop())

	tips, mock := svc.RecentTips(context.Background(), merchant, 10)
	assert.True(t, mock)
	assert.NotNil(t, tips)
	assert.Empty(t, tips)
}

func TestQRCode(t *testing.T) {
	svc := NewDashboardService(nil, qr.NewEncoder(), nil, zerolog.Nop())

	png, err := svc.QRCode(merchant, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = svc.QRCode("not-an-address", 0)
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestQRDataURL(t *testing.T) {
	svc := NewDashboardService(nil, qr.NewEncoder(), nil, zerolog.Nop())

	url, err := svc.QRDataURL(merchant, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	_, err = svc.QRDataURL("not-an-address", 0)
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}
