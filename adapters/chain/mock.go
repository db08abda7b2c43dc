package chain

import (
	"time"

	"github.com/layer-3/basetips/core"
	"github.com/shopspring/decimal"
)

// MockTips returns the demo feed shown when no real tips are found
func MockTips(now time.Time, to string, ethUSD decimal.Decimal) []core.Tip {
	demo := []struct {
		id, location, amount, hash, from string
		block                            uint64
		ago                              time.Duration
	}{
		{"0x1234567890abcdef", "Table 1", "0.005", "0x1234567890abcdef1234567890abcdef12345678", "0xabcdef1234567890abcdef1234567890abcdef12", 12345678, 2 * time.Minute},
		{"0x2345678901bcdef2", "Counter", "0.003", "0x2345678901bcdef22345678901bcdef223456789", "0xbcdef2345678901bcdef2345678901bcdef23456", 12345677, 15 * time.Minute},
		{"0x3456789012cdef34", "Table 2", "0.008", "0x3456789012cdef343456789012cdef3434567890", "0xcdef3456789012cdef3456789012cdef34567890", 12345676, time.Hour},
	}

	tips := make([]core.Tip, 0, len(demo))
	for _, d := range demo {
		eth := decimal.RequireFromString(d.amount)
		ts := now.Add(-d.ago)
		tips = append(tips, core.Tip{
			ID:          d.id,
			Location:    d.location,
			Amount:      d.amount + " ETH",
			AmountInEth: d.amount,
			AmountInUSD: USDValue(eth, ethUSD),
			Time:        TimeAgo(now, ts),
			Hash:        d.hash,
			From:        d.from,
			To:          to,
			BlockNumber: d.block,
			Timestamp:   ts.Unix(),
		})
	}
	return tips
}
