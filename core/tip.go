package core

// Tip is an incoming payment shown on the dashboard feed
type Tip struct {
	ID          string `json:"id"`
	Location    string `json:"location"`
	Amount      string `json:"amount"`
	AmountInEth string `json:"amountInEth"`
	AmountInUSD string `json:"amountInUsd"`
	Time        string `json:"time"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	BlockNumber uint64 `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
}
