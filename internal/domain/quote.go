package domain

import "github.com/thedudeontitan/ouro-fi/pkg/quant"

// Quote is a point-in-time price observation from the oracle.
// Ephemeral: never persisted, always superseded by the next observation.
type Quote struct {
	Symbol     string          `json:"symbol"`
	PriceE8    quant.PriceE8   `json:"price"`
	Confidence int64           `json:"confidence"` // 0-100
	Ts         quant.TimeStamp `json:"ts"`
	Publisher  string          `json:"publisher"`
}

// PriceUpdate is a streamed price change pushed by the feed to the
// liquidation monitor.
type PriceUpdate struct {
	Symbol  string
	PriceE8 quant.PriceE8
	Ts      quant.TimeStamp
}
