package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeDirection indicates whether a pick is a long or short position.
type TradeDirection string

const (
	DirectionLong  TradeDirection = "LONG"
	DirectionShort TradeDirection = "SHORT"
)

// IsValid reports whether the direction is one of the known values.
func (d TradeDirection) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Pick represents a pending trade recommendation produced by one of the
// signal algorithms. Picks are read-only inputs to the backtest engine.
type Pick struct {
	ID         string          `json:"id" db:"id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Algorithm  string          `json:"algorithm" db:"algorithm"`
	PickDate   time.Time       `json:"pick_date" db:"pick_date"`
	EntryPrice decimal.Decimal `json:"entry_price" db:"entry_price"`
	Direction  TradeDirection  `json:"direction" db:"direction"`
	PipValue   decimal.Decimal `json:"pip_value" db:"pip_value"`
	Category   string          `json:"category" db:"category"`
}

// PriceBar represents one daily OHLC bar for a symbol. Bars are ordered
// ascending by date with weekends and market holidays absent.
type PriceBar struct {
	Symbol string          `json:"symbol" db:"symbol"`
	Date   time.Time       `json:"date" db:"date"`
	Open   decimal.Decimal `json:"open" db:"open"`
	High   decimal.Decimal `json:"high" db:"high"`
	Low    decimal.Decimal `json:"low" db:"low"`
	Close  decimal.Decimal `json:"close" db:"close"`
	Volume decimal.Decimal `json:"volume" db:"volume"`
}
