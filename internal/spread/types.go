// Package spread implements the option SpreadAnalyzer: six vertical and
// wing strategies, Greeks aggregation, and probability-of-profit via a
// log-normal approximation. Premiums and strike-derived dollar amounts use
// shopspring/decimal to keep the exact spread-algebra identities
// (max_profit + max_loss = width*100*N) free of float accumulation error.
package spread

import "github.com/shopspring/decimal"

// Type enumerates the six supported structures.
type Type string

const (
	TypeCallCredit    Type = "call_credit"
	TypePutCredit     Type = "put_credit"
	TypeCallDebit     Type = "call_debit"
	TypePutDebit      Type = "put_debit"
	TypeIronCondor    Type = "iron_condor"
	TypeIronButterfly Type = "iron_butterfly"
)

// Status classifies a spread's current standing relative to price.
type Status string

const (
	StatusMaxProfit  Status = "MAX_PROFIT"
	StatusProfitable Status = "PROFITABLE"
	StatusBreakeven  Status = "BREAKEVEN"
	StatusAtRisk     Status = "AT_RISK"
	StatusMaxLoss    Status = "MAX_LOSS"
)

// OptionKind is call or put.
type OptionKind string

const (
	KindCall OptionKind = "call"
	KindPut  OptionKind = "put"
)

// LegSide is long or short.
type LegSide string

const (
	SideLong  LegSide = "long"
	SideShort LegSide = "short"
)

// Greeks is one leg's (or an aggregated position's) option Greeks.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Add returns the element-wise sum of g and o.
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{Delta: g.Delta + o.Delta, Gamma: g.Gamma + o.Gamma, Theta: g.Theta + o.Theta, Vega: g.Vega + o.Vega}
}

// Negate flips sign, used when aggregating a short leg's Greeks.
func (g Greeks) Negate() Greeks {
	return Greeks{Delta: -g.Delta, Gamma: -g.Gamma, Theta: -g.Theta, Vega: -g.Vega}
}

// Leg is one option contract in a spread.
type Leg struct {
	Kind    OptionKind      `json:"kind"`
	Side    LegSide         `json:"side"`
	Strike  decimal.Decimal `json:"strike"`
	Premium decimal.Decimal `json:"premium"`
	Greeks  Greeks          `json:"greeks"`
	OpenInterest int        `json:"open_interest"`
	Volume       int        `json:"volume"`
}

// SignedGreeks returns the leg's Greeks, negated if it is a short position.
func (l Leg) SignedGreeks() Greeks {
	if l.Side == SideShort {
		return l.Greeks.Negate()
	}
	return l.Greeks
}

// Result is the full computed spread-analysis record.
type Result struct {
	Symbol          string          `json:"symbol"`
	Type            Type            `json:"type"`
	Legs            []Leg           `json:"legs"`
	DTE             int             `json:"dte"`
	MaxProfit       decimal.Decimal `json:"max_profit"`
	MaxLoss         decimal.Decimal `json:"max_loss"`
	Breakevens      []decimal.Decimal `json:"breakevens"`
	POP             float64         `json:"pop"`
	RR              float64         `json:"rr"`
	NetDebitCredit  decimal.Decimal `json:"net_debit_credit"`
	NetGreeks       Greeks          `json:"net_greeks"`
	Status          Status          `json:"status"`
	Warnings        []string        `json:"warnings"`
}
