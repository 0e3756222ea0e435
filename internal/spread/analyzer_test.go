package spread

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

// TestCallCreditSpreadAlgebra exercises a concrete scenario: MU
// call_credit 90/94, contracts=1, short premium 1.75, long premium 0.50.
func TestCallCreditSpreadAlgebra(t *testing.T) {
	in := Input{
		Symbol: "MU", Type: TypeCallCredit, Contracts: 1, DTE: 30, UnderlyingPrice: 88, IV: 0.4,
		ShortStrike: dec("90"), LongStrike: dec("94"),
		ShortPremium: dec("1.75"), LongPremium: dec("0.50"),
	}
	res, err := Analyze(in)
	require.NoError(t, err)
	require.True(t, res.MaxProfit.Equal(dec("125.00")))
	require.True(t, res.MaxLoss.Equal(dec("275.00")))
	require.True(t, res.Breakevens[0].Equal(dec("91.25")))
	require.InDelta(t, 2.20, res.RR, 0.01)
}

// TestSpreadAlgebraIdentity checks that max_profit + max_loss equals
// width*100*N for a call credit spread.
func TestSpreadAlgebraIdentity(t *testing.T) {
	in := Input{
		Symbol: "MU", Type: TypeCallCredit, Contracts: 2, DTE: 20, UnderlyingPrice: 88, IV: 0.3,
		ShortStrike: dec("90"), LongStrike: dec("95"),
		ShortPremium: dec("2.00"), LongPremium: dec("0.75"),
	}
	res, err := Analyze(in)
	require.NoError(t, err)
	width := in.LongStrike.Sub(in.ShortStrike)
	expected := width.Mul(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(2))
	require.True(t, res.MaxProfit.Add(res.MaxLoss).Equal(expected))
}

func TestIronCondorMissingStrikeFails(t *testing.T) {
	_, err := Analyze(Input{Symbol: "SPY", Type: TypeIronCondor, Contracts: 1})
	require.Error(t, err)
}

func TestPOPBoundedZeroOne(t *testing.T) {
	in := Input{
		Symbol: "MU", Type: TypePutCredit, Contracts: 1, DTE: 30, UnderlyingPrice: 100, IV: 0.35,
		ShortStrike: dec("95"), LongStrike: dec("90"),
		ShortPremium: dec("2.00"), LongPremium: dec("0.80"),
	}
	res, err := Analyze(in)
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.POP, 0.0)
	require.LessOrEqual(t, res.POP, 1.0)
}
