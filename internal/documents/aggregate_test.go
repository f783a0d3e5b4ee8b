package documents

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func computedLine(t *testing.T, qty, price, discount, vat string, fodec bool) Line {
	t.Helper()
	line := Line{
		ProductID:       1,
		Quantity:        decimal.RequireFromString(qty),
		UnitPrice:       decimal.RequireFromString(price),
		DiscountPercent: decimal.RequireFromString(discount),
		VATPercent:      decimal.RequireFromString(vat),
		FodecApplicable: fodec,
	}
	if fodec {
		line.FodecPercent = decimal.RequireFromString("1")
	}
	out, err := ComputeLine(line)
	require.NoError(t, err)
	return out
}

func TestAggregateEmpty(t *testing.T) {
	totals := Aggregate(nil)
	require.True(t, totals.ExclTax.IsZero())
	require.True(t, totals.Fodec.IsZero())
	require.True(t, totals.VAT.IsZero())
	require.True(t, totals.InclTax.IsZero())
}

func TestAggregateSums(t *testing.T) {
	lines := []Line{
		computedLine(t, "5", "10.000", "0", "19", false),
		computedLine(t, "2", "25.000", "10", "7", true),
	}
	totals := Aggregate(lines)

	require.Equal(t, "95", totals.ExclTax.String())
	require.Equal(t, "0.45", totals.Fodec.String())
	// 9.500 + 3.182 VAT
	require.Equal(t, "12.682", totals.VAT.String())
	require.Equal(t, totals.ExclTax.Add(totals.Fodec).Add(totals.VAT).String(), totals.InclTax.String())
}

func TestAggregateOrderIndependent(t *testing.T) {
	lines := []Line{
		computedLine(t, "3", "120.500", "10", "19", true),
		computedLine(t, "1", "999.999", "0", "7", false),
		computedLine(t, "7", "0.125", "5", "19", true),
		computedLine(t, "2", "45.000", "2.5", "13", false),
	}
	want := Aggregate(lines)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]Line(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := Aggregate(shuffled)
		require.True(t, want.InclTax.Equal(got.InclTax))
		require.True(t, want.ExclTax.Equal(got.ExclTax))
		require.True(t, want.Fodec.Equal(got.Fodec))
		require.True(t, want.VAT.Equal(got.VAT))
	}
}
