package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeStandardVAT(t *testing.T) {
	amounts, err := Compute(LineInput{
		Quantity:   dec("5"),
		UnitPrice:  dec("10.000"),
		VATPercent: dec("19"),
	})
	require.NoError(t, err)
	require.True(t, amounts.ExclTax.Equal(dec("50.000")), "excl: %s", amounts.ExclTax)
	require.True(t, amounts.Fodec.IsZero())
	require.True(t, amounts.VATBase.Equal(dec("50.000")))
	require.True(t, amounts.VAT.Equal(dec("9.500")), "vat: %s", amounts.VAT)
	require.True(t, amounts.InclTax.Equal(dec("59.500")), "incl: %s", amounts.InclTax)
}

func TestComputeWithDiscountAndFodec(t *testing.T) {
	amounts, err := Compute(LineInput{
		Quantity:        dec("3"),
		UnitPrice:       dec("120.500"),
		DiscountPercent: dec("10"),
		VATPercent:      dec("19"),
		FodecApplicable: true,
		FodecPercent:    dec("1"),
	})
	require.NoError(t, err)

	// 3 * 120.500 * 0.9 = 325.350
	require.True(t, amounts.ExclTax.Equal(dec("325.350")), "excl: %s", amounts.ExclTax)
	// 325.350 * 1% = 3.2535 -> 3.254 (half away from zero)
	require.True(t, amounts.Fodec.Equal(dec("3.254")), "fodec: %s", amounts.Fodec)
	require.True(t, amounts.VATBase.Equal(dec("328.604")), "base: %s", amounts.VATBase)
	// 328.604 * 19% = 62.43476 -> 62.435
	require.True(t, amounts.VAT.Equal(dec("62.435")), "vat: %s", amounts.VAT)
	require.True(t, amounts.InclTax.Equal(dec("391.039")), "incl: %s", amounts.InclTax)
}

func TestComputeSumIdentityHolds(t *testing.T) {
	inputs := []LineInput{
		{Quantity: dec("1"), UnitPrice: dec("0.001"), VATPercent: dec("19")},
		{Quantity: dec("7.5"), UnitPrice: dec("3.333"), DiscountPercent: dec("12.5"), VATPercent: dec("7")},
		{Quantity: dec("1000"), UnitPrice: dec("0.125"), VATPercent: dec("19"), FodecApplicable: true, FodecPercent: dec("1")},
		{Quantity: dec("2"), UnitPrice: dec("999999.999"), DiscountPercent: dec("99.9"), VATPercent: dec("13"), FodecApplicable: true, FodecPercent: dec("2.5")},
		{Quantity: dec("0"), UnitPrice: dec("42.42"), VATPercent: dec("19")},
		{Quantity: dec("3"), UnitPrice: dec("10"), DiscountPercent: dec("100"), VATPercent: dec("19")},
	}
	for _, in := range inputs {
		amounts, err := Compute(in)
		require.NoError(t, err)
		sum := amounts.ExclTax.Add(amounts.Fodec).Add(amounts.VAT)
		require.True(t, amounts.InclTax.Equal(sum),
			"incl %s != excl %s + fodec %s + vat %s", amounts.InclTax, amounts.ExclTax, amounts.Fodec, amounts.VAT)
		require.True(t, amounts.VATBase.Equal(amounts.ExclTax.Add(amounts.Fodec)))
	}
}

func TestComputeFodecNotApplicable(t *testing.T) {
	amounts, err := Compute(LineInput{
		Quantity:     dec("4"),
		UnitPrice:    dec("25.000"),
		VATPercent:   dec("19"),
		FodecPercent: dec("1"), // rate set but flag off
	})
	require.NoError(t, err)
	require.True(t, amounts.Fodec.IsZero())
	require.True(t, amounts.VATBase.Equal(amounts.ExclTax))
}

func TestComputeDeterministic(t *testing.T) {
	in := LineInput{
		Quantity:        dec("13.37"),
		UnitPrice:       dec("7.777"),
		DiscountPercent: dec("3.3"),
		VATPercent:      dec("19"),
		FodecApplicable: true,
		FodecPercent:    dec("1"),
	}
	first, err := Compute(in)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, err := Compute(in)
		require.NoError(t, err)
		require.Equal(t, first.InclTax.String(), again.InclTax.String())
		require.Equal(t, first.ExclTax.String(), again.ExclTax.String())
		require.Equal(t, first.Fodec.String(), again.Fodec.String())
		require.Equal(t, first.VAT.String(), again.VAT.String())
	}
}

func TestComputeRejectsNegativeQuantity(t *testing.T) {
	_, err := Compute(LineInput{Quantity: dec("-1"), UnitPrice: dec("10")})
	require.ErrorIs(t, err, ErrNegativeQuantity)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestComputeRejectsBadPercentages(t *testing.T) {
	_, err := Compute(LineInput{Quantity: dec("1"), UnitPrice: dec("10"), DiscountPercent: dec("101")})
	require.ErrorIs(t, err, ErrDiscountOutOfRange)

	_, err = Compute(LineInput{Quantity: dec("1"), UnitPrice: dec("10"), DiscountPercent: dec("-0.1")})
	require.ErrorIs(t, err, ErrDiscountOutOfRange)

	_, err = Compute(LineInput{Quantity: dec("1"), UnitPrice: dec("10"), VATPercent: dec("-19")})
	require.ErrorIs(t, err, ErrNegativeVATRate)

	_, err = Compute(LineInput{Quantity: dec("1"), UnitPrice: dec("-10")})
	require.ErrorIs(t, err, ErrNegativeUnitPrice)

	_, err = Compute(LineInput{Quantity: dec("1"), UnitPrice: dec("10"), FodecApplicable: true, FodecPercent: dec("-1")})
	require.ErrorIs(t, err, ErrNegativeFodecRate)
}
