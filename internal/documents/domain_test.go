package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		kind Kind
		from Status
		to   Status
		ok   bool
	}{
		{KindQuote, StatusDraft, StatusSent, true},
		{KindQuote, StatusSent, StatusAccepted, true},
		{KindQuote, StatusSent, StatusRefused, true},
		{KindQuote, StatusDraft, StatusAccepted, false},
		{KindQuote, StatusAccepted, StatusDraft, false},
		{KindQuote, StatusRefused, StatusSent, false},

		{KindDeliveryNote, StatusPrepared, StatusShipped, true},
		{KindDeliveryNote, StatusShipped, StatusDelivered, true},
		{KindDeliveryNote, StatusPrepared, StatusDelivered, false},
		{KindDeliveryNote, StatusDelivered, StatusShipped, false},

		{KindPurchaseOrder, StatusDraft, StatusSent, true},
		{KindPurchaseOrder, StatusSent, StatusReceived, true},
		{KindPurchaseOrder, StatusDraft, StatusReceived, false},

		{KindInvoice, StatusDraft, StatusSent, true},
		{KindInvoice, StatusDraft, StatusCancelled, true},
		{KindInvoice, StatusSent, StatusPaid, true},
		{KindInvoice, StatusSent, StatusCancelled, true},
		{KindInvoice, StatusPaid, StatusSent, true},
		{KindInvoice, StatusPaid, StatusCancelled, false},
		{KindInvoice, StatusCancelled, StatusSent, false},

		{KindCreditNote, StatusIssued, StatusCancelled, false},
	}
	for _, tc := range cases {
		got := tc.kind.CanTransition(tc.from, tc.to)
		require.Equal(t, tc.ok, got, "%s: %s -> %s", tc.kind, tc.from, tc.to)
	}
}

func TestInitialStatus(t *testing.T) {
	require.Equal(t, StatusDraft, KindQuote.InitialStatus())
	require.Equal(t, StatusDraft, KindPurchaseOrder.InitialStatus())
	require.Equal(t, StatusDraft, KindInvoice.InitialStatus())
	require.Equal(t, StatusPrepared, KindDeliveryNote.InitialStatus())
	require.Equal(t, StatusIssued, KindCreditNote.InitialStatus())
}

func TestLinesEditable(t *testing.T) {
	require.True(t, KindQuote.LinesEditable(StatusDraft))
	require.False(t, KindQuote.LinesEditable(StatusSent))
	require.True(t, KindInvoice.LinesEditable(StatusDraft))
	require.False(t, KindInvoice.LinesEditable(StatusSent))
	require.True(t, KindDeliveryNote.LinesEditable(StatusPrepared))
	require.False(t, KindDeliveryNote.LinesEditable(StatusShipped))
	require.False(t, KindCreditNote.LinesEditable(StatusIssued))
}

func TestFormatNumber(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	require.Equal(t, "DV-26-00001", FormatNumber(KindQuote, date, 1))
	require.Equal(t, "BL-26-00042", FormatNumber(KindDeliveryNote, date, 42))
	require.Equal(t, "BC-26-00007", FormatNumber(KindPurchaseOrder, date, 7))
	require.Equal(t, "FA-26-00123", FormatNumber(KindInvoice, date, 123))

	// Credit notes share the invoice sequence but carry their own prefix.
	require.Equal(t, "AV-26-00124", FormatNumber(KindCreditNote, date, 124))
	require.Equal(t, "FA", KindCreditNote.Family())
	require.Equal(t, "FA", KindInvoice.Family())
}
