package billing

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gescom-app/gescom/internal/documents"
)

type memoryRepo struct {
	docs     map[int64]*documents.Document
	lines    map[int64][]documents.Line
	payments map[int64]*Payment
	seqs     map[string]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:     make(map[int64]*documents.Document),
		lines:    make(map[int64][]documents.Line),
		payments: make(map[int64]*Payment),
		seqs:     make(map[string]int64),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetDocument(_ context.Context, id int64) (*documents.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	cp := *doc
	cp.Lines = append([]documents.Line(nil), m.lines[id]...)
	return &cp, nil
}

func (m *memoryRepo) UpdateDocumentStatus(_ context.Context, id int64, status documents.Status) error {
	doc, ok := m.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	doc.Status = status
	return nil
}

func (m *memoryRepo) NextSequence(_ context.Context, family string, year int) (int64, error) {
	key := fmt.Sprintf("%s-%d", family, year)
	m.seqs[key]++
	return m.seqs[key], nil
}

func (m *memoryRepo) CreateDocument(_ context.Context, doc documents.Document) (int64, error) {
	m.nextID++
	doc.ID = m.nextID
	m.docs[doc.ID] = &doc
	return doc.ID, nil
}

func (m *memoryRepo) InsertDocumentLine(_ context.Context, line documents.Line) (int64, error) {
	m.nextID++
	line.ID = m.nextID
	m.lines[line.DocumentID] = append(m.lines[line.DocumentID], line)
	return line.ID, nil
}

func (m *memoryRepo) ListCreditNotes(_ context.Context, invoiceID int64) ([]documents.Document, error) {
	var notes []documents.Document
	for _, doc := range m.docs {
		if doc.Kind == documents.KindCreditNote && doc.RelatedID != nil && *doc.RelatedID == invoiceID {
			notes = append(notes, *doc)
		}
	}
	return notes, nil
}

func (m *memoryRepo) InsertPayment(_ context.Context, payment Payment) (int64, error) {
	m.nextID++
	payment.ID = m.nextID
	m.payments[payment.ID] = &payment
	return payment.ID, nil
}

func (m *memoryRepo) GetPayment(_ context.Context, id int64) (*Payment, error) {
	payment, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *payment
	return &cp, nil
}

func (m *memoryRepo) ListPayments(_ context.Context, documentID int64) ([]Payment, error) {
	var out []Payment
	for _, payment := range m.payments {
		if payment.DocumentID == documentID {
			out = append(out, *payment)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdatePaymentStatus(_ context.Context, id int64, status PaymentStatus) error {
	payment, ok := m.payments[id]
	if !ok {
		return ErrNotFound
	}
	payment.Status = status
	return nil
}

func (m *memoryRepo) SumValidPayments(_ context.Context, documentID int64) (decimal.Decimal, error) {
	sum := decimal.Decimal{}
	for _, payment := range m.payments {
		if payment.DocumentID == documentID && payment.Status == PaymentValid {
			sum = sum.Add(payment.Amount)
		}
	}
	return sum, nil
}

func (m *memoryRepo) RevenueTotals(_ context.Context) (decimal.Decimal, decimal.Decimal, error) {
	invoiced := decimal.Decimal{}
	credited := decimal.Decimal{}
	for _, doc := range m.docs {
		switch doc.Kind {
		case documents.KindInvoice:
			if doc.Status != documents.StatusCancelled {
				invoiced = invoiced.Add(doc.Totals.InclTax)
			}
		case documents.KindCreditNote:
			credited = credited.Add(doc.Totals.InclTax)
		}
	}
	return invoiced, credited, nil
}

func seedInvoice(t *testing.T, repo *memoryRepo, status documents.Status, lines ...documents.Line) *documents.Document {
	t.Helper()
	doc := documents.Document{
		Kind:       documents.KindInvoice,
		Number:     fmt.Sprintf("FA-26-%05d", repo.nextID+1),
		CustomerID: 7,
		IssueDate:  time.Now(),
		Status:     status,
		Totals:     documents.Aggregate(lines),
	}
	id, err := repo.CreateDocument(context.Background(), doc)
	require.NoError(t, err)
	for _, line := range lines {
		line.DocumentID = id
		_, err := repo.InsertDocumentLine(context.Background(), line)
		require.NoError(t, err)
	}
	stored, err := repo.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return stored
}

func invoiceLine(t *testing.T, qty, price, vat string) documents.Line {
	t.Helper()
	line, err := documents.ComputeLine(documents.Line{
		ProductID:  1,
		Label:      "widget",
		Quantity:   decimal.RequireFromString(qty),
		UnitPrice:  decimal.RequireFromString(price),
		VATPercent: decimal.RequireFromString(vat),
		LineOrder:  1,
	})
	require.NoError(t, err)
	return line
}

func testService(repo Repository) *Service {
	return NewService(repo, slog.New(slog.DiscardHandler))
}

func TestApplyPaymentSettlesAtExactBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	// 10 x 10.000 @ 19% VAT = 119.000 incl. tax
	invoice := seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))
	require.Equal(t, "119", invoice.Totals.InclTax.String())

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		InvoiceID: invoice.ID,
		Amount:    decimal.RequireFromString("50.000"),
		Method:    "transfer",
	})
	require.NoError(t, err)

	stored, err := repo.GetDocument(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusSent, stored.Status, "partial payment must not settle")

	_, err = svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		InvoiceID: invoice.ID,
		Amount:    decimal.RequireFromString("69.000"),
		Method:    "transfer",
	})
	require.NoError(t, err)

	stored, err = repo.GetDocument(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusPaid, stored.Status)

	balance, err := svc.Balance(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.True(t, balance.Outstanding.IsZero())
}

func TestApplyPaymentSettlesWithinEpsilon(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	invoice := seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))

	// 0.0004 short of the total sits inside the settlement epsilon.
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		InvoiceID: invoice.ID,
		Amount:    decimal.RequireFromString("118.9996"),
		Method:    "cash",
	})
	require.NoError(t, err)

	stored, err := repo.GetDocument(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusPaid, stored.Status)
}

func TestApplyPaymentRejections(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	draft := seedInvoice(t, repo, documents.StatusDraft, invoiceLine(t, "1", "10.000", "19"))

	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		InvoiceID: draft.ID,
		Amount:    decimal.RequireFromString("5.000"),
		Method:    "cash",
	})
	require.ErrorIs(t, err, ErrNotPayable)

	_, err = svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		InvoiceID: draft.ID,
		Amount:    decimal.Zero,
		Method:    "cash",
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestVoidPaymentReopensInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	invoice := seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))

	payment, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		InvoiceID: invoice.ID,
		Amount:    decimal.RequireFromString("119.000"),
		Method:    "transfer",
	})
	require.NoError(t, err)

	stored, err := repo.GetDocument(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusPaid, stored.Status)

	voided, err := svc.VoidPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, PaymentVoid, voided.Status)

	stored, err = repo.GetDocument(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusSent, stored.Status)

	_, err = svc.VoidPayment(context.Background(), payment.ID)
	require.ErrorIs(t, err, ErrPaymentAlreadyVoid)
}

func TestCancelInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	paidFor := seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))
	_, err := svc.ApplyPayment(context.Background(), ApplyPaymentInput{
		InvoiceID: paidFor.ID,
		Amount:    decimal.RequireFromString("20.000"),
		Method:    "cash",
	})
	require.NoError(t, err)

	_, err = svc.CancelInvoice(context.Background(), paidFor.ID)
	require.ErrorIs(t, err, ErrInvoiceHasPayments)

	fresh := seedInvoice(t, repo, documents.StatusDraft, invoiceLine(t, "1", "10.000", "19"))
	cancelled, err := svc.CancelInvoice(context.Background(), fresh.ID)
	require.NoError(t, err)
	require.Equal(t, documents.StatusCancelled, cancelled.Status)

	_, err = svc.CancelInvoice(context.Background(), fresh.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
}

func TestCreateCreditNoteFullCredit(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	invoice := seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))

	note, err := svc.CreateCreditNote(context.Background(), CreateCreditNoteInput{InvoiceID: invoice.ID})
	require.NoError(t, err)

	require.Equal(t, documents.KindCreditNote, note.Kind)
	require.Equal(t, documents.StatusIssued, note.Status)
	require.Regexp(t, `^AV-\d{2}-\d{5}$`, note.Number)
	require.NotNil(t, note.RelatedID)
	require.Equal(t, invoice.ID, *note.RelatedID)

	require.Equal(t, "-119", note.Totals.InclTax.String())
	require.Len(t, note.Lines, 1)
	require.Equal(t, "-10", note.Lines[0].Quantity.String())
	require.Equal(t, "-100", note.Lines[0].ExclTax.String())
	require.Equal(t, "-19", note.Lines[0].VAT.String())

	balance, err := svc.Balance(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.True(t, balance.Outstanding.IsZero(), "full credit must zero the balance, got %s", balance.Outstanding)
}

func TestCreateCreditNotePartialCredit(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	invoice := seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))

	note, err := svc.CreateCreditNote(context.Background(), CreateCreditNoteInput{
		InvoiceID: invoice.ID,
		Lines: []documents.LineRequest{{
			ProductID:  1,
			Label:      "widget",
			Quantity:   decimal.RequireFromString("4"),
			UnitPrice:  decimal.RequireFromString("10.000"),
			VATPercent: decimal.RequireFromString("19"),
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "-47.6", note.Totals.InclTax.String())

	balance, err := svc.Balance(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, "71.4", balance.Outstanding.String())
}

func TestCreateCreditNoteRejectsDraftInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	draft := seedInvoice(t, repo, documents.StatusDraft, invoiceLine(t, "1", "10.000", "19"))

	_, err := svc.CreateCreditNote(context.Background(), CreateCreditNoteInput{InvoiceID: draft.ID})
	require.ErrorIs(t, err, ErrNotCreditable)
}

func TestRevenueExcludesCancelledInvoices(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	kept := seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))
	dropped := seedInvoice(t, repo, documents.StatusDraft, invoiceLine(t, "5", "10.000", "19"))
	_, err := svc.CancelInvoice(context.Background(), dropped.ID)
	require.NoError(t, err)

	_, err = svc.CreateCreditNote(context.Background(), CreateCreditNoteInput{
		InvoiceID: kept.ID,
		Lines: []documents.LineRequest{{
			ProductID:  1,
			Quantity:   decimal.RequireFromString("1"),
			UnitPrice:  decimal.RequireFromString("10.000"),
			VATPercent: decimal.RequireFromString("19"),
		}},
	})
	require.NoError(t, err)

	summary, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "119", summary.Invoiced.String())
	require.Equal(t, "-11.9", summary.Credited.String())
	require.Equal(t, "107.1", summary.Net.String())
}

func TestRevenueCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	svc := testService(repo)
	svc.SetRevenueCache(NewRevenueCache(client, time.Minute))

	seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "10", "10.000", "19"))

	first, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "119", first.Invoiced.String())
	require.True(t, mr.Exists(revenueCacheKey))

	// The cached value is served even after the store changes.
	seedInvoice(t, repo, documents.StatusSent, invoiceLine(t, "1", "10.000", "19"))
	second, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Invoiced.String(), second.Invoiced.String())

	mr.FastForward(2 * time.Minute)
	third, err := svc.Revenue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "130.9", third.Invoiced.String())
}
