package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gescom-app/gescom/internal/documents"
)

type memoryRepo struct {
	docs   map[int64]*documents.Document
	lines  map[int64][]documents.Line
	seqs   map[string]int64
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:  make(map[int64]*documents.Document),
		lines: make(map[int64][]documents.Line),
		seqs:  make(map[string]int64),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, documents.Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*documents.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, documents.ErrNotFound
	}
	cp := *doc
	cp.Lines = append([]documents.Line(nil), m.lines[id]...)
	return &cp, nil
}

func (m *memoryRepo) GetByNumber(_ context.Context, number string) (*documents.Document, error) {
	for _, doc := range m.docs {
		if doc.Number == number {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, documents.ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, req documents.ListRequest) ([]documents.Document, int, error) {
	var out []documents.Document
	for _, doc := range m.docs {
		if req.Kind != nil && doc.Kind != *req.Kind {
			continue
		}
		out = append(out, *doc)
	}
	return out, len(out), nil
}

func (m *memoryRepo) NextSequence(_ context.Context, family string, year int) (int64, error) {
	key := fmt.Sprintf("%s-%d", family, year)
	m.seqs[key]++
	return m.seqs[key], nil
}

func (m *memoryRepo) Create(_ context.Context, doc documents.Document) (int64, error) {
	m.nextID++
	doc.ID = m.nextID
	m.docs[doc.ID] = &doc
	return doc.ID, nil
}

func (m *memoryRepo) InsertLine(_ context.Context, line documents.Line) (int64, error) {
	m.nextID++
	line.ID = m.nextID
	m.lines[line.DocumentID] = append(m.lines[line.DocumentID], line)
	return line.ID, nil
}

func (m *memoryRepo) DeleteLines(_ context.Context, documentID int64) error {
	delete(m.lines, documentID)
	return nil
}

func (m *memoryRepo) UpdateTotals(_ context.Context, id int64, totals documents.Totals) error {
	doc, ok := m.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	doc.Totals = totals
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status documents.Status) error {
	doc, ok := m.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	doc.Status = status
	return nil
}

func (m *memoryRepo) SetRelated(_ context.Context, id int64, relatedID *int64) error {
	doc, ok := m.docs[id]
	if !ok {
		return documents.ErrNotFound
	}
	doc.RelatedID = relatedID
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.lines, id)
	delete(m.docs, id)
	return nil
}

func seedDeliveryNote(t *testing.T, repo *memoryRepo, customerID int64, lines ...documents.Line) int64 {
	t.Helper()
	id, err := repo.Create(context.Background(), documents.Document{
		Kind:       documents.KindDeliveryNote,
		Number:     fmt.Sprintf("BL-26-%05d", repo.nextID+1),
		CustomerID: customerID,
		IssueDate:  time.Now(),
		Status:     documents.StatusDelivered,
		Totals:     documents.Aggregate(lines),
	})
	require.NoError(t, err)
	for _, line := range lines {
		line.DocumentID = id
		_, err := repo.InsertLine(context.Background(), line)
		require.NoError(t, err)
	}
	return id
}

func deliveryLine(t *testing.T, productID int64, qty, price, discount, vat string) documents.Line {
	t.Helper()
	line, err := documents.ComputeLine(documents.Line{
		ProductID:       productID,
		Label:           fmt.Sprintf("product %d", productID),
		Quantity:        decimal.RequireFromString(qty),
		UnitPrice:       decimal.RequireFromString(price),
		DiscountPercent: decimal.RequireFromString(discount),
		VATPercent:      decimal.RequireFromString(vat),
	})
	require.NoError(t, err)
	return line
}

func testService(repo documents.Repository) *Service {
	return NewService(repo, slog.New(slog.DiscardHandler), Config{PaymentTermDays: 30})
}

func TestConsolidateMergesQuantities(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	// 3 + 2 of the same product at identical terms merge into one line of 5.
	a := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "3", "10.000", "0", "19"))
	b := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "2", "10.000", "0", "19"))

	result, err := svc.Consolidate(context.Background(), []int64{a, b})
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	invoice := result.Invoice
	require.Equal(t, documents.KindInvoice, invoice.Kind)
	require.Equal(t, documents.StatusDraft, invoice.Status)
	require.Len(t, invoice.Lines, 1)
	require.Equal(t, "5", invoice.Lines[0].Quantity.String())
	require.Equal(t, "50", invoice.Totals.ExclTax.String())
	require.Equal(t, "9.5", invoice.Totals.VAT.String())
	require.Equal(t, "59.5", invoice.Totals.InclTax.String())

	for _, id := range []int64{a, b} {
		src, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, src.RelatedID)
		require.Equal(t, invoice.ID, *src.RelatedID)
	}
}

func TestConsolidateKeepsDistinctProductsApart(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	a := seedDeliveryNote(t, repo, 7,
		deliveryLine(t, 1, "3", "10.000", "0", "19"),
		deliveryLine(t, 2, "1", "50.000", "0", "7"))
	b := seedDeliveryNote(t, repo, 7, deliveryLine(t, 2, "4", "50.000", "0", "7"))

	result, err := svc.Consolidate(context.Background(), []int64{a, b})
	require.NoError(t, err)

	require.Len(t, result.Invoice.Lines, 2)
	require.Equal(t, int64(1), result.Invoice.Lines[0].ProductID)
	require.Equal(t, "3", result.Invoice.Lines[0].Quantity.String())
	require.Equal(t, int64(2), result.Invoice.Lines[1].ProductID)
	require.Equal(t, "5", result.Invoice.Lines[1].Quantity.String())
}

func TestConsolidateWarnsOnDivergentPricing(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	a := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "3", "10.000", "0", "19"))
	b := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "2", "12.000", "5", "19"))

	result, err := svc.Consolidate(context.Background(), []int64{a, b})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 2, "price and discount both diverge")

	// First-seen terms win: 5 x 10.000 with no discount.
	require.Len(t, result.Invoice.Lines, 1)
	require.Equal(t, "10", result.Invoice.Lines[0].UnitPrice.String())
	require.True(t, result.Invoice.Lines[0].DiscountPercent.IsZero())
	require.Equal(t, "50", result.Invoice.Totals.ExclTax.String())
}

func TestConsolidatePreconditions(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	_, err := svc.Consolidate(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptySelection)

	a := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "3", "10.000", "0", "19"))
	_, err = svc.Consolidate(context.Background(), []int64{a, a})
	require.ErrorIs(t, err, ErrDuplicateSource)

	other := seedDeliveryNote(t, repo, 8, deliveryLine(t, 1, "1", "10.000", "0", "19"))
	_, err = svc.Consolidate(context.Background(), []int64{a, other})
	require.ErrorIs(t, err, ErrCustomerMismatch)

	quoteID, err := repo.Create(context.Background(), documents.Document{
		Kind: documents.KindQuote, Number: "DV-26-00001", CustomerID: 7, Status: documents.StatusDraft,
	})
	require.NoError(t, err)
	_, err = svc.Consolidate(context.Background(), []int64{quoteID})
	require.ErrorIs(t, err, ErrKindMismatch)
}

func TestConsolidateRejectsAlreadyConsolidated(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	a := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "3", "10.000", "0", "19"))
	_, err := svc.Consolidate(context.Background(), []int64{a})
	require.NoError(t, err)

	_, err = svc.Consolidate(context.Background(), []int64{a})
	require.ErrorIs(t, err, ErrAlreadyConsolidated)
}

func TestConsolidateFailurePersistsNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	a := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "3", "10.000", "0", "19"))
	b := seedDeliveryNote(t, repo, 8, deliveryLine(t, 1, "2", "10.000", "0", "19"))

	_, err := svc.Consolidate(context.Background(), []int64{a, b})
	require.ErrorIs(t, err, ErrCustomerMismatch)

	kind := documents.KindInvoice
	_, total, err := repo.List(context.Background(), documents.ListRequest{Kind: &kind})
	require.NoError(t, err)
	require.Zero(t, total, "no invoice may exist after a failed consolidation")

	src, err := repo.Get(context.Background(), a)
	require.NoError(t, err)
	require.Nil(t, src.RelatedID)
}

func TestConsolidateEmptySourceStillLinks(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	a := seedDeliveryNote(t, repo, 7, deliveryLine(t, 1, "3", "10.000", "0", "19"))
	empty := seedDeliveryNote(t, repo, 7)

	result, err := svc.Consolidate(context.Background(), []int64{a, empty})
	require.NoError(t, err)
	require.Len(t, result.Invoice.Lines, 1)

	src, err := repo.Get(context.Background(), empty)
	require.NoError(t, err)
	require.NotNil(t, src.RelatedID)
	require.Equal(t, result.Invoice.ID, *src.RelatedID)
}
