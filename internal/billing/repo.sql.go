package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gescom-app/gescom/internal/documents"
	"github.com/gescom-app/gescom/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
	docs documents.Repository
}

// NewRepository constructs a PostgreSQL backed settlement repository. It
// delegates document reads and writes to the documents repository so both
// packages share one scanning path.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool, docs: documents.NewRepository(pool)}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Document operations inside the callback ride the same tx.
		return fn(ctx, &repository{db: tx, docs: documents.NewTxRepository(tx)})
	})
}

func (r *repository) GetDocument(ctx context.Context, id int64) (*documents.Document, error) {
	return r.docs.Get(ctx, id)
}

func (r *repository) UpdateDocumentStatus(ctx context.Context, id int64, status documents.Status) error {
	return r.docs.UpdateStatus(ctx, id, status)
}

func (r *repository) NextSequence(ctx context.Context, family string, year int) (int64, error) {
	return r.docs.NextSequence(ctx, family, year)
}

func (r *repository) CreateDocument(ctx context.Context, doc documents.Document) (int64, error) {
	return r.docs.Create(ctx, doc)
}

func (r *repository) InsertDocumentLine(ctx context.Context, line documents.Line) (int64, error) {
	return r.docs.InsertLine(ctx, line)
}

func (r *repository) ListCreditNotes(ctx context.Context, invoiceID int64) ([]documents.Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, number, total_incl_tax
		FROM documents
		WHERE kind = $1 AND related_id = $2
		ORDER BY id
	`, documents.KindCreditNote, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	related := invoiceID
	var out []documents.Document
	for rows.Next() {
		note := documents.Document{Kind: documents.KindCreditNote, RelatedID: &related}
		var inclTax pgtype.Numeric
		if err := rows.Scan(&note.ID, &note.Number, &inclTax); err != nil {
			return nil, err
		}
		note.Totals.InclTax = numericToDecimal(inclTax)
		out = append(out, note)
	}
	return out, rows.Err()
}

const paymentColumns = `id, document_id, amount, method, paid_at, status, created_at, updated_at`

func (r *repository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (document_id, amount, method, paid_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id
	`, payment.DocumentID, decimalToNumeric(payment.Amount), payment.Method, payment.PaidAt, payment.Status).Scan(&id)
	return id, err
}

func (r *repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns), id)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (r *repository) ListPayments(ctx context.Context, documentID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM payments WHERE document_id = $1 ORDER BY paid_at, id`, paymentColumns), documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SumValidPayments(ctx context.Context, documentID int64) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE document_id = $1 AND status = $2`,
		documentID, PaymentValid).Scan(&sum)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return numericToDecimal(sum), nil
}

func (r *repository) RevenueTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var invoiced, credited pgtype.Numeric
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(total_incl_tax) FILTER (WHERE kind = $1 AND status <> $2), 0),
			COALESCE(SUM(total_incl_tax) FILTER (WHERE kind = $3), 0)
		FROM documents
	`, documents.KindInvoice, documents.StatusCancelled, documents.KindCreditNote).Scan(&invoiced, &credited)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return numericToDecimal(invoiced), numericToDecimal(credited), nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		payment   Payment
		amount    pgtype.Numeric
		paidAt    pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&payment.ID, &payment.DocumentID, &amount, &payment.Method,
		&paidAt, &payment.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	payment.Amount = numericToDecimal(amount)
	if paidAt.Valid {
		payment.PaidAt = paidAt.Time
	}
	if createdAt.Valid {
		payment.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		payment.UpdatedAt = updatedAt.Time
	}
	return &payment, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
