package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// NewTxRepository wraps an already-open transaction so sibling repositories
// can share it. WithTx on the result reuses the transaction instead of
// opening a nested one.
func NewTxRepository(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx})
	})
}

const documentColumns = `id, kind, number, customer_id, issue_date, due_date, status,
	total_excl_tax, total_fodec, total_vat, total_incl_tax, notes, related_id,
	created_at, updated_at`

const lineColumns = `id, document_id, product_id, label, quantity, unit_price,
	discount_percent, vat_percent, fodec_applicable, fodec_percent,
	amount_excl_tax, fodec_amount, vat_base, vat_amount, amount_incl_tax, line_order`

func (r *repository) Get(ctx context.Context, id int64) (*Document, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns), id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Document, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM documents WHERE number = $1`, documentColumns), number)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadLines(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *repository) loadLines(ctx context.Context, doc *Document) error {
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM document_lines WHERE document_id = $1 ORDER BY line_order, id`, lineColumns), doc.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, line)
	}
	return rows.Err()
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Document, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	conditions = append(conditions, "TRUE")
	if req.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argPos))
		args = append(args, *req.Kind)
		argPos++
	}
	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM documents %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM documents %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		documentColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}
	return docs, total, rows.Err()
}

func (r *repository) NextSequence(ctx context.Context, family string, year int) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (family, year, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (family, year)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, family, year).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", family, err)
	}
	return seq, nil
}

func (r *repository) Create(ctx context.Context, doc Document) (int64, error) {
	var dueDate pgtype.Date
	if doc.DueDate != nil {
		dueDate = pgtype.Date{Time: *doc.DueDate, Valid: true}
	}

	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO documents (kind, number, customer_id, issue_date, due_date, status,
			total_excl_tax, total_fodec, total_vat, total_incl_tax, notes, related_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id
	`,
		doc.Kind, doc.Number, doc.CustomerID,
		pgtype.Date{Time: doc.IssueDate, Valid: true}, dueDate, doc.Status,
		decimalToNumeric(doc.Totals.ExclTax), decimalToNumeric(doc.Totals.Fodec),
		decimalToNumeric(doc.Totals.VAT), decimalToNumeric(doc.Totals.InclTax),
		textOrNull(doc.Notes), int8OrNull(doc.RelatedID),
	).Scan(&id)
	return id, err
}

func (r *repository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_lines (document_id, product_id, label, quantity, unit_price,
			discount_percent, vat_percent, fodec_applicable, fodec_percent,
			amount_excl_tax, fodec_amount, vat_base, vat_amount, amount_incl_tax, line_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`,
		line.DocumentID, line.ProductID, line.Label,
		decimalToNumeric(line.Quantity), decimalToNumeric(line.UnitPrice),
		decimalToNumeric(line.DiscountPercent), decimalToNumeric(line.VATPercent),
		line.FodecApplicable, decimalToNumeric(line.FodecPercent),
		decimalToNumeric(line.ExclTax), decimalToNumeric(line.Fodec),
		decimalToNumeric(line.VATBase), decimalToNumeric(line.VAT),
		decimalToNumeric(line.InclTax), line.LineOrder,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, documentID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, documentID)
	return err
}

func (r *repository) UpdateTotals(ctx context.Context, id int64, totals Totals) error {
	_, err := r.db.Exec(ctx, `
		UPDATE documents
		SET total_excl_tax = $1, total_fodec = $2, total_vat = $3, total_incl_tax = $4, updated_at = NOW()
		WHERE id = $5
	`,
		decimalToNumeric(totals.ExclTax), decimalToNumeric(totals.Fodec),
		decimalToNumeric(totals.VAT), decimalToNumeric(totals.InclTax), id)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetRelated(ctx context.Context, id int64, relatedID *int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE documents SET related_id = $1, updated_at = NOW() WHERE id = $2`,
		int8OrNull(relatedID), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	// Dependent rows first, then back-references, then the header.
	if _, err := r.db.Exec(ctx, `DELETE FROM payments WHERE document_id = $1`, id); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM document_lines WHERE document_id = $1`, id); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `UPDATE documents SET related_id = NULL WHERE related_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		doc       Document
		issueDate pgtype.Date
		dueDate   pgtype.Date
		exclTax   pgtype.Numeric
		fodec     pgtype.Numeric
		vat       pgtype.Numeric
		inclTax   pgtype.Numeric
		notes     pgtype.Text
		relatedID pgtype.Int8
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&doc.ID, &doc.Kind, &doc.Number, &doc.CustomerID, &issueDate, &dueDate, &doc.Status,
		&exclTax, &fodec, &vat, &inclTax, &notes, &relatedID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if issueDate.Valid {
		doc.IssueDate = issueDate.Time
	}
	if dueDate.Valid {
		val := dueDate.Time
		doc.DueDate = &val
	}
	doc.Totals = Totals{
		ExclTax: numericToDecimal(exclTax),
		Fodec:   numericToDecimal(fodec),
		VAT:     numericToDecimal(vat),
		InclTax: numericToDecimal(inclTax),
	}
	if notes.Valid {
		val := notes.String
		doc.Notes = &val
	}
	if relatedID.Valid {
		val := relatedID.Int64
		doc.RelatedID = &val
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

func scanLine(row pgx.Row) (Line, error) {
	var (
		line                                    Line
		quantity, unitPrice, discount, vatPct   pgtype.Numeric
		fodecPct, exclTax, fodec, vatBase, vatA pgtype.Numeric
		inclTax                                 pgtype.Numeric
	)
	err := row.Scan(
		&line.ID, &line.DocumentID, &line.ProductID, &line.Label,
		&quantity, &unitPrice, &discount, &vatPct, &line.FodecApplicable, &fodecPct,
		&exclTax, &fodec, &vatBase, &vatA, &inclTax, &line.LineOrder,
	)
	if err != nil {
		return Line{}, err
	}
	line.Quantity = numericToDecimal(quantity)
	line.UnitPrice = numericToDecimal(unitPrice)
	line.DiscountPercent = numericToDecimal(discount)
	line.VATPercent = numericToDecimal(vatPct)
	line.FodecPercent = numericToDecimal(fodecPct)
	line.ExclTax = numericToDecimal(exclTax)
	line.Fodec = numericToDecimal(fodec)
	line.VATBase = numericToDecimal(vatBase)
	line.VAT = numericToDecimal(vatA)
	line.InclTax = numericToDecimal(inclTax)
	return line, nil
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

func textOrNull(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func int8OrNull(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
