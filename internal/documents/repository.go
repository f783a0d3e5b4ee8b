package documents

import (
	"context"
)

// Repository defines data access for commercial documents. WithTx yields a
// Repository whose operations run inside one transaction; the sequence bump
// and the document insert must share that transaction so a rollback never
// leaves a consumed number behind.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Document, error)
	GetByNumber(ctx context.Context, number string) (*Document, error)
	List(ctx context.Context, req ListRequest) ([]Document, int, error)

	NextSequence(ctx context.Context, family string, year int) (int64, error)
	Create(ctx context.Context, doc Document) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	DeleteLines(ctx context.Context, documentID int64) error
	UpdateTotals(ctx context.Context, id int64, totals Totals) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetRelated(ctx context.Context, id int64, relatedID *int64) error

	// Delete removes the document together with its dependent rows (lines,
	// payments) and clears back-references from documents pointing at it.
	Delete(ctx context.Context, id int64) error
}
