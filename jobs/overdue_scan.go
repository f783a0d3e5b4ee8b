package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Enqueuer submits follow-up tasks from within a job.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// OverdueScanJob finds sent invoices past their due date and queues a
// reminder email per customer.
type OverdueScanJob struct {
	Pool   *pgxpool.Pool
	Queue  Enqueuer
	Logger *slog.Logger
	clock  func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(pool *pgxpool.Pool, queue Enqueuer, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{
		Pool:   pool,
		Queue:  queue,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type overdueInvoice struct {
	Number        string
	DueDate       time.Time
	CustomerName  string
	CustomerEmail *string
	Outstanding   string
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceDays < 0 {
		payload.GraceDays = 0
	}

	cutoff := j.clock().AddDate(0, 0, -payload.GraceDays)
	logger := j.logger().With(slog.Time("cutoff", cutoff))
	logger.Info("starting overdue invoice scan")

	invoices, err := j.findOverdue(ctx, cutoff)
	if err != nil {
		logger.Error("overdue scan failed", slog.Any("error", err))
		return err
	}

	reminded := 0
	for _, inv := range invoices {
		logger.Warn("invoice overdue",
			slog.String("number", inv.Number),
			slog.Time("due_date", inv.DueDate),
			slog.String("customer", inv.CustomerName),
			slog.String("outstanding", inv.Outstanding),
		)
		if inv.CustomerEmail == nil || j.Queue == nil {
			continue
		}
		_, err := j.Queue.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      *inv.CustomerEmail,
			Subject: fmt.Sprintf("Rappel de paiement - facture %s", inv.Number),
			Body: fmt.Sprintf("La facture %s, échue le %s, reste impayée pour un montant de %s TND.",
				inv.Number, inv.DueDate.Format("02/01/2006"), inv.Outstanding),
		})
		if err != nil {
			logger.Error("enqueue reminder failed", slog.String("number", inv.Number), slog.Any("error", err))
			continue
		}
		reminded++
	}

	logger.Info("completed overdue invoice scan",
		slog.Int("overdue", len(invoices)),
		slog.Int("reminders", reminded),
	)
	return nil
}

// findOverdue lists sent invoices whose due date has passed, with the
// outstanding amount net of valid payments and issued credit notes.
func (j *OverdueScanJob) findOverdue(ctx context.Context, cutoff time.Time) ([]overdueInvoice, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT d.number, d.due_date, c.name, c.email,
		       (d.total_incl_tax
		        + COALESCE((SELECT SUM(cn.total_incl_tax) FROM documents cn WHERE cn.related_id = d.id AND cn.kind = 'CREDIT_NOTE'), 0)
		        - COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.document_id = d.id AND p.status = 'VALID'), 0)
		       )::text AS outstanding
		FROM documents d
		JOIN customers c ON c.id = d.customer_id
		WHERE d.kind = 'INVOICE'
		  AND d.status = 'SENT'
		  AND d.due_date < $1
		ORDER BY d.due_date ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []overdueInvoice
	for rows.Next() {
		var inv overdueInvoice
		if err := rows.Scan(&inv.Number, &inv.DueDate, &inv.CustomerName, &inv.CustomerEmail, &inv.Outstanding); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
