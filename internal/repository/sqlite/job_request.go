package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garnizeh/fixit/pkg/models"
)

const jobRequestColumns = `id, customer_id, customer_name, description, job_type, urgency, severity, estimated_duration, price_estimate,
	status, location, requested_date, assigned_worker_id, payment_amount, paid_date, created_at, updated_at`

func analysisArgs(a *models.ServiceAnalysis) []any {
	if a == nil {
		return []any{nil, nil, nil, nil, nil}
	}
	return []any{string(a.JobType), string(a.Urgency), string(a.Severity), a.EstimatedDuration, string(a.PriceEstimate)}
}

func paymentArgs(p *models.PaymentDetails) []any {
	if p == nil {
		return []any{nil, nil}
	}
	return []any{p.Amount, toMillis(p.PaidDate)}
}

func (r *SQLiteRepo) CreateJobRequest(ctx context.Context, j *models.JobRequest) error {
	if j == nil {
		return fmt.Errorf("job request is nil")
	}
	created := toMillis(j.CreatedAt)
	updated := toMillis(j.UpdatedAt)

	args := []any{j.ID, j.CustomerID, j.CustomerName, j.Description}
	args = append(args, analysisArgs(j.ServiceAnalysis)...)
	args = append(args, string(j.Status), j.Location, j.RequestedDate, j.AssignedWorkerID)
	args = append(args, paymentArgs(j.PaymentDetails)...)
	args = append(args, created, updated)

	q := `INSERT INTO job_requests (` + jobRequestColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.conn.Exec(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: job request %s already exists", models.ErrConflict, j.ID)
		}
		return err
	}
	j.CreatedAt = fromMillis(created)
	j.UpdatedAt = fromMillis(updated)
	return nil
}

func (r *SQLiteRepo) GetJobRequest(ctx context.Context, id string) (*models.JobRequest, error) {
	j, err := scanJobRequest(r.conn.QueryRow(ctx, `SELECT `+jobRequestColumns+` FROM job_requests WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepo) ListJobRequests(ctx context.Context, f models.JobRequestFilter) ([]models.JobRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.WorkerID != "" {
		where = append(where, "assigned_worker_id = ?")
		args = append(args, f.WorkerID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	q := `SELECT ` + jobRequestColumns + ` FROM job_requests`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JobRequest
	for rows.Next() {
		j, err := scanJobRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}

	return out, rows.Err()
}

// UpdateJobRequestIf writes every mutable column guarded by the expected status.
// created_at and customer identity are never rewritten.
func (r *SQLiteRepo) UpdateJobRequestIf(ctx context.Context, j *models.JobRequest, expected models.JobStatus) (bool, error) {
	if j == nil {
		return false, fmt.Errorf("job request is nil")
	}
	updated := now()

	args := []any{j.Description}
	args = append(args, analysisArgs(j.ServiceAnalysis)...)
	args = append(args, string(j.Status), j.Location, j.RequestedDate, j.AssignedWorkerID)
	args = append(args, paymentArgs(j.PaymentDetails)...)
	args = append(args, updated, j.ID, string(expected))

	q := `UPDATE job_requests SET description = ?, job_type = ?, urgency = ?, severity = ?, estimated_duration = ?, price_estimate = ?,
		status = ?, location = ?, requested_date = ?, assigned_worker_id = ?, payment_amount = ?, paid_date = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	res, err := r.conn.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	j.UpdatedAt = fromMillis(updated)
	return true, nil
}

func scanJobRequest(row rowScanner) (*models.JobRequest, error) {
	var (
		j                                           models.JobRequest
		jobType, urgency, severity, duration, price sql.NullString
		status                                      string
		amount                                      sql.NullFloat64
		paid                                        sql.NullInt64
		created, updated                            int64
	)
	err := row.Scan(&j.ID, &j.CustomerID, &j.CustomerName, &j.Description, &jobType, &urgency, &severity, &duration, &price,
		&status, &j.Location, &j.RequestedDate, &j.AssignedWorkerID, &amount, &paid, &created, &updated)
	if err != nil {
		return nil, err
	}

	j.Status = models.JobStatus(status)
	j.CreatedAt = fromMillis(created)
	j.UpdatedAt = fromMillis(updated)
	if jobType.Valid {
		j.ServiceAnalysis = &models.ServiceAnalysis{
			JobType:           models.JobCategory(jobType.String),
			Urgency:           models.Urgency(urgency.String),
			Severity:          models.Severity(severity.String),
			EstimatedDuration: duration.String,
			PriceEstimate:     models.PriceEstimate(price.String),
		}
	}
	if amount.Valid {
		j.PaymentDetails = &models.PaymentDetails{Amount: amount.Float64}
		if paid.Valid {
			j.PaymentDetails.PaidDate = fromMillis(paid.Int64)
		}
	}

	return &j, nil
}
