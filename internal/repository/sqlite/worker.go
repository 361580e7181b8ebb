package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garnizeh/fixit/pkg/models"
)

func (r *SQLiteRepo) CreateWorker(ctx context.Context, w *models.Worker) error {
	if w == nil {
		return fmt.Errorf("worker is nil")
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal worker: %w", err)
	}

	_, err = r.conn.Exec(ctx, `INSERT INTO workers (id, name, is_online, activation_status, data, updated) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, boolToInt(w.IsOnline), string(w.ActivationStatus), string(data), now())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: worker %s already exists", models.ErrConflict, w.ID)
		}
		return err
	}
	return nil
}

func (r *SQLiteRepo) CreateWorkerAccount(ctx context.Context, u *models.User, w *models.Worker) error {
	if u == nil || w == nil {
		return fmt.Errorf("user and worker are required")
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal worker: %w", err)
	}

	created := toMillis(u.CreatedAt)
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, string(u.Type), u.PasswordHash, u.ProfileImageURL, created); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: email already registered", models.ErrConflict)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO workers (id, name, is_online, activation_status, data, updated) VALUES (?, ?, ?, ?, ?, ?)`,
			w.ID, w.Name, boolToInt(w.IsOnline), string(w.ActivationStatus), string(data), now()); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: worker %s already exists", models.ErrConflict, w.ID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	u.CreatedAt = fromMillis(created)
	return nil
}

func (r *SQLiteRepo) GetWorker(ctx context.Context, id string) (*models.Worker, error) {
	var data string
	if err := r.conn.QueryRow(ctx, `SELECT data FROM workers WHERE id = ?`, id).Scan(&data); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	var w models.Worker
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("decode worker %s: %w", id, err)
	}
	return &w, nil
}

func (r *SQLiteRepo) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, data FROM workers ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Worker
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}

		var w models.Worker
		if err := json.Unmarshal([]byte(data), &w); err != nil {
			r.logger.Error("skip undecodable worker row", "id", id, "err", err)
			continue
		}
		out = append(out, w)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) SaveWorker(ctx context.Context, w *models.Worker) error {
	if w == nil {
		return fmt.Errorf("worker is nil")
	}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal worker: %w", err)
	}

	res, err := r.conn.Exec(ctx, `UPDATE workers SET name = ?, is_online = ?, activation_status = ?, data = ?, updated = ? WHERE id = ?`,
		w.Name, boolToInt(w.IsOnline), string(w.ActivationStatus), string(data), now(), w.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: worker %s", models.ErrNotFound, w.ID)
	}
	return nil
}
