package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/fixit/pkg/models"
)

const threadColumns = `id, participant_a, participant_b, job_request_id, last_message_id, last_message_at, created_at`

func (r *SQLiteRepo) CreateThreadIfAbsent(ctx context.Context, t *models.ChatThread) (*models.ChatThread, error) {
	if t == nil {
		return nil, fmt.Errorf("thread is nil")
	}
	lo, hi := models.PairKey(t.ParticipantIDs[0], t.ParticipantIDs[1])

	_, err := r.conn.Exec(ctx, `INSERT OR IGNORE INTO chat_threads (`+threadColumns+`, participant_lo, participant_hi) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ParticipantIDs[0], t.ParticipantIDs[1], t.JobRequestID, t.LastMessageID, toMillis(t.LastMessageTimestamp), toMillis(t.CreatedAt), lo, hi)
	if err != nil {
		return nil, err
	}

	stored, err := r.FindThread(ctx, t.ParticipantIDs[0], t.ParticipantIDs[1], t.JobRequestID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("thread %s vanished after insert", t.ID)
	}
	return stored, nil
}

func (r *SQLiteRepo) GetThread(ctx context.Context, id string) (*models.ChatThread, error) {
	t, err := scanThread(r.conn.QueryRow(ctx, `SELECT `+threadColumns+` FROM chat_threads WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, nil
	}
	return t, err
}

func (r *SQLiteRepo) FindThread(ctx context.Context, a, b, jobRequestID string) (*models.ChatThread, error) {
	lo, hi := models.PairKey(a, b)
	t, err := scanThread(r.conn.QueryRow(ctx, `SELECT `+threadColumns+` FROM chat_threads WHERE participant_lo = ? AND participant_hi = ? AND job_request_id = ?`, lo, hi, jobRequestID))
	if isNoRows(err) {
		return nil, nil
	}
	return t, err
}

func (r *SQLiteRepo) LatestThreadForPair(ctx context.Context, a, b string) (*models.ChatThread, error) {
	lo, hi := models.PairKey(a, b)
	t, err := scanThread(r.conn.QueryRow(ctx, `SELECT `+threadColumns+` FROM chat_threads WHERE participant_lo = ? AND participant_hi = ?
		ORDER BY last_message_at DESC, created_at DESC LIMIT 1`, lo, hi))
	if isNoRows(err) {
		return nil, nil
	}
	return t, err
}

func (r *SQLiteRepo) ListThreadsForUser(ctx context.Context, userID string) ([]models.ChatThread, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+threadColumns+` FROM chat_threads WHERE participant_a = ? OR participant_b = ?
		ORDER BY last_message_at DESC, id`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) AppendMessage(ctx context.Context, m *models.ChatMessage) error {
	if m == nil {
		return fmt.Errorf("message is nil")
	}

	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		var last int64
		if err := tx.QueryRowContext(ctx, `SELECT last_message_at FROM chat_threads WHERE id = ?`, m.ThreadID).Scan(&last); err != nil {
			if isNoRows(err) {
				return fmt.Errorf("%w: thread %s", models.ErrNotFound, m.ThreadID)
			}
			return err
		}

		ts := toMillis(m.Timestamp)
		if ts <= last {
			ts = last + 1
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_messages (id, thread_id, sender_id, receiver_id, text, ts, is_read) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ThreadID, m.SenderID, m.ReceiverID, m.Text, ts, boolToInt(m.IsRead)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chat_threads SET last_message_id = ?, last_message_at = ? WHERE id = ?`, m.ID, ts, m.ThreadID); err != nil {
			return err
		}

		m.Timestamp = fromMillis(ts)
		return nil
	})
}

func (r *SQLiteRepo) ListMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, thread_id, sender_id, receiver_id, text, ts, is_read FROM chat_messages WHERE thread_id = ? ORDER BY ts, id`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m    models.ChatMessage
			ts   int64
			read int
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.ReceiverID, &m.Text, &ts, &read); err != nil {
			return nil, err
		}
		m.Timestamp = fromMillis(ts)
		m.IsRead = read != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) MarkRead(ctx context.Context, threadID, readerID string) (int64, error) {
	res, err := r.conn.Exec(ctx, `UPDATE chat_messages SET is_read = 1 WHERE thread_id = ? AND receiver_id = ? AND is_read = 0`, threadID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var cnt int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM chat_messages WHERE receiver_id = ? AND is_read = 0`, userID).Scan(&cnt); err != nil {
		return 0, err
	}
	return cnt, nil
}

func scanThread(row rowScanner) (*models.ChatThread, error) {
	var (
		t             models.ChatThread
		last, created int64
	)
	if err := row.Scan(&t.ID, &t.ParticipantIDs[0], &t.ParticipantIDs[1], &t.JobRequestID, &t.LastMessageID, &last, &created); err != nil {
		return nil, err
	}
	t.LastMessageTimestamp = fromMillis(last)
	t.CreatedAt = fromMillis(created)
	return &t, nil
}
