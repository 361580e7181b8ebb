package sqlite

import (
	"context"
	"fmt"

	"github.com/garnizeh/fixit/pkg/models"
)

const userColumns = `id, name, email, type, password_hash, profile_image_url, created_at`

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}

	created := toMillis(u.CreatedAt)
	_, err := r.conn.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, string(u.Type), u.PasswordHash, u.ProfileImageURL, created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", models.ErrConflict)
		}
		return err
	}
	u.CreatedAt = fromMillis(created)
	return nil
}

func (r *SQLiteRepo) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.scanUser(r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *SQLiteRepo) UpdateUserProfile(ctx context.Context, id, name, profileImageURL string) error {
	_, err := r.conn.Exec(ctx, `UPDATE users SET name = ?, profile_image_url = ? WHERE id = ?`, name, profileImageURL, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepo) scanUser(row rowScanner) (*models.User, error) {
	var (
		u       models.User
		typ     string
		created int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &typ, &u.PasswordHash, &u.ProfileImageURL, &created); err != nil {
		if isNoRows(err) {
			return nil, nil
		}

		return nil, err
	}
	u.Type = models.UserType(typ)
	u.CreatedAt = fromMillis(created)

	return &u, nil
}
