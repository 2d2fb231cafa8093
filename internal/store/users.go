package store

import (
	"context"
	"database/sql"
	"fmt"
)

const userColumns = `id, email, password_hash, full_name, title, avatar_url, settings, blocked, verified, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Title, &u.AvatarURL, &u.Settings, &u.Blocked, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, title, avatar_url, settings, blocked, verified)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, COALESCE($7, '{}'::jsonb), $8, $9)
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.Title, u.AvatarURL, nilIfEmptyJSON(u.Settings), u.Blocked, u.Verified)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id, fullName, title, avatarURL string, settings []byte) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET full_name = $2, title = $3, avatar_url = $4,
			settings = COALESCE($5, settings),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, fullName, title, avatarURL, nilIfEmptyJSON(settings))
	return scanUser(row)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRowAffected(res)
}

// ListUsersByIDs preserves no particular order; callers sort as needed.
func (s *PostgresStore) ListUsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func nilIfEmptyJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func requireRowAffected(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
