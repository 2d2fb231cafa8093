package store

import (
	"context"
	"fmt"
)

// Notes

func (s *PostgresStore) CreateNote(ctx context.Context, n Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, workspace_id, title, content, color, pinned, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.WorkspaceID, n.Title, n.Content, n.Color, n.Pinned, n.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNote(ctx context.Context, id string) (Note, error) {
	var n Note
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, content, color, pinned, created_by, created_at, updated_at
		FROM notes WHERE id = $1
	`, id).Scan(&n.ID, &n.WorkspaceID, &n.Title, &n.Content, &n.Color, &n.Pinned, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// ListNotes returns pinned notes first, newest first within each group.
func (s *PostgresStore) ListNotes(ctx context.Context, workspaceID string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, content, color, pinned, created_by, created_at, updated_at
		FROM notes WHERE workspace_id = $1
		ORDER BY pinned DESC, created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.WorkspaceID, &n.Title, &n.Content, &n.Color, &n.Pinned, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *PostgresStore) UpdateNote(ctx context.Context, id, title, content, color string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET title = $2, content = $3, color = $4, updated_at = NOW() WHERE id = $1
	`, id, title, content, color)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) SetNotePinned(ctx context.Context, id string, pinned bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notes SET pinned = $2, updated_at = NOW() WHERE id = $1`, id, pinned)
	if err != nil {
		return fmt.Errorf("pin note: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return requireRowAffected(res)
}

// Tags

func (s *PostgresStore) CreateTag(ctx context.Context, t Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, workspace_id, name, color, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.WorkspaceID, t.Name, t.Color, t.CreatedBy)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTag(ctx context.Context, id string) (Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, color, created_by, created_at FROM tags WHERE id = $1
	`, id).Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Color, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

func (s *PostgresStore) ListTags(ctx context.Context, workspaceID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, color, created_by, created_at
		FROM tags WHERE workspace_id = $1 ORDER BY name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Color, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *PostgresStore) DeleteTag(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return requireRowAffected(res)
}

// Favorites

func (s *PostgresStore) CreateFavorite(ctx context.Context, f Favorite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (id, user_id, entity_type, entity_id)
		VALUES ($1, $2, $3, $4)
	`, f.ID, f.UserID, f.EntityType, f.EntityID)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFavorite(ctx context.Context, id string) (Favorite, error) {
	var f Favorite
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, entity_type, entity_id, created_at FROM favorites WHERE id = $1
	`, id).Scan(&f.ID, &f.UserID, &f.EntityType, &f.EntityID, &f.CreatedAt)
	return f, err
}

func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, entity_type, entity_id, created_at
		FROM favorites WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []Favorite{}
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.EntityType, &f.EntityID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

func (s *PostgresStore) DeleteFavorite(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	return requireRowAffected(res)
}
