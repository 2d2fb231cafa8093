package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"planhub/api/internal/rbac"
	"planhub/api/internal/search"
	"planhub/api/internal/store"
	"planhub/api/internal/util"
)

type NoteInput struct {
	WorkspaceID string `json:"workspace_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Color       string `json:"color"`
}

func (s *Service) CreateNote(ctx context.Context, session Session, in NoteInput) (store.Note, error) {
	if _, _, err := s.requireAction(ctx, in.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.Note{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.Note{}, validationError("title is required")
	}

	now := time.Now()
	n := store.Note{
		ID:          util.NewID("not"),
		WorkspaceID: in.WorkspaceID,
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Color:       in.Color,
		CreatedBy:   session.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateNote(ctx, n); err != nil {
		return store.Note{}, err
	}

	s.logActivity(ctx, n.WorkspaceID, session, "note", n.ID, "created", n.Title)
	s.indexNote(n)
	return n, nil
}

func (s *Service) ListNotes(ctx context.Context, session Session, workspaceID string) ([]store.Note, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, workspaceID)
}

func (s *Service) GetNote(ctx context.Context, session Session, id string) (store.Note, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Note{}, notFound("Note")
		}
		return store.Note{}, err
	}
	if _, _, err := s.memberRole(ctx, n.WorkspaceID, session.UserID); err != nil {
		return store.Note{}, err
	}
	return n, nil
}

func (s *Service) UpdateNote(ctx context.Context, session Session, id string, in NoteInput) (store.Note, error) {
	n, err := s.noteForModify(ctx, session, id)
	if err != nil {
		return store.Note{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.Note{}, validationError("title is required")
	}
	if err := s.store.UpdateNote(ctx, n.ID, title, in.Content, in.Color); err != nil {
		return store.Note{}, err
	}

	updated, err := s.store.GetNote(ctx, id)
	if err != nil {
		return store.Note{}, err
	}
	s.indexNote(updated)
	return updated, nil
}

// ToggleNotePin flips the pinned flag.
func (s *Service) ToggleNotePin(ctx context.Context, session Session, id string) (store.Note, error) {
	n, err := s.noteForModify(ctx, session, id)
	if err != nil {
		return store.Note{}, err
	}
	if err := s.store.SetNotePinned(ctx, id, !n.Pinned); err != nil {
		return store.Note{}, err
	}
	return s.store.GetNote(ctx, id)
}

func (s *Service) DeleteNote(ctx context.Context, session Session, id string) error {
	n, err := s.noteForModify(ctx, session, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	s.logActivity(ctx, n.WorkspaceID, session, "note", id, "deleted", n.Title)
	if s.search != nil {
		s.search.Delete(id)
	}
	return nil
}

func (s *Service) noteForModify(ctx context.Context, session Session, id string) (store.Note, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Note{}, notFound("Note")
		}
		return store.Note{}, err
	}
	_, role, err := s.memberRole(ctx, n.WorkspaceID, session.UserID)
	if err != nil {
		return store.Note{}, err
	}
	if !canManageEntity(role, n.CreatedBy, session.UserID) {
		return store.Note{}, forbidden()
	}
	return n, nil
}

func (s *Service) indexNote(n store.Note) {
	if s.search == nil {
		return
	}
	s.search.Index(search.Record{
		ID:          n.ID,
		Type:        search.ResultNote,
		WorkspaceID: n.WorkspaceID,
		Title:       n.Title,
		Body:        n.Content,
	})
}

type TagInput struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
}

func (s *Service) CreateTag(ctx context.Context, session Session, in TagInput) (store.Tag, error) {
	if _, _, err := s.requireAction(ctx, in.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.Tag{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Tag{}, validationError("name is required")
	}

	t := store.Tag{
		ID:          util.NewID("tag"),
		WorkspaceID: in.WorkspaceID,
		Name:        name,
		Color:       in.Color,
		CreatedBy:   session.UserID,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateTag(ctx, t); err != nil {
		if store.IsUniqueViolation(err) {
			return store.Tag{}, domainError(http.StatusBadRequest, "CONFLICT", "Tag name already exists in this workspace", nil)
		}
		return store.Tag{}, err
	}
	return t, nil
}

func (s *Service) ListTags(ctx context.Context, session Session, workspaceID string) ([]store.Tag, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListTags(ctx, workspaceID)
}

func (s *Service) DeleteTag(ctx context.Context, session Session, id string) error {
	t, err := s.store.GetTag(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Tag")
		}
		return err
	}
	_, role, err := s.memberRole(ctx, t.WorkspaceID, session.UserID)
	if err != nil {
		return err
	}
	if !canManageEntity(role, t.CreatedBy, session.UserID) {
		return forbidden()
	}
	return s.store.DeleteTag(ctx, id)
}

var favoriteEntityTypes = map[string]struct{}{
	"project": {},
	"task":    {},
	"note":    {},
}

type FavoriteInput struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (s *Service) CreateFavorite(ctx context.Context, session Session, in FavoriteInput) (store.Favorite, error) {
	if _, ok := favoriteEntityTypes[in.EntityType]; !ok {
		return store.Favorite{}, validationError("entity_type must be project, task or note")
	}
	if in.EntityID == "" {
		return store.Favorite{}, validationError("entity_id is required")
	}

	f := store.Favorite{
		ID:         util.NewID("fav"),
		UserID:     session.UserID,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateFavorite(ctx, f); err != nil {
		if store.IsUniqueViolation(err) {
			return store.Favorite{}, domainError(http.StatusBadRequest, "CONFLICT", "Already a favorite", nil)
		}
		return store.Favorite{}, err
	}
	return f, nil
}

func (s *Service) ListFavorites(ctx context.Context, session Session) ([]store.Favorite, error) {
	return s.store.ListFavorites(ctx, session.UserID)
}

func (s *Service) DeleteFavorite(ctx context.Context, session Session, id string) error {
	f, err := s.store.GetFavorite(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Favorite")
		}
		return err
	}
	if f.UserID != session.UserID {
		return forbidden()
	}
	return s.store.DeleteFavorite(ctx, id)
}
