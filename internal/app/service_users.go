package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"planhub/api/internal/authpw"
	"planhub/api/internal/store"
)

func (s *Service) GetMe(ctx context.Context, session Session) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return store.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

type ProfileInput struct {
	FullName  string          `json:"full_name"`
	Title     string          `json:"title"`
	AvatarURL string          `json:"avatar_url"`
	Settings  json.RawMessage `json:"settings"`
}

func (s *Service) UpdateMe(ctx context.Context, session Session, in ProfileInput) (store.User, error) {
	if in.FullName == "" {
		return store.User{}, validationError("full_name is required")
	}
	if len(in.Settings) > 0 && !json.Valid(in.Settings) {
		return store.User{}, validationError("settings must be a JSON object")
	}

	user, err := s.store.UpdateUserProfile(ctx, session.UserID, in.FullName, in.Title, in.AvatarURL, in.Settings)
	if err != nil {
		return store.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, session Session, oldPassword, newPassword string) error {
	err := s.authpw.ChangePassword(ctx, session.UserID, oldPassword, newPassword)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Current password is incorrect", nil)
	case errors.Is(err, authpw.ErrWeakPassword):
		return validationError(err.Error())
	default:
		return err
	}
}
