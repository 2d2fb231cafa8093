package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"planhub/api/internal/rbac"
	"planhub/api/internal/store"
	"planhub/api/internal/util"
)

type WorkspaceInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

func (s *Service) CreateWorkspace(ctx context.Context, session Session, in WorkspaceInput) (store.Workspace, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Workspace{}, validationError("name is required")
	}

	now := time.Now()
	ws := store.Workspace{
		ID:          util.NewID("wks"),
		Name:        name,
		Description: in.Description,
		Color:       in.Color,
		Icon:        in.Icon,
		OwnerID:     session.UserID,
		MemberIDs:   []string{session.UserID},
		Roles:       map[string]string{session.UserID: string(rbac.RoleOwner)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateWorkspace(ctx, ws); err != nil {
		return store.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}

	s.logActivity(ctx, ws.ID, session, "workspace", ws.ID, "created", name)
	return ws, nil
}

func (s *Service) GetWorkspace(ctx context.Context, session Session, id string) (store.Workspace, error) {
	ws, _, err := s.memberRole(ctx, id, session.UserID)
	return ws, err
}

func (s *Service) ListWorkspaces(ctx context.Context, session Session) ([]store.Workspace, error) {
	return s.store.ListWorkspacesForUser(ctx, session.UserID)
}

func (s *Service) UpdateWorkspace(ctx context.Context, session Session, id string, in WorkspaceInput) (store.Workspace, error) {
	_, role, err := s.memberRole(ctx, id, session.UserID)
	if err != nil {
		return store.Workspace{}, err
	}
	if !rbac.Can(role, rbac.ActionManage) {
		return store.Workspace{}, forbidden()
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Workspace{}, validationError("name is required")
	}
	if err := s.store.UpdateWorkspace(ctx, id, name, in.Description, in.Color, in.Icon); err != nil {
		return store.Workspace{}, err
	}

	s.logActivity(ctx, id, session, "workspace", id, "updated", name)
	return s.store.GetWorkspace(ctx, id)
}

// DeleteWorkspace removes the workspace and everything inside it. Owner only.
func (s *Service) DeleteWorkspace(ctx context.Context, session Session, id string) error {
	ws, role, err := s.memberRole(ctx, id, session.UserID)
	if err != nil {
		return err
	}
	if role != rbac.RoleOwner {
		return forbidden()
	}
	if err := s.store.DeleteWorkspaceCascade(ctx, id); err != nil {
		return fmt.Errorf("delete workspace %s: %w", ws.ID, err)
	}
	return nil
}

// InviteMember adds an existing user to a workspace by email.
func (s *Service) InviteMember(ctx context.Context, session Session, workspaceID, emailAddr string) (store.Workspace, error) {
	ws, role, err := s.memberRole(ctx, workspaceID, session.UserID)
	if err != nil {
		return store.Workspace{}, err
	}
	if !rbac.Can(role, rbac.ActionManage) {
		return store.Workspace{}, forbidden()
	}

	target, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(emailAddr)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Workspace{}, notFound("User")
		}
		return store.Workspace{}, err
	}
	if _, already := ws.Roles[target.ID]; already {
		return store.Workspace{}, domainError(http.StatusBadRequest, "CONFLICT", "User is already a member", nil)
	}

	if err := s.store.AddMember(ctx, workspaceID, target.ID, string(rbac.RoleMember)); err != nil {
		return store.Workspace{}, err
	}

	s.notify(ctx, workspaceID, target.ID, "Workspace invitation",
		fmt.Sprintf("%s added you to %s", session.UserName, ws.Name), "invite")
	s.logActivity(ctx, workspaceID, session, "workspace", workspaceID, "member_added", target.Email)

	if s.SMTPConfigured() {
		go func(addr, name string) {
			_ = s.email.SendInviteEmail(addr, name, session.UserName, ws.Name, string(rbac.RoleMember))
		}(target.Email, target.FullName)
	}

	return s.store.GetWorkspace(ctx, workspaceID)
}

// SetMemberRole changes a member's role. The owner's entry is immutable.
func (s *Service) SetMemberRole(ctx context.Context, session Session, workspaceID, userID, newRole string) (store.Workspace, error) {
	ws, role, err := s.memberRole(ctx, workspaceID, session.UserID)
	if err != nil {
		return store.Workspace{}, err
	}
	if !rbac.Can(role, rbac.ActionManage) {
		return store.Workspace{}, forbidden()
	}
	if userID == ws.OwnerID {
		return store.Workspace{}, domainError(http.StatusBadRequest, "CONFLICT", "The owner's role cannot be changed", nil)
	}
	if _, isMember := ws.Roles[userID]; !isMember {
		return store.Workspace{}, notFound("Member")
	}
	if !rbac.Assignable(newRole) {
		return store.Workspace{}, validationError("role must be admin, member or viewer")
	}

	if err := s.store.SetMemberRole(ctx, workspaceID, userID, string(rbac.Normalize(newRole))); err != nil {
		return store.Workspace{}, err
	}

	s.logActivity(ctx, workspaceID, session, "workspace", workspaceID, "role_changed", userID+" -> "+newRole)
	return s.store.GetWorkspace(ctx, workspaceID)
}

// RemoveMember removes a member. The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, session Session, workspaceID, userID string) (store.Workspace, error) {
	ws, role, err := s.memberRole(ctx, workspaceID, session.UserID)
	if err != nil {
		return store.Workspace{}, err
	}
	if !rbac.Can(role, rbac.ActionManage) {
		return store.Workspace{}, forbidden()
	}
	if userID == ws.OwnerID {
		return store.Workspace{}, domainError(http.StatusBadRequest, "CONFLICT", "The owner cannot be removed", nil)
	}
	if _, isMember := ws.Roles[userID]; !isMember {
		return store.Workspace{}, notFound("Member")
	}

	if err := s.store.RemoveMember(ctx, workspaceID, userID); err != nil {
		return store.Workspace{}, err
	}

	s.logActivity(ctx, workspaceID, session, "workspace", workspaceID, "member_removed", userID)
	return s.store.GetWorkspace(ctx, workspaceID)
}
