package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"planhub/api/internal/auth"
	"planhub/api/internal/authpw"
	"planhub/api/internal/config"
	"planhub/api/internal/email"
	"planhub/api/internal/export"
	"planhub/api/internal/rbac"
	"planhub/api/internal/search"
	"planhub/api/internal/store"
	"planhub/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	ExpiresAt    time.Time
}

// dataStore is the slice of the Postgres store the service layer uses.
// Tests substitute a fakeStore.
type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	UpdateUserProfile(context.Context, string, string, string, string, []byte) (store.User, error)
	UpdateUserPassword(context.Context, string, string) error
	ListUsersByIDs(context.Context, []string) ([]store.User, error)

	CreateWorkspace(context.Context, store.Workspace) error
	GetWorkspace(context.Context, string) (store.Workspace, error)
	ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error)
	UpdateWorkspace(context.Context, string, string, string, string, string) error
	AddMember(context.Context, string, string, string) error
	RemoveMember(context.Context, string, string) error
	SetMemberRole(context.Context, string, string, string) error
	DeleteWorkspaceCascade(context.Context, string) error

	CreateProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjects(context.Context, string) ([]store.Project, error)
	UpdateProject(context.Context, store.Project) error
	DeleteProjectCascade(context.Context, string) error
	CountProjectsAssigned(context.Context, string, string) (int, error)

	CreateTask(context.Context, store.Task) error
	GetTask(context.Context, string) (store.Task, error)
	ListTasks(context.Context, store.TaskFilter) ([]store.Task, error)
	UpdateTask(context.Context, store.Task) error
	UpdateTaskStatus(context.Context, string, string) error
	DeleteTaskCascade(context.Context, string) error
	CountTasksAssigned(context.Context, string, string) (int, error)

	CreateSubtask(context.Context, store.Subtask) error
	GetSubtask(context.Context, string) (store.Subtask, error)
	ListSubtasks(context.Context, string) ([]store.Subtask, error)
	UpdateSubtask(context.Context, string, string, bool) error
	DeleteSubtask(context.Context, string) error

	CreateNote(context.Context, store.Note) error
	GetNote(context.Context, string) (store.Note, error)
	ListNotes(context.Context, string) ([]store.Note, error)
	UpdateNote(context.Context, string, string, string, string) error
	SetNotePinned(context.Context, string, bool) error
	DeleteNote(context.Context, string) error

	CreateTag(context.Context, store.Tag) error
	GetTag(context.Context, string) (store.Tag, error)
	ListTags(context.Context, string) ([]store.Tag, error)
	DeleteTag(context.Context, string) error

	CreateFavorite(context.Context, store.Favorite) error
	GetFavorite(context.Context, string) (store.Favorite, error)
	ListFavorites(context.Context, string) ([]store.Favorite, error)
	DeleteFavorite(context.Context, string) error

	CreateRequest(context.Context, store.Request) error
	GetRequest(context.Context, string) (store.Request, error)
	ListRequests(context.Context, string) ([]store.Request, error)
	UpdateRequest(context.Context, store.Request) error
	UpdateRequestStatus(context.Context, string, string) error
	DeleteRequest(context.Context, string) error

	CreateComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListComments(context.Context, string, string) ([]store.Comment, error)
	UpdateComment(context.Context, string, string) error
	DeleteComment(context.Context, string) error

	CreateTimeEntry(context.Context, store.TimeEntry) error
	GetTimeEntry(context.Context, string) (store.TimeEntry, error)
	GetRunningTimeEntry(context.Context, string) (store.TimeEntry, error)
	StopTimeEntry(context.Context, string, time.Time) error
	ListTimeEntries(context.Context, store.TimeEntryFilter) ([]store.TimeEntry, error)
	DeleteTimeEntry(context.Context, string) error

	CreateFile(context.Context, store.File) error
	GetFile(context.Context, string) (store.File, error)
	ListFiles(context.Context, string, string) ([]store.File, error)
	DeleteFile(context.Context, string) error

	CreateNotification(context.Context, store.Notification) error
	GetNotification(context.Context, string) (store.Notification, error)
	ListNotifications(context.Context, string, int) ([]store.Notification, error)
	CountUnreadNotifications(context.Context, string) (int, error)
	MarkNotificationRead(context.Context, string) error
	MarkAllNotificationsRead(context.Context, string) error
	DeleteNotification(context.Context, string) error

	InsertActivity(context.Context, store.Activity) error
	ListActivities(context.Context, string, int) ([]store.Activity, error)
	ListActivitiesSince(context.Context, string, time.Time, int) ([]store.Activity, error)

	Ping(ctx context.Context) error
}

// sessionStore keeps refresh sessions. Redis when configured, Postgres
// otherwise; both satisfy this.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	email    *email.Service
	search   *search.Service
	export   *export.Service
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		authpw:   authpw.NewService(dataStore),
	}
}

// SetEmailService wires the SMTP service; nil leaves invite mail disabled.
func (s *Service) SetEmailService(svc *email.Service) { s.email = svc }

// SetSearchService wires the search facade.
func (s *Service) SetSearchService(svc *search.Service) { s.search = svc }

// SetExportService wires the PDF report exporter.
func (s *Service) SetExportService(svc *export.Service) { s.export = svc }

type AuthResult struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	User         store.User `json:"user"`
}

func (s *Service) SignUp(ctx context.Context, emailAddr, password, fullName string) (AuthResult, error) {
	user, err := s.authpw.SignUp(ctx, authpw.SignUpRequest{
		Email:    emailAddr,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		return AuthResult{}, mapAuthError(err)
	}

	if s.email != nil && s.email.IsConfigured() {
		go func(addr, name string) {
			_ = s.email.SendWelcomeEmail(addr, name)
		}(user.Email, user.FullName)
	}

	return s.issueTokens(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (AuthResult, error) {
	user, err := s.authpw.SignIn(ctx, authpw.SignInRequest{
		Email:    emailAddr,
		Password: password,
	})
	if err != nil {
		return AuthResult{}, mapAuthError(err)
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return AuthResult{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return AuthResult{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
	}
	if user.Blocked {
		return AuthResult{}, domainError(http.StatusForbidden, "FORBIDDEN", "Account is blocked", nil)
	}
	// Rotation: the presented token dies with this exchange.
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return AuthResult{}, err
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

func (s *Service) issueTokens(ctx context.Context, user store.User) (AuthResult, error) {
	jti := util.NewID("jti")
	token, err := auth.IssueAccessToken([]byte(s.cfg.JWTSecret), user.ID, user.FullName, jti, s.cfg.AccessTTL)
	if err != nil {
		return AuthResult{}, err
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}
	refreshExpires := time.Now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return AuthResult{}, err
	}

	user.PasswordHash = ""
	return AuthResult{
		AccessToken:  token,
		RefreshToken: refresh,
		TokenType:    "bearer",
		User:         user,
	}, nil
}

// SessionFromToken validates an access token and resolves it to a live,
// unblocked user.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseAccessToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}
	if user.Blocked {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.FullName,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SMTPConfigured reports whether invite mail can be sent.
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrEmailTaken):
		return domainError(http.StatusBadRequest, "CONFLICT", "Email already registered", nil)
	case errors.Is(err, authpw.ErrWeakPassword):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	case errors.Is(err, authpw.ErrUserBlocked):
		return domainError(http.StatusForbidden, "FORBIDDEN", "Account is blocked", nil)
	default:
		return err
	}
}

// memberRole loads a workspace and the caller's role in it. Not found → 404,
// not a member → 403.
func (s *Service) memberRole(ctx context.Context, workspaceID, userID string) (store.Workspace, rbac.Role, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Workspace{}, "", domainError(http.StatusNotFound, "NOT_FOUND", "Workspace not found", nil)
		}
		return store.Workspace{}, "", err
	}
	role, ok := ws.Roles[userID]
	if !ok {
		return store.Workspace{}, "", domainError(http.StatusForbidden, "FORBIDDEN", "Not a workspace member", nil)
	}
	return ws, rbac.Role(role), nil
}

// requireAction is memberRole plus a role check. Viewers pass only for
// ActionRead.
func (s *Service) requireAction(ctx context.Context, workspaceID, userID string, action rbac.Action) (store.Workspace, rbac.Role, error) {
	ws, role, err := s.memberRole(ctx, workspaceID, userID)
	if err != nil {
		return store.Workspace{}, "", err
	}
	if !rbac.Can(role, action) {
		return store.Workspace{}, "", forbidden()
	}
	return ws, role, nil
}

// canManageEntity: workspace owner/admin, or the entity's creator.
func canManageEntity(role rbac.Role, creatorID, userID string) bool {
	if rbac.Can(role, rbac.ActionManage) {
		return true
	}
	return creatorID == userID
}

func (s *Service) logActivity(ctx context.Context, workspaceID string, session Session, entityType, entityID, action, detail string) {
	_ = s.store.InsertActivity(ctx, store.Activity{
		ID:          util.NewID("act"),
		WorkspaceID: workspaceID,
		ActorID:     session.UserID,
		ActorName:   session.UserName,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Detail:      detail,
		CreatedAt:   time.Now(),
	})
}

func (s *Service) notify(ctx context.Context, workspaceID, userID, title, message, kind string) {
	if userID == "" {
		return
	}
	_ = s.store.CreateNotification(ctx, store.Notification{
		ID:          util.NewID("ntf"),
		UserID:      userID,
		WorkspaceID: workspaceID,
		Title:       title,
		Message:     message,
		Type:        kind,
		CreatedAt:   time.Now(),
	})
}

func notFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func forbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}
