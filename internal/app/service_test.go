package app

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"planhub/api/internal/auth"
	"planhub/api/internal/config"
	"planhub/api/internal/rbac"
	"planhub/api/internal/store"
)

type fakeStore struct {
	createUserFn            func(context.Context, store.User) error
	getUserByEmailFn        func(context.Context, string) (store.User, error)
	getUserByIDFn           func(context.Context, string) (store.User, error)
	updateUserProfileFn     func(context.Context, string, string, string, string, []byte) (store.User, error)
	updateUserPasswordFn    func(context.Context, string, string) error
	listUsersByIDsFn        func(context.Context, []string) ([]store.User, error)
	createWorkspaceFn       func(context.Context, store.Workspace) error
	getWorkspaceFn          func(context.Context, string) (store.Workspace, error)
	listWorkspacesForUserFn func(context.Context, string) ([]store.Workspace, error)
	updateWorkspaceFn       func(context.Context, string, string, string, string, string) error
	addMemberFn             func(context.Context, string, string, string) error
	removeMemberFn          func(context.Context, string, string) error
	setMemberRoleFn         func(context.Context, string, string, string) error
	deleteWorkspaceFn       func(context.Context, string) error
	createProjectFn         func(context.Context, store.Project) error
	getProjectFn            func(context.Context, string) (store.Project, error)
	listProjectsFn          func(context.Context, string) ([]store.Project, error)
	updateProjectFn         func(context.Context, store.Project) error
	deleteProjectFn         func(context.Context, string) error
	createTaskFn            func(context.Context, store.Task) error
	getTaskFn               func(context.Context, string) (store.Task, error)
	listTasksFn             func(context.Context, store.TaskFilter) ([]store.Task, error)
	updateTaskFn            func(context.Context, store.Task) error
	updateTaskStatusFn      func(context.Context, string, string) error
	deleteTaskFn            func(context.Context, string) error
	createSubtaskFn         func(context.Context, store.Subtask) error
	getSubtaskFn            func(context.Context, string) (store.Subtask, error)
	createNoteFn            func(context.Context, store.Note) error
	getNoteFn               func(context.Context, string) (store.Note, error)
	createTagFn             func(context.Context, store.Tag) error
	getTagFn                func(context.Context, string) (store.Tag, error)
	createFavoriteFn        func(context.Context, store.Favorite) error
	getFavoriteFn           func(context.Context, string) (store.Favorite, error)
	createRequestFn         func(context.Context, store.Request) error
	getRequestFn            func(context.Context, string) (store.Request, error)
	updateRequestStatusFn   func(context.Context, string, string) error
	createCommentFn         func(context.Context, store.Comment) error
	getCommentFn            func(context.Context, string) (store.Comment, error)
	createTimeEntryFn       func(context.Context, store.TimeEntry) error
	getTimeEntryFn          func(context.Context, string) (store.TimeEntry, error)
	getRunningTimeEntryFn   func(context.Context, string) (store.TimeEntry, error)
	stopTimeEntryFn         func(context.Context, string, time.Time) error
	listTimeEntriesFn       func(context.Context, store.TimeEntryFilter) ([]store.TimeEntry, error)
	createFileFn            func(context.Context, store.File) error
	getFileFn               func(context.Context, string) (store.File, error)
	createNotificationFn    func(context.Context, store.Notification) error
	getNotificationFn       func(context.Context, string) (store.Notification, error)
	listNotificationsFn     func(context.Context, string, int) ([]store.Notification, error)
	countUnreadFn           func(context.Context, string) (int, error)
	insertActivityFn        func(context.Context, store.Activity) error
	listActivitiesFn        func(context.Context, string, int) ([]store.Activity, error)
}

func (f *fakeStore) CreateUser(ctx context.Context, u store.User) error {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, u)
	}
	return nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateUserProfile(ctx context.Context, id, fullName, title, avatarURL string, settings []byte) (store.User, error) {
	if f.updateUserProfileFn != nil {
		return f.updateUserProfileFn(ctx, id, fullName, title, avatarURL, settings)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateUserPassword(ctx context.Context, id, hash string) error {
	if f.updateUserPasswordFn != nil {
		return f.updateUserPasswordFn(ctx, id, hash)
	}
	return nil
}
func (f *fakeStore) ListUsersByIDs(ctx context.Context, ids []string) ([]store.User, error) {
	if f.listUsersByIDsFn != nil {
		return f.listUsersByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeStore) CreateWorkspace(ctx context.Context, ws store.Workspace) error {
	if f.createWorkspaceFn != nil {
		return f.createWorkspaceFn(ctx, ws)
	}
	return nil
}
func (f *fakeStore) GetWorkspace(ctx context.Context, id string) (store.Workspace, error) {
	if f.getWorkspaceFn != nil {
		return f.getWorkspaceFn(ctx, id)
	}
	return store.Workspace{}, sql.ErrNoRows
}
func (f *fakeStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]store.Workspace, error) {
	if f.listWorkspacesForUserFn != nil {
		return f.listWorkspacesForUserFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateWorkspace(ctx context.Context, id, name, description, color, icon string) error {
	if f.updateWorkspaceFn != nil {
		return f.updateWorkspaceFn(ctx, id, name, description, color, icon)
	}
	return nil
}
func (f *fakeStore) AddMember(ctx context.Context, wsID, userID, role string) error {
	if f.addMemberFn != nil {
		return f.addMemberFn(ctx, wsID, userID, role)
	}
	return nil
}
func (f *fakeStore) RemoveMember(ctx context.Context, wsID, userID string) error {
	if f.removeMemberFn != nil {
		return f.removeMemberFn(ctx, wsID, userID)
	}
	return nil
}
func (f *fakeStore) SetMemberRole(ctx context.Context, wsID, userID, role string) error {
	if f.setMemberRoleFn != nil {
		return f.setMemberRoleFn(ctx, wsID, userID, role)
	}
	return nil
}
func (f *fakeStore) DeleteWorkspaceCascade(ctx context.Context, id string) error {
	if f.deleteWorkspaceFn != nil {
		return f.deleteWorkspaceFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) CreateProject(ctx context.Context, p store.Project) error {
	if f.createProjectFn != nil {
		return f.createProjectFn(ctx, p)
	}
	return nil
}
func (f *fakeStore) GetProject(ctx context.Context, id string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, id)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) ListProjects(ctx context.Context, wsID string) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx, wsID)
	}
	return nil, nil
}
func (f *fakeStore) UpdateProject(ctx context.Context, p store.Project) error {
	if f.updateProjectFn != nil {
		return f.updateProjectFn(ctx, p)
	}
	return nil
}
func (f *fakeStore) DeleteProjectCascade(ctx context.Context, id string) error {
	if f.deleteProjectFn != nil {
		return f.deleteProjectFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) CountProjectsAssigned(context.Context, string, string) (int, error) {
	return 0, nil
}

func (f *fakeStore) CreateTask(ctx context.Context, t store.Task) error {
	if f.createTaskFn != nil {
		return f.createTaskFn(ctx, t)
	}
	return nil
}
func (f *fakeStore) GetTask(ctx context.Context, id string) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, id)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) UpdateTask(ctx context.Context, t store.Task) error {
	if f.updateTaskFn != nil {
		return f.updateTaskFn(ctx, t)
	}
	return nil
}
func (f *fakeStore) UpdateTaskStatus(ctx context.Context, id, status string) error {
	if f.updateTaskStatusFn != nil {
		return f.updateTaskStatusFn(ctx, id, status)
	}
	return nil
}
func (f *fakeStore) DeleteTaskCascade(ctx context.Context, id string) error {
	if f.deleteTaskFn != nil {
		return f.deleteTaskFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) CountTasksAssigned(context.Context, string, string) (int, error) { return 0, nil }

func (f *fakeStore) CreateSubtask(ctx context.Context, st store.Subtask) error {
	if f.createSubtaskFn != nil {
		return f.createSubtaskFn(ctx, st)
	}
	return nil
}
func (f *fakeStore) GetSubtask(ctx context.Context, id string) (store.Subtask, error) {
	if f.getSubtaskFn != nil {
		return f.getSubtaskFn(ctx, id)
	}
	return store.Subtask{}, sql.ErrNoRows
}
func (f *fakeStore) ListSubtasks(context.Context, string) ([]store.Subtask, error) { return nil, nil }
func (f *fakeStore) UpdateSubtask(context.Context, string, string, bool) error     { return nil }
func (f *fakeStore) DeleteSubtask(context.Context, string) error                   { return nil }

func (f *fakeStore) CreateNote(ctx context.Context, n store.Note) error {
	if f.createNoteFn != nil {
		return f.createNoteFn(ctx, n)
	}
	return nil
}
func (f *fakeStore) GetNote(ctx context.Context, id string) (store.Note, error) {
	if f.getNoteFn != nil {
		return f.getNoteFn(ctx, id)
	}
	return store.Note{}, sql.ErrNoRows
}
func (f *fakeStore) ListNotes(context.Context, string) ([]store.Note, error)          { return nil, nil }
func (f *fakeStore) UpdateNote(context.Context, string, string, string, string) error { return nil }
func (f *fakeStore) SetNotePinned(context.Context, string, bool) error                { return nil }
func (f *fakeStore) DeleteNote(context.Context, string) error                         { return nil }

func (f *fakeStore) CreateTag(ctx context.Context, tag store.Tag) error {
	if f.createTagFn != nil {
		return f.createTagFn(ctx, tag)
	}
	return nil
}
func (f *fakeStore) GetTag(ctx context.Context, id string) (store.Tag, error) {
	if f.getTagFn != nil {
		return f.getTagFn(ctx, id)
	}
	return store.Tag{}, sql.ErrNoRows
}
func (f *fakeStore) ListTags(context.Context, string) ([]store.Tag, error) { return nil, nil }
func (f *fakeStore) DeleteTag(context.Context, string) error               { return nil }

func (f *fakeStore) CreateFavorite(ctx context.Context, fav store.Favorite) error {
	if f.createFavoriteFn != nil {
		return f.createFavoriteFn(ctx, fav)
	}
	return nil
}
func (f *fakeStore) GetFavorite(ctx context.Context, id string) (store.Favorite, error) {
	if f.getFavoriteFn != nil {
		return f.getFavoriteFn(ctx, id)
	}
	return store.Favorite{}, sql.ErrNoRows
}
func (f *fakeStore) ListFavorites(context.Context, string) ([]store.Favorite, error) {
	return nil, nil
}
func (f *fakeStore) DeleteFavorite(context.Context, string) error { return nil }

func (f *fakeStore) CreateRequest(ctx context.Context, req store.Request) error {
	if f.createRequestFn != nil {
		return f.createRequestFn(ctx, req)
	}
	return nil
}
func (f *fakeStore) GetRequest(ctx context.Context, id string) (store.Request, error) {
	if f.getRequestFn != nil {
		return f.getRequestFn(ctx, id)
	}
	return store.Request{}, sql.ErrNoRows
}
func (f *fakeStore) ListRequests(context.Context, string) ([]store.Request, error) { return nil, nil }
func (f *fakeStore) UpdateRequest(context.Context, store.Request) error            { return nil }
func (f *fakeStore) UpdateRequestStatus(ctx context.Context, id, status string) error {
	if f.updateRequestStatusFn != nil {
		return f.updateRequestStatusFn(ctx, id, status)
	}
	return nil
}
func (f *fakeStore) DeleteRequest(context.Context, string) error { return nil }

func (f *fakeStore) CreateComment(ctx context.Context, c store.Comment) error {
	if f.createCommentFn != nil {
		return f.createCommentFn(ctx, c)
	}
	return nil
}
func (f *fakeStore) GetComment(ctx context.Context, id string) (store.Comment, error) {
	if f.getCommentFn != nil {
		return f.getCommentFn(ctx, id)
	}
	return store.Comment{}, sql.ErrNoRows
}
func (f *fakeStore) ListComments(context.Context, string, string) ([]store.Comment, error) {
	return nil, nil
}
func (f *fakeStore) UpdateComment(context.Context, string, string) error { return nil }
func (f *fakeStore) DeleteComment(context.Context, string) error         { return nil }

func (f *fakeStore) CreateTimeEntry(ctx context.Context, te store.TimeEntry) error {
	if f.createTimeEntryFn != nil {
		return f.createTimeEntryFn(ctx, te)
	}
	return nil
}
func (f *fakeStore) GetTimeEntry(ctx context.Context, id string) (store.TimeEntry, error) {
	if f.getTimeEntryFn != nil {
		return f.getTimeEntryFn(ctx, id)
	}
	return store.TimeEntry{}, sql.ErrNoRows
}
func (f *fakeStore) GetRunningTimeEntry(ctx context.Context, userID string) (store.TimeEntry, error) {
	if f.getRunningTimeEntryFn != nil {
		return f.getRunningTimeEntryFn(ctx, userID)
	}
	return store.TimeEntry{}, sql.ErrNoRows
}
func (f *fakeStore) StopTimeEntry(ctx context.Context, id string, endedAt time.Time) error {
	if f.stopTimeEntryFn != nil {
		return f.stopTimeEntryFn(ctx, id, endedAt)
	}
	return nil
}
func (f *fakeStore) ListTimeEntries(ctx context.Context, filter store.TimeEntryFilter) ([]store.TimeEntry, error) {
	if f.listTimeEntriesFn != nil {
		return f.listTimeEntriesFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) DeleteTimeEntry(context.Context, string) error { return nil }

func (f *fakeStore) CreateFile(ctx context.Context, file store.File) error {
	if f.createFileFn != nil {
		return f.createFileFn(ctx, file)
	}
	return nil
}
func (f *fakeStore) GetFile(ctx context.Context, id string) (store.File, error) {
	if f.getFileFn != nil {
		return f.getFileFn(ctx, id)
	}
	return store.File{}, sql.ErrNoRows
}
func (f *fakeStore) ListFiles(context.Context, string, string) ([]store.File, error) {
	return nil, nil
}
func (f *fakeStore) DeleteFile(context.Context, string) error { return nil }

func (f *fakeStore) CreateNotification(ctx context.Context, n store.Notification) error {
	if f.createNotificationFn != nil {
		return f.createNotificationFn(ctx, n)
	}
	return nil
}
func (f *fakeStore) GetNotification(ctx context.Context, id string) (store.Notification, error) {
	if f.getNotificationFn != nil {
		return f.getNotificationFn(ctx, id)
	}
	return store.Notification{}, sql.ErrNoRows
}
func (f *fakeStore) ListNotifications(ctx context.Context, userID string, limit int) ([]store.Notification, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, userID, limit)
	}
	return nil, nil
}
func (f *fakeStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx, userID)
	}
	return 0, nil
}
func (f *fakeStore) MarkNotificationRead(context.Context, string) error     { return nil }
func (f *fakeStore) MarkAllNotificationsRead(context.Context, string) error { return nil }
func (f *fakeStore) DeleteNotification(context.Context, string) error       { return nil }

func (f *fakeStore) InsertActivity(ctx context.Context, a store.Activity) error {
	if f.insertActivityFn != nil {
		return f.insertActivityFn(ctx, a)
	}
	return nil
}
func (f *fakeStore) ListActivities(ctx context.Context, wsID string, limit int) ([]store.Activity, error) {
	if f.listActivitiesFn != nil {
		return f.listActivitiesFn(ctx, wsID, limit)
	}
	return nil, nil
}
func (f *fakeStore) ListActivitiesSince(context.Context, string, time.Time, int) ([]store.Activity, error) {
	return nil, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// fakeSessions is a real in-memory refresh store so rotation tests exercise
// the actual lookup and revoke paths.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]string{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash] = userID
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.sessions[tokenHash]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

func newTestService(fs *fakeStore) *Service {
	cfg := config.Config{
		JWTSecret:    "test-secret",
		AccessTTL:    time.Hour,
		RefreshTTL:   24 * time.Hour,
		MaxFileBytes: 1 << 20,
	}
	return New(cfg, fs, newFakeSessions())
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func assertDomainStatus(t *testing.T, err error, status int, code string) {
	t.Helper()
	var de *DomainError
	if !asDomainError(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if de.Status != status || de.Code != code {
		t.Fatalf("expected %d %s, got %d %s", status, code, de.Status, de.Code)
	}
}

func asDomainError(err error, target **DomainError) bool {
	de, ok := err.(*DomainError)
	if !ok {
		return false
	}
	*target = de
	return true
}

func memberWorkspace(id, ownerID string, members map[string]string) store.Workspace {
	ids := make([]string, 0, len(members))
	for userID := range members {
		ids = append(ids, userID)
	}
	return store.Workspace{
		ID:        id,
		Name:      "Workspace",
		OwnerID:   ownerID,
		MemberIDs: ids,
		Roles:     members,
	}
}

func TestSignUpThenSignInRoundTrip(t *testing.T) {
	var saved store.User
	fs := &fakeStore{
		createUserFn: func(_ context.Context, u store.User) error {
			saved = u
			return nil
		},
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			if email == saved.Email {
				return saved, nil
			}
			return store.User{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	signedUp, err := svc.SignUp(context.Background(), "avery@example.com", "Sup3rSecret", "Avery Quinn")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if signedUp.AccessToken == "" || signedUp.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", signedUp)
	}
	if signedUp.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", signedUp.TokenType)
	}
	if signedUp.User.PasswordHash != "" {
		t.Fatalf("password hash leaked in auth response")
	}
	if saved.PasswordHash == "" || saved.PasswordHash == "Sup3rSecret" {
		t.Fatalf("password not hashed before storage")
	}

	signedIn, err := svc.SignIn(context.Background(), "avery@example.com", "Sup3rSecret")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if signedIn.User.ID != signedUp.User.ID {
		t.Fatalf("sign in resolved a different user: %q vs %q", signedIn.User.ID, signedUp.User.ID)
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	fs := &fakeStore{
		createUserFn: func(context.Context, store.User) error { return uniqueViolation() },
	}
	_, err := newTestService(fs).SignUp(context.Background(), "taken@example.com", "Sup3rSecret", "Avery")
	assertDomainStatus(t, err, 400, "CONFLICT")
}

func TestSignUpRejectsWeakPassword(t *testing.T) {
	_, err := newTestService(&fakeStore{}).SignUp(context.Background(), "avery@example.com", "short", "Avery")
	assertDomainStatus(t, err, 422, "VALIDATION_ERROR")
}

func TestSignInBlockedUserForbidden(t *testing.T) {
	hash := mustHash(t, "Sup3rSecret")
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{ID: "usr-1", PasswordHash: hash, Blocked: true}, nil
		},
	}
	_, err := newTestService(fs).SignIn(context.Background(), "blocked@example.com", "Sup3rSecret")
	assertDomainStatus(t, err, 403, "FORBIDDEN")
}

func TestRefreshRotatesToken(t *testing.T) {
	user := store.User{ID: "usr-1", FullName: "Avery"}
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			if id == user.ID {
				return user, nil
			}
			return store.User{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	initial, err := svc.issueTokens(context.Background(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), initial.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == initial.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// The presented token must be dead after the exchange.
	_, err = svc.Refresh(context.Background(), initial.RefreshToken)
	assertDomainStatus(t, err, 401, "UNAUTHORIZED")
}

func TestSessionFromTokenRejectsBlockedUser(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, string) (store.User, error) {
			return store.User{ID: "usr-1", Blocked: true}, nil
		},
	}
	svc := newTestService(fs)

	token, err := auth.IssueAccessToken([]byte("test-secret"), "usr-1", "Avery", "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := svc.SessionFromToken(context.Background(), token); err != auth.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestWorkspaceAccessOutsiderForbidden(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-owner", map[string]string{"usr-owner": "owner"}), nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.GetWorkspace(context.Background(), Session{UserID: "usr-outsider"}, "wks-1")
	assertDomainStatus(t, err, 403, "FORBIDDEN")

	_, err = svc.ListProjects(context.Background(), Session{UserID: "usr-outsider"}, "wks-1")
	assertDomainStatus(t, err, 403, "FORBIDDEN")
}

func TestWorkspaceMissingNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.GetWorkspace(context.Background(), Session{UserID: "usr-1"}, "wks-ghost")
	assertDomainStatus(t, err, 404, "NOT_FOUND")
}

func TestDeleteWorkspaceOwnerOnly(t *testing.T) {
	deleted := false
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-owner", map[string]string{
				"usr-owner": "owner",
				"usr-admin": "admin",
			}), nil
		},
		deleteWorkspaceFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(fs)

	err := svc.DeleteWorkspace(context.Background(), Session{UserID: "usr-admin"}, "wks-1")
	assertDomainStatus(t, err, 403, "FORBIDDEN")
	if deleted {
		t.Fatalf("admin delete must not reach the store")
	}

	if err := svc.DeleteWorkspace(context.Background(), Session{UserID: "usr-owner"}, "wks-1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if !deleted {
		t.Fatalf("owner delete never reached the store")
	}
}

func TestSetMemberRoleGuards(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-owner", map[string]string{
				"usr-owner":  "owner",
				"usr-member": "member",
			}), nil
		},
	}
	svc := newTestService(fs)
	owner := Session{UserID: "usr-owner"}

	_, err := svc.SetMemberRole(context.Background(), owner, "wks-1", "usr-owner", "member")
	assertDomainStatus(t, err, 400, "CONFLICT")

	_, err = svc.SetMemberRole(context.Background(), owner, "wks-1", "usr-ghost", "admin")
	assertDomainStatus(t, err, 404, "NOT_FOUND")

	_, err = svc.SetMemberRole(context.Background(), owner, "wks-1", "usr-member", "owner")
	assertDomainStatus(t, err, 422, "VALIDATION_ERROR")
}

func TestCreateProjectValidatesEnums(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-1", map[string]string{"usr-1": "owner"}), nil
		},
	}
	svc := newTestService(fs)
	session := Session{UserID: "usr-1", UserName: "Avery"}

	_, err := svc.CreateProject(context.Background(), session, ProjectInput{
		WorkspaceID: "wks-1", Name: "Launch", Status: "bogus",
	})
	assertDomainStatus(t, err, 422, "VALIDATION_ERROR")

	_, err = svc.CreateProject(context.Background(), session, ProjectInput{
		WorkspaceID: "wks-1", Name: "Launch", Progress: 150,
	})
	assertDomainStatus(t, err, 422, "VALIDATION_ERROR")

	created, err := svc.CreateProject(context.Background(), session, ProjectInput{
		WorkspaceID: "wks-1", Name: "Launch",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if created.Status != "not_started" || created.Priority != "medium" {
		t.Fatalf("expected defaults, got status=%q priority=%q", created.Status, created.Priority)
	}
}

func TestViewerCannotCreate(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-owner", map[string]string{
				"usr-owner":  "owner",
				"usr-member": "member",
				"usr-viewer": "viewer",
			}), nil
		},
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{ID: "prj-1", WorkspaceID: "wks-1"}, nil
		},
		getTaskFn: func(context.Context, string) (store.Task, error) {
			return store.Task{ID: "tsk-1", WorkspaceID: "wks-1", Title: "Ship"}, nil
		},
	}
	svc := newTestService(fs)
	viewer := Session{UserID: "usr-viewer", UserName: "Sam"}
	taskID := "tsk-1"
	ended := time.Now()
	started := ended.Add(-time.Hour)

	attempts := map[string]func() error{
		"project": func() error {
			_, err := svc.CreateProject(context.Background(), viewer, ProjectInput{WorkspaceID: "wks-1", Name: "Launch"})
			return err
		},
		"task": func() error {
			_, err := svc.CreateTask(context.Background(), viewer, TaskInput{ProjectID: "prj-1", Title: "Ship"})
			return err
		},
		"subtask": func() error {
			_, err := svc.CreateSubtask(context.Background(), viewer, SubtaskInput{TaskID: "tsk-1", Title: "Step"})
			return err
		},
		"note": func() error {
			_, err := svc.CreateNote(context.Background(), viewer, NoteInput{WorkspaceID: "wks-1", Title: "Minutes"})
			return err
		},
		"tag": func() error {
			_, err := svc.CreateTag(context.Background(), viewer, TagInput{WorkspaceID: "wks-1", Name: "urgent"})
			return err
		},
		"request": func() error {
			_, err := svc.CreateRequest(context.Background(), viewer, RequestInput{WorkspaceID: "wks-1", Title: "Access"})
			return err
		},
		"comment": func() error {
			_, err := svc.CreateComment(context.Background(), viewer, CommentInput{TaskID: &taskID, Content: "Looks good"})
			return err
		},
		"time entry": func() error {
			_, err := svc.CreateTimeEntry(context.Background(), viewer, TimeEntryInput{TaskID: "tsk-1", StartedAt: started, EndedAt: &ended})
			return err
		},
		"check-in": func() error {
			_, err := svc.CheckIn(context.Background(), viewer, CheckInInput{TaskID: "tsk-1"})
			return err
		},
		"file": func() error {
			_, err := svc.CreateFile(context.Background(), viewer, FileInput{Filename: "notes.txt", Data: "QQ==", TaskID: &taskID})
			return err
		},
	}
	for name, attempt := range attempts {
		if err := attempt(); err == nil {
			t.Fatalf("%s: viewer create succeeded, expected forbidden", name)
		} else {
			assertDomainStatus(t, err, 403, "FORBIDDEN")
		}
	}

	// A member may still create.
	if _, err := svc.CreateProject(context.Background(), Session{UserID: "usr-member"}, ProjectInput{
		WorkspaceID: "wks-1", Name: "Launch",
	}); err != nil {
		t.Fatalf("member create project: %v", err)
	}
}

func TestCreateTaskNotifiesAssignee(t *testing.T) {
	var notified []store.Notification
	fs := &fakeStore{
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{ID: "prj-1", WorkspaceID: "wks-1"}, nil
		},
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-1", map[string]string{
				"usr-1": "owner",
				"usr-2": "member",
			}), nil
		},
		createNotificationFn: func(_ context.Context, n store.Notification) error {
			notified = append(notified, n)
			return nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateTask(context.Background(), Session{UserID: "usr-1", UserName: "Avery"}, TaskInput{
		ProjectID:  "prj-1",
		Title:      "Write docs",
		AssignedTo: "usr-2",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if len(notified) != 1 || notified[0].UserID != "usr-2" {
		t.Fatalf("expected one notification for usr-2, got %+v", notified)
	}
	if notified[0].WorkspaceID != "wks-1" {
		t.Fatalf("expected notification scoped to wks-1, got %q", notified[0].WorkspaceID)
	}
}

func TestCheckInRejectsSecondTimer(t *testing.T) {
	fs := &fakeStore{
		getTaskFn: func(context.Context, string) (store.Task, error) {
			return store.Task{ID: "tsk-1", WorkspaceID: "wks-1"}, nil
		},
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-1", map[string]string{"usr-1": "owner"}), nil
		},
		getRunningTimeEntryFn: func(context.Context, string) (store.TimeEntry, error) {
			return store.TimeEntry{ID: "tme-1", UserID: "usr-1"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CheckIn(context.Background(), Session{UserID: "usr-1"}, CheckInInput{TaskID: "tsk-1"})
	assertDomainStatus(t, err, 400, "CONFLICT")
}

func TestCheckOutOwnerOnly(t *testing.T) {
	fs := &fakeStore{
		getTimeEntryFn: func(context.Context, string) (store.TimeEntry, error) {
			return store.TimeEntry{ID: "tme-1", UserID: "usr-1", StartedAt: time.Now()}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CheckOut(context.Background(), Session{UserID: "usr-2"}, "tme-1")
	assertDomainStatus(t, err, 403, "FORBIDDEN")
}

func TestCreateFileRejectsOversizedPayload(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{ID: "prj-1", WorkspaceID: "wks-1"}, nil
		},
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-1", map[string]string{"usr-1": "owner"}), nil
		},
	}
	svc := newTestService(fs)
	svc.cfg.MaxFileBytes = 8

	projectID := "prj-1"
	_, err := svc.CreateFile(context.Background(), Session{UserID: "usr-1"}, FileInput{
		Filename:    "big.bin",
		ContentType: "application/octet-stream",
		Data:        "QUJDREVGR0hJSktMTU5PUA==", // 16 decoded bytes
		ProjectID:   &projectID,
	})
	var de *DomainError
	if !asDomainError(err, &de) || de.Status != 413 {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestCreateCommentRequiresExactlyOneParent(t *testing.T) {
	svc := newTestService(&fakeStore{})
	session := Session{UserID: "usr-1"}
	taskID, projectID := "tsk-1", "prj-1"

	_, err := svc.CreateComment(context.Background(), session, CommentInput{Content: "hi"})
	assertDomainStatus(t, err, 422, "VALIDATION_ERROR")

	_, err = svc.CreateComment(context.Background(), session, CommentInput{
		Content: "hi", TaskID: &taskID, ProjectID: &projectID,
	})
	assertDomainStatus(t, err, 422, "VALIDATION_ERROR")
}

func TestRequestStatusTransitionManagerOnly(t *testing.T) {
	fs := &fakeStore{
		getRequestFn: func(context.Context, string) (store.Request, error) {
			return store.Request{ID: "req-1", WorkspaceID: "wks-1", CreatedBy: "usr-member", Status: "open"}, nil
		},
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-owner", map[string]string{
				"usr-owner":  "owner",
				"usr-member": "member",
			}), nil
		},
	}
	svc := newTestService(fs)

	// Even the creator cannot approve their own request as a plain member.
	_, err := svc.UpdateRequestStatus(context.Background(), Session{UserID: "usr-member"}, "req-1", "approved")
	assertDomainStatus(t, err, 403, "FORBIDDEN")

	if _, err := svc.UpdateRequestStatus(context.Background(), Session{UserID: "usr-owner"}, "req-1", "approved"); err != nil {
		t.Fatalf("owner transition: %v", err)
	}
}

func TestDashboardBucketsSumToTotals(t *testing.T) {
	fs := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return memberWorkspace("wks-1", "usr-1", map[string]string{
				"usr-1": "owner",
				"usr-2": "member",
			}), nil
		},
		listProjectsFn: func(context.Context, string) ([]store.Project, error) {
			return []store.Project{
				{Status: "in_progress"},
				{Status: "completed"},
				{Status: "not_started"},
			}, nil
		},
		listTasksFn: func(context.Context, store.TaskFilter) ([]store.Task, error) {
			return []store.Task{
				{Status: "todo", Priority: "high"},
				{Status: "in_progress", Priority: "medium"},
				{Status: "done", Priority: "medium"},
				{Status: "review", Priority: "low"},
			}, nil
		},
	}
	svc := newTestService(fs)

	d, err := svc.Dashboard(context.Background(), Session{UserID: "usr-1"}, "wks-1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.TotalTasks != d.PendingTasks+d.InProgressTasks+d.CompletedTasks {
		t.Fatalf("task buckets do not sum to total: %+v", d)
	}
	if d.TotalProjects != 3 || d.ActiveProjects != 1 || d.CompletedProjects != 1 {
		t.Fatalf("unexpected project counts: %+v", d)
	}
	if d.TotalMembers != 2 {
		t.Fatalf("expected 2 members, got %d", d.TotalMembers)
	}
	if d.TasksByPriority["medium"] != 2 {
		t.Fatalf("unexpected priority histogram: %+v", d.TasksByPriority)
	}
}

func TestCanManageEntity(t *testing.T) {
	cases := []struct {
		role    string
		creator string
		user    string
		want    bool
	}{
		{"owner", "usr-other", "usr-1", true},
		{"admin", "usr-other", "usr-1", true},
		{"member", "usr-1", "usr-1", true},
		{"member", "usr-other", "usr-1", false},
		{"viewer", "usr-other", "usr-1", false},
	}
	for _, tc := range cases {
		if got := canManageEntity(rbac.Role(tc.role), tc.creator, tc.user); got != tc.want {
			t.Fatalf("canManageEntity(%s, %s, %s) = %v, want %v", tc.role, tc.creator, tc.user, got, tc.want)
		}
	}
}
