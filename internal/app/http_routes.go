package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"planhub/api/internal/store"
)

// route dispatches every authenticated endpoint. Fixed paths first, then
// id-bearing paths via splitPath.
func (s *HTTPServer) route(w http.ResponseWriter, r *http.Request, session Session) {
	switch {
	case r.URL.Path == "/api/user/me":
		s.handleMe(w, r, session)
		return
	case r.Method == http.MethodPut && r.URL.Path == "/api/user/me/password":
		s.handleChangePassword(w, r, session)
		return
	case r.URL.Path == "/api/workspaces":
		s.handleWorkspaceCollection(w, r, session)
		return
	case r.URL.Path == "/api/projects":
		s.handleProjectCollection(w, r, session)
		return
	case r.URL.Path == "/api/tasks":
		s.handleTaskCollection(w, r, session)
		return
	case r.URL.Path == "/api/subtasks":
		s.handleSubtaskCollection(w, r, session)
		return
	case r.URL.Path == "/api/notes":
		s.handleNoteCollection(w, r, session)
		return
	case r.URL.Path == "/api/tags":
		s.handleTagCollection(w, r, session)
		return
	case r.URL.Path == "/api/favorites":
		s.handleFavoriteCollection(w, r, session)
		return
	case r.URL.Path == "/api/requests":
		s.handleRequestCollection(w, r, session)
		return
	case r.URL.Path == "/api/comments":
		s.handleCommentCollection(w, r, session)
		return
	case r.URL.Path == "/api/time-entries":
		s.handleTimeEntryCollection(w, r, session)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/api/time-entries/checkin":
		s.handleCheckIn(w, r, session)
		return
	case r.URL.Path == "/api/files":
		s.handleFileCollection(w, r, session)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/api/notifications":
		s.handleListNotifications(w, r, session)
		return
	case r.Method == http.MethodPut && r.URL.Path == "/api/notifications/read-all":
		if err := s.service.MarkAllNotificationsRead(r.Context(), session); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	case r.Method == http.MethodGet && r.URL.Path == "/api/activities":
		s.handleListActivities(w, r, session)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/api/analytics/dashboard":
		s.handleDashboard(w, r, session)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/api/analytics/productivity":
		s.handleProductivity(w, r, session)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/api/reminders":
		s.handleReminders(w, r, session)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/api/team":
		s.handleTeam(w, r, session)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/api/search":
		s.handleSearch(w, r, session)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 3 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	collection, id := parts[1], parts[2]
	rest := parts[3:]

	switch collection {
	case "workspaces":
		s.handleWorkspaceItem(w, r, session, id, rest)
	case "projects":
		s.handleProjectItem(w, r, session, id, rest)
	case "tasks":
		s.handleTaskItem(w, r, session, id, rest)
	case "subtasks":
		s.handleSubtaskItem(w, r, session, id, rest)
	case "notes":
		s.handleNoteItem(w, r, session, id, rest)
	case "tags":
		s.handleTagItem(w, r, session, id, rest)
	case "favorites":
		s.handleFavoriteItem(w, r, session, id, rest)
	case "requests":
		s.handleRequestItem(w, r, session, id, rest)
	case "comments":
		s.handleCommentItem(w, r, session, id, rest)
	case "time-entries":
		s.handleTimeEntryItem(w, r, session, id, rest)
	case "files":
		s.handleFileItem(w, r, session, id, rest)
	case "notifications":
		s.handleNotificationItem(w, r, session, id, rest)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		user, err := s.service.GetMe(r.Context(), session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var body ProfileInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.UpdateMe(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ChangePassword(r.Context(), session, body.OldPassword, body.NewPassword); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleWorkspaceCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.service.ListWorkspaces(r.Context(), session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workspaces": items})
	case http.MethodPost:
		var body WorkspaceInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ws, err := s.service.CreateWorkspace(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ws)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleWorkspaceItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		ws, err := s.service.GetWorkspace(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	case len(rest) == 0 && r.Method == http.MethodPut:
		var body WorkspaceInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ws, err := s.service.UpdateWorkspace(r.Context(), session, id, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	case len(rest) == 0 && r.Method == http.MethodDelete:
		if err := s.service.DeleteWorkspace(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case len(rest) == 1 && rest[0] == "invite" && r.Method == http.MethodPost:
		var body struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ws, err := s.service.InviteMember(r.Context(), session, id, body.Email)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	case len(rest) == 3 && rest[0] == "members" && rest[2] == "role" && r.Method == http.MethodPut:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		ws, err := s.service.SetMemberRole(r.Context(), session, id, rest[1], body.Role)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	case len(rest) == 2 && rest[0] == "members" && r.Method == http.MethodDelete:
		ws, err := s.service.RemoveMember(r.Context(), session, id, rest[1])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	case len(rest) == 1 && rest[0] == "report" && r.Method == http.MethodGet:
		result, err := s.service.ExportWorkspaceReport(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleProjectCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		workspaceID := r.URL.Query().Get("workspace_id")
		if workspaceID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
			return
		}
		items, err := s.service.ListProjects(r.Context(), session, workspaceID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": items})
	case http.MethodPost:
		var body ProjectInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		p, err := s.service.CreateProject(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleProjectItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) != 0 {
		methodNotAllowed(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := s.service.GetProject(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut:
		var body ProjectInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		p, err := s.service.UpdateProject(r.Context(), session, id, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := s.service.DeleteProject(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleTaskCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := store.TaskFilter{
			ProjectID:   q.Get("project_id"),
			WorkspaceID: q.Get("workspace_id"),
			Status:      q.Get("status"),
			Priority:    q.Get("priority"),
			AssignedTo:  q.Get("assigned_to"),
		}
		var err error
		if filter.DeadlineFrom, err = parseTimeParam(q.Get("deadline_from")); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "deadline_from must be RFC 3339", nil)
			return
		}
		if filter.DeadlineTo, err = parseTimeParam(q.Get("deadline_to")); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "deadline_to must be RFC 3339", nil)
			return
		}
		filter.Limit = parseIntParam(q.Get("limit"), 0)
		filter.Offset = parseIntParam(q.Get("offset"), 0)

		items, err := s.service.ListTasks(r.Context(), session, filter)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": items})
	case http.MethodPost:
		var body TaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		t, err := s.service.CreateTask(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleTaskItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) == 1 && rest[0] == "status" && r.Method == http.MethodPut {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		t, err := s.service.UpdateTaskStatus(r.Context(), session, id, body.Status)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
		return
	}
	if len(rest) != 0 {
		methodNotAllowed(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		t, err := s.service.GetTask(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodPut:
		var body TaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		t, err := s.service.UpdateTask(r.Context(), session, id, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	case http.MethodDelete:
		if err := s.service.DeleteTask(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleSubtaskCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		taskID := r.URL.Query().Get("task_id")
		if taskID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "task_id is required", nil)
			return
		}
		items, err := s.service.ListSubtasks(r.Context(), session, taskID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subtasks": items})
	case http.MethodPost:
		var body SubtaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		st, err := s.service.CreateSubtask(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleSubtaskItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) != 0 {
		methodNotAllowed(w)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var body SubtaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		st, err := s.service.UpdateSubtask(r.Context(), session, id, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		if err := s.service.DeleteSubtask(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleNoteCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		workspaceID := r.URL.Query().Get("workspace_id")
		if workspaceID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
			return
		}
		items, err := s.service.ListNotes(r.Context(), session, workspaceID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": items})
	case http.MethodPost:
		var body NoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		n, err := s.service.CreateNote(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleNoteItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) == 1 && rest[0] == "pin" && r.Method == http.MethodPut {
		n, err := s.service.ToggleNotePin(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
		return
	}
	if len(rest) != 0 {
		methodNotAllowed(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		n, err := s.service.GetNote(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case http.MethodPut:
		var body NoteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		n, err := s.service.UpdateNote(r.Context(), session, id, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case http.MethodDelete:
		if err := s.service.DeleteNote(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleTagCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		workspaceID := r.URL.Query().Get("workspace_id")
		if workspaceID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
			return
		}
		items, err := s.service.ListTags(r.Context(), session, workspaceID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tags": items})
	case http.MethodPost:
		var body TagInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		t, err := s.service.CreateTag(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleTagItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) != 0 || r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.service.DeleteTag(r.Context(), session, id); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleFavoriteCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.service.ListFavorites(r.Context(), session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"favorites": items})
	case http.MethodPost:
		var body FavoriteInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		f, err := s.service.CreateFavorite(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleFavoriteItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) != 0 || r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.service.DeleteFavorite(r.Context(), session, id); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRequestCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		workspaceID := r.URL.Query().Get("workspace_id")
		if workspaceID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
			return
		}
		items, err := s.service.ListRequests(r.Context(), session, workspaceID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": items})
	case http.MethodPost:
		var body RequestInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		req, err := s.service.CreateRequest(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, req)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleRequestItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) == 1 && rest[0] == "status" && r.Method == http.MethodPut {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		req, err := s.service.UpdateRequestStatus(r.Context(), session, id, body.Status)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
		return
	}
	if len(rest) != 0 {
		methodNotAllowed(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		req, err := s.service.GetRequest(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	case http.MethodPut:
		var body RequestInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		req, err := s.service.UpdateRequest(r.Context(), session, id, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	case http.MethodDelete:
		if err := s.service.DeleteRequest(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleCommentCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		items, err := s.service.ListComments(r.Context(), session, q.Get("task_id"), q.Get("project_id"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": items})
	case http.MethodPost:
		var body CommentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		c, err := s.service.CreateComment(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleCommentItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) != 0 {
		methodNotAllowed(w)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		c, err := s.service.UpdateComment(r.Context(), session, id, body.Content)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	case http.MethodDelete:
		if err := s.service.DeleteComment(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request, session Session) {
	var body CheckInInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	te, err := s.service.CheckIn(r.Context(), session, body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, te)
}

func (s *HTTPServer) handleTimeEntryCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := store.TimeEntryFilter{
			TaskID:      q.Get("task_id"),
			WorkspaceID: q.Get("workspace_id"),
			UserID:      q.Get("user_id"),
		}
		var err error
		if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "from must be RFC 3339", nil)
			return
		}
		if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "to must be RFC 3339", nil)
			return
		}
		items, err := s.service.ListTimeEntries(r.Context(), session, filter)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"time_entries": items})
	case http.MethodPost:
		var body TimeEntryInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		te, err := s.service.CreateTimeEntry(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, te)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleTimeEntryItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) == 1 && rest[0] == "checkout" && r.Method == http.MethodPost {
		te, err := s.service.CheckOut(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, te)
		return
	}
	if len(rest) != 0 || r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.service.DeleteTimeEntry(r.Context(), session, id); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleFileCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		items, err := s.service.ListFiles(r.Context(), session, q.Get("project_id"), q.Get("task_id"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": items})
	case http.MethodPost:
		var body FileInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		f, err := s.service.CreateFile(r.Context(), session, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleFileItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	if len(rest) != 0 {
		methodNotAllowed(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		f, err := s.service.GetFile(r.Context(), session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	case http.MethodDelete:
		if err := s.service.DeleteFile(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request, session Session) {
	limit := parseIntParam(r.URL.Query().Get("limit"), 50)
	list, err := s.service.ListNotifications(r.Context(), session, limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleNotificationItem(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	switch {
	case len(rest) == 1 && rest[0] == "read" && r.Method == http.MethodPut:
		if err := s.service.MarkNotificationRead(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case len(rest) == 0 && r.Method == http.MethodDelete:
		if err := s.service.DeleteNotification(r.Context(), session, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleListActivities(w http.ResponseWriter, r *http.Request, session Session) {
	q := r.URL.Query()
	workspaceID := q.Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
		return
	}
	since, err := parseTimeParam(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "since must be RFC 3339", nil)
		return
	}
	limit := parseIntParam(q.Get("limit"), 50)
	items, err := s.service.ListActivities(r.Context(), session, workspaceID, since, limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": items})
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request, session Session) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
		return
	}
	d, err := s.service.Dashboard(r.Context(), session, workspaceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *HTTPServer) handleProductivity(w http.ResponseWriter, r *http.Request, session Session) {
	q := r.URL.Query()
	workspaceID := q.Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
		return
	}
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "from must be RFC 3339", nil)
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "to must be RFC 3339", nil)
		return
	}
	result, err := s.service.Productivity(r.Context(), session, workspaceID, from, to)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": result})
}

func (s *HTTPServer) handleReminders(w http.ResponseWriter, r *http.Request, session Session) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
		return
	}
	reminders, err := s.service.Reminders(r.Context(), session, workspaceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (s *HTTPServer) handleTeam(w http.ResponseWriter, r *http.Request, session Session) {
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
		return
	}
	members, err := s.service.Team(r.Context(), session, workspaceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("q"))
	workspaceID := q.Get("workspace_id")
	if workspaceID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspace_id is required", nil)
		return
	}
	limit := parseIntParam(q.Get("limit"), 20)
	resp, err := s.service.Search(r.Context(), session, text, workspaceID, q.Get("types"), limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Bare dates are accepted too.
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
