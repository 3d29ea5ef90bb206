package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/keepupwork/keepup/internal/db"
)

type commentView struct {
	ID          int64  `json:"id"`
	ProjectName string `json:"project_name"`
	UserID      int64  `json:"user_id"`
	UserName    string `json:"user_name"`
	Text        string `json:"comment_text"`
	CreatedAt   string `json:"created_at"`
}

func commentViews(comments []db.Comment) []commentView {
	out := make([]commentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentView{
			ID:          c.ID,
			ProjectName: c.ProjectName,
			UserID:      c.UserID,
			UserName:    c.UserName,
			Text:        c.Text,
			CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func handleSaveComment(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	var req struct {
		ProjectName string `json:"projectName"`
		CommentText string `json:"commentText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.CommentText) == "" {
		writeError(w, http.StatusBadRequest, "comment text required")
		return
	}
	if _, err := db.GetProject(req.ProjectName); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		slog.Error("save-comment: project lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	c, err := db.AddComment(req.ProjectName, u.ID, u.DisplayName(), req.CommentText)
	if err != nil {
		slog.Error("save-comment: insert", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "comment": commentViews([]db.Comment{*c})[0]})
}

func handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := db.CommentsByProject(r.URL.Query().Get("projectName"))
	if err != nil {
		slog.Error("comments: list", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": commentViews(comments)})
}

func handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := db.DeleteComment(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "comment not found")
			return
		}
		slog.Error("delete-comment: delete", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
