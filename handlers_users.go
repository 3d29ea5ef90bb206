package main

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/keepupwork/keepup/internal/auth"
	"github.com/keepupwork/keepup/internal/db"
)

func handleSettings(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	writeJSON(w, http.StatusOK, map[string]string{
		"fname":   u.FirstName,
		"lname":   u.LastName,
		"email":   u.Email,
		"company": u.Company,
		"role":    u.Role,
	})
}

func handleEditUserInfo(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	fname := strings.TrimSpace(r.FormValue("firstName"))
	lname := strings.TrimSpace(r.FormValue("lastName"))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	if fname == "" || email == "" {
		redirectErr(w, r, "/app/settings", "missing_fields")
		return
	}

	err := db.UpdateUserInfo(u.ID, fname, lname, email)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/settings", "update_failed")
		return
	}
	if err != nil {
		slog.Error("edituserinfo: update", "error", err)
		redirectErr(w, r, "/app/settings", "update_failed")
		return
	}
	http.Redirect(w, r, "/app/dashboard", http.StatusSeeOther)
}

// handleEditPassword changes the logged-in user's own password; unlike the
// reset flow it needs no emailed token, just an active session.
func handleEditPassword(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	password := r.FormValue("password")
	if password == "" {
		redirectErr(w, r, "/app/settings", "missing_password")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("editpassword: hash", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := db.UpdatePassword(u.Email, hash); err != nil {
		slog.Error("editpassword: update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	redirectInfo(w, r, "/app/settings", "password_changed")
}

func handleAssignRole(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	role := strings.TrimSpace(r.FormValue("role"))
	if role == "" {
		writeError(w, http.StatusBadRequest, "role required")
		return
	}
	if err := db.UpdateRole(u.Email, role); err != nil {
		slog.Error("assignrole: update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
