package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/keepupwork/keepup/internal/auth"
	"github.com/keepupwork/keepup/internal/db"
	"github.com/keepupwork/keepup/internal/mailer"
	"github.com/keepupwork/keepup/internal/token"
)

func handleSignup(w http.ResponseWriter, r *http.Request) {
	fname := strings.TrimSpace(r.FormValue("fName"))
	lname := strings.TrimSpace(r.FormValue("lName"))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")
	compCode := strings.TrimSpace(r.FormValue("CompCode"))

	if fname == "" || email == "" || password == "" || compCode == "" {
		redirectErr(w, r, "/signup", "missing_fields")
		return
	}

	cc, err := db.GetCompanyCode(compCode)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/signup", "bad_company_code")
		return
	}
	if err != nil {
		slog.Error("signup: company code lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("signup: hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if _, err := db.CreateUser(fname, lname, email, hash, cc.CompanyName); err != nil {
		if errors.Is(err, db.ErrConflict) {
			redirectErr(w, r, "/signup", "email_exists")
			return
		}
		slog.Error("signup: create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The company admin, not the user, confirms the account.
	tok, err := token.NewVerify(tokenSecret(), email, fname, lname)
	if err != nil {
		slog.Error("signup: sign token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	link := fmt.Sprintf("%s/confirmation/%s", cfg.BaseURL, tok)
	mail.Send(mailer.Message{
		To:      []string{cc.AdminEmail},
		Subject: "New User Signup - Verification Required",
		HTML: fmt.Sprintf(
			`<p>A new user has signed up to join your KeepUp team. Please verify their account:</p>`+
				`<p>Name: %s %s</p><p>Email: %s</p><p>Company: %s</p>`+
				`<p>Click <a href="%s">here</a> to verify the user.</p>`,
			fname, lname, email, cc.CompanyName, link),
	})

	redirectInfo(w, r, "/login", "pending_verification")
}

func handleConfirmToken(w http.ResponseWriter, r *http.Request) {
	claims, err := token.Parse(tokenSecret(), r.PathValue("token"), token.PurposeVerify)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err := db.MarkVerified(claims.Email); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		slog.Error("confirm: mark verified", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	redirectInfo(w, r, "/login", "account_verified")
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")

	u, err := db.GetUserByEmail(email)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/login", "user_not_found")
		return
	}
	if err != nil {
		slog.Error("login: user lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !u.JWTVerified {
		redirectErr(w, r, "/login", "not_verified")
		return
	}
	if !auth.CheckPassword(u.Password, password) {
		redirectErr(w, r, "/login", "wrong_password")
		return
	}

	sessionToken, err := db.CreateSession(u.ID)
	if err != nil {
		slog.Error("login: create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	auth.SetSessionCookie(w, sessionToken)
	http.Redirect(w, r, "/app/dashboard", http.StatusSeeOther)
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		db.DeleteSession(cookie.Value)
	}
	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))

	// Same response whether or not the account exists.
	if _, err := db.GetUserByEmail(email); err == nil {
		tok, err := token.NewReset(tokenSecret(), email)
		if err != nil {
			slog.Error("forgotpassword: sign token", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		link := fmt.Sprintf("%s/changepassword/%s", cfg.BaseURL, tok)
		mail.Send(mailer.Message{
			To:      []string{email},
			Subject: "Password Reset Instructions",
			HTML:    fmt.Sprintf(`<p>Click <a href="%s">here</a> to reset your password</p>`, link),
		})
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleChangePasswordToken validates a reset link and tells the client
// which account it is for.
func handleChangePasswordToken(w http.ResponseWriter, r *http.Request) {
	claims, err := token.Parse(tokenSecret(), r.PathValue("token"), token.PurposeReset)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": claims.Email})
}

func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := token.Parse(tokenSecret(), r.FormValue("token"), token.PurposeReset)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	password := r.FormValue("password")
	if password == "" {
		redirectErr(w, r, "/login", "missing_password")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("changepassword: hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := db.UpdatePassword(claims.Email, hash); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			redirectErr(w, r, "/login", "user_not_found")
			return
		}
		slog.Error("changepassword: update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	redirectInfo(w, r, "/login", "password_changed")
}
