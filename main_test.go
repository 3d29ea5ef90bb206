package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keepupwork/keepup/internal/auth"
	"github.com/keepupwork/keepup/internal/config"
	"github.com/keepupwork/keepup/internal/db"
	"github.com/keepupwork/keepup/internal/mailer"
)

// setupTest wires the handlers to a fresh in-memory database and an
// unconfigured (log-only) mailer.
func setupTest(t *testing.T) http.Handler {
	t.Helper()
	require.NoError(t, db.Init("file::memory:"))
	t.Cleanup(db.Close)

	cfg = config.Config{
		Addr:        ":0",
		BaseURL:     "http://localhost:5000",
		TokenSecret: "test-secret",
	}
	mail = mailer.New(config.EmailConfig{}, slog.Default())
	return routes()
}

func createUser(t *testing.T, fname, lname, email, password, company string, verified bool) *db.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = db.CreateUser(fname, lname, email, hash, company)
	require.NoError(t, err)
	if verified {
		require.NoError(t, db.MarkVerified(email))
	}
	u, err := db.GetUserByEmail(email)
	require.NoError(t, err)
	return u
}

func sessionCookie(t *testing.T, u *db.User) *http.Cookie {
	t.Helper()
	tok, err := db.CreateSession(u.ID)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: tok}
}

func insertCompanyCode(t *testing.T, code, companyName, adminEmail string) {
	t.Helper()
	_, err := db.DB.Exec(
		"INSERT INTO companycodes (compcode, companyname, admin_email) VALUES (?, ?, ?)",
		code, companyName, adminEmail)
	require.NoError(t, err)
}

func seedProject(t *testing.T, name, ownerEmail, company string, checks map[string]bool) {
	t.Helper()
	require.NoError(t, db.CreateProject(&db.Project{
		ProjectName: name,
		UserEmail:   ownerEmail,
		Company:     company,
	}))
	for field, v := range checks {
		require.NoError(t, db.SetChecklistField(name, field, v))
	}
}

func doReq(t *testing.T, h http.Handler, req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func getReq(t *testing.T, h http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return doReq(t, h, httptest.NewRequest("GET", path, nil), cookie)
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doReq(t, h, req, cookie)
}

func postJSON(t *testing.T, h http.Handler, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return doReq(t, h, req, cookie)
}

func decodeBody(t *testing.T, body io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(body).Decode(v))
}
