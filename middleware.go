package main

import (
	"context"
	"net/http"

	"github.com/keepupwork/keepup/internal/auth"
	"github.com/keepupwork/keepup/internal/db"
)

type contextKey string

const userKey contextKey = "user"

func currentUser(r *http.Request) *db.User {
	if u, ok := r.Context().Value(userKey).(*db.User); ok {
		return u
	}
	return nil
}

func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.SessionCookie)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		u, err := db.GetUserBySession(cookie.Value)
		if err != nil {
			auth.ClearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
