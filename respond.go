package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Dates are shown the way the dashboards always have, MM/DD/YY.
const dateLayout = "01/02/06"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// redirectErr redirects carrying a one-shot error code in the query string.
// These replace the session flash flags the app historically used.
func redirectErr(w http.ResponseWriter, r *http.Request, path, code string) {
	http.Redirect(w, r, path+"?err="+url.QueryEscape(code), http.StatusSeeOther)
}

func redirectInfo(w http.ResponseWriter, r *http.Request, path, code string) {
	http.Redirect(w, r, path+"?info="+url.QueryEscape(code), http.StatusSeeOther)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// formBool reads a tri-state checkbox value: absent/blank means the
// milestone is untouched (nil), anything else is answered.
func formBool(r *http.Request, name string) *bool {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	b := v == "true" || v == "on"
	return &b
}

// formOpt reads an optional text field, treating blanks and the form's
// placeholder value as absent.
func formOpt(r *http.Request, name, placeholder string) *string {
	v := r.FormValue(name)
	if v == "" || v == placeholder {
		return nil
	}
	return &v
}
