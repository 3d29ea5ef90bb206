package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keepupwork/keepup/internal/auth"
	"github.com/keepupwork/keepup/internal/checklist"
	"github.com/keepupwork/keepup/internal/db"
	"github.com/keepupwork/keepup/internal/mailer"
)

// projectSummary is the row shape the project tables consume.
type projectSummary struct {
	ProjectName       string  `json:"project_name"`
	ContractorEmail   string  `json:"contractor_email"`
	CheckedPercentage int     `json:"checked_percentage"`
	FirstNullColumn   *string `json:"first_null_column"`
	COSD              string  `json:"cosd"`
	EditTimestamp     string  `json:"edit_timestamp"`
	RunningBy         string  `json:"running_by,omitempty"`
	DRN               *string `json:"drn"`
	STC               *string `json:"stc"`
	DRV               *string `json:"drv"`
	A4                *bool   `json:"a4"`
	A5                *bool   `json:"a5"`
}

func summarize(p *db.Project, runningBy string) projectSummary {
	values := p.Checklist()
	var next *string
	if f, ok := checklist.NextField(values); ok {
		next = &f
	}
	ts := p.EditTimestamp.Format(dateLayout)
	return projectSummary{
		ProjectName:       p.ProjectName,
		ContractorEmail:   p.ContractorEmail,
		CheckedPercentage: checklist.Percent(values, p.STC != nil, p.DRV != nil),
		FirstNullColumn:   next,
		COSD:              fmtDate(p.COSD),
		EditTimestamp:     ts,
		RunningBy:         runningBy,
		DRN:               p.DRN,
		STC:               p.STC,
		DRV:               p.DRV,
		A4:                p.A4,
		A5:                p.A5,
	}
}

// projectDetail is the full single-project view.
type projectDetail struct {
	projectSummary
	UserEmail   string           `json:"user_email"`
	Checks      map[string]*bool `json:"checks"`
	DDSSState   string           `json:"ddss_state"`
	DateCreated string           `json:"date_created"`
}

func detail(p *db.Project) projectDetail {
	checks := p.Checklist()
	checks["a4"] = p.A4
	checks["a5"] = p.A5
	return projectDetail{
		projectSummary: summarize(p, ""),
		UserEmail:      p.UserEmail,
		Checks:         checks,
		DDSSState:      checklist.Gate(p.Checklist()).String(),
		DateCreated:    p.DateCreated.Format(dateLayout),
	}
}

func companySummaries(projects []db.ProjectWithOwner) []projectSummary {
	out := make([]projectSummary, 0, len(projects))
	for i := range projects {
		out = append(out, summarize(&projects[i].Project, projects[i].RunningBy()))
	}
	return out
}

// Lists

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	projects, err := db.ProjectsByCompany(u.Company)
	if err != nil {
		slog.Error("dashboard: list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": companySummaries(projects)})
}

func handleMyProjects(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	projects, err := db.ProjectsByOwner(u.Email)
	if err != nil {
		slog.Error("myprojects: list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]projectSummary, 0, len(projects))
	for i := range projects {
		out = append(out, summarize(&projects[i], ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func handleActiveProjects(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	projects, err := db.ProjectsByCompany(u.Company)
	if err != nil {
		slog.Error("activeprojects: list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": companySummaries(projects)})
}

// Creation

func handleAddProject(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	name := strings.TrimSpace(r.FormValue("project_name"))
	if name == "" {
		redirectErr(w, r, "/app/addproject", "missing_project_name")
		return
	}

	var cosd *time.Time
	if v := r.FormValue("cosd"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			redirectErr(w, r, "/app/addproject", "bad_date")
			return
		}
		cosd = &t
	}

	p := &db.Project{
		ProjectName:     name,
		ContractorEmail: strings.TrimSpace(r.FormValue("contractor_email")),
		UserEmail:       u.Email,
		Company:         u.Company,
		COSD:            cosd,
		A1:              formBool(r, "a1"),
		A2:              formBool(r, "a2"),
		A3:              formBool(r, "a3"),
		A4:              formBool(r, "a4"),
		A5:              formBool(r, "a5"),
		B1:              formBool(r, "b1"),
		B2:              formBool(r, "b2"),
		B3:              formBool(r, "b3"),
		C1:              formBool(r, "c1"),
		C2:              formBool(r, "c2"),
		C3:              formBool(r, "c3"),
		D1:              formBool(r, "d1"),
		D2:              formBool(r, "d2"),
		D3:              formBool(r, "d3"),
		D4:              formBool(r, "d4"),
		D5:              formBool(r, "d5"),
		D6:              formBool(r, "d6"),
		D7:              formBool(r, "d7"),
		E1:              formBool(r, "e1"),
		E2:              formBool(r, "e2"),
		E3:              formBool(r, "e3"),
		F1:              formBool(r, "f1"),
		F2:              formBool(r, "f2"),
		DRN:             formOpt(r, "drn", ""),
		// "STC"/"DRV" are the form's placeholder values, not data.
		STC: formOpt(r, "stc", "STC"),
		DRV: formOpt(r, "drv", "DRV"),
	}

	if err := db.CreateProject(p); err != nil {
		if errors.Is(err, db.ErrConflict) {
			redirectErr(w, r, "/app/addproject", "name_taken")
			return
		}
		slog.Error("addproject: create", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if r.FormValue("confirmed") == "true" {
		http.Redirect(w, r, "/app/contactemail?project_name="+url.QueryEscape(name)+
			"&contractor_email="+url.QueryEscape(p.ContractorEmail), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/app/myprojects", http.StatusSeeOther)
}

// Detail and edits

func handleEditProject(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	name := r.URL.Query().Get("projectName")

	p, err := db.GetProject(name)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/myprojects", "project_not_found")
		return
	}
	if err != nil {
		slog.Error("editproject: fetch", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	users, err := db.VerifiedCompanyUsers(u.Company, u.Email)
	if err != nil {
		slog.Error("editproject: company users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project":       detail(p),
		"company_users": userRefs(users),
	})
}

func handleEditProjectInfo(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("projectName")
	newName := strings.TrimSpace(r.FormValue("updatedProjectName"))
	contractor := strings.TrimSpace(r.FormValue("updatedContractorEmail"))
	if newName == "" {
		redirectErr(w, r, "/app/myprojects", "missing_project_name")
		return
	}

	if newName != name {
		if _, err := db.GetProject(newName); err == nil {
			http.Redirect(w, r, "/app/editproject?projectName="+url.QueryEscape(name)+"&err=name_taken", http.StatusSeeOther)
			return
		}
	}

	err := db.UpdateProjectInfo(name, newName, contractor,
		formOpt(r, "updateddrn", ""), formOpt(r, "updatedstc", ""), formOpt(r, "updateddrv", ""))
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/myprojects", "project_not_found")
		return
	}
	if err != nil {
		slog.Error("editproject: update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.Redirect(w, r, "/app/editproject?projectName="+url.QueryEscape(newName), http.StatusSeeOther)
}

func handleEditChecks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CheckboxName string `json:"checkboxName"`
		IsChecked    bool   `json:"isChecked"`
		ProjectName  string `json:"projectName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !checklist.Known(req.CheckboxName) {
		writeError(w, http.StatusBadRequest, "unknown checklist field")
		return
	}
	// The final sign-off only moves through the approval flow.
	if req.CheckboxName == "d7" {
		writeError(w, http.StatusForbidden, "d7 is set via DDSS approval")
		return
	}

	err := db.SetChecklistField(req.ProjectName, req.CheckboxName, req.IsChecked)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		slog.Error("editchecks: update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func handleViewProject(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("projectName")
	p, err := db.GetProject(name)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		slog.Error("viewproject: fetch", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": detail(p)})
}

// Deletion requires the acting user to re-enter their password.
func handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if !auth.CheckPassword(u.Password, r.FormValue("password")) {
		redirectErr(w, r, "/app/myprojects", "wrong_password")
		return
	}

	err := db.DeleteProject(r.FormValue("projectNameDelete"))
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/myprojects", "project_not_found")
		return
	}
	if err != nil {
		slog.Error("delete: remove project", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.Redirect(w, r, "/app/myprojects", http.StatusSeeOther)
}

// DDSS review and approval

func handleReview(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	projects, err := db.ReviewQueue(u.Company)
	if err != nil {
		slog.Error("review: queue", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": companySummaries(projects)})
}

func handleApprove(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	name := r.FormValue("projectName")

	if !auth.CheckPassword(u.Password, r.FormValue("password")) {
		redirectErr(w, r, "/app/review", "wrong_password")
		return
	}

	p, err := db.GetProject(name)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/review", "project_not_found")
		return
	}
	if err != nil {
		slog.Error("approve: fetch", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch checklist.Gate(p.Checklist()) {
	case checklist.Approved:
		// Already signed off; nothing to do.
		http.Redirect(w, r, "/app/review", http.StatusSeeOther)
	case checklist.Locked:
		redirectErr(w, r, "/app/review", "not_ready")
	case checklist.Ready:
		if err := db.ApproveProject(name); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				redirectErr(w, r, "/app/review", "not_ready")
				return
			}
			slog.Error("approve: update", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		http.Redirect(w, r, "/app/review", http.StatusSeeOther)
	}
}

// Ownership transfer

func handleTransfer(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	name := r.FormValue("projectName")
	newOwnerEmail := strings.TrimSpace(strings.ToLower(r.FormValue("userEmail")))

	recipient, err := db.GetUserByEmail(newOwnerEmail)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/dashboard", "user_not_found")
		return
	}
	if err != nil {
		slog.Error("transfer: recipient lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	text := fmt.Sprintf("Project ownership transferred from %s to %s",
		u.DisplayName(), recipient.DisplayName())
	err = db.TransferOwnership(name, recipient.Email, u.ID, u.DisplayName(), text)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/dashboard", "project_not_found")
		return
	}
	if err != nil {
		slog.Error("transfer: update", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.Redirect(w, r, "/app/dashboard", http.StatusSeeOther)
}

// Initial contractor contact

type userRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Email     string `json:"email"`
}

func userRefs(users []db.User) []userRef {
	out := make([]userRef, 0, len(users))
	for _, u := range users {
		out = append(out, userRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email})
	}
	return out
}

func handleContactEmail(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	name := r.URL.Query().Get("project_name")

	p, err := db.GetProject(name)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		slog.Error("contactemail: fetch project", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	users, err := db.VerifiedCompanyUsers(u.Company, u.Email)
	if err != nil {
		slog.Error("contactemail: company users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	greeting := "Good afternoon"
	if time.Now().Hour() < 12 {
		greeting = "Good morning"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project_name":     p.ProjectName,
		"contractor_email": p.ContractorEmail,
		"company_name":     u.Company,
		"user_email":       u.Email,
		"company_users":    userRefs(users),
		"greeting":         greeting,
		"drn":              p.DRN,
		"stc":              p.STC,
		"drv":              p.DRV,
	})
}

const maxAttachments = 3

func handleSendEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}

	name := r.FormValue("project_name")
	body := r.FormValue("body")

	var attachments []mailer.Attachment
	if r.MultipartForm != nil {
		files := r.MultipartForm.File["attachment"]
		if len(files) > maxAttachments {
			files = files[:maxAttachments]
		}
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid attachment")
				return
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid attachment")
				return
			}
			attachments = append(attachments, mailer.Attachment{Filename: fh.Filename, Content: content})
		}
	}

	// Sending the initial contact marks the first milestone done.
	err := db.SetChecklistField(name, "a1", true)
	if errors.Is(err, db.ErrNotFound) {
		redirectErr(w, r, "/app/myprojects", "project_not_found")
		return
	}
	if err != nil {
		slog.Error("send-email: mark a1", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var cc []string
	if v := strings.TrimSpace(r.FormValue("cc")); v != "" {
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cc = append(cc, addr)
			}
		}
	}

	mail.Send(mailer.Message{
		To:          []string{r.FormValue("to")},
		CC:          cc,
		Subject:     r.FormValue("subject"),
		Text:        body,
		HTML:        "<p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p>",
		Attachments: attachments,
	})

	http.Redirect(w, r, "/app/myprojects", http.StatusSeeOther)
}
