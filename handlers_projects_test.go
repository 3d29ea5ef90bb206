package main

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepupwork/keepup/internal/db"
)

func TestAddProjectRoundTrip(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)

	rec := postForm(t, h, "/app/addproject", url.Values{
		"project_name":     {"Riverside Tower"},
		"contractor_email": {"contractor@site.test"},
		"cosd":             {"2026-05-01"},
		"a1":               {"true"},
		"a2":               {"true"},
		"drn":              {"DRN-42"},
		"stc":              {"STC"}, // untouched placeholder
		"drv":              {"DK-9"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/myprojects", rec.Header().Get("Location"))

	rec = getReq(t, h, "/app/viewproject?projectName="+url.QueryEscape("Riverside Tower"), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Project struct {
			ProjectName       string           `json:"project_name"`
			ContractorEmail   string           `json:"contractor_email"`
			UserEmail         string           `json:"user_email"`
			CheckedPercentage int              `json:"checked_percentage"`
			FirstNullColumn   *string          `json:"first_null_column"`
			COSD              string           `json:"cosd"`
			DDSSState         string           `json:"ddss_state"`
			DRN               *string          `json:"drn"`
			STC               *string          `json:"stc"`
			DRV               *string          `json:"drv"`
			Checks            map[string]*bool `json:"checks"`
		} `json:"project"`
	}
	decodeBody(t, rec.Body, &resp)

	p := resp.Project
	assert.Equal(t, "Riverside Tower", p.ProjectName)
	assert.Equal(t, "contractor@site.test", p.ContractorEmail)
	assert.Equal(t, "jane@acme.test", p.UserEmail)
	assert.Equal(t, "05/01/26", p.COSD)
	assert.Equal(t, "locked", p.DDSSState)
	require.NotNil(t, p.DRN)
	assert.Equal(t, "DRN-42", *p.DRN)
	assert.Nil(t, p.STC)
	require.NotNil(t, p.DRV)
	assert.Equal(t, "DK-9", *p.DRV)
	// 2 of 22 fields done (DRV adds one to the denominator).
	assert.Equal(t, 9, p.CheckedPercentage)
	require.NotNil(t, p.FirstNullColumn)
	assert.Equal(t, "a3", *p.FirstNullColumn)
	require.Contains(t, p.Checks, "a1")
	require.NotNil(t, p.Checks["a1"])
	assert.True(t, *p.Checks["a1"])
	assert.Nil(t, p.Checks["b1"])
}

func TestAddProjectRejectsDuplicateName(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)
	seedProject(t, "Riverside Tower", u.Email, u.Company, nil)

	rec := postForm(t, h, "/app/addproject", url.Values{
		"project_name": {"Riverside Tower"},
	}, cookie)
	assert.Equal(t, "/app/addproject?err=name_taken", rec.Header().Get("Location"))
}

func TestEditChecks(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)
	seedProject(t, "Riverside Tower", u.Email, u.Company, nil)

	rec := postJSON(t, h, "/app/editchecks",
		`{"checkboxName":"b2","isChecked":true,"projectName":"Riverside Tower"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := db.GetProject("Riverside Tower")
	require.NoError(t, err)
	require.NotNil(t, p.B2)
	assert.True(t, *p.B2)

	rec = postJSON(t, h, "/app/editchecks",
		`{"checkboxName":"b2","isChecked":false,"projectName":"Riverside Tower"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	p, err = db.GetProject("Riverside Tower")
	require.NoError(t, err)
	require.NotNil(t, p.B2)
	assert.False(t, *p.B2)
}

func TestEditChecksRejections(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)
	seedProject(t, "Riverside Tower", u.Email, u.Company, nil)

	rec := postJSON(t, h, "/app/editchecks",
		`{"checkboxName":"zz","isChecked":true,"projectName":"Riverside Tower"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/app/editchecks",
		`{"checkboxName":"a4; DROP TABLE projects","isChecked":true,"projectName":"Riverside Tower"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/app/editchecks",
		`{"checkboxName":"d7","isChecked":true,"projectName":"Riverside Tower"}`, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postJSON(t, h, "/app/editchecks",
		`{"checkboxName":"b2","isChecked":true,"projectName":"Nope"}`, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProjectRequiresPassword(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)
	seedProject(t, "Riverside Tower", u.Email, u.Company, nil)

	rec := postForm(t, h, "/app/delete", url.Values{
		"projectNameDelete": {"Riverside Tower"},
		"password":          {"wrong"},
	}, cookie)
	assert.Equal(t, "/app/myprojects?err=wrong_password", rec.Header().Get("Location"))
	_, err := db.GetProject("Riverside Tower")
	require.NoError(t, err)

	rec = postForm(t, h, "/app/delete", url.Values{
		"projectNameDelete": {"Riverside Tower"},
		"password":          {"hunter2"},
	}, cookie)
	assert.Equal(t, "/app/myprojects", rec.Header().Get("Location"))
	_, err = db.GetProject("Riverside Tower")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func allDDSSPrereqs() map[string]bool {
	return map[string]bool{"d1": true, "d2": true, "d3": true, "d4": true, "d5": true, "d6": true}
}

func TestReviewQueue(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)

	seedProject(t, "Ready Site", u.Email, u.Company, allDDSSPrereqs())
	seedProject(t, "Early Site", u.Email, u.Company, map[string]bool{"d1": true})

	rec := getReq(t, h, "/app/review", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Projects []struct {
			ProjectName string `json:"project_name"`
		} `json:"projects"`
	}
	decodeBody(t, rec.Body, &resp)
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, "Ready Site", resp.Projects[0].ProjectName)
}

func TestApprove(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)
	seedProject(t, "Ready Site", u.Email, u.Company, allDDSSPrereqs())
	seedProject(t, "Early Site", u.Email, u.Company, map[string]bool{"d1": true})

	// Wrong password is rejected before any state change.
	rec := postForm(t, h, "/app/approve", url.Values{
		"projectName": {"Ready Site"},
		"password":    {"wrong"},
	}, cookie)
	assert.Equal(t, "/app/review?err=wrong_password", rec.Header().Get("Location"))

	// A project missing prerequisites cannot be approved.
	rec = postForm(t, h, "/app/approve", url.Values{
		"projectName": {"Early Site"},
		"password":    {"hunter2"},
	}, cookie)
	assert.Equal(t, "/app/review?err=not_ready", rec.Header().Get("Location"))

	rec = postForm(t, h, "/app/approve", url.Values{
		"projectName": {"Ready Site"},
		"password":    {"hunter2"},
	}, cookie)
	assert.Equal(t, "/app/review", rec.Header().Get("Location"))

	p, err := db.GetProject("Ready Site")
	require.NoError(t, err)
	require.NotNil(t, p.D7)
	assert.True(t, *p.D7)

	// Re-approving an approved project is a no-op.
	rec = postForm(t, h, "/app/approve", url.Values{
		"projectName": {"Ready Site"},
		"password":    {"hunter2"},
	}, cookie)
	assert.Equal(t, "/app/review", rec.Header().Get("Location"))
}

func TestTransferOwnership(t *testing.T) {
	h := setupTest(t)
	jane := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	bob := createUser(t, "Bob", "Smith", "bob@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, jane)
	seedProject(t, "Riverside Tower", jane.Email, jane.Company, nil)

	rec := postForm(t, h, "/app/transfer", url.Values{
		"projectName": {"Riverside Tower"},
		"userEmail":   {"nobody@acme.test"},
	}, cookie)
	assert.Equal(t, "/app/dashboard?err=user_not_found", rec.Header().Get("Location"))

	rec = postForm(t, h, "/app/transfer", url.Values{
		"projectName": {"Riverside Tower"},
		"userEmail":   {bob.Email},
	}, cookie)
	assert.Equal(t, "/app/dashboard", rec.Header().Get("Location"))

	p, err := db.GetProject("Riverside Tower")
	require.NoError(t, err)
	assert.Equal(t, bob.Email, p.UserEmail)

	// The handover leaves an audit trail on the project.
	comments, err := db.CommentsByProject("Riverside Tower")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Project ownership transferred from Jane D. to Bob S.", comments[0].Text)
	assert.Equal(t, jane.ID, comments[0].UserID)
}

func TestDashboardScopedToCompany(t *testing.T) {
	h := setupTest(t)
	jane := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	rival := createUser(t, "Rita", "Vale", "rita@rival.test", "hunter2", "Rival", true)
	seedProject(t, "Acme Site", jane.Email, jane.Company, nil)
	seedProject(t, "Rival Site", rival.Email, rival.Company, nil)

	rec := getReq(t, h, "/app/dashboard", sessionCookie(t, jane))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Projects []struct {
			ProjectName string `json:"project_name"`
			RunningBy   string `json:"running_by"`
		} `json:"projects"`
	}
	decodeBody(t, rec.Body, &resp)
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, "Acme Site", resp.Projects[0].ProjectName)
	assert.Equal(t, "Jane D.", resp.Projects[0].RunningBy)
}

func TestEditProjectInfoRename(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)
	seedProject(t, "Old Name", u.Email, u.Company, map[string]bool{"a1": true})
	seedProject(t, "Taken", u.Email, u.Company, nil)

	rec := postForm(t, h, "/app/editproject", url.Values{
		"projectName":        {"Old Name"},
		"updatedProjectName": {"Taken"},
	}, cookie)
	assert.Equal(t, "/app/editproject?projectName=Old+Name&err=name_taken", rec.Header().Get("Location"))

	rec = postForm(t, h, "/app/editproject", url.Values{
		"projectName":            {"Old Name"},
		"updatedProjectName":     {"New Name"},
		"updatedContractorEmail": {"contractor@site.test"},
		"updatedstc":             {"STC-7"},
	}, cookie)
	assert.Equal(t, "/app/editproject?projectName=New+Name", rec.Header().Get("Location"))

	p, err := db.GetProject("New Name")
	require.NoError(t, err)
	assert.Equal(t, "contractor@site.test", p.ContractorEmail)
	require.NotNil(t, p.STC)
	assert.Equal(t, "STC-7", *p.STC)
	require.NotNil(t, p.A1)
	assert.True(t, *p.A1)

	_, err = db.GetProject("Old Name")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestContactEmailPayload(t *testing.T) {
	h := setupTest(t)
	u := createUser(t, "Jane", "Doe", "jane@acme.test", "hunter2", "Acme", true)
	createUser(t, "Bob", "Smith", "bob@acme.test", "hunter2", "Acme", true)
	cookie := sessionCookie(t, u)
	seedProject(t, "Riverside Tower", u.Email, u.Company, nil)

	rec := getReq(t, h, "/app/contactemail?project_name="+url.QueryEscape("Riverside Tower"), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ProjectName  string `json:"project_name"`
		CompanyName  string `json:"company_name"`
		UserEmail    string `json:"user_email"`
		Greeting     string `json:"greeting"`
		CompanyUsers []struct {
			Email string `json:"email"`
		} `json:"company_users"`
	}
	decodeBody(t, rec.Body, &resp)
	assert.Equal(t, "Riverside Tower", resp.ProjectName)
	assert.Equal(t, "Acme", resp.CompanyName)
	assert.Equal(t, "jane@acme.test", resp.UserEmail)
	assert.Contains(t, resp.Greeting, "Good ")
	require.Len(t, resp.CompanyUsers, 1)
	assert.Equal(t, "bob@acme.test", resp.CompanyUsers[0].Email)
}
