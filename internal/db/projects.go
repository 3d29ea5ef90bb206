package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/keepupwork/keepup/internal/checklist"
)

// Project is one tracked construction project with its milestone checklist.
// Checklist columns are tri-state: nil means not yet applicable, false and
// true are answered states.
type Project struct {
	ProjectName     string
	ContractorEmail string
	UserEmail       string // owner
	Company         string
	COSD            *time.Time // construction start date

	A1, A2, A3, A4, A5 *bool
	B1, B2, B3         *bool
	C1, C2, C3         *bool
	D1, D2, D3, D4     *bool
	D5, D6, D7         *bool
	E1, E2, E3         *bool
	F1, F2             *bool

	DRN *string
	STC *string
	DRV *string

	DateCreated   time.Time
	EditTimestamp time.Time
}

// Checklist returns the canonical checklist values. a4/a5 are stored
// columns but stay out of the completion math.
func (p *Project) Checklist() checklist.Values {
	return checklist.Values{
		"a1": p.A1, "a2": p.A2, "a3": p.A3,
		"b1": p.B1, "b2": p.B2, "b3": p.B3,
		"c1": p.C1, "c2": p.C2, "c3": p.C3,
		"d1": p.D1, "d2": p.D2, "d3": p.D3, "d4": p.D4,
		"d5": p.D5, "d6": p.D6, "d7": p.D7,
		"e1": p.E1, "e2": p.E2, "e3": p.E3,
		"f1": p.F1, "f2": p.F2,
	}
}

// ProjectWithOwner carries the joined owner name for company-wide lists.
type ProjectWithOwner struct {
	Project
	OwnerFirstName string
	OwnerLastName  string
}

// RunningBy is the owner's short display name shown in the dashboard.
func (p *ProjectWithOwner) RunningBy() string {
	u := User{FirstName: p.OwnerFirstName, LastName: p.OwnerLastName}
	return u.DisplayName()
}

const projectCols = `project_name, contractor_email, user_email, company, cosd,
	a1, a2, a3, a4, a5, b1, b2, b3, c1, c2, c3,
	d1, d2, d3, d4, d5, d6, d7, e1, e2, e3, f1, f2,
	drn, stc, drv, date_created, edit_timestamp`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner, p *Project) error {
	var cosd sql.NullTime
	err := row.Scan(&p.ProjectName, &p.ContractorEmail, &p.UserEmail, &p.Company, &cosd,
		&p.A1, &p.A2, &p.A3, &p.A4, &p.A5, &p.B1, &p.B2, &p.B3, &p.C1, &p.C2, &p.C3,
		&p.D1, &p.D2, &p.D3, &p.D4, &p.D5, &p.D6, &p.D7, &p.E1, &p.E2, &p.E3, &p.F1, &p.F2,
		&p.DRN, &p.STC, &p.DRV, &p.DateCreated, &p.EditTimestamp)
	if err != nil {
		return err
	}
	if cosd.Valid {
		t := cosd.Time
		p.COSD = &t
	}
	return nil
}

// CreateProject inserts a new project. The project name is the identifier;
// a duplicate returns ErrConflict.
func CreateProject(p *Project) error {
	var exists bool
	if err := DB.QueryRow("SELECT EXISTS(SELECT 1 FROM projects WHERE project_name = ?)", p.ProjectName).Scan(&exists); err != nil {
		return fmt.Errorf("check project name: %w", err)
	}
	if exists {
		return ErrConflict
	}

	now := time.Now()
	p.DateCreated = now
	p.EditTimestamp = now

	_, err := DB.Exec(`INSERT INTO projects (`+projectCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProjectName, p.ContractorEmail, p.UserEmail, p.Company, timePtr(p.COSD),
		p.A1, p.A2, p.A3, p.A4, p.A5, p.B1, p.B2, p.B3, p.C1, p.C2, p.C3,
		p.D1, p.D2, p.D3, p.D4, p.D5, p.D6, p.D7, p.E1, p.E2, p.E3, p.F1, p.F2,
		p.DRN, p.STC, p.DRV, p.DateCreated, p.EditTimestamp)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func GetProject(name string) (*Project, error) {
	var p Project
	err := scanProject(DB.QueryRow("SELECT "+projectCols+" FROM projects WHERE project_name = ?", name), &p)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}

// ProjectsByOwner lists a user's own projects, most recently edited first.
func ProjectsByOwner(email string) ([]Project, error) {
	rows, err := DB.Query("SELECT "+projectCols+" FROM projects WHERE user_email = ? ORDER BY edit_timestamp DESC", email)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := scanProject(rows, &p); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectsByCompany lists every project whose owner belongs to the company,
// with the owner's name joined in.
func ProjectsByCompany(company string) ([]ProjectWithOwner, error) {
	return queryProjectsWithOwner(
		"SELECT "+ownerCols+" FROM projects p INNER JOIN users u ON p.user_email = u.email WHERE u.company = ? ORDER BY p.edit_timestamp DESC",
		company)
}

// ReviewQueue lists company projects awaiting DDSS approval: d7 unset with
// d1 through d6 all true.
func ReviewQueue(company string) ([]ProjectWithOwner, error) {
	return queryProjectsWithOwner(
		`SELECT `+ownerCols+` FROM projects p
		INNER JOIN users u ON p.user_email = u.email
		WHERE u.company = ? AND p.d7 IS NULL
			AND p.d1 = 1 AND p.d2 = 1 AND p.d3 = 1
			AND p.d4 = 1 AND p.d5 = 1 AND p.d6 = 1`,
		company)
}

const ownerCols = `p.project_name, p.contractor_email, p.user_email, p.company, p.cosd,
	p.a1, p.a2, p.a3, p.a4, p.a5, p.b1, p.b2, p.b3, p.c1, p.c2, p.c3,
	p.d1, p.d2, p.d3, p.d4, p.d5, p.d6, p.d7, p.e1, p.e2, p.e3, p.f1, p.f2,
	p.drn, p.stc, p.drv, p.date_created, p.edit_timestamp, u.fname, u.lname`

func queryProjectsWithOwner(query string, args ...any) ([]ProjectWithOwner, error) {
	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []ProjectWithOwner
	for rows.Next() {
		var p ProjectWithOwner
		var cosd sql.NullTime
		err := rows.Scan(&p.ProjectName, &p.ContractorEmail, &p.UserEmail, &p.Company, &cosd,
			&p.A1, &p.A2, &p.A3, &p.A4, &p.A5, &p.B1, &p.B2, &p.B3, &p.C1, &p.C2, &p.C3,
			&p.D1, &p.D2, &p.D3, &p.D4, &p.D5, &p.D6, &p.D7, &p.E1, &p.E2, &p.E3, &p.F1, &p.F2,
			&p.DRN, &p.STC, &p.DRV, &p.DateCreated, &p.EditTimestamp,
			&p.OwnerFirstName, &p.OwnerLastName)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if cosd.Valid {
			t := cosd.Time
			p.COSD = &t
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProjectInfo renames a project and updates its contractor email and
// drn/stc/drv extensions. Comments follow the rename through the FK cascade.
func UpdateProjectInfo(name, newName, contractorEmail string, drn, stc, drv *string) error {
	res, err := DB.Exec(
		"UPDATE projects SET project_name = ?, contractor_email = ?, drn = ?, stc = ?, drv = ? WHERE project_name = ?",
		newName, contractorEmail, drn, stc, drv, name)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetChecklistField sets one checklist column and bumps edit_timestamp.
// The field name must already be validated with checklist.Known; it is
// interpolated into the statement.
func SetChecklistField(projectName, field string, checked bool) error {
	if !checklist.Known(field) {
		return fmt.Errorf("unknown checklist field %q", field)
	}
	res, err := DB.Exec(
		fmt.Sprintf("UPDATE projects SET %s = ?, edit_timestamp = ? WHERE project_name = ?", field),
		checked, time.Now(), projectName)
	if err != nil {
		return fmt.Errorf("update checklist field: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApproveProject is the DDSS transition: d7 null -> true. The precondition
// is re-checked in the statement so a stale read cannot approve a project
// that regressed.
func ApproveProject(name string) error {
	res, err := DB.Exec(
		`UPDATE projects SET d7 = 1, edit_timestamp = ? WHERE project_name = ?
			AND d7 IS NULL
			AND d1 = 1 AND d2 = 1 AND d3 = 1 AND d4 = 1 AND d5 = 1 AND d6 = 1`,
		time.Now(), name)
	if err != nil {
		return fmt.Errorf("approve project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func DeleteProject(name string) error {
	res, err := DB.Exec("DELETE FROM projects WHERE project_name = ?", name)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TransferOwnership reassigns a project and appends the audit comment in
// one transaction, so a crash cannot leave the reassignment without its
// audit trail.
func TransferOwnership(projectName, newOwnerEmail string, actorID int64, actorName, commentText string) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE projects SET user_email = ?, edit_timestamp = ? WHERE project_name = ?",
		newOwnerEmail, time.Now(), projectName)
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec("INSERT INTO comments (project_name, user_id, user_name, comment_text) VALUES (?, ?, ?, ?)",
		projectName, actorID, actorName, commentText)
	if err != nil {
		return fmt.Errorf("insert audit comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
