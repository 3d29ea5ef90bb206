package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

type User struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	Password    string // bcrypt hash
	Company     string
	Role        string
	JWTVerified bool
	CreatedAt   time.Time
}

// DisplayName is the short form used in comments and project lists:
// first name plus last initial, "Jane D.".
func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName[:1] + "."
}

type CompanyCode struct {
	ID          int64
	Code        string
	CompanyName string
	AdminEmail  string
}

const userCols = "id, fname, lname, email, password, company, role, jwt_verified, created_at"

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password,
		&u.Company, &u.Role, &u.JWTVerified, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new unverified user. Returns ErrConflict when the
// email is already registered.
func CreateUser(fname, lname, email, passwordHash, company string) (int64, error) {
	var exists bool
	if err := DB.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return 0, ErrConflict
	}

	res, err := DB.Exec(
		"INSERT INTO users (fname, lname, email, password, company) VALUES (?, ?, ?, ?, ?)",
		fname, lname, email, passwordHash, company,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

func GetUserByEmail(email string) (*User, error) {
	return scanUser(DB.QueryRow("SELECT "+userCols+" FROM users WHERE email = ?", email))
}

func GetUserByID(id int64) (*User, error) {
	return scanUser(DB.QueryRow("SELECT "+userCols+" FROM users WHERE id = ?", id))
}

// MarkVerified flips jwt_verified after the admin follows the email link.
func MarkVerified(email string) error {
	res, err := DB.Exec("UPDATE users SET jwt_verified = 1 WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func UpdatePassword(email, passwordHash string) error {
	res, err := DB.Exec("UPDATE users SET password = ? WHERE email = ?", passwordHash, email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func UpdateUserInfo(id int64, fname, lname, email string) error {
	res, err := DB.Exec("UPDATE users SET fname = ?, lname = ?, email = ? WHERE id = ?",
		fname, lname, email, id)
	if err != nil {
		return fmt.Errorf("update user info: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func UpdateRole(email, role string) error {
	res, err := DB.Exec("UPDATE users SET role = ? WHERE email = ?", role, email)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifiedCompanyUsers lists verified users in a company other than the
// acting user, the candidate set for ownership transfer and contact CCs.
func VerifiedCompanyUsers(company, excludeEmail string) ([]User, error) {
	rows, err := DB.Query(
		"SELECT "+userCols+" FROM users WHERE company = ? AND email != ? AND jwt_verified = 1 ORDER BY fname, lname",
		company, excludeEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("query company users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password,
			&u.Company, &u.Role, &u.JWTVerified, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Company codes

func GetCompanyCode(code string) (*CompanyCode, error) {
	var cc CompanyCode
	err := DB.QueryRow(
		"SELECT id, compcode, companyname, admin_email FROM companycodes WHERE compcode = ?", code,
	).Scan(&cc.ID, &cc.Code, &cc.CompanyName, &cc.AdminEmail)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query company code: %w", err)
	}
	return &cc, nil
}

// Sessions

func CreateSession(userID int64) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}
	tok := hex.EncodeToString(b)
	expires := time.Now().Add(30 * 24 * time.Hour)

	_, err := DB.Exec("INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, tok, expires)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return tok, nil
}

func GetUserBySession(token string) (*User, error) {
	var userID int64
	var expiresAt time.Time
	err := DB.QueryRow("SELECT user_id, expires_at FROM sessions WHERE token = ?", token).
		Scan(&userID, &expiresAt)
	if err != nil {
		return nil, ErrNotFound
	}
	if time.Now().After(expiresAt) {
		DB.Exec("DELETE FROM sessions WHERE token = ?", token)
		return nil, ErrNotFound
	}
	return GetUserByID(userID)
}

func DeleteSession(token string) {
	DB.Exec("DELETE FROM sessions WHERE token = ?", token)
}
