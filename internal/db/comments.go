package db

import (
	"fmt"
	"time"
)

type Comment struct {
	ID          int64
	ProjectName string
	UserID      int64
	UserName    string // display-name snapshot at posting time
	Text        string
	CreatedAt   time.Time
}

func AddComment(projectName string, userID int64, userName, text string) (*Comment, error) {
	res, err := DB.Exec(
		"INSERT INTO comments (project_name, user_id, user_name, comment_text) VALUES (?, ?, ?, ?)",
		projectName, userID, userName, text)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Comment{
		ID:          id,
		ProjectName: projectName,
		UserID:      userID,
		UserName:    userName,
		Text:        text,
		CreatedAt:   time.Now(),
	}, nil
}

func CommentsByProject(projectName string) ([]Comment, error) {
	rows, err := DB.Query(
		"SELECT comment_id, project_name, user_id, user_name, comment_text, created_at FROM comments WHERE project_name = ? ORDER BY created_at, comment_id",
		projectName)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ProjectName, &c.UserID, &c.UserName, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func DeleteComment(id int64) error {
	res, err := DB.Exec("DELETE FROM comments WHERE comment_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
