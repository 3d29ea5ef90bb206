package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/keepupwork/keepup/internal/config"
	"github.com/keepupwork/keepup/internal/db"
	"github.com/keepupwork/keepup/internal/mailer"
)

var (
	cfg  config.Config
	mail *mailer.Mailer
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var err error
	cfg, err = config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	if err := db.Init(cfg.DBPath); err != nil {
		slog.Error("init db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	mail = mailer.New(cfg.Email, slog.Default())

	slog.Info("keepup listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, routes()); err != nil {
		slog.Error("server", "error", err)
		os.Exit(1)
	}
}

func routes() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /signup", handleSignup)
	mux.HandleFunc("GET /confirmation/{token}", handleConfirmToken)
	mux.HandleFunc("POST /login", handleLogin)
	mux.HandleFunc("POST /logout", handleLogout)
	mux.HandleFunc("POST /forgotpassword", handleForgotPassword)
	mux.HandleFunc("GET /changepassword/{token}", handleChangePasswordToken)
	mux.HandleFunc("POST /changepassword", handleChangePassword)

	// Authenticated routes
	app := http.NewServeMux()
	app.HandleFunc("GET /app/dashboard", handleDashboard)
	app.HandleFunc("GET /app/myprojects", handleMyProjects)
	app.HandleFunc("GET /app/activeprojects", handleActiveProjects)
	app.HandleFunc("POST /app/addproject", handleAddProject)
	app.HandleFunc("GET /app/editproject", handleEditProject)
	app.HandleFunc("POST /app/editproject", handleEditProjectInfo)
	app.HandleFunc("POST /app/editchecks", handleEditChecks)
	app.HandleFunc("GET /app/viewproject", handleViewProject)
	app.HandleFunc("POST /app/delete", handleDeleteProject)
	app.HandleFunc("GET /app/review", handleReview)
	app.HandleFunc("POST /app/approve", handleApprove)
	app.HandleFunc("POST /app/transfer", handleTransfer)
	app.HandleFunc("GET /app/contactemail", handleContactEmail)
	app.HandleFunc("POST /app/send-email", handleSendEmail)

	app.HandleFunc("POST /app/comments", handleSaveComment)
	app.HandleFunc("GET /app/comments", handleListComments)
	app.HandleFunc("DELETE /app/comments", handleDeleteComment)

	app.HandleFunc("GET /app/settings", handleSettings)
	app.HandleFunc("POST /app/edituserinfo", handleEditUserInfo)
	app.HandleFunc("POST /app/editpassword", handleEditPassword)
	app.HandleFunc("POST /app/assignrole", handleAssignRole)

	mux.Handle("/app/", authMiddleware(app))
	return mux
}

func tokenSecret() []byte {
	return []byte(cfg.TokenSecret)
}
