package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin   = "admin"
	RoleLearner = "learner"
)

// POST /auth/register  { "username": "...", "password": "..." }
// New accounts are learners; admin accounts are provisioned out of band.
func RegisterHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || len(req.Password) < 6 {
			http.Error(w, "username required, password min 6 chars", http.StatusBadRequest)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash password", http.StatusInternalServerError)
			return
		}
		var id int64
		err = db.QueryRowContext(r.Context(),
			`INSERT INTO users (username, pass_hash, role, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
			req.Username, string(hash), RoleLearner, time.Now().Unix(),
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				http.Error(w, "username taken", http.StatusConflict)
				return
			}
			http.Error(w, "create user", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "username": req.Username, "role": RoleLearner})
	}
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(db *sql.DB, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		var (
			id   int64
			hash string
			role string
		)
		err := db.QueryRowContext(r.Context(),
			`SELECT id, pass_hash, role FROM users WHERE username=$1`,
			strings.TrimSpace(req.Username),
		).Scan(&id, &hash, &role)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "lookup user", http.StatusInternalServerError)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := svc.Issue(strconv.FormatInt(id, 10), role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": role})
	}
}

// UserID resolves the authenticated subject to a numeric user id.
func UserID(ctx context.Context) (int64, error) {
	sub := SubjectFromContext(ctx)
	if sub == "" {
		return 0, errors.New("no subject in context")
	}
	return strconv.ParseInt(sub, 10, 64)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
