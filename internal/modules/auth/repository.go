package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"stockfolio/internal/domain"
)

const usersColumns = `id, username, email, password_hash, role, created_at`

// Repository handles user database operations
type Repository struct {
	appDB *sql.DB // app.db - users table
	log   zerolog.Logger
}

// NewRepository creates a new user repository
func NewRepository(appDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		appDB: appDB,
		log:   log.With().Str("repo", "users").Logger(),
	}
}

// Create inserts a new user. Emails are unique; a duplicate fails validation.
func (r *Repository) Create(u User) error {
	existing, err := r.GetByEmail(u.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.Validationf("email %s already registered", u.Email)
	}

	tx, err := r.appDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		"INSERT INTO users (id, username, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().Str("email", u.Email).Msg("User created")
	return nil
}

// GetByEmail returns the user with the given email, or nil if absent.
func (r *Repository) GetByEmail(email string) (*User, error) {
	row := r.appDB.QueryRow("SELECT "+usersColumns+" FROM users WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
	return r.scanUserRow(row)
}

// GetByID returns the user with the given id, or nil if absent.
func (r *Repository) GetByID(userID string) (*User, error) {
	row := r.appDB.QueryRow("SELECT "+usersColumns+" FROM users WHERE id = ?", userID)
	return r.scanUserRow(row)
}

// UsernameByID returns the username for an id. Implements the activity
// module's UsernameResolver.
func (r *Repository) UsernameByID(userID string) (string, error) {
	u, err := r.GetByID(userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", domain.NotFoundf("user %s", userID)
	}
	return u.Username, nil
}

// List returns all users, newest first.
func (r *Repository) List() ([]User, error) {
	rows, err := r.appDB.Query("SELECT " + usersColumns + " FROM users ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateProfile updates the user's display name.
func (r *Repository) UpdateProfile(userID, username string) error {
	result, err := r.appDB.Exec("UPDATE users SET username = ? WHERE id = ?", username, userID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.NotFoundf("user %s", userID)
	}
	return nil
}

// UpdatePassword replaces the user's password hash.
func (r *Repository) UpdatePassword(userID, passwordHash string) error {
	result, err := r.appDB.Exec("UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.NotFoundf("user %s", userID)
	}
	return nil
}

// Delete removes the user row.
func (r *Repository) Delete(userID string) error {
	result, err := r.appDB.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return domain.NotFoundf("user %s", userID)
	}

	r.log.Info().Str("user_id", userID).Msg("User deleted")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanUserRow(row *sql.Row) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var createdAtUnix int64

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &createdAtUnix)
	if err != nil {
		return u, err
	}

	u.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	return u, nil
}
