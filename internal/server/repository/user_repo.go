package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"go.uber.org/zap"
)

// UserRepository handles staff account database operations
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a new user
func (r *UserRepository) Create(user *entity.User) error {
	query := `
		INSERT INTO users (id, email, name, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
		}
		r.logger.Error("Failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByEmail returns the user with the given email
func (r *UserRepository) GetByEmail(email string) (*entity.User, error) {
	return r.get("SELECT id, email, name, role, password_hash, created_at FROM users WHERE email = ?", email)
}

// GetByID returns the user with the given id
func (r *UserRepository) GetByID(id string) (*entity.User, error) {
	return r.get("SELECT id, email, name, role, password_hash, created_at FROM users WHERE id = ?", id)
}

func (r *UserRepository) get(query string, arg any) (*entity.User, error) {
	var user entity.User
	err := r.db.QueryRow(query, arg).Scan(
		&user.ID, &user.Email, &user.Name, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
