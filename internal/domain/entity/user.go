package entity

import "time"

// Role determines what invoice operations a user may perform
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// IsValid returns true if the role is a known role
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleManager || r == RoleAdmin
}

// CanReview returns true if the role may approve or reject invoices
func (r Role) CanReview() bool {
	return r == RoleManager || r == RoleAdmin
}

// User represents a staff account
type User struct {
	ID           string    `json:"id" validate:"required"`
	Email        string    `json:"email" validate:"required,email"`
	Name         string    `json:"name" validate:"required"`
	Role         Role      `json:"role" validate:"required,oneof=Employee Manager Admin"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
