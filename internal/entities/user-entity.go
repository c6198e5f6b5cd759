package entities

import (
	"time"

	"lab-request-system/pkg/constants"
)

type User struct {
	ID           uint64             `db:"id"`
	Username     string             `db:"username"`
	Email        string             `db:"email"`
	PasswordHash string             `db:"password_hash"`
	FullName     string             `db:"full_name"`
	Role         constants.UserRole `db:"role"`
	IsActive     bool               `db:"is_active"`
	CreatedAt    time.Time          `db:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at"`
}
