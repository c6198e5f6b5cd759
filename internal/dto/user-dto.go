package dto

import "time"

type CreateUserDTO struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,min=1,max=100"`
	Role     string `json:"role" validate:"required,user_role"`
}

type UpdateUserDTO struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=100"`
	Role     *string `json:"role,omitempty" validate:"omitempty,user_role"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type UserDTO struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type UserListFilter struct {
	Page     int
	PageSize int
	Role     string
	IsActive *bool
}
