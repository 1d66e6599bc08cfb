package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Row locks on this table serialize all enrolment and
// reservation changes made on behalf of the same user.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – STUDENT or ADMIN.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)
