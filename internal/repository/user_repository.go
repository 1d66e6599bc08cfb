package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/cscfi/exam-reservation/internal/model"
)

// GetUserByEmail fetches a user by normalized email.
func (x queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := x.q.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, mapErr(err)
}

// CreateUser inserts a user with an already hashed password.
func (s *MySQLStore) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, is_active) VALUES (?,?,?,?)",
		u.Email, u.PasswordHash, u.Role, u.IsActive)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrEmailExists
		}
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}
