// Package handler contains the echo handlers of the exam reservation API.
// Handlers only decode requests, call a service and encode the result;
// service errors are rendered by writeError with their stable code.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/repository"
	"github.com/cscfi/exam-reservation/internal/utils"
)

// UserFinder looks users up by email.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Users        UserFinder
	JWTSecret    string
	AccessTTLMin int
}

func NewAuthHandler(users UserFinder, jwtSecret string, accessTTLMin int) *AuthHandler {
	return &AuthHandler{Users: users, JWTSecret: jwtSecret, AccessTTLMin: accessTTLMin}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login verifies the credentials and issues an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid credentials"})
		}
		return writeError(c, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.JWTSecret, u.ID, u.Role, h.AccessTTLMin)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}
