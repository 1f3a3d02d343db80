package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// UserAdminHandler exposes the member and librarian administration
// endpoints. One handler serves both surfaces: the role field pins every
// query to the right user population, so a member ID passed to the
// librarian routes answers 404 rather than leaking the row.
type UserAdminHandler struct {
	Users *repository.UserRepo
	Role  string // MEMBER or LIBRARIAN, fixed at registration
}

func NewUserAdminHandler(u *repository.UserRepo, role string) *UserAdminHandler {
	return &UserAdminHandler{Users: u, Role: role}
}

type userAdminReq struct {
	Lastname  string `json:"lastname"`
	Firstname string `json:"firstname"`
	Email     string `json:"email"`
	Status    string `json:"status"` // ACTIVE | INACTIVE | SUSPENDED
}

type userAdminResp struct {
	ID        uint64    `json:"id"`
	Lastname  string    `json:"lastname"`
	Firstname string    `json:"firstname"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserAdminResp(u model.User) userAdminResp {
	return userAdminResp{
		ID:        u.ID,
		Lastname:  u.Lastname,
		Firstname: u.Firstname,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

// List returns users of the handler's role, optionally filtered by email
// substring via ?email=.
func (h *UserAdminHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.ListByRole(ctx, h.Role, strings.TrimSpace(c.QueryParam("email")))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	out := make([]userAdminResp, 0, len(users))
	for _, u := range users {
		out = append(out, toUserAdminResp(u))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one user of the handler's role.
func (h *UserAdminHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByIDAndRole(ctx, id, h.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	return c.JSON(http.StatusOK, toUserAdminResp(u))
}

// Update patches name, email and status. Status values outside the
// ACTIVE/INACTIVE/SUSPENDED whitelist answer 400.
func (h *UserAdminHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	var req userAdminReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	switch status {
	case "", model.UserActive, model.UserInactive, model.UserSuspended:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "unknown status"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Users.Update(ctx, id, h.Role, strings.TrimSpace(req.Lastname), strings.TrimSpace(req.Firstname), email, status)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "user not found"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": "email already exists"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "update failed"})
		}
	}

	u, err := h.Users.GetByIDAndRole(ctx, id, h.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	return c.JSON(http.StatusOK, toUserAdminResp(u))
}

// Delete removes one user of the handler's role.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id, h.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
