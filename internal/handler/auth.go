package handler

import (
	"context"      // context with cancellation for DB calls
	"database/sql" // sql.ErrNoRows checks
	"net/http"     // HTTP status codes
	"strings"      // header and input trimming
	"time"         // DB call timeouts

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/tlemaire/biblio-backend/internal/config"
	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
	"github.com/tlemaire/biblio-backend/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Users     *repository.UserRepo
	Tokens    *repository.TokenRepo
	Blacklist *repository.TokenBlacklist
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, bl *repository.TokenBlacklist) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Blacklist: bl}
}

// ----- DTOs -----

type registerReq struct {
	Lastname  string `json:"lastname"`
	Firstname string `json:"firstname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"` // MEMBER unless an ADMIN caller sets it
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID        uint64 `json:"id"`
	Lastname  string `json:"lastname"`
	Firstname string `json:"firstname"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates a user and returns tokens immediately. The role is
// forced to MEMBER unless the request carries a valid ADMIN access token,
// which may create librarians and admins.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Lastname = strings.TrimSpace(req.Lastname)
	req.Firstname = strings.TrimSpace(req.Firstname)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "email/password required"})
	}

	role := model.RoleMember
	if want := strings.ToUpper(strings.TrimSpace(req.Role)); want != "" && want != model.RoleMember {
		if want != model.RoleLibrarian && want != model.RoleAdmin {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "unknown role"})
		}
		if h.callerRole(c) != model.RoleAdmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "only admins may assign roles"})
		}
		role = want
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Lastname, req.Firstname, req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "create user failed"})
	}

	return h.issuePair(c, http.StatusCreated, ctx, userPart{
		ID: uid, Lastname: req.Lastname, Firstname: req.Firstname, Email: req.Email, Role: role,
	})
}

// Login verifies credentials and returns a new token pair. Users that are
// INACTIVE or SUSPENDED are refused with 403 even when the password is
// correct.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid credentials"})
	}
	if u.Status != model.UserActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "account is " + strings.ToLower(u.Status)})
	}

	return h.issuePair(c, http.StatusOK, ctx, userPart{
		ID: u.ID, Lastname: u.Lastname, Firstname: u.Firstname, Email: u.Email, Role: u.Role,
	})
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair. Rotation means a stolen refresh token stops working the first time
// its legitimate owner uses it.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "load user failed"})
	}
	if u.Status != model.UserActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "account is " + strings.ToLower(u.Status)})
	}

	return h.issuePair(c, http.StatusOK, ctx, userPart{
		ID: u.ID, Lastname: u.Lastname, Firstname: u.Firstname, Email: u.Email, Role: u.Role,
	})
}

// Logout terminates the current session. The presented access token is
// blacklisted in Redis for the rest of its lifetime, and the refresh side
// is revoked in the database: a specific token when one is supplied in the
// body, all of the user's tokens otherwise.
func (h *AuthHandler) Logout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
	}
	rawToken := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, rawToken)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if h.Blacklist != nil {
		if err := h.Blacklist.Add(ctx, rawToken, claims.Exp); err != nil {
			c.Logger().Warnf("logout: blacklist add failed: %v", err)
		}
	}

	var req refreshReq
	_ = c.Bind(&req)
	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}

	if err := h.Tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Me is a simple protected endpoint returning the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"role":    c.Get("role"),
	})
}

// issuePair mints an access/refresh pair for the user and writes the auth
// response with the given status.
func (h *AuthHandler) issuePair(c echo.Context, status int, ctx context.Context, user userPart) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, user.ID, user.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, user.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "save refresh failed"})
	}
	return c.JSON(status, authResp{
		User:    user,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// callerRole inspects an optional bearer token on an otherwise public
// endpoint. Register is reachable without authentication, so this cannot
// rely on the JWT middleware.
func (h *AuthHandler) callerRole(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return ""
	}
	return claims.Role
}
