package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/moran1024a/Library-Control-web/internal/config"
	"github.com/moran1024a/Library-Control-web/internal/model"
	"github.com/moran1024a/Library-Control-web/internal/repository"
	"github.com/moran1024a/Library-Control-web/internal/utils"
)

// AuthHandler bundles dependencies for account endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Password string  `json:"password" validate:"required,userpassword"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
}
type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type profileReq struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Password string  `json:"password" validate:"omitempty,userpassword"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64  `json:"id"`
	Username string  `json:"username"`
	Role     string  `json:"role"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}
type authResp struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// validationMessage maps a failed validator tag to a user-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "email":
			return "邮箱格式错误"
		case "phone":
			return "手机号格式错误"
		case "userpassword":
			return "密码至少6位并包含字母和数字"
		}
	}
	return "参数错误"
}

// Register creates a reader account and returns a token pair immediately.
// New accounts always get the user role; admins are seeded out of band.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(&req); err != nil {
		return failJSON(c, http.StatusUnprocessableEntity, validationMessage(err))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Username, req.Password, model.RoleUser, req.Email, req.Phone, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return failJSON(c, http.StatusConflict, "用户名已存在")
		}
		return internalError(c, h.Cfg, "注册失败", err)
	}

	access, refresh, err := h.issueTokens(ctx, uid, model.RoleUser)
	if err != nil {
		return internalError(c, h.Cfg, "注册失败", err)
	}

	auditAction(&uid, "register", map[string]interface{}{"username": req.Username})

	return c.JSON(http.StatusCreated, authResp{
		Success: true,
		Message: "注册成功",
		User:    userPart{ID: uid, Username: req.Username, Role: model.RoleUser, Email: req.Email, Phone: req.Phone},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(&req); err != nil {
		return failJSON(c, http.StatusUnprocessableEntity, "参数错误")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failJSON(c, http.StatusUnauthorized, "用户名或密码错误")
		}
		return internalError(c, h.Cfg, "登录失败", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return failJSON(c, http.StatusUnauthorized, "用户名或密码错误")
	}

	access, refresh, err := h.issueTokens(ctx, u.ID, u.Role)
	if err != nil {
		return internalError(c, h.Cfg, "登录失败", err)
	}

	auditAction(&u.ID, "login", map[string]interface{}{"username": u.Username})

	return c.JSON(http.StatusOK, authResp{
		Success: true,
		Message: "登录成功",
		User:    userPart{ID: u.ID, Username: u.Username, Role: u.Role, Email: u.Email, Phone: u.Phone},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return failJSON(c, http.StatusBadRequest, "缺少 refresh_token")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return failJSON(c, http.StatusUnauthorized, "登录已过期")
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return internalError(c, h.Cfg, "登录失败", err)
	}

	access, refresh, err := h.issueTokens(ctx, userID, u.Role)
	if err != nil {
		return internalError(c, h.Cfg, "登录失败", err)
	}

	return c.JSON(http.StatusOK, authResp{
		Success: true,
		Message: "登录成功",
		User:    userPart{ID: u.ID, Username: u.Username, Role: u.Role, Email: u.Email, Phone: u.Phone},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Logout revokes the caller's sessions.  With a refresh_token in the body
// only that session is revoked; otherwise all of the user's tokens are.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return failJSON(c, http.StatusUnauthorized, "未登录")
	}

	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw != "" {
		if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw)); err != nil {
			return internalError(c, h.Cfg, "退出失败", err)
		}
	} else if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return internalError(c, h.Cfg, "退出失败", err)
	}

	auditAction(&uid, "logout", map[string]interface{}{"user_id": uid})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "已退出登录"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return failJSON(c, http.StatusUnauthorized, "未登录")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return internalError(c, h.Cfg, "查询失败", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    userPart{ID: u.ID, Username: u.Username, Role: u.Role, Email: u.Email, Phone: u.Phone},
	})
}

// UpdateProfile rewrites the caller's email/phone and optionally password.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return failJSON(c, http.StatusUnauthorized, "未登录")
	}

	var req profileReq
	if err := c.Bind(&req); err != nil {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}
	if err := validate.Struct(&req); err != nil {
		return failJSON(c, http.StatusUnprocessableEntity, validationMessage(err))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Users.UpdateProfile(ctx, uid, repository.ProfileUpdate{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	}, h.Cfg.BcryptCost)
	if err != nil {
		return internalError(c, h.Cfg, "更新失败", err)
	}
	if !ok {
		return failJSON(c, http.StatusBadRequest, "更新失败")
	}

	auditAction(&uid, "update_profile", map[string]interface{}{"user_id": uid})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "更新成功"})
}

// issueTokens mints an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issueTokens(ctx context.Context, uid uint64, role string) (utils.AccessToken, utils.RefreshToken, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return utils.AccessToken{}, utils.RefreshToken{}, err
	}
	return access, refresh, nil
}
