package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moran1024a/Library-Control-web/internal/config"
	"github.com/moran1024a/Library-Control-web/internal/repository"
)

// LogHandler serves the admin view over the audit log.
type LogHandler struct {
	Cfg  config.Config
	Logs *repository.LogRepo
}

func NewLogHandler(cfg config.Config, l *repository.LogRepo) *LogHandler {
	return &LogHandler{Cfg: cfg, Logs: l}
}

// Recent returns the newest audit entries, capped by the limit parameter.
func (h *LogHandler) Recent(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Logs.ListRecent(ctx, limit)
	if err != nil {
		return internalError(c, h.Cfg, "查询失败", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": entries})
}
