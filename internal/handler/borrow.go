package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moran1024a/Library-Control-web/internal/config"
	"github.com/moran1024a/Library-Control-web/internal/model"
	"github.com/moran1024a/Library-Control-web/internal/repository"
)

// BorrowHandler serves the borrow/return engine endpoints.
type BorrowHandler struct {
	Cfg     config.Config
	Borrows *repository.BorrowRepo
}

func NewBorrowHandler(cfg config.Config, b *repository.BorrowRepo) *BorrowHandler {
	return &BorrowHandler{Cfg: cfg, Borrows: b}
}

// borrowOutcome maps the engine's sentinel errors to their user-facing
// message.  Anything else is an internal failure.
func borrowOutcome(err error) (string, bool) {
	switch {
	case errors.Is(err, repository.ErrBookNotFound):
		return "图书不存在", true
	case errors.Is(err, repository.ErrOutOfStock):
		return "库存不足", true
	case errors.Is(err, repository.ErrDuplicateBorrow):
		return "已借阅该图书", true
	case errors.Is(err, repository.ErrRecordNotFound):
		return "借阅记录不存在", true
	case errors.Is(err, repository.ErrAlreadyReturned):
		return "图书已归还", true
	}
	return "", false
}

// Borrow lends one copy of a book to the authenticated user.
func (h *BorrowHandler) Borrow(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return failJSON(c, http.StatusUnauthorized, "未登录")
	}
	bookID, err := strconv.ParseUint(c.Param("book_id"), 10, 64)
	if err != nil || bookID == 0 {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	recordID, err := h.Borrows.BorrowBook(ctx, uid, bookID)
	if err != nil {
		if msg, ok := borrowOutcome(err); ok {
			return failJSON(c, http.StatusBadRequest, msg)
		}
		return internalError(c, h.Cfg, "借阅失败", err)
	}

	auditAction(&uid, "borrow_book", map[string]interface{}{"book_id": bookID, "record_id": recordID})

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "借阅成功",
		"data":    echo.Map{"record_id": recordID},
	})
}

// Return closes an open borrow record and restores the book's stock.
func (h *BorrowHandler) Return(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return failJSON(c, http.StatusUnauthorized, "未登录")
	}
	recordID, err := strconv.ParseUint(c.Param("record_id"), 10, 64)
	if err != nil || recordID == 0 {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Borrows.ReturnBook(ctx, recordID); err != nil {
		if msg, ok := borrowOutcome(err); ok {
			return failJSON(c, http.StatusBadRequest, msg)
		}
		return internalError(c, h.Cfg, "归还失败", err)
	}

	auditAction(&uid, "return_book", map[string]interface{}{"record_id": recordID})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "归还成功"})
}

// Records returns one page of the borrow ledger.  Non-admin callers are
// always pinned to their own records regardless of the user_id parameter.
func (h *BorrowHandler) Records(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return failJSON(c, http.StatusUnauthorized, "未登录")
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))

	var userFilter *uint64
	if isAdmin(c) {
		if raw := strings.TrimSpace(c.QueryParam("user_id")); raw != "" {
			id, perr := strconv.ParseUint(raw, 10, 64)
			if perr != nil || id == 0 {
				return failJSON(c, http.StatusBadRequest, "参数错误")
			}
			userFilter = &id
		}
	} else {
		userFilter = &uid
	}

	var statusFilter *string
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		if !model.ValidStatus(raw) {
			return failJSON(c, http.StatusBadRequest, "参数错误")
		}
		statusFilter = &raw
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	result, err := h.Borrows.ListRecords(ctx, userFilter, statusFilter, page)
	if err != nil {
		return internalError(c, h.Cfg, "查询失败", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"data":       result.Data,
		"pagination": result.Pagination,
	})
}

// Statistics returns ledger totals, a per-status breakdown and the five
// most borrowed books (admin only).
func (h *BorrowHandler) Statistics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Borrows.GetStatistics(ctx)
	if err != nil {
		return internalError(c, h.Cfg, "查询失败", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": stats})
}

// CheckOverdue flips borrowed records older than 30 days to overdue and
// reports how many changed (admin only).  Safe to run repeatedly.
func (h *BorrowHandler) CheckOverdue(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	n, err := h.Borrows.CheckOverdue(ctx)
	if err != nil {
		return internalError(c, h.Cfg, "逾期检查失败", err)
	}

	if uid, uerr := getUserID(c); uerr == nil {
		auditAction(&uid, "check_overdue", map[string]interface{}{"updated": n})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "逾期检查完成",
		"data":    echo.Map{"updated": n},
	})
}
