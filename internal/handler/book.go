package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moran1024a/Library-Control-web/internal/config"
	"github.com/moran1024a/Library-Control-web/internal/repository"
)

// BookHandler serves catalogue endpoints.  Listing and lookup are public;
// mutations require the admin role.
type BookHandler struct {
	Cfg   config.Config
	Books *repository.BookRepo
}

func NewBookHandler(cfg config.Config, b *repository.BookRepo) *BookHandler {
	return &BookHandler{Cfg: cfg, Books: b}
}

type bookReq struct {
	Title    string `json:"title" validate:"required,max=255"`
	Author   string `json:"author" validate:"required,max=255"`
	ISBN     string `json:"isbn" validate:"required,max=32"`
	Category string `json:"category" validate:"max=100"`
	Stock    uint32 `json:"stock"`
}

// List returns one catalogue page filtered by title/author/category.
func (h *BookHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	filter := repository.BookFilter{
		Title:    strings.TrimSpace(c.QueryParam("title")),
		Author:   strings.TrimSpace(c.QueryParam("author")),
		Category: strings.TrimSpace(c.QueryParam("category")),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	result, err := h.Books.List(ctx, filter, page)
	if err != nil {
		return internalError(c, h.Cfg, "查询失败", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"data":       result.Data,
		"pagination": result.Pagination,
	})
}

// Search matches a single keyword against title or author.
func (h *BookHandler) Search(c echo.Context) error {
	keyword := strings.TrimSpace(c.QueryParam("keyword"))
	if keyword == "" {
		return failJSON(c, http.StatusBadRequest, "缺少搜索关键词")
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	result, err := h.Books.List(ctx, repository.BookFilter{Search: keyword}, page)
	if err != nil {
		return internalError(c, h.Cfg, "查询失败", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"data":       result.Data,
		"pagination": result.Pagination,
	})
}

// Get returns a single book by id.
func (h *BookHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failJSON(c, http.StatusNotFound, "图书不存在")
		}
		return internalError(c, h.Cfg, "查询失败", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": b})
}

// Create adds a book to the catalogue (admin only).
func (h *BookHandler) Create(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}
	if err := validate.Struct(&req); err != nil {
		return failJSON(c, http.StatusUnprocessableEntity, "参数错误")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Books.Create(ctx, req.Title, req.Author, req.ISBN, req.Category, req.Stock)
	if err != nil {
		return internalError(c, h.Cfg, "新增图书失败", err)
	}

	if uid, uerr := getUserID(c); uerr == nil {
		auditAction(&uid, "create_book", map[string]interface{}{"book_id": id, "title": req.Title})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "新增图书成功",
		"data":    echo.Map{"id": id},
	})
}

// Update overwrites a book's editable fields (admin only).
func (h *BookHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}
	if err := validate.Struct(&req); err != nil {
		return failJSON(c, http.StatusUnprocessableEntity, "参数错误")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Books.Update(ctx, id, req.Title, req.Author, req.ISBN, req.Category, req.Stock)
	if err != nil {
		return internalError(c, h.Cfg, "更新失败", err)
	}
	if !ok {
		return failJSON(c, http.StatusNotFound, "图书不存在")
	}

	if uid, uerr := getUserID(c); uerr == nil {
		auditAction(&uid, "update_book", map[string]interface{}{"book_id": id})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "更新成功"})
}

// Delete removes a book (admin only).  Books with borrow history are kept
// by the ledger's foreign key and surface as a generic failure.
func (h *BookHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return failJSON(c, http.StatusBadRequest, "参数错误")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ok, err := h.Books.Delete(ctx, id)
	if err != nil {
		return internalError(c, h.Cfg, "删除失败", err)
	}
	if !ok {
		return failJSON(c, http.StatusNotFound, "图书不存在")
	}

	if uid, uerr := getUserID(c); uerr == nil {
		auditAction(&uid, "delete_book", map[string]interface{}{"book_id": id})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "删除成功"})
}
