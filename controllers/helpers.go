package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/clubhouse/middleware"
	"github.com/cppla/clubhouse/services"
	"github.com/cppla/clubhouse/utils"
)

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// maxPage keeps (page-1)*pageSize well inside int range.
const maxPage = 1_000_000

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 && p <= maxPage {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

// paginate slices an already ordered list.
func paginate[T any](items []T, page, pageSize int) ([]T, pagination) {
	total := len(items)
	meta := pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	if page < 1 || page-1 >= meta.TotalPages {
		return []T{}, meta
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	return items[start:end], meta
}

func getUserID(ctx *gin.Context) (string, bool) {
	uid := ctx.GetString(middleware.ContextUserIDKey)
	return uid, uid != ""
}

func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is logged and reported as internalCode.
func respondServiceError(ctx *gin.Context, err error, internalCode int, internalMsg string) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		utils.Error(ctx, http.StatusUnauthorized, 40110, err.Error())
	case errors.Is(err, services.ErrValidation):
		utils.Error(ctx, http.StatusBadRequest, 40000, err.Error())
	case errors.Is(err, services.ErrAuthorization):
		utils.Error(ctx, http.StatusForbidden, 40300, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40400, err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40900, err.Error())
	default:
		utils.Logger.Error(internalMsg,
			zap.Error(err),
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", ctx.GetString(middleware.ContextRequestIDKey)),
		)
		utils.Error(ctx, http.StatusInternalServerError, internalCode, internalMsg)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
