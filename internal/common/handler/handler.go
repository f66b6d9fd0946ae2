// Package handler 提供 API Handler 的通用辅助函数
// 统一错误处理、认证检查、参数解析等操作
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
	"github.com/dumeirei/affiliate-backend/internal/middleware"
)

// ============================================================================
// 统一错误处理
// ============================================================================

// StatusFor 错误类别对应的 HTTP 状态码
func StatusFor(appErr *appErrors.AppError) int {
	switch appErr.Kind {
	case appErrors.KindNotFound:
		return http.StatusNotFound
	case appErrors.KindInvalidState, appErrors.KindConflict:
		return http.StatusConflict
	case appErrors.KindValidation:
		return http.StatusBadRequest
	case appErrors.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case appErrors.KindUnauthorized:
		if appErr.Code == appErrors.ErrPermissionDenied.Code {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case appErrors.KindStore:
		if appErr.Code == appErrors.ErrStoreTimeout.Code {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleError 处理错误并发送适当的响应
// err 为 nil 时返回 false；否则发送错误响应并返回 true，调用方应该 return
//
// 使用示例:
//
//	result, err := service.DoSomething()
//	if HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if appErrors.IsAppError(err) {
		appErr := appErrors.GetAppError(err)
		status := StatusFor(appErr)
		if status >= http.StatusInternalServerError {
			// 存储层细节不暴露给调用方
			_ = c.Error(err)
		}
		response.Error(c, status, appErr.Code, appErr.Message)
		return true
	}
	_ = c.Error(err)
	response.InternalError(c, "服务器内部错误")
	return true
}

// MustSucceed 便捷封装：如果有错误则返回错误响应，否则返回成功响应
// 调用 MustSucceed 后必须 return
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedCreated 同 MustSucceed，成功时返回 201
func MustSucceedCreated(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Created(c, data)
}

// BindJSON 绑定请求体，失败时发送 400 响应并返回 false
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

// ============================================================================
// 调用方认证检查
// ============================================================================

// RequireSubjectID 获取当前调用方主体 ID，未认证时发送 401 响应
//
// 使用示例:
//
//	affiliateID, ok := handler.RequireSubjectID(c)
//	if !ok {
//	    return
//	}
func RequireSubjectID(c *gin.Context) (string, bool) {
	id := middleware.GetSubjectID(c)
	if id == "" {
		response.Unauthorized(c, "请先登录")
		return "", false
	}
	return id, true
}

// ============================================================================
// 参数解析
// ============================================================================

// ParseUUIDParam 解析 UUID 路径参数，失败时发送 400 响应
//
//	id, ok := handler.ParseUUIDParam(c, "id", "推广员")
func ParseUUIDParam(c *gin.Context, paramName, resourceName string) (string, bool) {
	raw := c.Param(paramName)
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return "", false
	}
	return id.String(), true
}

// ParseQueryTime 解析 RFC3339 查询参数，参数为空时返回 (nil, true)
func ParseQueryTime(c *gin.Context, paramName string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(paramName))
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.BadRequest(c, "无效的时间格式: "+paramName)
		return nil, false
	}
	return &t, true
}

// BindPagination 从查询参数绑定并规范化分页参数
// 默认 page=1, limit=20, 最大 limit=100
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(utils.DefaultPageLimit)))
	p.Normalize()
	return p
}
