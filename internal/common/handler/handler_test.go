package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/response"
	"github.com/dumeirei/affiliate-backend/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// 辅助函数：创建测试上下文
func createTestContext(target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c, w
}

// 辅助函数：解析响应
func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError_NilError(t *testing.T) {
	c, _ := createTestContext("/")
	assert.False(t, HandleError(c, nil))
}

func TestHandleError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"不存在", appErrors.ErrAffiliateNotFound, http.StatusNotFound, 3000},
		{"状态不允许", appErrors.ErrAffiliateStatus, http.StatusConflict, 3001},
		{"重复", appErrors.ErrCustomerReferred, http.StatusConflict, 3005},
		{"参数错误", appErrors.ErrPayoutAmountInvalid, http.StatusBadRequest, 5003},
		{"余额不足", appErrors.ErrBalanceInsufficient.WithMessage("可提现余额不足，当前可提现: 1.00"), http.StatusUnprocessableEntity, 5002},
		{"存储超时", appErrors.ErrStoreTimeout, http.StatusServiceUnavailable, 1007},
		{"存储错误", appErrors.ErrDatabaseError, http.StatusInternalServerError, 1004},
		{"未登录", appErrors.ErrUnauthorized, http.StatusUnauthorized, 2000},
		{"权限不足", appErrors.ErrPermissionDenied, http.StatusForbidden, 2004},
		{"包装后的应用错误", fmt.Errorf("wrap: %w", appErrors.ErrCommissionNotFound), http.StatusNotFound, 4000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := createTestContext("/")
			assert.True(t, HandleError(c, tt.err))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, parseResponse(t, w).Code)
		})
	}
}

func TestHandleError_PlainErrorHidesDetail(t *testing.T) {
	c, w := createTestContext("/")
	assert.True(t, HandleError(c, fmt.Errorf("pq: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := parseResponse(t, w)
	assert.NotContains(t, resp.Message, "connection refused")
	assert.Len(t, c.Errors, 1)
}

func TestMustSucceed(t *testing.T) {
	c, w := createTestContext("/")
	MustSucceed(c, nil, gin.H{"ok": true})
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = createTestContext("/")
	MustSucceedCreated(c, nil, gin.H{"id": "x"})
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = createTestContext("/")
	MustSucceedCreated(c, appErrors.ErrAffiliateNotFound, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequireSubjectID(t *testing.T) {
	t.Run("未登录返回401", func(t *testing.T) {
		c, w := createTestContext("/")
		id, ok := RequireSubjectID(c)
		assert.False(t, ok)
		assert.Empty(t, id)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("已登录返回主体ID", func(t *testing.T) {
		c, _ := createTestContext("/")
		c.Set(middleware.ContextKeySubjectID, "aff-1")
		id, ok := RequireSubjectID(c)
		assert.True(t, ok)
		assert.Equal(t, "aff-1", id)
	})
}

func TestParseUUIDParam(t *testing.T) {
	c, w := createTestContext("/")
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	_, ok := ParseUUIDParam(c, "id", "推广员")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, _ = createTestContext("/")
	c.Params = gin.Params{{Key: "id", Value: "6F9619FF-8B86-D011-B42D-00C04FC964FF"}}
	id, ok := ParseUUIDParam(c, "id", "推广员")
	assert.True(t, ok)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", id)
}

func TestParseQueryTime(t *testing.T) {
	c, _ := createTestContext("/")
	ts, ok := ParseQueryTime(c, "as_of")
	assert.True(t, ok)
	assert.Nil(t, ts)

	c, _ = createTestContext("/?as_of=2024-05-01T10:00:00Z")
	ts, ok = ParseQueryTime(c, "as_of")
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	c, w := createTestContext("/?as_of=yesterday")
	_, ok = ParseQueryTime(c, "as_of")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBindPagination(t *testing.T) {
	tests := []struct {
		name  string
		query string
		page  int
		limit int
	}{
		{"默认值", "", 1, 20},
		{"指定值", "page=3&limit=50", 3, 50},
		{"超出上限", "limit=500", 1, 100},
		{"非法值", "page=-1&limit=abc", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := createTestContext("/?" + tt.query)
			p := BindPagination(c)
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.limit, p.Limit)
		})
	}
}
