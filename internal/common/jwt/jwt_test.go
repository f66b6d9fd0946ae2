// Package jwt JWT令牌管理单元测试
package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager() *Manager {
	return NewManager(&Config{
		Secret:           "test-secret-key-for-jwt-token-signing",
		AccessExpireTime: 15 * time.Minute,
		Issuer:           "test-issuer",
	})
}

func TestManager_GenerateAndParse(t *testing.T) {
	manager := setupTestManager()

	tests := []struct {
		name      string
		subjectID string
		userType  string
	}{
		{"推广员", "5f0c6a8e-1b2c-4d3e-8f90-123456789abc", UserTypeAffiliate},
		{"管理员", "admin-1", UserTypeAdmin},
		{"服务", "order-service", UserTypeService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expiresAt, err := manager.GenerateToken(tt.subjectID, tt.userType)
			require.NoError(t, err)
			assert.Greater(t, expiresAt, time.Now().Unix())

			claims, err := manager.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.subjectID, claims.SubjectID)
			assert.Equal(t, tt.userType, claims.UserType)
			assert.Equal(t, "test-issuer", claims.Issuer)
		})
	}
}

func TestManager_ParseToken_Errors(t *testing.T) {
	manager := setupTestManager()

	t.Run("过期令牌", func(t *testing.T) {
		expired := NewManager(&Config{Secret: "test-secret-key-for-jwt-token-signing", AccessExpireTime: -time.Minute, Issuer: "test-issuer"})
		token, _, err := expired.GenerateToken("a", UserTypeAffiliate)
		require.NoError(t, err)

		_, err = manager.ParseToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("签名不符", func(t *testing.T) {
		other := NewManager(&Config{Secret: "another-secret", AccessExpireTime: time.Minute, Issuer: "test-issuer"})
		token, _, err := other.GenerateToken("a", UserTypeAdmin)
		require.NoError(t, err)

		_, err = manager.ParseToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("签发方不符", func(t *testing.T) {
		other := NewManager(&Config{Secret: "test-secret-key-for-jwt-token-signing", AccessExpireTime: time.Minute, Issuer: "someone-else"})
		token, _, err := other.GenerateToken("a", UserTypeAdmin)
		require.NoError(t, err)

		_, err = manager.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := manager.ParseToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("篡改载荷", func(t *testing.T) {
		token, _, err := manager.GenerateToken("a", UserTypeAffiliate)
		require.NoError(t, err)
		parts := strings.Split(token, ".")
		parts[1] = parts[1] + "x"

		_, err = manager.ParseToken(strings.Join(parts, "."))
		assert.Error(t, err)
	})
}
