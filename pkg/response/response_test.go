package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, fn func(c *gin.Context)) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		fn         func(c *gin.Context)
		httpStatus int
		code       int
	}{
		{"金额不合法", func(c *gin.Context) { InvalidAmount(c, "金额必须大于0") }, http.StatusBadRequest, CodeInvalidAmount},
		{"余额不足", func(c *gin.Context) { InsufficientFunds(c, "余额不足") }, http.StatusConflict, CodeInsufficientFunds},
		{"请求已处理", func(c *gin.Context) { AlreadyProcessed(c, "请求不存在或已处理") }, http.StatusNotFound, CodeAlreadyProcessed},
		{"参数错误", func(c *gin.Context) { ParamError(c, "参数错误") }, http.StatusBadRequest, CodeParamError},
		{"服务器错误", func(c *gin.Context) { ServerError(c, "服务器内部错误") }, http.StatusInternalServerError, CodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := record(t, tt.fn)
			assert.Equal(t, tt.httpStatus, status)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestSuccessEnvelope(t *testing.T) {
	status, resp := record(t, func(c *gin.Context) {
		Success(c, map[string]int64{"balance": 500})
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.NotNil(t, resp.Data)
}
