package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeNotFound    = 404
	CodeServerError = 500
)

// 业务错误码
const (
	CodeInvalidAmount      = 1001 // 金额不合法
	CodeInsufficientFunds  = 1002 // 余额不足
	CodeAlreadyProcessed   = 1003 // 请求不存在或已处理
	CodeKeySoldOut         = 1004 // 激活码售罄
	CodeDuplicateUser      = 1005 // 用户名/邮箱已占用
	CodeInvalidCredentials = 1006 // 账号或密码错误
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 输出业务错误
// httpStatus 与业务 code 分离：浏览器端按 HTTP 状态分流，
// 业务码用于前端精确提示
func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

func InvalidAmount(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeInvalidAmount, message)
}

func InsufficientFunds(c *gin.Context, message string) {
	Error(c, http.StatusConflict, CodeInsufficientFunds, message)
}

func AlreadyProcessed(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeAlreadyProcessed, message)
}
