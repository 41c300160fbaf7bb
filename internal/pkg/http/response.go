package http

// 业务错误码
const (
	CodeInvalidRequest  = 40001 // 请求参数错误
	CodeUnauthorized    = 40101 // 未登录
	CodeInvalidToken    = 40102 // Token无效或过期
	CodeBadSignature    = 40103 // 签名校验失败
	CodePaymentRequired = 40201 // 需要先完成支付
	CodeForbidden       = 40301 // 无权访问
	CodeNotFound        = 40401 // 资源不存在
	CodeConflict        = 40901 // 状态冲突（正在运行、重复操作）
	CodeRateLimited     = 42901 // 触发限流
	CodeInternal        = 50001 // 内部错误
	CodeVendor          = 50201 // 上游厂商错误
	CodeVendorTimeout   = 50401 // 上游厂商超时
)

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（非0表示错误）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// SuccessResponse 成功响应（所有API共用）
type SuccessResponse struct {
	Code    int         `json:"code"`           // 状态码（0表示成功）
	Message string      `json:"message"`        // 响应消息
	Data    interface{} `json:"data,omitempty"` // 响应数据（可选）
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(message string, data interface{}) *SuccessResponse {
	return &SuccessResponse{
		Code:    0,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}
