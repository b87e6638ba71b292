package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

// ============================================================================
// Common errors (service 00)
// ============================================================================

var (
	ErrBadRequest      = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrInvalidParam    = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrRequestTooLarge = Register(New(MakeCode(ServiceCommon, CategoryRequest, 5), http.StatusRequestEntityTooLarge, codes.InvalidArgument, "Request entity too large", "请求体过大"))

	ErrNotFound      = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Route not found", "路由不存在"))

	ErrTooManyRequests = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 0), http.StatusTooManyRequests, codes.ResourceExhausted, "Too many requests", "请求过于频繁"))

	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrPanic    = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server panic", "服务器内部异常"))

	ErrDatabase = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 0), http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))
	ErrCache    = Register(New(MakeCode(ServiceCommon, CategoryCache, 0), http.StatusInternalServerError, codes.Internal, "Cache error", "缓存错误"))

	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 0), http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))
	ErrRequestTimeout     = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))

	ErrInvalidConfiguration = Register(New(MakeCode(ServiceCommon, CategoryConfig, 0), http.StatusInternalServerError, codes.FailedPrecondition, "Invalid configuration", "配置无效"))
)
