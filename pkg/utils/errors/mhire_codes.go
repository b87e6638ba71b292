package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// mhire 服务错误码，服务代码 20。
var (
	// 请求参数错误 (类别 01)
	ErrInvalidRequest  = Register(New(MakeCode(ServiceMhire, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrUnsupportedFile = Register(New(MakeCode(ServiceMhire, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Unsupported file type", "不支持的文件类型"))
	ErrFileTooLarge    = Register(New(MakeCode(ServiceMhire, CategoryRequest, 3), http.StatusRequestEntityTooLarge, codes.InvalidArgument, "File too large", "文件过大"))
	ErrInvalidImage    = Register(New(MakeCode(ServiceMhire, CategoryRequest, 4), http.StatusBadRequest, codes.InvalidArgument, "Invalid face image", "人脸图片无效"))
	ErrEmptyDocument   = Register(New(MakeCode(ServiceMhire, CategoryRequest, 5), http.StatusBadRequest, codes.InvalidArgument, "No text could be extracted", "未能提取到文本"))

	// 资源不存在 (类别 04)
	ErrFaceReferenceNotFound = Register(New(MakeCode(ServiceMhire, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "No face reference for user", "用户没有人脸参考"))
	ErrVerificationNotFound  = Register(New(MakeCode(ServiceMhire, CategoryResource, 2), http.StatusNotFound, codes.NotFound, "No verification records for user", "用户没有验证记录"))

	// 内部错误 (类别 07)
	ErrIndexUnavailable = Register(New(MakeCode(ServiceMhire, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Vector index unavailable", "向量索引不可用"))
	ErrRecordPersist    = Register(New(MakeCode(ServiceMhire, CategoryDatabase, 1), http.StatusInternalServerError, codes.Internal, "Failed to persist verification record", "验证记录保存失败"))

	// 上游服务错误 (类别 10)
	ErrEmbeddingService    = Register(New(MakeCode(ServiceMhire, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Embedding service error", "向量服务错误"))
	ErrUpstreamModel       = Register(New(MakeCode(ServiceMhire, CategoryNetwork, 2), http.StatusBadGateway, codes.Unavailable, "Language model service error", "大模型服务错误"))
	ErrVerificationService = Register(New(MakeCode(ServiceMhire, CategoryNetwork, 3), http.StatusBadGateway, codes.Unavailable, "Face verification service error", "人脸验证服务错误"))
)
