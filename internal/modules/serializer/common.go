package serializer

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger sets the logger used by TrackedErr. Call once at startup.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// Response is the envelope of every JSON reply.
type Response struct {
	Code  int         `json:"code"`
	Data  interface{} `json:"data,omitempty"`
	Msg   string      `json:"msg"`
	Error string      `json:"error,omitempty"`
}

// TrackedErrorResponse carries the trace id so a failed request can be found in traces.
type TrackedErrorResponse struct {
	Response
	TraceID string `json:"trace_id,omitempty"`
}

// Err builds an error envelope. The error detail is only exposed outside release mode.
func Err(errCode int, msg string, err error) Response {
	res := Response{
		Code: errCode,
		Msg:  msg,
	}
	if err != nil && gin.Mode() != gin.ReleaseMode {
		res.Error = fmt.Sprintf("%+v", err)
	}
	return res
}

// TrackedErr logs err with the request's trace id and returns a 5xx envelope
// that exposes the trace id to the caller.
func TrackedErr(c *gin.Context, errCode int, msg string, err error) TrackedErrorResponse {
	res := TrackedErrorResponse{Response: Err(errCode, msg, err)}
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		res.TraceID = sc.TraceID().String()
	}
	logger.Error(msg,
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("trace_id", res.TraceID),
		zap.Error(err))
	return res
}

// DBErr
func DBErr(msg string, err error) Response {
	if msg == "" {
		msg = "database error"
	}
	return Err(http.StatusInternalServerError, msg, err)
}

// ParamErr
func ParamErr(msg string, err error) Response {
	if msg == "" {
		msg = "parameter error"
	}
	return Err(http.StatusBadRequest, msg, err)
}

// AuthErr
func AuthErr(msg string) Response {
	if msg == "" {
		msg = "authentication error"
	}
	return Err(http.StatusUnauthorized, msg, nil)
}

// NotFoundErr
func NotFoundErr(msg string) Response {
	if msg == "" {
		msg = "not found"
	}
	return Err(http.StatusNotFound, msg, nil)
}

// TooLargeErr
func TooLargeErr(limit int64) Response {
	return Err(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload exceeds %d MB", limit>>20), nil)
}
