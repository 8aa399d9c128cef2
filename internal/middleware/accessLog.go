package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/openstore/openstore/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const RequestIDHeader = "X-Request-Id"

type rwWrapper struct {
	rw         http.ResponseWriter
	statusCode int
	size       int
	closed     bool
}

// newRwWrapper wraps the HTTP responseWriter for access logging
func newRwWrapper(rw http.ResponseWriter) *rwWrapper {
	return &rwWrapper{
		rw:         rw,
		statusCode: http.StatusOK,
	}
}

func (r *rwWrapper) Header() http.Header {
	return r.rw.Header()
}

func (r *rwWrapper) Write(i []byte) (int, error) {
	n, err := r.rw.Write(i)
	r.size += n
	return n, err
}

func (r *rwWrapper) WriteHeader(statusCode int) {
	if r.closed {
		return
	}
	r.closed = true
	r.statusCode = statusCode
	r.rw.WriteHeader(statusCode)
}

// AccessLog tags the request with an id, stores a request scoped logger in
// its context and logs the request once served.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	accessLogger := logger.Named("accessLog")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With(zap.String("requestID", requestID))
			r = r.WithContext(logging.WithCtx(r.Context(), reqLogger))

			rww := newRwWrapper(w)
			start := time.Now()
			defer func() {
				accessLogger.Info("access to server",
					append(flattenVars(r, rww),
						zap.String("requestID", requestID),
						zap.Duration("duration", time.Since(start)),
					)...,
				)
			}()
			next.ServeHTTP(rww, r)
		})
	}
}

func flattenVars(r *http.Request, res *rwWrapper) []zapcore.Field {
	fs := []zapcore.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("userAgent", r.UserAgent()),
		zap.String("contentLength", strconv.FormatInt(r.ContentLength, 10)),
		zap.Int("statusCode", res.statusCode),
		zap.Int("size", res.size),
	}
	for k, v := range mux.Vars(r) {
		fs = append(fs, zap.String(k, v))
	}

	return fs
}
