package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"AccountPlatform/pkg/logger"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware логирует все HTTP запросы и кладет trace_id в контекст
func LoggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Входящий идентификатор запроса сохраняется, иначе генерируется новый
			traceID := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(traceID); err != nil {
				traceID = uuid.NewString()
			}

			r = r.WithContext(logger.WithTraceID(r.Context(), traceID))
			w.Header().Set(RequestIDHeader, traceID)

			logFields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("url", r.URL.String()),
				logger.String("remote_addr", r.RemoteAddr),
				logger.String("user_agent", r.UserAgent()),
				logger.String("trace_id", traceID),
			}

			log.Debug("Started request", logFields...)

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logFields = append(logFields,
				logger.Int("status_code", wrapped.statusCode),
				logger.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			)

			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				log.Error("Completed request", logFields...)
			case wrapped.statusCode >= http.StatusBadRequest:
				log.Warn("Completed request", logFields...)
			default:
				log.Info("Completed request", logFields...)
			}
		})
	}
}

// responseWriter обертка для перехвата статуса ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader перехватывает установку статуса
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
