package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"AccountPlatform/pkg/errors"
	"AccountPlatform/pkg/logger"
)

// RecoveryMiddleware обрабатывает паники в обработчиках HTTP
func RecoveryMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Прерывание ответа самим net/http пробрасывается дальше
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error("Panic recovered in HTTP handler",
					logger.CtxField(r.Context()),
					logger.Any("panic", rec),
					logger.String("stack_trace", string(debugStack())),
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
				)

				errors.WriteJSON(w, fmt.Errorf("panic: %v", rec))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// debugStack возвращает трейс стека
func debugStack() []byte {
	buf := make([]byte, 1024)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
