package devserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// logRequests logs method, path, status and duration at debug level so the
// build log stays readable.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(ww.Status()),
			slog.Duration("duration", time.Since(start)),
			logfields.UserAgent(r.UserAgent()),
			logfields.RemoteAddr(r.RemoteAddr))
	})
}

// recoverPanics turns handler panics into a structured 500 response.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("HTTP handler panic",
					slog.String("panic", fmt.Sprint(rec)),
					logfields.Path(r.URL.Path),
					logfields.Method(r.Method))
				err := foundationerrors.InternalError("internal server error").
					WithContext("path", r.URL.Path).
					WithContext("request_id", middleware.GetReqID(r.Context())).
					Build()
				s.errors.WriteErrorResponse(w, r, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
