package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rocha19/userserver/internal/wire"
)

const maxBodyBytes = 1 << 20

// UserRouter exposes the user handlers over net/http. Status codes and
// bodies are identical to the raw transport.
type UserRouter struct {
	handlers *UserHandlers
	logger   *slog.Logger
}

func NewUserRouter(handlers *UserHandlers, logger *slog.Logger) *UserRouter {
	return &UserRouter{
		handlers: handlers,
		logger:   logger,
	}
}

func (ur *UserRouter) Routes(r chi.Router) {
	r.Post("/user", ur.adapt(ur.handlers.Create))
	r.Get("/user/{id}", ur.adapt(ur.handlers.GetOne))
	r.Get("/users", ur.adapt(ur.handlers.GetAll))
	r.Put("/user/{id}", ur.adapt(ur.handlers.Update))
	r.Delete("/user/{id}", ur.adapt(ur.handlers.Delete))
	r.NotFound(ur.adapt(NotFound))
	r.MethodNotAllowed(ur.adapt(NotFound))
}

func (ur *UserRouter) adapt(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			ur.logger.Error("failed to read request body", "error", err)
			writeResponse(w, ur.logger, wire.Response{Status: wire.StatusInternalServerError, Body: msgInternalError})
			return
		}

		req := wire.Request{
			Method: r.Method,
			Path:   r.URL.Path,
			ID:     chi.URLParam(r, "id"),
			Body:   string(body),
		}

		writeResponse(w, ur.logger, h(r.Context(), req))
	}
}

func writeResponse(w http.ResponseWriter, logger *slog.Logger, resp wire.Response) {
	if resp.Status.DeclaresJSON() {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(int(resp.Status))

	if _, err := io.WriteString(w, resp.Body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
