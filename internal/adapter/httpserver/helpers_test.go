package httpserver_test

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/coverletter-assistant/internal/adapter/httpserver"
)

func chiRouter(srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.RequestID())
	r.Get("/v1/attempts/{id}", srv.AttemptsHandler())
	return r
}
