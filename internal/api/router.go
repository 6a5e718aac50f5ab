package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wikimapper/internal/lookup"
)

// NewRouter builds the lookup routes:
//
//	GET /exists/{kind}?uri=      oracle membership for ontology, property or resource
//	GET /resolve/{category}?uri= run one candidate through its strategy
//	GET /classify?uri=           categorize a tagged span
//	GET /stats                   statistics of the last mapping run
//	GET /events                  mapping progress as SSE, when sseHandler is set
func NewRouter(svc *lookup.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/exists/{kind}", h.Exists)
	r.Get("/resolve/{category}", h.Resolve)
	r.Get("/classify", h.Classify)
	r.Get("/stats", h.Stats)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
