package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wikimapper/internal/lookup"
)

// Handler holds API route handlers.
type Handler struct {
	svc *lookup.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *lookup.Service) *Handler {
	return &Handler{svc: svc}
}

// Exists handles GET /api/exists/{kind}.
//
//	@Summary		Check whether a URI exists in the reference knowledge base
//	@Tags			oracle
//	@Produce		json
//	@Param			kind	path		string	true	"Entity kind"	Enums(ontology, property, resource)
//	@Param			uri		query		string	true	"URI, with or without angle brackets"
//	@Success		200		{object}	ExistsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exists/{kind} [get]
func (h *Handler) Exists(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Exists(r.Context(), chi.URLParam(r, "kind"), r.URL.Query().Get("uri"))
	if err != nil {
		writeError(w, "exists", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Resolve handles GET /api/resolve/{category}.
//
//	@Summary		Resolve a candidate URI with the strategy of its category
//	@Tags			mapping
//	@Produce		json
//	@Param			category	path		string	true	"Candidate category"	Enums(resource, property, class)
//	@Param			uri			query		string	true	"Candidate URI"
//	@Success		200			{object}	ResolveResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve/{category} [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "category"), r.URL.Query().Get("uri"))
	if err != nil {
		writeError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Classify handles GET /api/classify.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Classify(r.URL.Query().Get("uri"))
	if err != nil {
		writeError(w, "classify", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
