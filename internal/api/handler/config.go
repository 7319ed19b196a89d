package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/confhub/confhub/internal/api/middleware"
	"github.com/confhub/confhub/internal/domain"
	"github.com/confhub/confhub/internal/service"
	"github.com/confhub/confhub/internal/validation"
)

// ConfigHandler exposes the configuration operations for one tenancy tier.
// One engine serves every tier; the handler only pins the tier and decodes
// requests.
type ConfigHandler struct {
	tier domain.Tier
	svc  *service.ConfigService
}

// NewConfigHandler creates a handler for the given tier.
func NewConfigHandler(tier domain.Tier, svc *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{tier: tier, svc: svc}
}

// Routes returns the tier's route tree.
func (h *ConfigHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Post("/set", h.Set)
	r.Post("/search", h.List)
	r.Post("/stat", h.Stat)
	r.Get("/{name}", h.Get)
	r.Put("/{name}", h.Update)
	r.Delete("/{name}", h.Delete)
	return r
}

// Create creates a new config record.
func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.CreateConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validateWrite(req.Name, req.Tags, req.ResourceGroup, req.Scope()); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	rec, err := h.svc.Create(r.Context(), h.tier, caller, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// Set creates the record when absent, otherwise updates it in place.
func (h *ConfigHandler) Set(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.SetConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := validateWrite(req.Name, req.Tags, req.ResourceGroup, req.Scope()); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	rec, err := h.svc.Set(r.Context(), h.tier, caller, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Update updates an existing config record.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	name, _ := url.PathUnescape(chi.URLParam(r, "name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	var req domain.UpdateConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = name

	if errs := validateWrite(req.Name, req.Tags, "", req.Scope()); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	rec, err := h.svc.Update(r.Context(), h.tier, caller, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Get fetches one config record by name. Scope identifiers come from
// query parameters.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := addressedRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	rec, err := h.svc.Get(r.Context(), h.tier, caller, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Delete removes one config record by name.
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := addressedRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.svc.Delete(r.Context(), h.tier, caller, req); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns the records visible to the caller, ordered by name.
func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.SearchConfigsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	records, total, err := h.svc.List(r.Context(), h.tier, caller, req)
	if err != nil {
		handleError(w, err)
		return
	}
	if records == nil {
		records = []*domain.ConfigRecord{}
	}
	respondJSON(w, http.StatusOK, &domain.SearchConfigsResponse{
		Results:    records,
		TotalCount: total,
	})
}

// Stat evaluates an aggregation query within the caller's scope.
func (h *ConfigHandler) Stat(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.StatConfigsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	buckets, err := h.svc.Stat(r.Context(), h.tier, caller, req)
	if err != nil {
		handleError(w, err)
		return
	}
	if buckets == nil {
		buckets = []domain.StatBucket{}
	}
	respondJSON(w, http.StatusOK, &domain.StatConfigsResponse{Results: buckets})
}

func addressedRequest(r *http.Request) (domain.GetConfigRequest, error) {
	name, _ := url.PathUnescape(chi.URLParam(r, "name"))
	if name == "" {
		return domain.GetConfigRequest{}, domain.MissingField("name")
	}
	q := r.URL.Query()
	return domain.GetConfigRequest{
		Name:        name,
		DomainID:    q.Get("domain_id"),
		WorkspaceID: q.Get("workspace_id"),
		ProjectID:   q.Get("project_id"),
	}, nil
}

func validateWrite(name string, tags map[string]string, group domain.ResourceGroup, in domain.ScopeInput) validation.ValidationErrors {
	var errs validation.ValidationErrors
	if err := validation.ValidateName(name); err != nil {
		errs.Add("name", name, err.Error())
	}
	if err := validation.ValidateTags(tags); err != nil {
		errs.Add("tags", "", err.Error())
	}
	if err := validation.ValidateResourceGroup(group); err != nil {
		errs.Add("resource_group", string(group), err.Error())
	}
	if err := validation.ValidateIdentifier("domain_id", in.DomainID); err != nil {
		errs.Add("domain_id", in.DomainID, err.Error())
	}
	if err := validation.ValidateIdentifier("workspace_id", in.WorkspaceID); err != nil {
		errs.Add("workspace_id", in.WorkspaceID, err.Error())
	}
	if err := validation.ValidateIdentifier("project_id", in.ProjectID); err != nil {
		errs.Add("project_id", in.ProjectID, err.Error())
	}
	return errs
}
