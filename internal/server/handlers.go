package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/careset/fhirstore/internal/events"
	"github.com/careset/fhirstore/internal/resource"
)

// outcome is the wire shape of a FHIR-style OperationOutcome, mirroring
// resource.OutcomeError.
type outcome struct {
	Severity   string   `json:"severity"`
	Code       string   `json:"code"`
	Text       string   `json:"text"`
	Expression []string `json:"expression,omitempty"`
}

func writeOutcome(w http.ResponseWriter, status int, code, text string, expression []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(outcome{Severity: "error", Code: code, Text: text, Expression: expression})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResourceError maps a resource package error into the matching
// HTTP status and OperationOutcome body.
func writeResourceError(w http.ResponseWriter, err error) {
	var oe *resource.OutcomeError
	if !errors.As(err, &oe) {
		writeOutcome(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case resource.IsNotFound(err):
		status = http.StatusNotFound
	case resource.IsConflict(err):
		status = http.StatusConflict
	case oe.Code == "VALIDATION_ERROR":
		status = http.StatusUnprocessableEntity
	}
	writeOutcome(w, status, string(oe.Code), oe.Text, oe.Expression)
}

// ResourceHandler serves the CRUD surface for the resource repository,
// wiring post-commit change notification through internal/events.
type ResourceHandler struct {
	repo      *resource.Repository
	publisher events.Publisher
	logger    *zap.Logger
}

// NewResourceHandler constructs a ResourceHandler. publisher may be nil,
// in which case changes are not announced.
func NewResourceHandler(repo *resource.Repository, publisher events.Publisher, logger *zap.Logger) *ResourceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceHandler{repo: repo, publisher: publisher, logger: logger}
}

func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "resourceType")

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeOutcome(w, http.StatusBadRequest, "invalid", "malformed JSON body", nil)
		return
	}

	res, err := h.repo.Create(r.Context(), resourceType, data)
	if err != nil {
		writeResourceError(w, err)
		return
	}

	if h.publisher != nil {
		if nerr := events.Notify(r.Context(), h.publisher, events.Change{Kind: events.Created, ResourceType: resourceType, ID: res.ID, VersionID: res.VersionID}); nerr != nil {
			h.logger.Warn("failed to register change notification", zap.Error(nerr))
		}
	}

	writeJSON(w, http.StatusCreated, res.AsDocument())
}

func (h *ResourceHandler) Read(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "resourceType")
	id := chi.URLParam(r, "id")

	res, err := h.repo.Read(r.Context(), resourceType, id)
	if err != nil {
		writeResourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.AsDocument())
}

type updateRequest struct {
	ExpectedVersion int            `json:"expectedVersionId"`
	Data            map[string]any `json:"data"`
}

func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "resourceType")
	id := chi.URLParam(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOutcome(w, http.StatusBadRequest, "invalid", "malformed JSON body", nil)
		return
	}

	res, err := h.repo.Update(r.Context(), resourceType, id, req.ExpectedVersion, req.Data)
	if err != nil {
		writeResourceError(w, err)
		return
	}

	if h.publisher != nil {
		if nerr := events.Notify(r.Context(), h.publisher, events.Change{Kind: events.Updated, ResourceType: resourceType, ID: id, VersionID: res.VersionID}); nerr != nil {
			h.logger.Warn("failed to register change notification", zap.Error(nerr))
		}
	}

	writeJSON(w, http.StatusOK, res.AsDocument())
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "resourceType")
	id := chi.URLParam(r, "id")

	if err := h.repo.Delete(r.Context(), resourceType, id); err != nil {
		writeResourceError(w, err)
		return
	}

	if h.publisher != nil {
		if nerr := events.Notify(r.Context(), h.publisher, events.Change{Kind: events.Deleted, ResourceType: resourceType, ID: id}); nerr != nil {
			h.logger.Warn("failed to register change notification", zap.Error(nerr))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ResourceHandler) Search(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "resourceType")

	filters := make(map[string]any, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			filters[k] = v[0]
		}
	}

	results, err := h.repo.Search(r.Context(), resourceType, filters)
	if err != nil {
		writeResourceError(w, err)
		return
	}

	docs := make([]map[string]any, 0, len(results))
	for _, res := range results {
		docs = append(docs, res.AsDocument())
	}
	writeJSON(w, http.StatusOK, map[string]any{"resourceType": "Bundle", "entry": docs})
}
