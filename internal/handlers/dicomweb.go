package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/otcheredev/dicomweb-bridge/internal/adapters"
	"github.com/otcheredev/dicomweb-bridge/internal/metrics"
	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/pkg/dicomjson"
	"github.com/otcheredev/dicomweb-bridge/pkg/filter"
	"github.com/otcheredev/dicomweb-bridge/pkg/multipart"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const contentTypeDICOMJSON = "application/dicom+json"

// Prefixes are the mount points of the three DICOMweb services. Empty
// prefixes mount at the router root.
type Prefixes struct {
	QIDO string
	WADO string
	STOW string
}

// AuditRecorder persists audit entries
type AuditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type DICOMWebHandler struct {
	store          adapters.DataStore
	metrics        *metrics.Metrics
	audit          AuditRecorder
	maxUploadBytes int64
	newBoundary    func() string
	prefixes       Prefixes
}

// Option configures a DICOMWebHandler
type Option func(*DICOMWebHandler)

// WithMetrics records data store latency and STOW outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *DICOMWebHandler) { h.metrics = m }
}

// WithAudit records retrieve and store actions
func WithAudit(a AuditRecorder) Option {
	return func(h *DICOMWebHandler) { h.audit = a }
}

// WithMaxUploadBytes bounds STOW-RS request bodies
func WithMaxUploadBytes(n int64) Option {
	return func(h *DICOMWebHandler) { h.maxUploadBytes = n }
}

// WithBoundaryFunc sets the generator of WADO-RS multipart boundaries
func WithBoundaryFunc(fn func() string) Option {
	return func(h *DICOMWebHandler) { h.newBoundary = fn }
}

func NewDICOMWebHandler(store adapters.DataStore, opts ...Option) *DICOMWebHandler {
	h := &DICOMWebHandler{
		store:          store,
		maxUploadBytes: 512 << 20,
		newBoundary:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the DICOMweb endpoints on r
func (h *DICOMWebHandler) Routes(r chi.Router, p Prefixes) {
	h.prefixes = p

	// QIDO-RS (Query)
	r.Get(p.QIDO+"/studies", h.SearchStudies)
	r.Get(p.QIDO+"/studies/{studyUID}/series", h.SearchSeries)
	r.Get(p.QIDO+"/studies/{studyUID}/series/{seriesUID}/instances", h.SearchInstances)

	// WADO-RS (Retrieve)
	r.Get(p.WADO+"/studies/{studyUID}/series/{seriesUID}/instances/{instanceUID}", h.RetrieveInstance)
	r.Get(p.WADO+"/studies/{studyUID}/series/{seriesUID}/instances/{instanceUID}/metadata", h.RetrieveMetadata)

	// STOW-RS (Store)
	r.Post(p.STOW+"/studies", h.StoreInstances)
	r.Post(p.STOW+"/studies/{studyUID}", h.StoreInstances)
}

// SearchStudies handles QIDO-RS study search
func (h *DICOMWebHandler) SearchStudies(w http.ResponseWriter, r *http.Request) {
	params, err := parseQueryParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	datasets, err := h.store.SearchStudies(r.Context(), params)
	h.metrics.ObserveStore(string(h.store.Type()), "search_studies", start)
	if err != nil {
		log.Error().Err(err).Msg("Failed to search studies")
		http.Error(w, "Failed to search studies", http.StatusInternalServerError)
		return
	}

	h.writeDatasets(w, datasets, filter.StudyLevel)
}

// SearchSeries handles QIDO-RS series search
func (h *DICOMWebHandler) SearchSeries(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "studyUID")

	params, err := parseQueryParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	datasets, err := h.store.SearchSeries(r.Context(), studyUID, params)
	h.metrics.ObserveStore(string(h.store.Type()), "search_series", start)
	if err != nil {
		log.Error().Err(err).Str("study_uid", studyUID).Msg("Failed to search series")
		http.Error(w, "Failed to search series", http.StatusInternalServerError)
		return
	}

	h.writeDatasets(w, datasets, filter.SeriesLevel)
}

// SearchInstances handles QIDO-RS instance search
func (h *DICOMWebHandler) SearchInstances(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "studyUID")
	seriesUID := chi.URLParam(r, "seriesUID")

	params, err := parseQueryParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	datasets, err := h.store.SearchInstances(r.Context(), studyUID, seriesUID, params)
	h.metrics.ObserveStore(string(h.store.Type()), "search_instances", start)
	if err != nil {
		log.Error().Err(err).
			Str("study_uid", studyUID).
			Str("series_uid", seriesUID).
			Msg("Failed to search instances")
		http.Error(w, "Failed to search instances", http.StatusInternalServerError)
		return
	}

	h.writeDatasets(w, datasets, filter.InstanceLevel)
}

func (h *DICOMWebHandler) writeDatasets(w http.ResponseWriter, datasets []dicom.Dataset, level filter.TagSet) {
	objs, err := dicomjson.EncodeAll(filter.ApplyAll(datasets, level))
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode DICOM JSON")
		http.Error(w, "Failed to encode results", http.StatusInternalServerError)
		return
	}
	writeDICOMJSON(w, http.StatusOK, objs)
}

// RetrieveInstance handles WADO-RS instance retrieval
func (h *DICOMWebHandler) RetrieveInstance(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "studyUID")
	seriesUID := chi.URLParam(r, "seriesUID")
	instanceUID := chi.URLParam(r, "instanceUID")

	start := time.Now()
	ds, err := h.store.RetrieveInstance(r.Context(), studyUID, seriesUID, instanceUID)
	h.metrics.ObserveStore(string(h.store.Type()), "retrieve_instance", start)
	if errors.Is(err, adapters.ErrNotFound) {
		h.record(r, models.ActionRetrieve, instanceUID, start, err)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).
			Str("study_uid", studyUID).
			Str("series_uid", seriesUID).
			Str("instance_uid", instanceUID).
			Msg("Failed to retrieve instance")
		h.record(r, models.ActionRetrieve, instanceUID, start, err)
		http.Error(w, "Failed to retrieve instance", http.StatusInternalServerError)
		return
	}

	payload, err := part10.Bytes(ds)
	if err != nil {
		log.Error().Err(err).Str("instance_uid", instanceUID).Msg("Failed to serialize instance")
		h.record(r, models.ActionRetrieve, instanceUID, start, err)
		http.Error(w, "Failed to serialize instance", http.StatusInternalServerError)
		return
	}

	boundary := h.newBoundary()
	body := multipart.Encode([][]byte{payload}, boundary)
	h.record(r, models.ActionRetrieve, instanceUID, start, nil)

	w.Header().Set("Content-Type", multipart.ContentType(boundary))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

var tagPixelData = tag.Tag{Group: 0x7FE0, Element: 0x0010}

// RetrieveMetadata handles WADO-RS instance metadata retrieval. Pixel data
// is left out.
func (h *DICOMWebHandler) RetrieveMetadata(w http.ResponseWriter, r *http.Request) {
	studyUID := chi.URLParam(r, "studyUID")
	seriesUID := chi.URLParam(r, "seriesUID")
	instanceUID := chi.URLParam(r, "instanceUID")

	start := time.Now()
	ds, err := h.store.RetrieveInstance(r.Context(), studyUID, seriesUID, instanceUID)
	h.metrics.ObserveStore(string(h.store.Type()), "retrieve_metadata", start)
	h.record(r, models.ActionMetadata, instanceUID, start, err)
	if errors.Is(err, adapters.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("instance_uid", instanceUID).Msg("Failed to retrieve metadata")
		http.Error(w, "Failed to retrieve metadata", http.StatusInternalServerError)
		return
	}

	elems := make([]*dicom.Element, 0, len(ds.Elements))
	for _, elem := range ds.Elements {
		if elem.Tag != tagPixelData && elem.Tag.Group != 0x0002 {
			elems = append(elems, elem)
		}
	}

	obj, err := dicomjson.Encode(dicom.Dataset{Elements: elems})
	if err != nil {
		log.Error().Err(err).Str("instance_uid", instanceUID).Msg("Failed to encode metadata")
		http.Error(w, "Failed to encode metadata", http.StatusInternalServerError)
		return
	}
	writeDICOMJSON(w, http.StatusOK, []dicomjson.Object{obj})
}

func (h *DICOMWebHandler) record(r *http.Request, action, uid string, start time.Time, err error) {
	if h.audit == nil {
		return
	}

	entry := &models.AuditLog{
		RequestID:    chimiddleware.GetReqID(r.Context()),
		Action:       action,
		ResourceType: "instance",
		ResourceUID:  uid,
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		Status:       "success",
		Duration:     time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = "failure"
		entry.ErrorMessage = err.Error()
	}

	if err := h.audit.Create(r.Context(), entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to record audit entry")
	}
}

func writeDICOMJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	if string(body) == "null" {
		body = []byte("[]")
	}

	w.Header().Set("Content-Type", contentTypeDICOMJSON)
	w.WriteHeader(status)
	w.Write(body)
}
