// Package httpapi is the JSON trigger surface consumed by the separate
// front end: list units, list a unit's pending queue, commit a transfer
// date. Rendering and access gating live elsewhere.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/mdiaze-dotcom/made-drcm/expediente"
)

// transferDateLayout is the date-only form the front end submits.
const transferDateLayout = "02/01/2006"

// CaseService is the slice of expediente.Service the handlers rely on.
type CaseService interface {
	Units(ctx context.Context) ([]string, error)
	PendingByUnit(ctx context.Context, unit string) ([]expediente.Record, error)
	CommitTransfer(ctx context.Context, caseID string, date time.Time) (expediente.Record, error)
}

type Handler struct {
	svc CaseService
	log logrus.FieldLogger
}

// NewRouter wires the API routes and CORS for the out-of-process front end.
func NewRouter(svc CaseService, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &Handler{svc: svc, log: log}
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/units", h.listUnits).Methods(http.MethodGet)
	api.HandleFunc("/units/{unit}/expedientes", h.listPending).Methods(http.MethodGet)
	api.HandleFunc("/expedientes/{id}/transfer", h.commitTransfer).Methods(http.MethodPost)
	return cors.AllowAll().Handler(r)
}

type recordDTO struct {
	CaseID        string `json:"case_id"`
	Unit          string `json:"organizational_unit"`
	SubmittedAt   string `json:"submission_timestamp"`
	TransferredAt string `json:"transfer_timestamp"`
	Status        string `json:"status"`
	ElapsedDays   *int   `json:"elapsed_business_days"`
	Tier          string `json:"urgency_tier"`
}

func toDTO(rec expediente.Record) recordDTO {
	return recordDTO{
		CaseID:        rec.CaseID,
		Unit:          rec.Unit,
		SubmittedAt:   expediente.FormatTimestamp(rec.SubmittedAt),
		TransferredAt: expediente.FormatTimestamp(rec.TransferredAt),
		Status:        rec.Status,
		ElapsedDays:   rec.ElapsedDays,
		Tier:          string(expediente.ClassifyElapsed(rec.ElapsedDays)),
	}
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.svc.Units(r.Context())
	if err != nil {
		h.storeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": units})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	unit := mux.Vars(r)["unit"]
	records, err := h.svc.PendingByUnit(r.Context(), unit)
	if err != nil {
		h.storeFailure(w, err)
		return
	}
	out := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expedientes": out})
}

type transferRequest struct {
	Date string `json:"date"`
}

func (h *Handler) commitTransfer(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["id"]

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse(transferDateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date must be DD/MM/YYYY")
		return
	}

	rec, err := h.svc.CommitTransfer(r.Context(), caseID, date)
	switch {
	case errors.Is(err, expediente.ErrTransferBeforeToday):
		writeError(w, http.StatusUnprocessableEntity, "transfer date cannot precede today")
	case errors.Is(err, expediente.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, "case not found")
	case err != nil:
		h.storeFailure(w, err)
	default:
		writeJSON(w, http.StatusAccepted, toDTO(rec))
	}
}

func (h *Handler) storeFailure(w http.ResponseWriter, err error) {
	h.log.WithError(err).Error("store operation failed")
	writeError(w, http.StatusBadGateway, "record store unavailable")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
