/*
handlers.go - HTTP API handlers for the clinic backend

PURPOSE:
  Exposes the clinic engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the billing workflows and store.
  Plain record CRUD lives in records.go; this file holds the financial
  endpoints and shared plumbing.

ENDPOINTS (this file):
  Auth:
    POST   /api/login                 Verify credentials

  Treatments:
    GET    /api/treatments            List (optionally ?patientId=N)
    POST   /api/treatments            Intake workflow (queue-gated)
    GET    /api/treatments/{id}       Get one
    PUT    /api/treatments/{id}       Update record fields
    DELETE /api/treatments/{id}       Delete

  Payments:
    POST   /api/allocate_payments     Allocate a received payment

  Daybooks:
    GET    /api/daybooks              List (or ?date=YYYY-MM-DD for one)
    POST   /api/daybooks              Open a daybook
    PUT    /api/daybooks              Close/update (recomputes closing)

  Queue:
    GET    /api/queue                 List for ?date (default today)
    POST   /api/queue                 Admit (?reset clears all)
    PUT    /api/queue/{id}            Update entry
    DELETE /api/queue/{id}            Remove entry

  Settings & health:
    GET    /api/app_settings          Fetch settings blob
    POST   /api/app_settings          Save settings blob
    GET    /api/integrity_check       Verify schema tables exist

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, intake for an unqueued patient
  - 401: Bad credentials
  - 404: Resource not found
  - 409: Conflict (duplicate queue entry, duplicate daybook)
  - 500: Internal errors
  A queue admission conflict additionally carries the existing entry so the
  front desk can show who is already queued.

SEE ALSO:
  - records.go: CRUD for patients, doctors, procedures, appointments,
    transactions, users, activity logs
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/dentalops/clinic-backend/billing"
	"github.com/dentalops/clinic-backend/clinic"
	"github.com/dentalops/clinic-backend/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Log   zerolog.Logger

	allocator *billing.Allocator
	intake    *billing.Intake
	closer    *billing.Closer
	queue     *billing.Queue
}

// NewHandler creates a handler wired to the store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:     store,
		Log:       log,
		allocator: billing.NewAllocator(store),
		intake:    billing.NewIntake(store),
		closer:    billing.NewCloser(store),
		queue:     billing.NewQueue(store),
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondErr maps domain errors onto HTTP statuses. Queue conflicts carry
// the existing entry in the body.
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var conflict *clinic.QueueConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    err.Error(),
			"existing": toQueueEntryDTO(conflict.Existing),
		})
		return
	}

	switch {
	case errors.Is(err, clinic.ErrValidation), errors.Is(err, clinic.ErrNotQueued):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, clinic.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case clinic.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, clinic.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &clinic.ValidationError{Field: "body", Msg: "invalid JSON payload"}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &clinic.ValidationError{Field: "id", Msg: "must be a positive integer"}
	}
	return id, nil
}

// =============================================================================
// AUTH
// =============================================================================

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.respondErr(w, clinic.MissingField("username/password"))
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if clinic.IsNotFound(err) {
			h.respondErr(w, clinic.ErrUnauthorized)
			return
		}
		h.respondErr(w, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.respondErr(w, clinic.ErrUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Success: true, User: toUserDTO(*user)})
}

// =============================================================================
// TREATMENTS
// =============================================================================

func (h *Handler) ListTreatments(w http.ResponseWriter, r *http.Request) {
	var (
		treatments []clinic.Treatment
		err        error
	)
	if raw := r.URL.Query().Get("patientId"); raw != "" {
		patientID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			h.respondErr(w, &clinic.ValidationError{Field: "patientId", Msg: "must be an integer"})
			return
		}
		treatments, err = h.Store.ListTreatmentsByPatient(r.Context(), patientID)
	} else {
		treatments, err = h.Store.ListTreatments(r.Context())
	}
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreatmentDTOs(treatments))
}

func (h *Handler) GetTreatment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	treatment, err := h.Store.GetTreatment(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreatmentDTO(*treatment))
}

// CreateTreatment runs the intake workflow: persist the treatment, reconcile
// advance credit, record the payment, and complete today's queue entry.
func (h *Handler) CreateTreatment(w http.ResponseWriter, r *http.Request) {
	var req TreatmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	treatment := clinic.Treatment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		Date:            req.Date,
		Notes:           req.Notes,
		Procedures:      string(req.Procedures),
		TotalCost:       toDecimal(req.TotalCost),
		TotalDiscount:   toDecimal(req.TotalDiscount),
		FinalAmount:     toDecimal(req.FinalAmount),
		OverallDiscount: toDecimal(req.OverallDiscount),
		UserID:          req.UserID,
		PaidAmount:      toDecimal(req.PaidAmount),
	}

	id, err := h.intake.Create(r.Context(), billing.IntakeRequest{
		Treatment:   treatment,
		PatientName: req.PatientName,
		DayBookDate: req.DayBookDate,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	created, err := h.Store.GetTreatment(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTreatmentDTO(*created))
}

// UpdateTreatment edits record fields only. Paid amount and payment status
// move exclusively through allocation.
func (h *Handler) UpdateTreatment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetTreatment(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req TreatmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	existing.DoctorID = req.DoctorID
	if req.Date != "" {
		existing.Date = req.Date
	}
	existing.Notes = req.Notes
	if len(req.Procedures) > 0 {
		existing.Procedures = string(req.Procedures)
	}
	existing.TotalCost = toDecimal(req.TotalCost)
	existing.TotalDiscount = toDecimal(req.TotalDiscount)
	existing.FinalAmount = toDecimal(req.FinalAmount)
	existing.OverallDiscount = toDecimal(req.OverallDiscount)
	existing.PaymentStatus = clinic.PaymentStatusFor(existing.PaidAmount, existing.FinalAmount)

	if err := h.Store.UpdateTreatment(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreatmentDTO(*existing))
}

func (h *Handler) DeleteTreatment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.DeleteTreatment(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// PAYMENT ALLOCATION
// =============================================================================

func (h *Handler) AllocatePayments(w http.ResponseWriter, r *http.Request) {
	var req AllocatePaymentsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	allocations := make([]billing.Allocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		allocations = append(allocations, billing.Allocation{
			TreatmentID: a.TreatmentID,
			Amount:      toDecimal(a.Amount),
		})
	}

	result, err := h.allocator.Allocate(r.Context(), billing.AllocationRequest{
		PatientID:   req.PatientID,
		Amount:      toDecimal(req.Amount),
		Allocations: allocations,
		Description: req.Description,
		DayBookDate: req.DayBookDate,
		UserID:      req.UserID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AllocatePaymentsResponse{
		Treatments:   toTreatmentDTOs(result.Treatments),
		Transactions: toTransactionDTOs(result.Transactions),
		Patient:      toPatientDTO(result.Patient),
	})
}

// =============================================================================
// DAYBOOKS
// =============================================================================

func (h *Handler) ListDaybooks(w http.ResponseWriter, r *http.Request) {
	if date := r.URL.Query().Get("date"); date != "" {
		daybook, err := h.Store.GetDaybookByDate(r.Context(), date)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDaybookDTO(*daybook))
		return
	}

	daybooks, err := h.Store.ListDaybooks(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]DaybookDTO, 0, len(daybooks))
	for _, d := range daybooks {
		out = append(out, toDaybookDTO(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateDaybook(w http.ResponseWriter, r *http.Request) {
	var req DaybookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Date == "" {
		h.respondErr(w, clinic.MissingField("date"))
		return
	}

	daybook := clinic.Daybook{Date: req.Date, Status: clinic.DaybookOpen}
	if req.OpeningBalance != nil {
		daybook.OpeningBalance = toDecimal(*req.OpeningBalance)
	}
	if req.Notes != nil {
		daybook.Notes = *req.Notes
	}

	if _, err := h.Store.CreateDaybook(r.Context(), daybook); err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.Store.GetDaybookByDate(r.Context(), req.Date)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDaybookDTO(*created))
}

// UpdateDaybook merges the partial update and recomputes the closing balance
// from live transaction sums.
func (h *Handler) UpdateDaybook(w http.ResponseWriter, r *http.Request) {
	var req DaybookRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	upd := billing.DaybookUpdate{Date: req.Date, Notes: req.Notes}
	if req.Status != nil {
		status := clinic.DaybookStatus(*req.Status)
		upd.Status = &status
	}
	if req.OpeningBalance != nil {
		opening := toDecimal(*req.OpeningBalance)
		upd.OpeningBalance = &opening
	}
	if req.SettledAmount != nil {
		settled := toDecimal(*req.SettledAmount)
		upd.SettledAmount = &settled
	}

	daybook, err := h.closer.Update(r.Context(), upd)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDaybookDTO(*daybook))
}

// =============================================================================
// QUEUE
// =============================================================================

func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = clinic.Today()
	}
	entries, err := h.Store.ListQueue(r.Context(), date)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]QueueEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toQueueEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// AdmitQueue queues a patient, or with ?reset clears the whole queue.
func (h *Handler) AdmitQueue(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("reset") {
		var req struct {
			UserID int64 `json:"userId"`
		}
		// Body is optional for reset.
		json.NewDecoder(r.Body).Decode(&req)
		if err := h.queue.Reset(r.Context(), req.UserID); err != nil {
			h.respondErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	var req QueueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	result, err := h.queue.Admit(r.Context(), req.PatientID, req.Date, clinic.QueueStatus(req.Status))
	if err != nil {
		h.respondErr(w, err)
		return
	}

	if result.Existing != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"existing": toQueueEntryDTO(*result.Existing),
		})
		return
	}
	writeJSON(w, http.StatusCreated, toQueueEntryDTO(*result.Entry))
}

func (h *Handler) UpdateQueueEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetQueueEntry(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req QueueRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Status != "" {
		existing.Status = clinic.QueueStatus(req.Status)
	}
	if req.Date != "" {
		existing.Date = req.Date
	}

	if err := h.Store.UpdateQueueEntry(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueEntryDTO(*existing))
}

func (h *Handler) DeleteQueueEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.DeleteQueueEntry(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// APP SETTINGS
// =============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Store.GetSettings(r.Context())
	if err != nil {
		if clinic.IsNotFound(err) {
			// No settings saved yet: empty object rather than 404.
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		h.respondErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(raw))
}

func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.SaveSettings(r.Context(), string(raw)); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// INTEGRITY CHECK
// =============================================================================

func (h *Handler) IntegrityCheck(w http.ResponseWriter, r *http.Request) {
	missing, err := h.Store.MissingTables(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	status := http.StatusOK
	if len(missing) > 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, IntegrityCheckResponse{OK: len(missing) == 0, MissingTables: missing})
}
