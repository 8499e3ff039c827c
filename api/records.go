/*
records.go - CRUD handlers for the clinic's record entities

PURPOSE:
  Plain record management for patients, doctors, procedures, appointments,
  transactions, users and activity logs. These handlers do straight store
  calls; anything touching money reconciliation goes through the billing
  workflows in handlers.go instead.

NOTES:
  - Patient DELETE is a soft delete: the row is flagged, never removed, so
    treatments and transactions keep a valid patient reference.
  - Appointment and transaction PUT are partial merges: absent fields keep
    their stored values.
  - User passwords are bcrypt-hashed on write and never serialized back.
*/
package api

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dentalops/clinic-backend/billing"
	"github.com/dentalops/clinic-backend/clinic"
)

// =============================================================================
// PATIENTS
// =============================================================================

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.Store.ListPatients(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientDTOs(patients))
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	patient, err := h.Store.GetPatient(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientDTO(*patient))
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req PatientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Name == "" {
		h.respondErr(w, clinic.MissingField("name"))
		return
	}

	patient := clinic.Patient{
		Name:           req.Name,
		DOB:            req.DOB,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		Gender:         req.Gender,
		MedicalHistory: req.MedicalHistory,
	}
	if req.Balance != nil {
		patient.Balance = toDecimal(*req.Balance)
	}

	id, err := h.Store.CreatePatient(r.Context(), patient)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.Store.GetPatient(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientDTO(*created))
}

// UpdatePatient edits demographics. The balance is untouched here; it only
// moves through the billing workflows.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetPatient(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req PatientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	existing.DOB = req.DOB
	existing.Phone = req.Phone
	existing.Email = req.Email
	existing.Address = req.Address
	existing.Gender = req.Gender
	existing.MedicalHistory = req.MedicalHistory

	if err := h.Store.UpdatePatient(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientDTO(*existing))
}

// DeletePatient soft-deletes: the row stays so financial history keeps a
// valid reference.
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetPatient(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing.IsDeleted = true
	existing.DeletedAt = time.Now().UTC().Format(time.RFC3339)

	if err := h.Store.UpdatePatient(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// DOCTORS
// =============================================================================

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.Store.ListDoctors(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]DoctorDTO, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, toDoctorDTO(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	doctor, err := h.Store.GetDoctor(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorDTO(*doctor))
}

func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var req DoctorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Name == "" {
		h.respondErr(w, clinic.MissingField("name"))
		return
	}

	doctor := clinic.Doctor{
		Name:           req.Name,
		Specialty:      req.Specialty,
		Gender:         req.Gender,
		ContactNumbers: req.ContactNumbers,
		Timings:        req.Timings,
		Status:         req.Status,
	}
	id, err := h.Store.CreateDoctor(r.Context(), doctor)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.Store.GetDoctor(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDoctorDTO(*created))
}

func (h *Handler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetDoctor(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req DoctorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	existing.Specialty = req.Specialty
	existing.Gender = req.Gender
	existing.ContactNumbers = req.ContactNumbers
	existing.Timings = req.Timings
	if req.Status != "" {
		existing.Status = req.Status
	}

	if err := h.Store.UpdateDoctor(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorDTO(*existing))
}

func (h *Handler) DeleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.DeleteDoctor(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// PROCEDURES
// =============================================================================

func (h *Handler) ListProcedures(w http.ResponseWriter, r *http.Request) {
	procedures, err := h.Store.ListProcedures(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]ProcedureDTO, 0, len(procedures))
	for _, p := range procedures {
		out = append(out, toProcedureDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetProcedure(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	procedure, err := h.Store.GetProcedure(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcedureDTO(*procedure))
}

func (h *Handler) CreateProcedure(w http.ResponseWriter, r *http.Request) {
	var req ProcedureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Name == "" {
		h.respondErr(w, clinic.MissingField("name"))
		return
	}

	id, err := h.Store.CreateProcedure(r.Context(), clinic.Procedure{
		Name:        req.Name,
		Description: req.Description,
		Cost:        toDecimal(req.Cost),
		Status:      req.Status,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.Store.GetProcedure(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProcedureDTO(*created))
}

func (h *Handler) UpdateProcedure(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetProcedure(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req ProcedureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	existing.Description = req.Description
	existing.Cost = toDecimal(req.Cost)
	if req.Status != "" {
		existing.Status = req.Status
	}

	if err := h.Store.UpdateProcedure(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProcedureDTO(*existing))
}

func (h *Handler) DeleteProcedure(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.DeleteProcedure(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	appointments, err := h.Store.ListAppointments(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]AppointmentDTO, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, toAppointmentDTO(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	appointment, err := h.Store.GetAppointment(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(*appointment))
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Date == nil || *req.Date == "" {
		h.respondErr(w, clinic.MissingField("date"))
		return
	}

	appointment := clinic.Appointment{Date: *req.Date}
	if req.PatientID != nil {
		appointment.PatientID = *req.PatientID
	}
	if req.PatientName != nil {
		appointment.PatientName = *req.PatientName
	}
	if req.Time != nil {
		appointment.Time = *req.Time
	}
	if req.Reason != nil {
		appointment.Reason = *req.Reason
	}
	if req.Status != nil {
		appointment.Status = *req.Status
	}

	id, err := h.Store.CreateAppointment(r.Context(), appointment)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.Store.GetAppointment(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentDTO(*created))
}

// UpdateAppointment merges only the fields present in the payload, so a
// cancellation can send just status + cancellationReason.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetAppointment(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req AppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.PatientID != nil {
		existing.PatientID = *req.PatientID
	}
	if req.PatientName != nil {
		existing.PatientName = *req.PatientName
	}
	if req.Date != nil {
		existing.Date = *req.Date
	}
	if req.Time != nil {
		existing.Time = *req.Time
	}
	if req.Reason != nil {
		existing.Reason = *req.Reason
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}
	if req.CancellationReason != nil {
		existing.CancellationReason = *req.CancellationReason
	}
	if req.CancellationDate != nil {
		existing.CancellationDate = *req.CancellationDate
	}

	if err := h.Store.UpdateAppointment(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(*existing))
}

func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.DeleteAppointment(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.Store.ListTransactions(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(transactions))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	transaction, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*transaction))
}

// CreateTransaction records a manual entry. Patient-linked income reduces
// the patient balance in the same store transaction.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Type == nil || (*req.Type != string(clinic.TxIncome) && *req.Type != string(clinic.TxExpense)) {
		h.respondErr(w, &clinic.ValidationError{Field: "type", Msg: "must be income or expense"})
		return
	}
	if req.Amount == nil {
		h.respondErr(w, clinic.MissingField("amount"))
		return
	}

	tx := clinic.Transaction{
		Type:   clinic.TransactionType(*req.Type),
		Amount: toDecimal(*req.Amount),
	}
	if req.PatientID != nil {
		tx.PatientID = *req.PatientID
	}
	if req.TreatmentID != nil {
		tx.TreatmentID = *req.TreatmentID
	}
	if req.Date != nil {
		tx.Date = *req.Date
	}
	if req.Description != nil {
		tx.Description = *req.Description
	}
	if req.UserID != nil {
		tx.UserID = *req.UserID
	}
	if req.DayBookDate != nil {
		tx.DayBookDate = *req.DayBookDate
	}

	id, err := billing.RecordTransaction(r.Context(), h.Store, tx)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	created, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(*created))
}

// UpdateTransaction merges only the fields present in the payload, so a
// void can send just {"status": "void"}. It does not re-run balance
// adjustments.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.PatientID != nil {
		existing.PatientID = *req.PatientID
	}
	if req.TreatmentID != nil {
		existing.TreatmentID = *req.TreatmentID
	}
	if req.Date != nil {
		existing.Date = *req.Date
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Type != nil {
		existing.Type = clinic.TransactionType(*req.Type)
	}
	if req.Amount != nil {
		existing.Amount = toDecimal(*req.Amount)
	}
	if req.UserID != nil {
		existing.UserID = *req.UserID
	}
	if req.DayBookDate != nil {
		existing.DayBookDate = *req.DayBookDate
	}
	if req.Status != nil {
		existing.Status = clinic.TransactionStatus(*req.Status)
	}

	if err := h.Store.UpdateTransaction(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*existing))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.DeleteTransaction(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Username == "" {
		h.respondErr(w, clinic.MissingField("username"))
		return
	}
	if req.Password == "" {
		h.respondErr(w, clinic.MissingField("password"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	id, err := h.Store.CreateUser(r.Context(), clinic.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Permissions:  req.Permissions,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserDTO{ID: id, Username: req.Username, Permissions: req.Permissions})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	existing, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}
	if req.Username != "" {
		existing.Username = req.Username
	}
	if req.Password != "" {
		hash, herr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if herr != nil {
			h.respondErr(w, herr)
			return
		}
		existing.PasswordHash = string(hash)
	}
	if req.Permissions != nil {
		existing.Permissions = req.Permissions
	}

	if err := h.Store.UpdateUser(r.Context(), *existing); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*existing))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.Store.DeleteUser(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// =============================================================================
// ACTIVITY LOGS
// =============================================================================

func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Store.ListActivity(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]ActivityLogDTO, 0, len(logs))
	for _, e := range logs {
		out = append(out, toActivityLogDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AppendActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityLogRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	id, err := h.Store.AppendActivity(r.Context(), clinic.ActivityLog{
		Date:        req.Date,
		UserID:      req.UserID,
		Type:        req.Type,
		Entity:      req.Entity,
		Description: req.Description,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}
