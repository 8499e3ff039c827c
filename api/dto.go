/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

MONEY:
  Internally money is decimal; on the wire it is a JSON number. Requests
  convert float64 -> decimal immediately and responses convert back at the
  last moment, so no arithmetic ever runs on floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and workflows, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go, records.go: Use these types
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/dentalops/clinic-backend/clinic"
)

// =============================================================================
// MONEY CONVERSION
// =============================================================================

func money(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toDecimal(f float64) decimal.Decimal {
	return clinic.Round2(decimal.NewFromFloat(f))
}

// =============================================================================
// PATIENTS
// =============================================================================

// PatientDTO represents a patient in API responses.
type PatientDTO struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	DOB            string  `json:"dob,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Email          string  `json:"email,omitempty"`
	Address        string  `json:"address,omitempty"`
	Gender         string  `json:"gender,omitempty"`
	MedicalHistory string  `json:"medicalHistory,omitempty"`
	IsDeleted      bool    `json:"isDeleted"`
	DeletedAt      string  `json:"deletedAt,omitempty"`
	Balance        float64 `json:"balance"`
	CreatedAt      string  `json:"createdAt,omitempty"`
}

// PatientRequest is the create/update payload.
type PatientRequest struct {
	Name           string   `json:"name"`
	DOB            string   `json:"dob"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	Address        string   `json:"address"`
	Gender         string   `json:"gender"`
	MedicalHistory string   `json:"medicalHistory"`
	Balance        *float64 `json:"balance"`
}

func toPatientDTO(p clinic.Patient) PatientDTO {
	return PatientDTO{
		ID:             p.ID,
		Name:           p.Name,
		DOB:            p.DOB,
		Phone:          p.Phone,
		Email:          p.Email,
		Address:        p.Address,
		Gender:         p.Gender,
		MedicalHistory: p.MedicalHistory,
		IsDeleted:      p.IsDeleted,
		DeletedAt:      p.DeletedAt,
		Balance:        money(p.Balance),
		CreatedAt:      p.CreatedAt,
	}
}

func toPatientDTOs(patients []clinic.Patient) []PatientDTO {
	out := make([]PatientDTO, 0, len(patients))
	for _, p := range patients {
		out = append(out, toPatientDTO(p))
	}
	return out
}

// =============================================================================
// DOCTORS
// =============================================================================

// DoctorDTO represents a doctor in API responses.
type DoctorDTO struct {
	ID             int64              `json:"id"`
	Name           string             `json:"name"`
	Specialty      string             `json:"specialty,omitempty"`
	Gender         string             `json:"gender,omitempty"`
	ContactNumbers []string           `json:"contactNumbers"`
	Timings        clinic.WeekTimings `json:"timings"`
	Status         string             `json:"status"`
}

// DoctorRequest is the create/update payload.
type DoctorRequest struct {
	Name           string             `json:"name"`
	Specialty      string             `json:"specialty"`
	Gender         string             `json:"gender"`
	ContactNumbers []string           `json:"contactNumbers"`
	Timings        clinic.WeekTimings `json:"timings"`
	Status         string             `json:"status"`
}

func toDoctorDTO(d clinic.Doctor) DoctorDTO {
	return DoctorDTO{
		ID:             d.ID,
		Name:           d.Name,
		Specialty:      d.Specialty,
		Gender:         d.Gender,
		ContactNumbers: d.ContactNumbers,
		Timings:        clinic.NormalizeTimings(d.Timings),
		Status:         d.Status,
	}
}

// =============================================================================
// PROCEDURES
// =============================================================================

type ProcedureDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Cost        float64 `json:"cost"`
	Status      string  `json:"status"`
}

type ProcedureRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
	Status      string  `json:"status"`
}

func toProcedureDTO(p clinic.Procedure) ProcedureDTO {
	return ProcedureDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Cost:        money(p.Cost),
		Status:      p.Status,
	}
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

type AppointmentDTO struct {
	ID                 int64  `json:"id"`
	PatientID          int64  `json:"patientId,omitempty"`
	PatientName        string `json:"patientName,omitempty"`
	Date               string `json:"date"`
	Time               string `json:"time,omitempty"`
	Reason             string `json:"reason,omitempty"`
	Status             string `json:"status"`
	CancellationReason string `json:"cancellationReason,omitempty"`
	CancellationDate   string `json:"cancellationDate,omitempty"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

// AppointmentRequest supports partial updates: nil pointer fields keep the
// stored value on PUT.
type AppointmentRequest struct {
	PatientID          *int64  `json:"patientId"`
	PatientName        *string `json:"patientName"`
	Date               *string `json:"date"`
	Time               *string `json:"time"`
	Reason             *string `json:"reason"`
	Status             *string `json:"status"`
	CancellationReason *string `json:"cancellationReason"`
	CancellationDate   *string `json:"cancellationDate"`
}

func toAppointmentDTO(a clinic.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		PatientName:        a.PatientName,
		Date:               a.Date,
		Time:               a.Time,
		Reason:             a.Reason,
		Status:             a.Status,
		CancellationReason: a.CancellationReason,
		CancellationDate:   a.CancellationDate,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// =============================================================================
// TREATMENTS
// =============================================================================

type TreatmentDTO struct {
	ID              int64           `json:"id"`
	PatientID       int64           `json:"patientId,omitempty"`
	DoctorID        int64           `json:"doctorId,omitempty"`
	Date            string          `json:"date"`
	Notes           string          `json:"notes,omitempty"`
	Procedures      json.RawMessage `json:"procedures,omitempty"`
	TotalCost       float64         `json:"totalCost"`
	TotalDiscount   float64         `json:"totalDiscount"`
	FinalAmount     float64         `json:"finalAmount"`
	OverallDiscount float64         `json:"overallDiscount"`
	UserID          int64           `json:"userId,omitempty"`
	PaidAmount      float64         `json:"paidAmount"`
	PaymentStatus   string          `json:"paymentStatus"`
}

// TreatmentRequest is the intake payload. patientName and dayBookDate belong
// to the generated payment transaction, not the treatment row.
type TreatmentRequest struct {
	PatientID       int64           `json:"patientId"`
	DoctorID        int64           `json:"doctorId"`
	Date            string          `json:"date"`
	Notes           string          `json:"notes"`
	Procedures      json.RawMessage `json:"procedures"`
	TotalCost       float64         `json:"totalCost"`
	TotalDiscount   float64         `json:"totalDiscount"`
	FinalAmount     float64         `json:"finalAmount"`
	OverallDiscount float64         `json:"overallDiscount"`
	UserID          int64           `json:"userId"`
	PaidAmount      float64         `json:"paidAmount"`
	PatientName     string          `json:"patientName"`
	DayBookDate     string          `json:"dayBookDate"`
}

func toTreatmentDTO(t clinic.Treatment) TreatmentDTO {
	dto := TreatmentDTO{
		ID:              t.ID,
		PatientID:       t.PatientID,
		DoctorID:        t.DoctorID,
		Date:            t.Date,
		Notes:           t.Notes,
		TotalCost:       money(t.TotalCost),
		TotalDiscount:   money(t.TotalDiscount),
		FinalAmount:     money(t.FinalAmount),
		OverallDiscount: money(t.OverallDiscount),
		UserID:          t.UserID,
		PaidAmount:      money(t.PaidAmount),
		PaymentStatus:   string(t.PaymentStatus),
	}
	if t.Procedures != "" {
		dto.Procedures = json.RawMessage(t.Procedures)
	}
	return dto
}

func toTreatmentDTOs(treatments []clinic.Treatment) []TreatmentDTO {
	out := make([]TreatmentDTO, 0, len(treatments))
	for _, t := range treatments {
		out = append(out, toTreatmentDTO(t))
	}
	return out
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	ID          int64   `json:"id"`
	PatientID   int64   `json:"patientId,omitempty"`
	TreatmentID int64   `json:"treatmentId,omitempty"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	UserID      int64   `json:"userId,omitempty"`
	DayBookDate string  `json:"dayBookDate,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// TransactionRequest supports partial updates on PUT.
type TransactionRequest struct {
	PatientID   *int64   `json:"patientId"`
	TreatmentID *int64   `json:"treatmentId"`
	Date        *string  `json:"date"`
	Description *string  `json:"description"`
	Type        *string  `json:"type"`
	Amount      *float64 `json:"amount"`
	UserID      *int64   `json:"userId"`
	DayBookDate *string  `json:"dayBookDate"`
	Status      *string  `json:"status"`
}

func toTransactionDTO(t clinic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          t.ID,
		PatientID:   t.PatientID,
		TreatmentID: t.TreatmentID,
		Date:        t.Date,
		Description: t.Description,
		Type:        string(t.Type),
		Amount:      money(t.Amount),
		UserID:      t.UserID,
		DayBookDate: t.DayBookDate,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTransactionDTOs(transactions []clinic.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

// =============================================================================
// PAYMENT ALLOCATION
// =============================================================================

type AllocationItem struct {
	TreatmentID int64   `json:"treatmentId"`
	Amount      float64 `json:"amount"`
}

type AllocatePaymentsRequest struct {
	PatientID   int64            `json:"patientId"`
	Amount      float64          `json:"amount"`
	Allocations []AllocationItem `json:"allocations"`
	Description string           `json:"description"`
	DayBookDate string           `json:"dayBookDate"`
	UserID      int64            `json:"userId"`
}

// AllocatePaymentsResponse returns the patient's refreshed financial state.
type AllocatePaymentsResponse struct {
	Treatments   []TreatmentDTO   `json:"treatments"`
	Transactions []TransactionDTO `json:"transactions"`
	Patient      PatientDTO       `json:"patient"`
}

// =============================================================================
// USERS / AUTH
// =============================================================================

// UserDTO never carries the password hash.
type UserDTO struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
}

type UserRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Permissions []string `json:"permissions"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool    `json:"success"`
	User    UserDTO `json:"user"`
}

func toUserDTO(u clinic.User) UserDTO {
	return UserDTO{ID: u.ID, Username: u.Username, Permissions: u.Permissions}
}

// =============================================================================
// DAYBOOKS
// =============================================================================

type DaybookDTO struct {
	ID             int64   `json:"id"`
	Date           string  `json:"date"`
	Status         string  `json:"status"`
	OpeningBalance float64 `json:"openingBalance"`
	ClosingBalance float64 `json:"closingBalance"`
	SettledAmount  float64 `json:"settledAmount"`
	Notes          string  `json:"notes,omitempty"`
}

// DaybookRequest supports partial updates on PUT; the closing balance is
// always recomputed server-side and never accepted from the client.
type DaybookRequest struct {
	Date           string   `json:"date"`
	Status         *string  `json:"status"`
	OpeningBalance *float64 `json:"openingBalance"`
	SettledAmount  *float64 `json:"settledAmount"`
	Notes          *string  `json:"notes"`
}

func toDaybookDTO(d clinic.Daybook) DaybookDTO {
	return DaybookDTO{
		ID:             d.ID,
		Date:           d.Date,
		Status:         string(d.Status),
		OpeningBalance: money(d.OpeningBalance),
		ClosingBalance: money(d.ClosingBalance),
		SettledAmount:  money(d.SettledAmount),
		Notes:          d.Notes,
	}
}

// =============================================================================
// QUEUE
// =============================================================================

type QueueEntryDTO struct {
	ID          int64  `json:"id"`
	PatientID   int64  `json:"patientId"`
	QueueNumber int    `json:"queueNumber"`
	Status      string `json:"status"`
	Date        string `json:"date"`
}

type QueueRequest struct {
	PatientID int64  `json:"patientId"`
	Date      string `json:"date"`
	Status    string `json:"status"`
}

func toQueueEntryDTO(e clinic.QueueEntry) QueueEntryDTO {
	return QueueEntryDTO{
		ID:          e.ID,
		PatientID:   e.PatientID,
		QueueNumber: e.QueueNumber,
		Status:      string(e.Status),
		Date:        e.Date,
	}
}

// =============================================================================
// ACTIVITY LOGS
// =============================================================================

type ActivityLogDTO struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	UserID      int64  `json:"userId,omitempty"`
	Type        string `json:"type,omitempty"`
	Entity      string `json:"entity,omitempty"`
	Description string `json:"description,omitempty"`
}

type ActivityLogRequest struct {
	Date        string `json:"date"`
	UserID      int64  `json:"userId"`
	Type        string `json:"type"`
	Entity      string `json:"entity"`
	Description string `json:"description"`
}

func toActivityLogDTO(e clinic.ActivityLog) ActivityLogDTO {
	return ActivityLogDTO{
		ID:          e.ID,
		Date:        e.Date,
		UserID:      e.UserID,
		Type:        e.Type,
		Entity:      e.Entity,
		Description: e.Description,
	}
}

// =============================================================================
// INTEGRITY CHECK
// =============================================================================

type IntegrityCheckResponse struct {
	OK            bool     `json:"ok"`
	MissingTables []string `json:"missingTables,omitempty"`
}
