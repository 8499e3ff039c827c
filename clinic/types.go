/*
Package clinic provides the core domain model for the clinic backend.

PURPOSE:
  This package contains the domain records (patients, treatments,
  transactions, daybooks, queue entries, ...) and the pure balance engine
  that keeps a patient's running balance, treatment payment status and the
  daily cash ledger consistent. It has no persistence or HTTP knowledge.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: all monetary fields use decimal.Decimal, rounded to two places
  - Patient.Balance: signed; negative means the clinic owes the patient an
    unconsumed advance, positive means the patient owes the clinic
  - Treatment payment status: derived, never set freely by callers
  - QueueEntry: at most one row per patient per date

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for money, never float64 internally
  2. Derivation: paymentStatus and closingBalance are computed, not trusted
  3. Single mutation path: Patient.Balance changes only through the store's
     balance-adjustment primitive, driven by the billing workflows

SEE ALSO:
  - balance.go: pure balance arithmetic
  - store.go: persistence interfaces
  - ../billing: transactional workflows built on these types
*/
package clinic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// ParseMoney parses a stored decimal string, returning zero for anything
// unparseable. Storage writes are always produced by MoneyString, so a bad
// value only appears on hand-edited databases.
func ParseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MoneyString renders an amount for storage and display with two decimals.
func MoneyString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Round2 rounds to the two-decimal precision the system guarantees.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// =============================================================================
// DATES
// =============================================================================

// DateLayout is the calendar-date format used for daybook and queue keys.
const DateLayout = "2006-01-02"

// Today returns the current calendar date in local time.
func Today() string {
	return time.Now().Format(DateLayout)
}

// =============================================================================
// STATUS ENUMS
// =============================================================================

// PaymentStatus is derived from paidAmount vs finalAmount. See PaymentStatusFor.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "Unpaid"
	PaymentPartial PaymentStatus = "Partially Paid"
	PaymentPaid    PaymentStatus = "Paid"
)

type TransactionType string

const (
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

type TransactionStatus string

const (
	TxActive TransactionStatus = "active"
	TxVoid   TransactionStatus = "void"
)

type DaybookStatus string

const (
	DaybookOpen   DaybookStatus = "open"
	DaybookClosed DaybookStatus = "closed"
)

type QueueStatus string

const (
	QueueWaiting   QueueStatus = "Waiting"
	QueueCompleted QueueStatus = "Completed"
	QueueCancelled QueueStatus = "Cancelled"
)

// Active reports whether a queue entry still occupies the patient's slot for
// the day. Completed and Cancelled entries may be reactivated by the caller.
func (s QueueStatus) Active() bool {
	return s != QueueCompleted && s != QueueCancelled
}

// =============================================================================
// DOMAIN RECORDS
// =============================================================================

type Patient struct {
	ID             int64
	Name           string
	DOB            string
	Phone          string
	Email          string
	Address        string
	Gender         string
	MedicalHistory string
	IsDeleted      bool
	DeletedAt      string
	Balance        decimal.Decimal
	CreatedAt      string
}

// DayTiming is a single weekday's working hours.
type DayTiming struct {
	Start string `json:"start"`
	End   string `json:"end"`
	IsOff bool   `json:"isOff"`
}

// WeekTimings maps lowercase weekday names to working hours.
type WeekTimings map[string]DayTiming

var weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// NormalizeTimings fills every weekday with defaults so clients always see a
// complete week. Days absent from the input are marked off.
func NormalizeTimings(in WeekTimings) WeekTimings {
	out := make(WeekTimings, len(weekdays))
	for _, day := range weekdays {
		t := DayTiming{Start: "09:00", End: "17:00", IsOff: true}
		if have, ok := in[day]; ok {
			if have.Start != "" {
				t.Start = have.Start
			}
			if have.End != "" {
				t.End = have.End
			}
			t.IsOff = have.IsOff
		}
		out[day] = t
	}
	return out
}

type Doctor struct {
	ID             int64
	Name           string
	Specialty      string
	Gender         string
	ContactNumbers []string
	Timings        WeekTimings
	Status         string
}

type Procedure struct {
	ID          int64
	Name        string
	Description string
	Cost        decimal.Decimal
	Status      string
}

type Appointment struct {
	ID                 int64
	PatientID          int64
	PatientName        string
	Date               string
	Time               string
	Reason             string
	Status             string
	CancellationReason string
	CancellationDate   string
	CreatedAt          string
	UpdatedAt          string
}

// Treatment belongs to exactly one patient and one doctor. PaidAmount and
// PaymentStatus are mutated only by the billing workflows via the balance
// engine; Procedures carries the client's line-item JSON verbatim.
type Treatment struct {
	ID              int64
	PatientID       int64
	DoctorID        int64
	Date            string
	Notes           string
	Procedures      string
	TotalCost       decimal.Decimal
	TotalDiscount   decimal.Decimal
	FinalAmount     decimal.Decimal
	OverallDiscount decimal.Decimal
	UserID          int64
	PaidAmount      decimal.Decimal
	PaymentStatus   PaymentStatus
}

// Transaction is a financial event, append-only in spirit: the audit trail
// for every real money movement. A zero PatientID/TreatmentID/UserID means
// the link is absent.
type Transaction struct {
	ID          int64
	PatientID   int64
	TreatmentID int64
	Date        string
	Description string
	Type        TransactionType
	Amount      decimal.Decimal
	UserID      int64
	DayBookDate string
	Status      TransactionStatus
	CreatedAt   string
	UpdatedAt   string
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Permissions  []string
}

// Daybook is the cash ledger for one calendar date. ClosingBalance is always
// recomputed from live transaction sums, never trusted as stored.
type Daybook struct {
	ID             int64
	Date           string
	Status         DaybookStatus
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	SettledAmount  decimal.Decimal
	Notes          string
}

type ActivityLog struct {
	ID          int64
	Date        string
	UserID      int64
	Type        string
	Entity      string
	Description string
}

type QueueEntry struct {
	ID          int64
	PatientID   int64
	QueueNumber int
	Status      QueueStatus
	Date        string
}
