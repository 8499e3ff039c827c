/*
store.go - Persistence interfaces for the clinic domain

PURPOSE:
  Defines the boundary between domain logic and the database as a set of
  per-entity capability interfaces. Handlers and workflows depend on the
  narrowest capability they need; the combined Store is what a backend
  implementation provides.

KEY INTERFACES:
  PatientStore ... SettingsStore: per-entity persistence capabilities
  Store:   union of all capabilities
  TxStore: Store plus WithTx for atomic multi-step workflows

BALANCE MUTATION CONTRACT:
  AdjustPatientBalance is the ONLY way a patient balance changes. No caller
  writes Patient.Balance directly; UpdatePatient persists the stored balance
  untouched unless the caller read it through the same transaction. The
  billing workflows are the only callers of AdjustPatientBalance.

TRANSACTIONS:
  WithTx executes fn inside a database transaction. If fn returns an error
  the transaction is rolled back; otherwise it is committed. Every
  multi-step financial workflow (allocation, intake, queue reset) runs
  through WithTx so no partial financial state is ever visible.

IMPLEMENTATIONS:
  - store/sqlite: production implementation, also used by tests via :memory:
*/
package clinic

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTITY CAPABILITIES
// =============================================================================

type PatientStore interface {
	CreatePatient(ctx context.Context, p Patient) (int64, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, p Patient) error
	DeletePatient(ctx context.Context, id int64) error

	// AdjustPatientBalance applies a signed delta to the stored balance.
	// The single mutation path for Patient.Balance.
	AdjustPatientBalance(ctx context.Context, id int64, delta decimal.Decimal) error
}

type DoctorStore interface {
	CreateDoctor(ctx context.Context, d Doctor) (int64, error)
	GetDoctor(ctx context.Context, id int64) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	UpdateDoctor(ctx context.Context, d Doctor) error
	DeleteDoctor(ctx context.Context, id int64) error
}

type ProcedureStore interface {
	CreateProcedure(ctx context.Context, p Procedure) (int64, error)
	GetProcedure(ctx context.Context, id int64) (*Procedure, error)
	ListProcedures(ctx context.Context) ([]Procedure, error)
	UpdateProcedure(ctx context.Context, p Procedure) error
	DeleteProcedure(ctx context.Context, id int64) error
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a Appointment) (int64, error)
	GetAppointment(ctx context.Context, id int64) (*Appointment, error)
	ListAppointments(ctx context.Context) ([]Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
}

type TreatmentStore interface {
	CreateTreatment(ctx context.Context, t Treatment) (int64, error)
	GetTreatment(ctx context.Context, id int64) (*Treatment, error)
	ListTreatments(ctx context.Context) ([]Treatment, error)
	ListTreatmentsByPatient(ctx context.Context, patientID int64) ([]Treatment, error)
	UpdateTreatment(ctx context.Context, t Treatment) error
	DeleteTreatment(ctx context.Context, id int64) error

	// UpdateTreatmentPayment persists the balance engine's settlement for one
	// treatment: the new cumulative paid amount and derived status.
	UpdateTreatmentPayment(ctx context.Context, id int64, paid decimal.Decimal, status PaymentStatus) error
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, t Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	ListTransactionsByPatient(ctx context.Context, patientID int64) ([]Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	// SumTransactions totals active transactions of one type attributed to a
	// ledger day. Summation happens over decimal amounts, not floats.
	SumTransactions(ctx context.Context, dayBookDate string, typ TransactionType) (decimal.Decimal, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u User) (int64, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id int64) error
}

type DaybookStore interface {
	CreateDaybook(ctx context.Context, d Daybook) (int64, error)
	GetDaybookByDate(ctx context.Context, date string) (*Daybook, error)
	ListDaybooks(ctx context.Context) ([]Daybook, error)
	UpdateDaybook(ctx context.Context, d Daybook) error
}

type ActivityLogStore interface {
	AppendActivity(ctx context.Context, e ActivityLog) (int64, error)
	ListActivity(ctx context.Context) ([]ActivityLog, error)
}

type QueueStore interface {
	CreateQueueEntry(ctx context.Context, e QueueEntry) (int64, error)
	GetQueueEntry(ctx context.Context, id int64) (*QueueEntry, error)
	ListQueue(ctx context.Context, date string) ([]QueueEntry, error)

	// FindQueueEntry returns the patient's entry for the date, or nil when
	// none exists. The unique (patient, date) index makes it at most one.
	FindQueueEntry(ctx context.Context, patientID int64, date string) (*QueueEntry, error)

	// MaxQueueNumber returns the highest queue number issued for the date,
	// zero when the date has no entries.
	MaxQueueNumber(ctx context.Context, date string) (int, error)

	UpdateQueueEntry(ctx context.Context, e QueueEntry) error
	DeleteQueueEntry(ctx context.Context, id int64) error

	// CompleteQueueEntry transitions the patient's non-Completed entry for
	// the date to Completed and reports how many rows changed. Zero rows
	// means the patient was never queued (or already completed) that day.
	CompleteQueueEntry(ctx context.Context, patientID int64, date string) (int64, error)

	// ResetQueue removes every queue entry, all dates included.
	ResetQueue(ctx context.Context) error
}

type SettingsStore interface {
	// GetSettings returns the raw application settings JSON.
	GetSettings(ctx context.Context) (string, error)
	SaveSettings(ctx context.Context, raw string) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence surface of the backend.
type Store interface {
	PatientStore
	DoctorStore
	ProcedureStore
	AppointmentStore
	TreatmentStore
	TransactionStore
	UserStore
	DaybookStore
	ActivityLogStore
	QueueStore
	SettingsStore
}

// TxStore adds atomic multi-step execution to a Store.
type TxStore interface {
	Store

	// WithTx executes fn within a single database transaction.
	// fn receives a Store whose operations all share that transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}
