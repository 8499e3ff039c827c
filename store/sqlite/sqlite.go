/*
Package sqlite provides the SQLite-backed implementation of the clinic
storage interfaces.

PURPOSE:
  Implements clinic.Store and clinic.TxStore using SQLite. The same patterns
  apply to MySQL/PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  patients:      demographic fields + the signed running balance
  treatments:    per-patient bills with cumulative paid amount and status
  transactions:  the financial audit trail, attributed to ledger days
  daybooks:      one row per calendar date of the cash ledger
  queue:         walk-in queue, unique per (patient, date)
  plus doctors, procedures, appointments, users, activity_logs, app_settings

MONEY:
  Monetary columns are TEXT holding two-decimal strings written by
  clinic.MoneyString. Sums are computed over decimals in Go, never over
  SQLite's float affinity.

TRANSACTIONS:
  WithTx wraps a function in BEGIN/COMMIT/ROLLBACK and hands it a
  clinic.Store whose operations share the transaction. All internals take a
  dbtx (either *sql.DB or *sql.Tx) and never touch the store mutex, so
  transactional calls cannot deadlock against the lock WithTx holds.

CONCURRENCY:
  A sync.RWMutex serializes writers in-process. SQLite is opened in WAL mode
  so readers don't block. There is no optimistic row versioning: two
  concurrent allocations against one treatment are serialized by the mutex
  and the database transaction, nothing more.

USAGE:
  store, err := sqlite.New("./data/clinic.db")   // ":memory:" for tests
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - clinic/store.go: Interface definitions
  - billing: transactional workflows built on WithTx
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/dentalops/clinic-backend/clinic"
)

// Store implements clinic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RequiredTables lists every table the schema creates, for integrity checks.
var RequiredTables = []string{
	"patients", "doctors", "procedures", "appointments", "treatments",
	"transactions", "users", "daybooks", "activity_logs", "queue",
	"app_settings",
}

// MissingTables reports which required tables are absent.
func (s *Store) MissingTables(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, table := range RequiredTables {
		if !existing[table] {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		dob TEXT,
		phone TEXT,
		email TEXT,
		address TEXT,
		gender TEXT,
		medical_history TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		deleted_at TEXT,
		balance TEXT NOT NULL DEFAULT '0.00',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS doctors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		specialty TEXT,
		gender TEXT,
		contact_numbers TEXT,
		timings TEXT,
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS procedures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		cost TEXT NOT NULL DEFAULT '0.00',
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER,
		patient_name TEXT,
		date TEXT,
		time TEXT,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'Scheduled',
		cancellation_reason TEXT,
		cancellation_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS treatments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER,
		doctor_id INTEGER,
		date TEXT NOT NULL,
		notes TEXT,
		procedures TEXT,
		total_cost TEXT NOT NULL DEFAULT '0.00',
		total_discount TEXT NOT NULL DEFAULT '0.00',
		final_amount TEXT NOT NULL DEFAULT '0.00',
		overall_discount TEXT NOT NULL DEFAULT '0.00',
		user_id INTEGER,
		paid_amount TEXT NOT NULL DEFAULT '0.00',
		payment_status TEXT NOT NULL DEFAULT 'Unpaid'
	);

	CREATE INDEX IF NOT EXISTS idx_treatments_patient
		ON treatments(patient_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER,
		treatment_id INTEGER,
		date TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0.00',
		user_id INTEGER,
		day_book_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_patient
		ON transactions(patient_id);

	-- Hot path for daybook closing
	CREATE INDEX IF NOT EXISTS idx_transactions_daybook
		ON transactions(day_book_date, type, status);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		permissions TEXT
	);

	CREATE TABLE IF NOT EXISTS daybooks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'open',
		opening_balance TEXT NOT NULL DEFAULT '0.00',
		closing_balance TEXT,
		settled_amount TEXT NOT NULL DEFAULT '0.00',
		notes TEXT
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		user_id INTEGER,
		type TEXT,
		entity TEXT,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL,
		queue_number INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'Waiting',
		date TEXT NOT NULL
	);

	-- At most one queue row per patient per date
	CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_patient_date
		ON queue(patient_id, date);
	CREATE INDEX IF NOT EXISTS idx_queue_date
		ON queue(date);

	CREATE TABLE IF NOT EXISTS app_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		settings TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same internals serve
// plain calls and transactional calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL WRAPPER (clinic.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(clinic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every store call through the open transaction. It never
// touches the store mutex - WithTx already holds it.
type txStore struct {
	tx *sql.Tx
}

// =============================================================================
// PATIENTS
// =============================================================================

func (s *Store) CreatePatient(ctx context.Context, p clinic.Patient) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPatient(ctx, s.db, p)
}

func (t *txStore) CreatePatient(ctx context.Context, p clinic.Patient) (int64, error) {
	return createPatient(ctx, t.tx, p)
}

func createPatient(ctx context.Context, db dbtx, p clinic.Patient) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO patients
		(name, dob, phone, email, address, gender, medical_history, is_deleted, deleted_at, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.DOB, p.Phone, p.Email, p.Address, p.Gender, p.MedicalHistory,
		boolToInt(p.IsDeleted), nullString(p.DeletedAt),
		clinic.MoneyString(p.Balance), now())
	if err != nil {
		return 0, fmt.Errorf("failed to create patient: %w", err)
	}
	return res.LastInsertId()
}

const patientCols = `id, name, dob, phone, email, address, gender, medical_history,
	is_deleted, deleted_at, balance, created_at`

func (s *Store) GetPatient(ctx context.Context, id int64) (*clinic.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPatient(ctx, s.db, id)
}

func (t *txStore) GetPatient(ctx context.Context, id int64) (*clinic.Patient, error) {
	return getPatient(ctx, t.tx, id)
}

func getPatient(ctx context.Context, db dbtx, id int64) (*clinic.Patient, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+patientCols+" FROM patients WHERE id = ?", id)
	p, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("patient %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPatients(ctx context.Context) ([]clinic.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPatients(ctx, s.db)
}

func (t *txStore) ListPatients(ctx context.Context) ([]clinic.Patient, error) {
	return listPatients(ctx, t.tx)
}

func listPatients(ctx context.Context, db dbtx) ([]clinic.Patient, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+patientCols+" FROM patients ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []clinic.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*clinic.Patient, error) {
	var (
		p                          clinic.Patient
		dob, phone, email, addr    sql.NullString
		gender, history, deletedAt sql.NullString
		isDeleted                  int
		balance                    string
	)
	err := row.Scan(&p.ID, &p.Name, &dob, &phone, &email, &addr, &gender,
		&history, &isDeleted, &deletedAt, &balance, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.DOB = dob.String
	p.Phone = phone.String
	p.Email = email.String
	p.Address = addr.String
	p.Gender = gender.String
	p.MedicalHistory = history.String
	p.IsDeleted = isDeleted != 0
	p.DeletedAt = deletedAt.String
	p.Balance = clinic.ParseMoney(balance)
	return &p, nil
}

func (s *Store) UpdatePatient(ctx context.Context, p clinic.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePatient(ctx, s.db, p)
}

func (t *txStore) UpdatePatient(ctx context.Context, p clinic.Patient) error {
	return updatePatient(ctx, t.tx, p)
}

func updatePatient(ctx context.Context, db dbtx, p clinic.Patient) error {
	res, err := db.ExecContext(ctx, `
		UPDATE patients SET name=?, dob=?, phone=?, email=?, address=?, gender=?,
			medical_history=?, is_deleted=?, deleted_at=?, balance=?
		WHERE id=?`,
		p.Name, p.DOB, p.Phone, p.Email, p.Address, p.Gender, p.MedicalHistory,
		boolToInt(p.IsDeleted), nullString(p.DeletedAt),
		clinic.MoneyString(p.Balance), p.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "patient", p.ID)
}

func (s *Store) DeletePatient(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "patients", id)
}

func (t *txStore) DeletePatient(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "patients", id)
}

func (s *Store) AdjustPatientBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return adjustPatientBalance(ctx, s.db, id, delta)
}

func (t *txStore) AdjustPatientBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	return adjustPatientBalance(ctx, t.tx, id, delta)
}

// adjustPatientBalance reads, adds and writes back as decimal text. The
// read-modify-write is safe because callers run it under WithTx or the
// store's write lock.
func adjustPatientBalance(ctx context.Context, db dbtx, id int64, delta decimal.Decimal) error {
	var balance string
	err := db.QueryRowContext(ctx,
		"SELECT balance FROM patients WHERE id = ?", id).Scan(&balance)
	if err == sql.ErrNoRows {
		return fmt.Errorf("patient %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return err
	}

	next := clinic.Round2(clinic.ParseMoney(balance).Add(delta))
	_, err = db.ExecContext(ctx,
		"UPDATE patients SET balance = ? WHERE id = ?",
		clinic.MoneyString(next), id)
	return err
}

// =============================================================================
// DOCTORS
// =============================================================================

func (s *Store) CreateDoctor(ctx context.Context, d clinic.Doctor) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createDoctor(ctx, s.db, d)
}

func (t *txStore) CreateDoctor(ctx context.Context, d clinic.Doctor) (int64, error) {
	return createDoctor(ctx, t.tx, d)
}

func createDoctor(ctx context.Context, db dbtx, d clinic.Doctor) (int64, error) {
	contacts, _ := json.Marshal(d.ContactNumbers)
	timings, _ := json.Marshal(clinic.NormalizeTimings(d.Timings))
	status := d.Status
	if status == "" {
		status = "active"
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO doctors (name, specialty, gender, contact_numbers, timings, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.Name, d.Specialty, d.Gender, string(contacts), string(timings), status)
	if err != nil {
		return 0, fmt.Errorf("failed to create doctor: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetDoctor(ctx context.Context, id int64) (*clinic.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDoctor(ctx, s.db, id)
}

func (t *txStore) GetDoctor(ctx context.Context, id int64) (*clinic.Doctor, error) {
	return getDoctor(ctx, t.tx, id)
}

func getDoctor(ctx context.Context, db dbtx, id int64) (*clinic.Doctor, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, specialty, gender, contact_numbers, timings, status FROM doctors WHERE id = ?", id)
	d, err := scanDoctor(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("doctor %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) ListDoctors(ctx context.Context) ([]clinic.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDoctors(ctx, s.db)
}

func (t *txStore) ListDoctors(ctx context.Context) ([]clinic.Doctor, error) {
	return listDoctors(ctx, t.tx)
}

func listDoctors(ctx context.Context, db dbtx) ([]clinic.Doctor, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, specialty, gender, contact_numbers, timings, status FROM doctors ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []clinic.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, *d)
	}
	return doctors, rows.Err()
}

func scanDoctor(row rowScanner) (*clinic.Doctor, error) {
	var (
		d                 clinic.Doctor
		specialty, gender sql.NullString
		contacts, timings sql.NullString
	)
	err := row.Scan(&d.ID, &d.Name, &specialty, &gender, &contacts, &timings, &d.Status)
	if err != nil {
		return nil, err
	}
	d.Specialty = specialty.String
	d.Gender = gender.String
	if contacts.Valid && contacts.String != "" {
		json.Unmarshal([]byte(contacts.String), &d.ContactNumbers)
	}
	if timings.Valid && timings.String != "" {
		json.Unmarshal([]byte(timings.String), &d.Timings)
	}
	return &d, nil
}

func (s *Store) UpdateDoctor(ctx context.Context, d clinic.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDoctor(ctx, s.db, d)
}

func (t *txStore) UpdateDoctor(ctx context.Context, d clinic.Doctor) error {
	return updateDoctor(ctx, t.tx, d)
}

func updateDoctor(ctx context.Context, db dbtx, d clinic.Doctor) error {
	contacts, _ := json.Marshal(d.ContactNumbers)
	timings, _ := json.Marshal(clinic.NormalizeTimings(d.Timings))
	res, err := db.ExecContext(ctx, `
		UPDATE doctors SET name=?, specialty=?, gender=?, contact_numbers=?, timings=?, status=?
		WHERE id=?`,
		d.Name, d.Specialty, d.Gender, string(contacts), string(timings), d.Status, d.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "doctor", d.ID)
}

func (s *Store) DeleteDoctor(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "doctors", id)
}

func (t *txStore) DeleteDoctor(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "doctors", id)
}

// =============================================================================
// PROCEDURES
// =============================================================================

func (s *Store) CreateProcedure(ctx context.Context, p clinic.Procedure) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createProcedure(ctx, s.db, p)
}

func (t *txStore) CreateProcedure(ctx context.Context, p clinic.Procedure) (int64, error) {
	return createProcedure(ctx, t.tx, p)
}

func createProcedure(ctx context.Context, db dbtx, p clinic.Procedure) (int64, error) {
	status := p.Status
	if status == "" {
		status = "active"
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO procedures (name, description, cost, status) VALUES (?, ?, ?, ?)`,
		p.Name, p.Description, clinic.MoneyString(p.Cost), status)
	if err != nil {
		return 0, fmt.Errorf("failed to create procedure: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetProcedure(ctx context.Context, id int64) (*clinic.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProcedure(ctx, s.db, id)
}

func (t *txStore) GetProcedure(ctx context.Context, id int64) (*clinic.Procedure, error) {
	return getProcedure(ctx, t.tx, id)
}

func getProcedure(ctx context.Context, db dbtx, id int64) (*clinic.Procedure, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, description, cost, status FROM procedures WHERE id = ?", id)
	p, err := scanProcedure(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("procedure %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProcedures(ctx context.Context) ([]clinic.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProcedures(ctx, s.db)
}

func (t *txStore) ListProcedures(ctx context.Context) ([]clinic.Procedure, error) {
	return listProcedures(ctx, t.tx)
}

func listProcedures(ctx context.Context, db dbtx) ([]clinic.Procedure, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, description, cost, status FROM procedures ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var procedures []clinic.Procedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, err
		}
		procedures = append(procedures, *p)
	}
	return procedures, rows.Err()
}

func scanProcedure(row rowScanner) (*clinic.Procedure, error) {
	var (
		p    clinic.Procedure
		desc sql.NullString
		cost string
	)
	if err := row.Scan(&p.ID, &p.Name, &desc, &cost, &p.Status); err != nil {
		return nil, err
	}
	p.Description = desc.String
	p.Cost = clinic.ParseMoney(cost)
	return &p, nil
}

func (s *Store) UpdateProcedure(ctx context.Context, p clinic.Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateProcedure(ctx, s.db, p)
}

func (t *txStore) UpdateProcedure(ctx context.Context, p clinic.Procedure) error {
	return updateProcedure(ctx, t.tx, p)
}

func updateProcedure(ctx context.Context, db dbtx, p clinic.Procedure) error {
	res, err := db.ExecContext(ctx, `
		UPDATE procedures SET name=?, description=?, cost=?, status=? WHERE id=?`,
		p.Name, p.Description, clinic.MoneyString(p.Cost), p.Status, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "procedure", p.ID)
}

func (s *Store) DeleteProcedure(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "procedures", id)
}

func (t *txStore) DeleteProcedure(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "procedures", id)
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

func (s *Store) CreateAppointment(ctx context.Context, a clinic.Appointment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAppointment(ctx, s.db, a)
}

func (t *txStore) CreateAppointment(ctx context.Context, a clinic.Appointment) (int64, error) {
	return createAppointment(ctx, t.tx, a)
}

func createAppointment(ctx context.Context, db dbtx, a clinic.Appointment) (int64, error) {
	status := a.Status
	if status == "" {
		status = "Scheduled"
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO appointments
		(patient_id, patient_name, date, time, reason, status, cancellation_reason, cancellation_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(a.PatientID), a.PatientName, a.Date, a.Time, a.Reason, status,
		nullString(a.CancellationReason), nullString(a.CancellationDate), now())
	if err != nil {
		return 0, fmt.Errorf("failed to create appointment: %w", err)
	}
	return res.LastInsertId()
}

const appointmentCols = `id, patient_id, patient_name, date, time, reason, status,
	cancellation_reason, cancellation_date, created_at, updated_at`

func (s *Store) GetAppointment(ctx context.Context, id int64) (*clinic.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAppointment(ctx, s.db, id)
}

func (t *txStore) GetAppointment(ctx context.Context, id int64) (*clinic.Appointment, error) {
	return getAppointment(ctx, t.tx, id)
}

func getAppointment(ctx context.Context, db dbtx, id int64) (*clinic.Appointment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+appointmentCols+" FROM appointments WHERE id = ?", id)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("appointment %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context) ([]clinic.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAppointments(ctx, s.db)
}

func (t *txStore) ListAppointments(ctx context.Context) ([]clinic.Appointment, error) {
	return listAppointments(ctx, t.tx)
}

func listAppointments(ctx context.Context, db dbtx) ([]clinic.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+appointmentCols+" FROM appointments ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []clinic.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *a)
	}
	return appointments, rows.Err()
}

func scanAppointment(row rowScanner) (*clinic.Appointment, error) {
	var (
		a                               clinic.Appointment
		patientID                       sql.NullInt64
		name, date, tm, reason          sql.NullString
		cancelReason, cancelDate, updAt sql.NullString
	)
	err := row.Scan(&a.ID, &patientID, &name, &date, &tm, &reason, &a.Status,
		&cancelReason, &cancelDate, &a.CreatedAt, &updAt)
	if err != nil {
		return nil, err
	}
	a.PatientID = patientID.Int64
	a.PatientName = name.String
	a.Date = date.String
	a.Time = tm.String
	a.Reason = reason.String
	a.CancellationReason = cancelReason.String
	a.CancellationDate = cancelDate.String
	a.UpdatedAt = updAt.String
	return &a, nil
}

func (s *Store) UpdateAppointment(ctx context.Context, a clinic.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAppointment(ctx, s.db, a)
}

func (t *txStore) UpdateAppointment(ctx context.Context, a clinic.Appointment) error {
	return updateAppointment(ctx, t.tx, a)
}

func updateAppointment(ctx context.Context, db dbtx, a clinic.Appointment) error {
	res, err := db.ExecContext(ctx, `
		UPDATE appointments SET patient_id=?, patient_name=?, date=?, time=?, reason=?,
			status=?, cancellation_reason=?, cancellation_date=?, updated_at=?
		WHERE id=?`,
		nullInt64(a.PatientID), a.PatientName, a.Date, a.Time, a.Reason, a.Status,
		nullString(a.CancellationReason), nullString(a.CancellationDate), now(), a.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "appointment", a.ID)
}

func (s *Store) DeleteAppointment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "appointments", id)
}

func (t *txStore) DeleteAppointment(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "appointments", id)
}

// =============================================================================
// TREATMENTS
// =============================================================================

func (s *Store) CreateTreatment(ctx context.Context, tr clinic.Treatment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createTreatment(ctx, s.db, tr)
}

func (t *txStore) CreateTreatment(ctx context.Context, tr clinic.Treatment) (int64, error) {
	return createTreatment(ctx, t.tx, tr)
}

func createTreatment(ctx context.Context, db dbtx, tr clinic.Treatment) (int64, error) {
	date := tr.Date
	if date == "" {
		date = now()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO treatments
		(patient_id, doctor_id, date, notes, procedures, total_cost, total_discount,
		 final_amount, overall_discount, user_id, paid_amount, payment_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(tr.PatientID), nullInt64(tr.DoctorID), date, tr.Notes, tr.Procedures,
		clinic.MoneyString(tr.TotalCost), clinic.MoneyString(tr.TotalDiscount),
		clinic.MoneyString(tr.FinalAmount), clinic.MoneyString(tr.OverallDiscount),
		nullInt64(tr.UserID), clinic.MoneyString(tr.PaidAmount), string(tr.PaymentStatus))
	if err != nil {
		return 0, fmt.Errorf("failed to create treatment: %w", err)
	}
	return res.LastInsertId()
}

const treatmentCols = `id, patient_id, doctor_id, date, notes, procedures, total_cost,
	total_discount, final_amount, overall_discount, user_id, paid_amount, payment_status`

func (s *Store) GetTreatment(ctx context.Context, id int64) (*clinic.Treatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTreatment(ctx, s.db, id)
}

func (t *txStore) GetTreatment(ctx context.Context, id int64) (*clinic.Treatment, error) {
	return getTreatment(ctx, t.tx, id)
}

func getTreatment(ctx context.Context, db dbtx, id int64) (*clinic.Treatment, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+treatmentCols+" FROM treatments WHERE id = ?", id)
	tr, err := scanTreatment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("treatment %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func (s *Store) ListTreatments(ctx context.Context) ([]clinic.Treatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTreatments(ctx, s.db, "SELECT "+treatmentCols+" FROM treatments ORDER BY id")
}

func (t *txStore) ListTreatments(ctx context.Context) ([]clinic.Treatment, error) {
	return queryTreatments(ctx, t.tx, "SELECT "+treatmentCols+" FROM treatments ORDER BY id")
}

func (s *Store) ListTreatmentsByPatient(ctx context.Context, patientID int64) ([]clinic.Treatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTreatments(ctx, s.db,
		"SELECT "+treatmentCols+" FROM treatments WHERE patient_id = ? ORDER BY id", patientID)
}

func (t *txStore) ListTreatmentsByPatient(ctx context.Context, patientID int64) ([]clinic.Treatment, error) {
	return queryTreatments(ctx, t.tx,
		"SELECT "+treatmentCols+" FROM treatments WHERE patient_id = ? ORDER BY id", patientID)
}

func queryTreatments(ctx context.Context, db dbtx, query string, args ...any) ([]clinic.Treatment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var treatments []clinic.Treatment
	for rows.Next() {
		tr, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		treatments = append(treatments, *tr)
	}
	return treatments, rows.Err()
}

func scanTreatment(row rowScanner) (*clinic.Treatment, error) {
	var (
		tr                           clinic.Treatment
		patientID, doctorID, userID  sql.NullInt64
		notes, procedures            sql.NullString
		totalCost, totalDiscount     string
		finalAmount, overallDiscount string
		paidAmount, paymentStatus    string
	)
	err := row.Scan(&tr.ID, &patientID, &doctorID, &tr.Date, &notes, &procedures,
		&totalCost, &totalDiscount, &finalAmount, &overallDiscount,
		&userID, &paidAmount, &paymentStatus)
	if err != nil {
		return nil, err
	}
	tr.PatientID = patientID.Int64
	tr.DoctorID = doctorID.Int64
	tr.UserID = userID.Int64
	tr.Notes = notes.String
	tr.Procedures = procedures.String
	tr.TotalCost = clinic.ParseMoney(totalCost)
	tr.TotalDiscount = clinic.ParseMoney(totalDiscount)
	tr.FinalAmount = clinic.ParseMoney(finalAmount)
	tr.OverallDiscount = clinic.ParseMoney(overallDiscount)
	tr.PaidAmount = clinic.ParseMoney(paidAmount)
	tr.PaymentStatus = clinic.PaymentStatus(paymentStatus)
	return &tr, nil
}

func (s *Store) UpdateTreatment(ctx context.Context, tr clinic.Treatment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTreatment(ctx, s.db, tr)
}

func (t *txStore) UpdateTreatment(ctx context.Context, tr clinic.Treatment) error {
	return updateTreatment(ctx, t.tx, tr)
}

func updateTreatment(ctx context.Context, db dbtx, tr clinic.Treatment) error {
	res, err := db.ExecContext(ctx, `
		UPDATE treatments SET patient_id=?, doctor_id=?, date=?, notes=?, procedures=?,
			total_cost=?, total_discount=?, final_amount=?, overall_discount=?,
			user_id=?, paid_amount=?, payment_status=?
		WHERE id=?`,
		nullInt64(tr.PatientID), nullInt64(tr.DoctorID), tr.Date, tr.Notes, tr.Procedures,
		clinic.MoneyString(tr.TotalCost), clinic.MoneyString(tr.TotalDiscount),
		clinic.MoneyString(tr.FinalAmount), clinic.MoneyString(tr.OverallDiscount),
		nullInt64(tr.UserID), clinic.MoneyString(tr.PaidAmount), string(tr.PaymentStatus), tr.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "treatment", tr.ID)
}

func (s *Store) UpdateTreatmentPayment(ctx context.Context, id int64, paid decimal.Decimal, status clinic.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTreatmentPayment(ctx, s.db, id, paid, status)
}

func (t *txStore) UpdateTreatmentPayment(ctx context.Context, id int64, paid decimal.Decimal, status clinic.PaymentStatus) error {
	return updateTreatmentPayment(ctx, t.tx, id, paid, status)
}

func updateTreatmentPayment(ctx context.Context, db dbtx, id int64, paid decimal.Decimal, status clinic.PaymentStatus) error {
	res, err := db.ExecContext(ctx,
		"UPDATE treatments SET paid_amount = ?, payment_status = ? WHERE id = ?",
		clinic.MoneyString(paid), string(status), id)
	if err != nil {
		return err
	}
	return requireRow(res, "treatment", id)
}

func (s *Store) DeleteTreatment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "treatments", id)
}

func (t *txStore) DeleteTreatment(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "treatments", id)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) CreateTransaction(ctx context.Context, tx clinic.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createTransaction(ctx, s.db, tx)
}

func (t *txStore) CreateTransaction(ctx context.Context, tx clinic.Transaction) (int64, error) {
	return createTransaction(ctx, t.tx, tx)
}

func createTransaction(ctx context.Context, db dbtx, tx clinic.Transaction) (int64, error) {
	date := tx.Date
	if date == "" {
		date = now()
	}
	status := tx.Status
	if status == "" {
		status = clinic.TxActive
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO transactions
		(patient_id, treatment_id, date, description, type, amount, user_id, day_book_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(tx.PatientID), nullInt64(tx.TreatmentID), date, tx.Description,
		string(tx.Type), clinic.MoneyString(tx.Amount), nullInt64(tx.UserID),
		nullString(tx.DayBookDate), string(status), now())
	if err != nil {
		return 0, fmt.Errorf("failed to create transaction: %w", err)
	}
	return res.LastInsertId()
}

const transactionCols = `id, patient_id, treatment_id, date, description, type, amount,
	user_id, day_book_date, status, created_at, updated_at`

func (s *Store) GetTransaction(ctx context.Context, id int64) (*clinic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func (t *txStore) GetTransaction(ctx context.Context, id int64) (*clinic.Transaction, error) {
	return getTransaction(ctx, t.tx, id)
}

func getTransaction(ctx context.Context, db dbtx, id int64) (*clinic.Transaction, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+transactionCols+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]clinic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTransactions(ctx, s.db, "SELECT "+transactionCols+" FROM transactions ORDER BY id")
}

func (t *txStore) ListTransactions(ctx context.Context) ([]clinic.Transaction, error) {
	return queryTransactions(ctx, t.tx, "SELECT "+transactionCols+" FROM transactions ORDER BY id")
}

func (s *Store) ListTransactionsByPatient(ctx context.Context, patientID int64) ([]clinic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryTransactions(ctx, s.db,
		"SELECT "+transactionCols+" FROM transactions WHERE patient_id = ? ORDER BY id", patientID)
}

func (t *txStore) ListTransactionsByPatient(ctx context.Context, patientID int64) ([]clinic.Transaction, error) {
	return queryTransactions(ctx, t.tx,
		"SELECT "+transactionCols+" FROM transactions WHERE patient_id = ? ORDER BY id", patientID)
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]clinic.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []clinic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(row rowScanner) (*clinic.Transaction, error) {
	var (
		tx                       clinic.Transaction
		patientID, treatmentID   sql.NullInt64
		userID                   sql.NullInt64
		description, dayBookDate sql.NullString
		updatedAt                sql.NullString
		amount, typ, status      string
	)
	err := row.Scan(&tx.ID, &patientID, &treatmentID, &tx.Date, &description,
		&typ, &amount, &userID, &dayBookDate, &status, &tx.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	tx.PatientID = patientID.Int64
	tx.TreatmentID = treatmentID.Int64
	tx.UserID = userID.Int64
	tx.Description = description.String
	tx.DayBookDate = dayBookDate.String
	tx.UpdatedAt = updatedAt.String
	tx.Type = clinic.TransactionType(typ)
	tx.Amount = clinic.ParseMoney(amount)
	tx.Status = clinic.TransactionStatus(status)
	return &tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx clinic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransaction(ctx, s.db, tx)
}

func (t *txStore) UpdateTransaction(ctx context.Context, tx clinic.Transaction) error {
	return updateTransaction(ctx, t.tx, tx)
}

func updateTransaction(ctx context.Context, db dbtx, tx clinic.Transaction) error {
	res, err := db.ExecContext(ctx, `
		UPDATE transactions SET patient_id=?, treatment_id=?, date=?, description=?,
			type=?, amount=?, user_id=?, day_book_date=?, status=?, updated_at=?
		WHERE id=?`,
		nullInt64(tx.PatientID), nullInt64(tx.TreatmentID), tx.Date, tx.Description,
		string(tx.Type), clinic.MoneyString(tx.Amount), nullInt64(tx.UserID),
		nullString(tx.DayBookDate), string(tx.Status), now(), tx.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "transaction", tx.ID)
}

func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "transactions", id)
}

func (t *txStore) DeleteTransaction(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "transactions", id)
}

func (s *Store) SumTransactions(ctx context.Context, dayBookDate string, typ clinic.TransactionType) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumTransactions(ctx, s.db, dayBookDate, typ)
}

func (t *txStore) SumTransactions(ctx context.Context, dayBookDate string, typ clinic.TransactionType) (decimal.Decimal, error) {
	return sumTransactions(ctx, t.tx, dayBookDate, typ)
}

// sumTransactions totals decimal amounts in Go rather than SQL so text-stored
// money never passes through float affinity.
func sumTransactions(ctx context.Context, db dbtx, dayBookDate string, typ clinic.TransactionType) (decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE day_book_date = ? AND type = ? AND status = ?`,
		dayBookDate, string(typ), string(clinic.TxActive))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(clinic.ParseMoney(amount))
	}
	return total, rows.Err()
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u clinic.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createUser(ctx, s.db, u)
}

func (t *txStore) CreateUser(ctx context.Context, u clinic.User) (int64, error) {
	return createUser(ctx, t.tx, u)
}

func createUser(ctx context.Context, db dbtx, u clinic.User) (int64, error) {
	permissions, _ := json.Marshal(u.Permissions)
	res, err := db.ExecContext(ctx,
		"INSERT INTO users (username, password, permissions) VALUES (?, ?, ?)",
		u.Username, u.PasswordHash, string(permissions))
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("username %q: %w", u.Username, clinic.ErrConflict)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetUser(ctx context.Context, id int64) (*clinic.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUserWhere(ctx, s.db, "id = ?", id)
}

func (t *txStore) GetUser(ctx context.Context, id int64) (*clinic.User, error) {
	return getUserWhere(ctx, t.tx, "id = ?", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*clinic.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUserWhere(ctx, s.db, "username = ?", username)
}

func (t *txStore) GetUserByUsername(ctx context.Context, username string) (*clinic.User, error) {
	return getUserWhere(ctx, t.tx, "username = ?", username)
}

func getUserWhere(ctx context.Context, db dbtx, where string, arg any) (*clinic.User, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, username, password, permissions FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %v: %w", arg, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]clinic.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listUsers(ctx, s.db)
}

func (t *txStore) ListUsers(ctx context.Context) ([]clinic.User, error) {
	return listUsers(ctx, t.tx)
}

func listUsers(ctx context.Context, db dbtx) ([]clinic.User, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, username, password, permissions FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []clinic.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*clinic.User, error) {
	var (
		u           clinic.User
		permissions sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &permissions); err != nil {
		return nil, err
	}
	if permissions.Valid && permissions.String != "" {
		json.Unmarshal([]byte(permissions.String), &u.Permissions)
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u clinic.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateUser(ctx, s.db, u)
}

func (t *txStore) UpdateUser(ctx context.Context, u clinic.User) error {
	return updateUser(ctx, t.tx, u)
}

func updateUser(ctx context.Context, db dbtx, u clinic.User) error {
	permissions, _ := json.Marshal(u.Permissions)
	res, err := db.ExecContext(ctx,
		"UPDATE users SET username=?, password=?, permissions=? WHERE id=?",
		u.Username, u.PasswordHash, string(permissions), u.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "user", u.ID)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "users", id)
}

func (t *txStore) DeleteUser(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "users", id)
}

// =============================================================================
// DAYBOOKS
// =============================================================================

func (s *Store) CreateDaybook(ctx context.Context, d clinic.Daybook) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createDaybook(ctx, s.db, d)
}

func (t *txStore) CreateDaybook(ctx context.Context, d clinic.Daybook) (int64, error) {
	return createDaybook(ctx, t.tx, d)
}

func createDaybook(ctx context.Context, db dbtx, d clinic.Daybook) (int64, error) {
	status := d.Status
	if status == "" {
		status = clinic.DaybookOpen
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO daybooks (date, status, opening_balance, settled_amount, notes) VALUES (?, ?, ?, ?, ?)",
		d.Date, string(status), clinic.MoneyString(d.OpeningBalance),
		clinic.MoneyString(d.SettledAmount), d.Notes)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("daybook %s: %w", d.Date, clinic.ErrConflict)
		}
		return 0, fmt.Errorf("failed to create daybook: %w", err)
	}
	return res.LastInsertId()
}

const daybookCols = `id, date, status, opening_balance, closing_balance, settled_amount, notes`

func (s *Store) GetDaybookByDate(ctx context.Context, date string) (*clinic.Daybook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDaybookByDate(ctx, s.db, date)
}

func (t *txStore) GetDaybookByDate(ctx context.Context, date string) (*clinic.Daybook, error) {
	return getDaybookByDate(ctx, t.tx, date)
}

func getDaybookByDate(ctx context.Context, db dbtx, date string) (*clinic.Daybook, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+daybookCols+" FROM daybooks WHERE date = ?", date)
	d, err := scanDaybook(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("daybook %s: %w", date, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) ListDaybooks(ctx context.Context) ([]clinic.Daybook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDaybooks(ctx, s.db)
}

func (t *txStore) ListDaybooks(ctx context.Context) ([]clinic.Daybook, error) {
	return listDaybooks(ctx, t.tx)
}

func listDaybooks(ctx context.Context, db dbtx) ([]clinic.Daybook, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+daybookCols+" FROM daybooks ORDER BY date")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var daybooks []clinic.Daybook
	for rows.Next() {
		d, err := scanDaybook(rows)
		if err != nil {
			return nil, err
		}
		daybooks = append(daybooks, *d)
	}
	return daybooks, rows.Err()
}

func scanDaybook(row rowScanner) (*clinic.Daybook, error) {
	var (
		d                clinic.Daybook
		status           string
		opening, settled string
		closing, notes   sql.NullString
	)
	err := row.Scan(&d.ID, &d.Date, &status, &opening, &closing, &settled, &notes)
	if err != nil {
		return nil, err
	}
	d.Status = clinic.DaybookStatus(status)
	d.OpeningBalance = clinic.ParseMoney(opening)
	if closing.Valid {
		d.ClosingBalance = clinic.ParseMoney(closing.String)
	}
	d.SettledAmount = clinic.ParseMoney(settled)
	d.Notes = notes.String
	return &d, nil
}

func (s *Store) UpdateDaybook(ctx context.Context, d clinic.Daybook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDaybook(ctx, s.db, d)
}

func (t *txStore) UpdateDaybook(ctx context.Context, d clinic.Daybook) error {
	return updateDaybook(ctx, t.tx, d)
}

func updateDaybook(ctx context.Context, db dbtx, d clinic.Daybook) error {
	res, err := db.ExecContext(ctx, `
		UPDATE daybooks SET status=?, opening_balance=?, closing_balance=?, settled_amount=?, notes=?
		WHERE date=?`,
		string(d.Status), clinic.MoneyString(d.OpeningBalance),
		clinic.MoneyString(d.ClosingBalance), clinic.MoneyString(d.SettledAmount),
		d.Notes, d.Date)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("daybook %s: %w", d.Date, clinic.ErrNotFound)
	}
	return nil
}

// =============================================================================
// ACTIVITY LOGS
// =============================================================================

func (s *Store) AppendActivity(ctx context.Context, e clinic.ActivityLog) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendActivity(ctx, s.db, e)
}

func (t *txStore) AppendActivity(ctx context.Context, e clinic.ActivityLog) (int64, error) {
	return appendActivity(ctx, t.tx, e)
}

func appendActivity(ctx context.Context, db dbtx, e clinic.ActivityLog) (int64, error) {
	date := e.Date
	if date == "" {
		date = now()
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO activity_logs (date, user_id, type, entity, description) VALUES (?, ?, ?, ?, ?)",
		date, nullInt64(e.UserID), e.Type, e.Entity, e.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to append activity log: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) ListActivity(ctx context.Context) ([]clinic.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listActivity(ctx, s.db)
}

func (t *txStore) ListActivity(ctx context.Context) ([]clinic.ActivityLog, error) {
	return listActivity(ctx, t.tx)
}

func listActivity(ctx context.Context, db dbtx) ([]clinic.ActivityLog, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, date, user_id, type, entity, description FROM activity_logs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []clinic.ActivityLog
	for rows.Next() {
		var (
			e                  clinic.ActivityLog
			userID             sql.NullInt64
			typ, entity, descr sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Date, &userID, &typ, &entity, &descr); err != nil {
			return nil, err
		}
		e.UserID = userID.Int64
		e.Type = typ.String
		e.Entity = entity.String
		e.Description = descr.String
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

// =============================================================================
// QUEUE
// =============================================================================

func (s *Store) CreateQueueEntry(ctx context.Context, e clinic.QueueEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createQueueEntry(ctx, s.db, e)
}

func (t *txStore) CreateQueueEntry(ctx context.Context, e clinic.QueueEntry) (int64, error) {
	return createQueueEntry(ctx, t.tx, e)
}

func createQueueEntry(ctx context.Context, db dbtx, e clinic.QueueEntry) (int64, error) {
	res, err := db.ExecContext(ctx,
		"INSERT INTO queue (patient_id, queue_number, status, date) VALUES (?, ?, ?, ?)",
		e.PatientID, e.QueueNumber, string(e.Status), e.Date)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("queue entry for patient %d on %s: %w",
				e.PatientID, e.Date, clinic.ErrConflict)
		}
		return 0, fmt.Errorf("failed to create queue entry: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetQueueEntry(ctx context.Context, id int64) (*clinic.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getQueueEntry(ctx, s.db, id)
}

func (t *txStore) GetQueueEntry(ctx context.Context, id int64) (*clinic.QueueEntry, error) {
	return getQueueEntry(ctx, t.tx, id)
}

func getQueueEntry(ctx context.Context, db dbtx, id int64) (*clinic.QueueEntry, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, patient_id, queue_number, status, date FROM queue WHERE id = ?", id)
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue entry %d: %w", id, clinic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListQueue(ctx context.Context, date string) ([]clinic.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listQueue(ctx, s.db, date)
}

func (t *txStore) ListQueue(ctx context.Context, date string) ([]clinic.QueueEntry, error) {
	return listQueue(ctx, t.tx, date)
}

func listQueue(ctx context.Context, db dbtx, date string) ([]clinic.QueueEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, patient_id, queue_number, status, date FROM queue WHERE date = ? ORDER BY queue_number", date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []clinic.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanQueueEntry(row rowScanner) (*clinic.QueueEntry, error) {
	var (
		e      clinic.QueueEntry
		status string
	)
	if err := row.Scan(&e.ID, &e.PatientID, &e.QueueNumber, &status, &e.Date); err != nil {
		return nil, err
	}
	e.Status = clinic.QueueStatus(status)
	return &e, nil
}

func (s *Store) FindQueueEntry(ctx context.Context, patientID int64, date string) (*clinic.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findQueueEntry(ctx, s.db, patientID, date)
}

func (t *txStore) FindQueueEntry(ctx context.Context, patientID int64, date string) (*clinic.QueueEntry, error) {
	return findQueueEntry(ctx, t.tx, patientID, date)
}

// findQueueEntry returns nil, nil when no row exists. Absence is an expected
// state during admission, not an error.
func findQueueEntry(ctx context.Context, db dbtx, patientID int64, date string) (*clinic.QueueEntry, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, patient_id, queue_number, status, date FROM queue WHERE patient_id = ? AND date = ?",
		patientID, date)
	e, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) MaxQueueNumber(ctx context.Context, date string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maxQueueNumber(ctx, s.db, date)
}

func (t *txStore) MaxQueueNumber(ctx context.Context, date string) (int, error) {
	return maxQueueNumber(ctx, t.tx, date)
}

func maxQueueNumber(ctx context.Context, db dbtx, date string) (int, error) {
	var max sql.NullInt64
	err := db.QueryRowContext(ctx,
		"SELECT MAX(queue_number) FROM queue WHERE date = ?", date).Scan(&max)
	if err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

func (s *Store) UpdateQueueEntry(ctx context.Context, e clinic.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateQueueEntry(ctx, s.db, e)
}

func (t *txStore) UpdateQueueEntry(ctx context.Context, e clinic.QueueEntry) error {
	return updateQueueEntry(ctx, t.tx, e)
}

func updateQueueEntry(ctx context.Context, db dbtx, e clinic.QueueEntry) error {
	res, err := db.ExecContext(ctx,
		"UPDATE queue SET patient_id=?, queue_number=?, status=?, date=? WHERE id=?",
		e.PatientID, e.QueueNumber, string(e.Status), e.Date, e.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "queue entry", e.ID)
}

func (s *Store) DeleteQueueEntry(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRow(ctx, s.db, "queue", id)
}

func (t *txStore) DeleteQueueEntry(ctx context.Context, id int64) error {
	return deleteRow(ctx, t.tx, "queue", id)
}

func (s *Store) CompleteQueueEntry(ctx context.Context, patientID int64, date string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return completeQueueEntry(ctx, s.db, patientID, date)
}

func (t *txStore) CompleteQueueEntry(ctx context.Context, patientID int64, date string) (int64, error) {
	return completeQueueEntry(ctx, t.tx, patientID, date)
}

// completeQueueEntry reports how many rows flipped to Completed. Zero means
// the patient was never queued for the date (or already completed).
func completeQueueEntry(ctx context.Context, db dbtx, patientID int64, date string) (int64, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE queue SET status = ? WHERE patient_id = ? AND date = ? AND status != ?",
		string(clinic.QueueCompleted), patientID, date, string(clinic.QueueCompleted))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ResetQueue(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM queue")
	return err
}

func (t *txStore) ResetQueue(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM queue")
	return err
}

// =============================================================================
// APP SETTINGS
// =============================================================================

func (s *Store) GetSettings(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSettings(ctx, s.db)
}

func (t *txStore) GetSettings(ctx context.Context) (string, error) {
	return getSettings(ctx, t.tx)
}

func getSettings(ctx context.Context, db dbtx) (string, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		"SELECT settings FROM app_settings WHERE id = 1").Scan(&raw)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("app settings: %w", clinic.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (s *Store) SaveSettings(ctx context.Context, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSettings(ctx, s.db, raw)
}

func (t *txStore) SaveSettings(ctx context.Context, raw string) error {
	return saveSettings(ctx, t.tx, raw)
}

func saveSettings(ctx context.Context, db dbtx, raw string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO app_settings (id, settings, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			settings = excluded.settings,
			updated_at = excluded.updated_at`,
		raw, now())
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n int64) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func deleteRow(ctx context.Context, db dbtx, table string, id int64) error {
	_, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	return err
}

func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, clinic.ErrNotFound)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
