/*
handlers_test.go - HTTP tests through the full router

Exercises the API end to end against an in-memory database: the front-desk
day (patient -> queue -> treatment -> allocation -> daybook close), login,
and the error statuses clients depend on.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/clinic-backend/clinic"
	"github.com/dentalops/clinic-backend/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(store, zerolog.Nop())
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// TestFrontDeskDay walks the system through a complete visit: register the
// patient, queue them, record the treatment, allocate a later payment, and
// close the day's ledger.
func TestFrontDeskDay(t *testing.T) {
	server := newTestServer(t)
	today := clinic.Today()

	// Register a patient.
	var patient PatientDTO
	resp := doJSON(t, "POST", server.URL+"/api/patients", PatientRequest{Name: "Aisha Khan"}, &patient)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotZero(t, patient.ID)

	// Open the daybook.
	opening := 1000.0
	var daybook DaybookDTO
	resp = doJSON(t, "POST", server.URL+"/api/daybooks",
		DaybookRequest{Date: today, OpeningBalance: &opening}, &daybook)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Queue the patient.
	var entry QueueEntryDTO
	resp = doJSON(t, "POST", server.URL+"/api/queue", QueueRequest{PatientID: patient.ID}, &entry)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, entry.QueueNumber)

	// Record a treatment with a 40 upfront payment.
	var treatment TreatmentDTO
	resp = doJSON(t, "POST", server.URL+"/api/treatments", TreatmentRequest{
		PatientID:   patient.ID,
		TotalCost:   100,
		FinalAmount: 100,
		PaidAmount:  40,
		PatientName: "Aisha Khan",
		DayBookDate: today,
	}, &treatment)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, string(clinic.PaymentPartial), treatment.PaymentStatus)

	// The patient now owes the 60 remainder.
	var refreshed PatientDTO
	doJSON(t, "GET", fmt.Sprintf("%s/api/patients/%d", server.URL, patient.ID), nil, &refreshed)
	assert.InDelta(t, 60, refreshed.Balance, 0.001)

	// They come back and settle the remainder.
	var allocation AllocatePaymentsResponse
	resp = doJSON(t, "POST", server.URL+"/api/allocate_payments", AllocatePaymentsRequest{
		PatientID:   patient.ID,
		Amount:      60,
		Allocations: []AllocationItem{{TreatmentID: treatment.ID, Amount: 60}},
		DayBookDate: today,
	}, &allocation)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0, allocation.Patient.Balance, 0.001)
	require.Len(t, allocation.Treatments, 1)
	assert.Equal(t, string(clinic.PaymentPaid), allocation.Treatments[0].PaymentStatus)

	// Close the day: 1000 opening + 40 intake + 60 allocation = 1100.
	status := "closed"
	var closed DaybookDTO
	resp = doJSON(t, "PUT", server.URL+"/api/daybooks",
		DaybookRequest{Date: today, Status: &status}, &closed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1100, closed.ClosingBalance, 0.001)
}

func TestCreateTreatment_UnqueuedPatientRejected(t *testing.T) {
	server := newTestServer(t)

	var patient PatientDTO
	doJSON(t, "POST", server.URL+"/api/patients", PatientRequest{Name: "Bilal"}, &patient)

	var body map[string]any
	resp := doJSON(t, "POST", server.URL+"/api/treatments", TreatmentRequest{
		PatientID:   patient.ID,
		FinalAmount: 100,
		PaidAmount:  100,
		PatientName: "Bilal",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "queue")

	// Nothing was persisted.
	var treatments []TreatmentDTO
	doJSON(t, "GET", server.URL+"/api/treatments", nil, &treatments)
	assert.Empty(t, treatments)
}

func TestQueueAdmission_DuplicateConflictCarriesExisting(t *testing.T) {
	server := newTestServer(t)

	var patient PatientDTO
	doJSON(t, "POST", server.URL+"/api/patients", PatientRequest{Name: "Sana"}, &patient)

	var entry QueueEntryDTO
	resp := doJSON(t, "POST", server.URL+"/api/queue", QueueRequest{PatientID: patient.ID}, &entry)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conflict struct {
		Error    string        `json:"error"`
		Existing QueueEntryDTO `json:"existing"`
	}
	resp = doJSON(t, "POST", server.URL+"/api/queue", QueueRequest{PatientID: patient.ID}, &conflict)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, entry.ID, conflict.Existing.ID)
}

func TestLogin(t *testing.T) {
	server := newTestServer(t)

	var user UserDTO
	resp := doJSON(t, "POST", server.URL+"/api/users", UserRequest{
		Username:    "reception",
		Password:    "hunter2!",
		Permissions: []string{"patients", "queue"},
	}, &user)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var login LoginResponse
	resp = doJSON(t, "POST", server.URL+"/api/login",
		LoginRequest{Username: "reception", Password: "hunter2!"}, &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, login.Success)
	assert.Equal(t, "reception", login.User.Username)

	// Wrong password and unknown user both come back 401.
	resp = doJSON(t, "POST", server.URL+"/api/login",
		LoginRequest{Username: "reception", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, "POST", server.URL+"/api/login",
		LoginRequest{Username: "ghost", Password: "hunter2!"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAppointmentPartialUpdate(t *testing.T) {
	server := newTestServer(t)

	date := "2026-09-01"
	reason := "checkup"
	var appt AppointmentDTO
	resp := doJSON(t, "POST", server.URL+"/api/appointments",
		AppointmentRequest{Date: &date, Reason: &reason}, &appt)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Scheduled", appt.Status)

	// Cancel by sending only the cancellation fields.
	status := "Cancelled"
	cancelReason := "patient travelling"
	var updated AppointmentDTO
	resp = doJSON(t, "PUT", fmt.Sprintf("%s/api/appointments/%d", server.URL, appt.ID),
		AppointmentRequest{Status: &status, CancellationReason: &cancelReason}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Cancelled", updated.Status)
	assert.Equal(t, "patient travelling", updated.CancellationReason)
	// Untouched fields survive the merge.
	assert.Equal(t, "checkup", updated.Reason)
	assert.Equal(t, date, updated.Date)
}

func TestNotFoundStatuses(t *testing.T) {
	server := newTestServer(t)

	for _, url := range []string{
		"/api/patients/9999",
		"/api/treatments/9999",
		"/api/transactions/9999",
		"/api/daybooks?date=1999-01-01",
	} {
		resp, err := http.Get(server.URL + url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, url)
	}
}

func TestIntegrityCheck(t *testing.T) {
	server := newTestServer(t)

	var body IntegrityCheckResponse
	resp := doJSON(t, "GET", server.URL+"/api/integrity_check", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.OK)
	assert.Empty(t, body.MissingTables)
}

func TestGetUserByID(t *testing.T) {
	server := newTestServer(t)

	var created UserDTO
	resp := doJSON(t, "POST", server.URL+"/api/users", UserRequest{
		Username:    "dr-farah",
		Password:    "hunter2!",
		Permissions: []string{"treatments"},
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var fetched UserDTO
	resp = doJSON(t, "GET", fmt.Sprintf("%s/api/users/%d", server.URL, created.ID), nil, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "dr-farah", fetched.Username)
	assert.Equal(t, []string{"treatments"}, fetched.Permissions)

	resp, err := http.Get(server.URL + "/api/users/9999")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsersNeverExposePasswords(t *testing.T) {
	server := newTestServer(t)

	doJSON(t, "POST", server.URL+"/api/users", UserRequest{
		Username: "admin", Password: "s3cret",
	}, nil)

	resp, err := http.Get(server.URL + "/api/users")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw bytes.Buffer
	_, err = raw.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, raw.String(), "password")
	assert.NotContains(t, raw.String(), "s3cret")
}
