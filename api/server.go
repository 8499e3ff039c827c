/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestLogger: Structured request logging via zerolog
  4. CORS:       Cross-origin requests for the front-desk UI

ROUTE GROUPS:
  /api/login              Credential check
  /api/patients/*         Patient records
  /api/doctors/*          Doctor records
  /api/procedures/*       Procedure catalog
  /api/appointments/*     Appointment book
  /api/treatments/*       Treatment intake and records
  /api/allocate_payments  Payment allocation
  /api/transactions/*     Financial transactions
  /api/daybooks           Daily cash ledger
  /api/queue/*            Walk-in queue
  /api/users/*            Staff accounts
  /api/activity_logs      Audit trail
  /api/app_settings       Clinic settings blob
  /api/integrity_check    Schema health

SECURITY NOTE:
  Beyond /api/login there is no authentication middleware. The deployment
  model is a single trusted workstation on a clinic LAN.

SEE ALSO:
  - handlers.go, records.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", h.ListPatients)
			r.Post("/", h.CreatePatient)
			r.Get("/{id}", h.GetPatient)
			r.Put("/{id}", h.UpdatePatient)
			r.Delete("/{id}", h.DeletePatient)
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", h.ListDoctors)
			r.Post("/", h.CreateDoctor)
			r.Get("/{id}", h.GetDoctor)
			r.Put("/{id}", h.UpdateDoctor)
			r.Delete("/{id}", h.DeleteDoctor)
		})

		r.Route("/procedures", func(r chi.Router) {
			r.Get("/", h.ListProcedures)
			r.Post("/", h.CreateProcedure)
			r.Get("/{id}", h.GetProcedure)
			r.Put("/{id}", h.UpdateProcedure)
			r.Delete("/{id}", h.DeleteProcedure)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.ListAppointments)
			r.Post("/", h.CreateAppointment)
			r.Get("/{id}", h.GetAppointment)
			r.Put("/{id}", h.UpdateAppointment)
			r.Delete("/{id}", h.DeleteAppointment)
		})

		r.Route("/treatments", func(r chi.Router) {
			r.Get("/", h.ListTreatments)
			r.Post("/", h.CreateTreatment)
			r.Get("/{id}", h.GetTreatment)
			r.Put("/{id}", h.UpdateTreatment)
			r.Delete("/{id}", h.DeleteTreatment)
		})

		r.Post("/allocate_payments", h.AllocatePayments)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/daybooks", func(r chi.Router) {
			r.Get("/", h.ListDaybooks)
			r.Post("/", h.CreateDaybook)
			r.Put("/", h.UpdateDaybook)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", h.ListQueue)
			r.Post("/", h.AdmitQueue)
			r.Put("/{id}", h.UpdateQueueEntry)
			r.Delete("/{id}", h.DeleteQueueEntry)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})

		r.Route("/activity_logs", func(r chi.Router) {
			r.Get("/", h.ListActivity)
			r.Post("/", h.AppendActivity)
		})

		r.Get("/app_settings", h.GetSettings)
		r.Post("/app_settings", h.SaveSettings)

		r.Get("/integrity_check", h.IntegrityCheck)
	})

	return r
}
