/*
queue.go - Walk-in queue admission

PURPOSE:
  Enforces at-most-one-active-entry-per-patient-per-date and assigns queue
  numbers as max(existing for the date) + 1, starting at 1, never reusing
  numbers after deletion.

ADMISSION RULES:
  - Existing entry still active (not Completed/Cancelled): reject with a
    conflict carrying the existing entry.
  - Existing entry Completed or Cancelled: return it for caller-driven
    reactivation; no new row is created automatically.
  - No entry: insert with the next queue number.

RESET:
  Clears ALL queue entries (all dates) and records an activity log entry,
  in one transaction.
*/
package billing

import (
	"context"
	"time"

	"github.com/dentalops/clinic-backend/clinic"
)

// =============================================================================
// ADMISSION
// =============================================================================

// AdmissionResult distinguishes a fresh admission from a surfaced prior
// entry. Exactly one of the fields is set.
type AdmissionResult struct {
	// Entry is the newly created queue entry.
	Entry *clinic.QueueEntry

	// Existing is a prior Completed/Cancelled entry returned for
	// caller-driven reactivation.
	Existing *clinic.QueueEntry
}

// Queue orchestrates admission and reset.
type Queue struct {
	Store clinic.TxStore
}

func NewQueue(store clinic.TxStore) *Queue {
	return &Queue{Store: store}
}

// Admit queues a patient for the date (today when empty). An active
// duplicate yields a QueueConflictError carrying the existing entry.
func (q *Queue) Admit(ctx context.Context, patientID int64, date string, status clinic.QueueStatus) (*AdmissionResult, error) {
	if patientID == 0 {
		return nil, clinic.MissingField("patientId")
	}
	if date == "" {
		date = clinic.Today()
	}
	if status == "" {
		status = clinic.QueueWaiting
	}

	var result AdmissionResult
	err := q.Store.WithTx(ctx, func(s clinic.Store) error {
		existing, err := s.FindQueueEntry(ctx, patientID, date)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status.Active() {
				return &clinic.QueueConflictError{Existing: *existing}
			}
			result.Existing = existing
			return nil
		}

		maxNum, err := s.MaxQueueNumber(ctx, date)
		if err != nil {
			return err
		}
		entry := clinic.QueueEntry{
			PatientID:   patientID,
			QueueNumber: maxNum + 1,
			Status:      status,
			Date:        date,
		}
		id, err := s.CreateQueueEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		result.Entry = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reset clears every queue entry and logs the action.
func (q *Queue) Reset(ctx context.Context, userID int64) error {
	return q.Store.WithTx(ctx, func(s clinic.Store) error {
		if err := s.ResetQueue(ctx); err != nil {
			return err
		}
		_, err := s.AppendActivity(ctx, clinic.ActivityLog{
			Date:        time.Now().Format(time.RFC3339),
			UserID:      userID,
			Type:        "delete",
			Entity:      "queue",
			Description: "Queue was reset (all entries cleared)",
		})
		return err
	})
}
