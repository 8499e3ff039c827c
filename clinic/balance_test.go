/*
balance_test.go - Unit tests for the pure balance arithmetic

STYLE:
  Table-driven where the cases are homogeneous, explicit GIVEN/WHEN/THEN
  tests for the behaviors that matter most: clamping at the final amount,
  the full-amount balance delta, and advance consumption boundaries.
*/
package clinic

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// =============================================================================
// PAYMENT STATUS
// =============================================================================

func TestPaymentStatusFor(t *testing.T) {
	tests := []struct {
		name  string
		paid  string
		final string
		want  PaymentStatus
	}{
		{"nothing paid", "0", "100", PaymentUnpaid},
		{"partial", "40", "100", PaymentPartial},
		{"exactly paid", "100", "100", PaymentPaid},
		{"over the final amount", "120", "100", PaymentPaid},
		{"zero-cost treatment", "0", "0", PaymentPaid},
		{"cent under", "99.99", "100", PaymentPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PaymentStatusFor(d(tt.paid), d(tt.final))
			if got != tt.want {
				t.Errorf("PaymentStatusFor(%s, %s) = %q, want %q",
					tt.paid, tt.final, got, tt.want)
			}
		})
	}
}

// =============================================================================
// SETTLEMENT
// =============================================================================

func TestSettlePayment_PartialPayment(t *testing.T) {
	// GIVEN a treatment with 30 paid of 100
	// WHEN 50 more is allocated
	s := SettlePayment(d("30"), d("100"), d("50"))

	// THEN the cumulative paid is 80, still partially paid
	if !s.NewPaid.Equal(d("80")) {
		t.Errorf("NewPaid = %s, want 80", s.NewPaid)
	}
	if s.NewStatus != PaymentPartial {
		t.Errorf("NewStatus = %q, want %q", s.NewStatus, PaymentPartial)
	}
	// AND the balance drops by the full allocated amount
	if !s.BalanceDelta.Equal(d("-50")) {
		t.Errorf("BalanceDelta = %s, want -50", s.BalanceDelta)
	}
}

func TestSettlePayment_ExactCompletion(t *testing.T) {
	// GIVEN 60 paid of 100, WHEN exactly 40 is allocated
	s := SettlePayment(d("60"), d("100"), d("40"))

	// THEN the treatment is fully paid
	if !s.NewPaid.Equal(d("100")) {
		t.Errorf("NewPaid = %s, want 100", s.NewPaid)
	}
	if s.NewStatus != PaymentPaid {
		t.Errorf("NewStatus = %q, want %q", s.NewStatus, PaymentPaid)
	}
}

func TestSettlePayment_OverpaymentClampedToFinalAmount(t *testing.T) {
	// GIVEN a treatment with 80 paid of 100
	// WHEN 50 is allocated (30 more than remains owed)
	s := SettlePayment(d("80"), d("100"), d("50"))

	// THEN the recorded paid amount clamps at the final amount
	if !s.NewPaid.Equal(d("100")) {
		t.Errorf("NewPaid = %s, want 100 (clamped)", s.NewPaid)
	}
	if s.NewStatus != PaymentPaid {
		t.Errorf("NewStatus = %q, want %q", s.NewStatus, PaymentPaid)
	}
	// AND the balance still drops by the FULL allocated amount, so the
	// overshoot surfaces as patient credit rather than vanishing.
	if !s.BalanceDelta.Equal(d("-50")) {
		t.Errorf("BalanceDelta = %s, want -50 (full amount)", s.BalanceDelta)
	}
}

func TestSettlePayment_RoundsToCents(t *testing.T) {
	s := SettlePayment(d("10.005"), d("100"), d("0.004"))
	if !s.NewPaid.Equal(d("10.01")) {
		t.Errorf("NewPaid = %s, want 10.01", s.NewPaid)
	}
	if !s.BalanceDelta.Equal(d("0.00")) {
		t.Errorf("BalanceDelta = %s, want 0.00", s.BalanceDelta)
	}
}

// =============================================================================
// ADVANCE CONSUMPTION
// =============================================================================

func TestConsumeAdvance_NoCredit(t *testing.T) {
	// GIVEN a patient who owes 50 (positive balance)
	// WHEN they pay 30 toward a 100 treatment
	adv := ConsumeAdvance(d("50"), d("100"), d("30"))

	// THEN no advance is consumed and all 30 is new money
	if !adv.AdvanceUsed.IsZero() {
		t.Errorf("AdvanceUsed = %s, want 0", adv.AdvanceUsed)
	}
	if !adv.NewPayment.Equal(d("30")) {
		t.Errorf("NewPayment = %s, want 30", adv.NewPayment)
	}
	// AND the unpaid remainder is what the treatment adds to the debt
	if !adv.UnpaidDelta.Equal(d("70")) {
		t.Errorf("UnpaidDelta = %s, want 70", adv.UnpaidDelta)
	}
}

func TestConsumeAdvance_CreditCoversPartOfPayment(t *testing.T) {
	// GIVEN 40 of advance credit (balance -40)
	// WHEN the patient pays 100 toward a 100 treatment
	adv := ConsumeAdvance(d("-40"), d("100"), d("100"))

	// THEN 40 comes from credit and only 60 is new money
	if !adv.AdvanceUsed.Equal(d("40")) {
		t.Errorf("AdvanceUsed = %s, want 40", adv.AdvanceUsed)
	}
	if !adv.NewPayment.Equal(d("60")) {
		t.Errorf("NewPayment = %s, want 60", adv.NewPayment)
	}
	if !adv.UnpaidDelta.Equal(d("0")) {
		t.Errorf("UnpaidDelta = %s, want 0", adv.UnpaidDelta)
	}
}

func TestConsumeAdvance_CreditExceedsPayment(t *testing.T) {
	// GIVEN 200 of advance credit, WHEN the patient pays 80
	adv := ConsumeAdvance(d("-200"), d("80"), d("80"))

	// THEN only the paid amount is drawn from credit
	if !adv.AdvanceUsed.Equal(d("80")) {
		t.Errorf("AdvanceUsed = %s, want 80", adv.AdvanceUsed)
	}
	if !adv.NewPayment.IsZero() {
		t.Errorf("NewPayment = %s, want 0", adv.NewPayment)
	}
}

func TestConsumeAdvance_ZeroPaid(t *testing.T) {
	// Credit is never consumed when nothing is paid now.
	adv := ConsumeAdvance(d("-100"), d("50"), d("0"))
	if !adv.AdvanceUsed.IsZero() {
		t.Errorf("AdvanceUsed = %s, want 0", adv.AdvanceUsed)
	}
	if !adv.UnpaidDelta.Equal(d("50")) {
		t.Errorf("UnpaidDelta = %s, want 50", adv.UnpaidDelta)
	}
}

// =============================================================================
// DAYBOOK CLOSING
// =============================================================================

func TestClosingBalance(t *testing.T) {
	tests := []struct {
		name                               string
		opening, income, expense, settled string
		want                               string
	}{
		{"plain day", "1000", "500", "200", "0", "1300"},
		{"with settlement", "1000", "500", "200", "300", "1000"},
		{"no activity", "250", "0", "0", "0", "250"},
		{"expense-heavy day goes negative", "100", "50", "400", "0", "-250"},
		{"cents", "0.10", "0.25", "0.05", "0", "0.30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClosingBalance(d(tt.opening), d(tt.income), d(tt.expense), d(tt.settled))
			if !got.Equal(d(tt.want)) {
				t.Errorf("ClosingBalance = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClosingBalance_Deterministic(t *testing.T) {
	// Re-running with identical inputs yields an identical result.
	a := ClosingBalance(d("500"), d("123.45"), d("67.89"), d("10"))
	b := ClosingBalance(d("500"), d("123.45"), d("67.89"), d("10"))
	if !a.Equal(b) {
		t.Errorf("closing balance not deterministic: %s vs %s", a, b)
	}
}

// =============================================================================
// TIMINGS
// =============================================================================

func TestNormalizeTimings_FillsMissingDays(t *testing.T) {
	in := WeekTimings{
		"monday": {Start: "10:00", End: "18:00", IsOff: false},
	}
	out := NormalizeTimings(in)

	if len(out) != 7 {
		t.Fatalf("normalized week has %d days, want 7", len(out))
	}
	if out["monday"].Start != "10:00" || out["monday"].IsOff {
		t.Errorf("monday was not preserved: %+v", out["monday"])
	}
	if !out["sunday"].IsOff {
		t.Errorf("missing day should default to off: %+v", out["sunday"])
	}
	if out["sunday"].Start != "09:00" || out["sunday"].End != "17:00" {
		t.Errorf("missing day defaults wrong: %+v", out["sunday"])
	}
}

func TestQueueStatusActive(t *testing.T) {
	if !QueueWaiting.Active() {
		t.Error("Waiting should be active")
	}
	if QueueCompleted.Active() {
		t.Error("Completed should not be active")
	}
	if QueueCancelled.Active() {
		t.Error("Cancelled should not be active")
	}
	if !QueueStatus("In Progress").Active() {
		t.Error("unrecognized statuses should count as active")
	}
}
