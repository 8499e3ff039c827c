/*
balance.go - Pure balance engine

PURPOSE:
  Computes how a payment, an advance, or a treatment creation affects a
  patient's balance, a treatment's paid amount and status, and which portion
  of the money needs a transaction record. Pure functions over amounts; the
  billing workflows apply the results inside a store transaction.

BALANCE SIGN CONVENTION:
  Patient.Balance > 0  the patient owes the clinic
  Patient.Balance < 0  the clinic holds an unconsumed advance for the patient

  A payment therefore always moves the balance DOWN by the amount received;
  recording a new treatment moves it UP by the unpaid remainder.

OVERPAYMENT:
  SettlePayment clamps the treatment's paid amount at finalAmount but still
  reduces the patient balance by the full amount received. The excess is
  neither refunded nor carried as credit. This mirrors the long-standing
  behavior of the system; see the clamping test before changing it.

SEE ALSO:
  - ../billing/allocator.go: applies SettlePayment per allocation
  - ../billing/intake.go: applies ConsumeAdvance at treatment creation
*/
package clinic

import "github.com/shopspring/decimal"

// =============================================================================
// PAYMENT STATUS
// =============================================================================

// PaymentStatusFor derives the treatment payment status.
// Paid iff paid >= final, Unpaid iff paid <= 0, else Partially Paid.
func PaymentStatusFor(paid, final decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(final):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

// =============================================================================
// PAYMENT SETTLEMENT
// =============================================================================

// PaymentSettlement is the outcome of applying a payment to one treatment.
type PaymentSettlement struct {
	// NewPaid is the treatment's cumulative paid amount after the payment,
	// clamped to the final amount. Never below the previous paid amount.
	NewPaid decimal.Decimal

	// NewStatus is derived from NewPaid vs the final amount.
	NewStatus PaymentStatus

	// BalanceDelta is the signed change to apply to the patient balance:
	// always -amount, even when NewPaid was clamped.
	BalanceDelta decimal.Decimal
}

// SettlePayment applies a payment of amount against a treatment with the
// given paid and final amounts. amount <= 0 is a no-op settlement that
// callers are expected to skip.
func SettlePayment(paid, final, amount decimal.Decimal) PaymentSettlement {
	newPaid := Round2(paid.Add(amount))
	if newPaid.GreaterThan(final) {
		newPaid = final
	}
	return PaymentSettlement{
		NewPaid:      newPaid,
		NewStatus:    PaymentStatusFor(newPaid, final),
		BalanceDelta: Round2(amount.Neg()),
	}
}

// =============================================================================
// ADVANCE CONSUMPTION (treatment intake)
// =============================================================================

// AdvanceConsumption is the outcome of reconciling a new treatment's upfront
// payment against the patient's existing advance credit.
type AdvanceConsumption struct {
	// AdvanceUsed is how much of the upfront payment is funded by the
	// patient's existing credit (negative balance).
	AdvanceUsed decimal.Decimal

	// NewPayment is the portion of the upfront payment NOT funded by the
	// advance. Only this portion gets a new transaction record; the advance
	// portion was already recorded when the advance was received.
	NewPayment decimal.Decimal

	// UnpaidDelta is finalAmount - paidAmount: the remainder the patient now
	// owes. Apply it to the balance first, then add AdvanceUsed back, since
	// the consumed credit is no longer owed to the patient.
	UnpaidDelta decimal.Decimal
}

// ConsumeAdvance computes the advance-credit reconciliation for a treatment
// created with upfront payment paid against a bill of final, given the
// patient's current signed balance.
func ConsumeAdvance(balance, final, paid decimal.Decimal) AdvanceConsumption {
	advanceUsed := decimal.Zero
	if balance.IsNegative() && paid.IsPositive() {
		advanceUsed = balance.Abs()
		if paid.LessThan(advanceUsed) {
			advanceUsed = paid
		}
	}

	newPayment := paid.Sub(advanceUsed)
	if newPayment.IsNegative() {
		newPayment = decimal.Zero
	}

	return AdvanceConsumption{
		AdvanceUsed: Round2(advanceUsed),
		NewPayment:  Round2(newPayment),
		UnpaidDelta: Round2(final.Sub(paid)),
	}
}

// =============================================================================
// DAYBOOK CLOSE
// =============================================================================

// ClosingBalance computes a daybook's closing balance from its opening
// balance, the day's active income and expense sums, and the settled amount.
func ClosingBalance(opening, income, expense, settled decimal.Decimal) decimal.Decimal {
	return Round2(opening.Add(income).Sub(expense).Sub(settled))
}
