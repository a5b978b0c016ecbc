package checkout

// Phase is the discrete state of a session's checkout flow. Exactly one phase
// is active per session at any time, so mutually exclusive dialogs can never
// render together.
type Phase string

const (
	// PhaseIdle means no checkout attempt is in progress.
	PhaseIdle Phase = "idle"
	// PhaseAwaitingLogin gates an unauthenticated user before confirmation.
	PhaseAwaitingLogin Phase = "awaiting-login"
	// PhaseConfirming shows the order summary awaiting explicit confirmation.
	PhaseConfirming Phase = "confirming"
	// PhaseSubmitting marks an in-flight order submission; re-entry is barred.
	PhaseSubmitting Phase = "submitting"
	// PhaseSucceeded holds the success acknowledgement until dismissal.
	PhaseSucceeded Phase = "succeeded"
	// PhaseFailed holds a dismissible failure message; the cart is preserved.
	PhaseFailed Phase = "failed"
)

// Resolved reports whether the submission has reached an outcome.
func (p Phase) Resolved() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// String representation (for logging).
func (p Phase) String() string {
	return string(p)
}
