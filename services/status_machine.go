package services

import (
	"bursary-management-api/models"
)

// transitions lists the legal status moves. Approved and rejected are
// terminal and have no outgoing edges.
var transitions = map[string][]string{
	models.StatusPending: {models.StatusApproved, models.StatusRejected},
}

// CanTransition reports whether moving from -> to is a legal lifecycle step.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition validates a requested status change against the current
// status. The same-status check comes first so a repeated decision is
// reported as NoStatusChange even on a terminal application.
func checkTransition(app *models.Application, requested string) error {
	if requested != models.StatusApproved && requested != models.StatusRejected {
		return newError(KindInvalidStatus, "status %q is not a valid decision; use approved or rejected", requested)
	}
	if requested == app.Status {
		return newError(KindNoStatusChange, "application %s is already %s", app.Reference, app.Status)
	}
	if app.IsFinal() || !CanTransition(app.Status, requested) {
		return newError(KindAlreadyFinal, "application %s has already been %s and cannot be changed", app.Reference, app.Status)
	}
	return nil
}
