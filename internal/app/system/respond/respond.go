// internal/app/system/respond/respond.go
//
// Package respond writes the JSON envelope used by every API handler:
//
//	{ "success": bool, "message": "...", "data": ... }
//
// and maps engine/store errors onto HTTP statuses so handlers never
// hand-pick status codes for the common error taxonomy.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	brokerstore "github.com/dalemusser/leadhub/internal/app/store/brokers"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	"go.uber.org/zap"
)

// Envelope is the wire shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON writes an arbitrary envelope with the given status.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Fail writes a failure envelope with an explicit status.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// BadRequest writes a 400 failure envelope.
func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, message)
}

// Error maps err onto the taxonomy below, logs server-side failures, and
// writes the failure envelope. The message shown to callers is err.Error()
// for client-class errors and a generic line for 5xx ones.
//
//	not found              → 404
//	invariant violation    → 409
//	uniqueness conflict    → 409
//	authorization          → 403
//	invalid input          → 400
//	partial failure        → 502 (data-integrity incident, logged loudly)
//	anything else          → 500
func Error(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	var (
		pf       *assign.PartialFailureError
		dupField *brokerstore.DuplicateFieldError
		dupEmail *leadstore.DuplicateEmailError
		mem      *assign.MembersError
	)
	switch {
	case errors.Is(err, assign.ErrLeadNotFound),
		errors.Is(err, assign.ErrBrokerNotFound):
		Fail(w, http.StatusNotFound, err.Error())

	case errors.Is(err, assign.ErrAlreadyAssigned),
		errors.Is(err, assign.ErrNotAssigned),
		errors.Is(err, assign.ErrInactiveBroker),
		errors.Is(err, assign.ErrContention):
		Fail(w, http.StatusConflict, err.Error())

	case errors.Is(err, assign.ErrInvalidAgent):
		Fail(w, http.StatusBadRequest, err.Error())

	case errors.As(err, &dupField):
		Fail(w, http.StatusConflict, dupField.Error())

	case errors.As(err, &dupEmail):
		Fail(w, http.StatusConflict, dupEmail.Error())

	case errors.As(err, &mem):
		Fail(w, http.StatusConflict, mem.Error())

	case errors.Is(err, leadpolicy.ErrForbidden):
		Fail(w, http.StatusForbidden, "You do not have permission to perform this action")

	case errors.As(err, &pf):
		// One side of a paired write diverged and could not be reverted.
		// Surface it loudly; the reconciliation sweep needs these fields.
		log.Error("partial failure",
			zap.String("op", pf.Op),
			zap.String("lead_id", pf.LeadID),
			zap.String("broker_id", pf.BrokerID),
			zap.NamedError("write_err", pf.Err),
			zap.NamedError("compensation_err", pf.CompErr))
		Fail(w, http.StatusBadGateway,
			"The operation could not be completed consistently; support has been notified")

	default:
		log.Error(op+" failed", zap.Error(err))
		Fail(w, http.StatusInternalServerError, "An internal error occurred")
	}
}
