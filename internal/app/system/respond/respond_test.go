package respond_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"github.com/dalemusser/leadhub/internal/app/policy/leadpolicy"
	brokerstore "github.com/dalemusser/leadhub/internal/app/store/brokers"
	leadstore "github.com/dalemusser/leadhub/internal/app/store/leads"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"go.uber.org/zap"
)

func status(t *testing.T, err error) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	respond.Error(rec, zap.NewNop(), "op", err)
	return rec.Code, rec.Body.String()
}

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"lead not found", assign.ErrLeadNotFound, 404},
		{"broker not found", assign.ErrBrokerNotFound, 404},
		{"already assigned", assign.ErrAlreadyAssigned, 409},
		{"not assigned", assign.ErrNotAssigned, 409},
		{"inactive broker", assign.ErrInactiveBroker, 409},
		{"contention", assign.ErrContention, 409},
		{"invalid agent", assign.ErrInvalidAgent, 400},
		{"duplicate broker field", &brokerstore.DuplicateFieldError{Field: "domain", Value: "x.com"}, 409},
		{"duplicate lead email", &leadstore.DuplicateEmailError{Email: "dup@example.com"}, 409},
		{"members guard", &assign.MembersError{Count: 3}, 409},
		{"forbidden", leadpolicy.ErrForbidden, 403},
		{"partial failure", &assign.PartialFailureError{Op: "assign", Err: errors.New("w"), CompErr: errors.New("c")}, 502},
		{"unknown", errors.New("boom"), 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, _ := status(t, tc.err); got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestError_DuplicateMessagesNameTheField(t *testing.T) {
	_, body := status(t, &brokerstore.DuplicateFieldError{Field: "domain", Value: "x.com"})
	if !strings.Contains(body, "domain") || !strings.Contains(body, "x.com") {
		t.Errorf("duplicate conflict body should name field and value, got %q", body)
	}

	_, body = status(t, &leadstore.DuplicateEmailError{Email: "dup@example.com"})
	if !strings.Contains(body, "dup@example.com") {
		t.Errorf("duplicate email conflict should carry the value, got %q", body)
	}
}

func TestError_WrappedErrorsStillMap(t *testing.T) {
	wrapped := errors.Join(errors.New("creating broker"), &brokerstore.DuplicateFieldError{Field: "name", Value: "Acme"})
	if got, _ := status(t, wrapped); got != 409 {
		t.Errorf("wrapped duplicate mapped to %d, want 409", got)
	}
}

func TestError_InternalErrorsAreOpaque(t *testing.T) {
	_, body := status(t, errors.New("mongo: connection reset at 10.0.0.5"))
	if strings.Contains(body, "10.0.0.5") {
		t.Error("internal error details must not leak to callers")
	}
}
