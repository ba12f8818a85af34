// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/leadhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Assignment controls logging for broker/agent assignment events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Assignment string
	// Admin controls logging for admin action events (broker CRUD, bulk deletes).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.LeadID != nil {
		fields = append(fields, zap.String("lead_id", event.LeadID.Hex()))
	}
	if event.BrokerID != nil {
		fields = append(fields, zap.String("broker_id", event.BrokerID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAssignment:
		setting = l.config.Assignment
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// LoginFailed logs a failed login attempt. eventType should be one of the
// audit.EventLoginFailed* constants; userID may be nil when the email did
// not match a known account.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType string, userID *primitive.ObjectID, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
		Details: map[string]string{
			"email": email,
		},
	})
}

// Logout logs a user logging out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    &userID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// --- Assignment Events ---

// BrokerAssigned logs a broker being assigned to a lead.
func (l *Logger) BrokerAssigned(ctx context.Context, r *http.Request, actorID, leadID, brokerID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAssignment,
		EventType: audit.EventBrokerAssigned,
		ActorID:   &actorID,
		LeadID:    &leadID,
		BrokerID:  &brokerID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// BrokerUnassigned logs a broker being removed from a lead.
func (l *Logger) BrokerUnassigned(ctx context.Context, r *http.Request, actorID, leadID, brokerID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAssignment,
		EventType: audit.EventBrokerUnassigned,
		ActorID:   &actorID,
		LeadID:    &leadID,
		BrokerID:  &brokerID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// AgentBulkAssigned logs a bulk agent assignment.
func (l *Logger) AgentBulkAssigned(ctx context.Context, r *http.Request, actorID, agentID primitive.ObjectID, succeeded, failed int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAssignment,
		EventType: audit.EventAgentBulkAssigned,
		ActorID:   &actorID,
		UserID:    &agentID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"succeeded": strconv.Itoa(succeeded),
			"failed":    strconv.Itoa(failed),
		},
	})
}

// PairRepaired logs an operator repairing a divergent lead/broker pair.
func (l *Logger) PairRepaired(ctx context.Context, r *http.Request, actorID, leadID, brokerID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAssignment,
		EventType: audit.EventPairRepaired,
		ActorID:   &actorID,
		LeadID:    &leadID,
		BrokerID:  &brokerID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// --- Admin Events ---

// BrokerCreated logs a new broker being created.
func (l *Logger) BrokerCreated(ctx context.Context, r *http.Request, actorID, brokerID primitive.ObjectID, name string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventBrokerCreated,
		ActorID:   &actorID,
		BrokerID:  &brokerID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"name": name,
		},
	})
}

// BrokerDeleted logs a broker being deleted.
func (l *Logger) BrokerDeleted(ctx context.Context, r *http.Request, actorID, brokerID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventBrokerDeleted,
		ActorID:   &actorID,
		BrokerID:  &brokerID,
		IP:        getClientIP(r),
		Success:   true,
	})
}

// UserCreated logs an admin provisioning a new account.
func (l *Logger) UserCreated(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, email, role string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserCreated,
		ActorID:   &actorID,
		UserID:    &userID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"email": email,
			"role":  role,
		},
	})
}

// UserStatusChanged logs an approval-status transition on an account.
func (l *Logger) UserStatusChanged(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, status string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserStatusChanged,
		ActorID:   &actorID,
		UserID:    &userID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"status": status,
		},
	})
}

// UserActiveChanged logs an account being activated or deactivated.
func (l *Logger) UserActiveChanged(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, active bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserActiveChanged,
		ActorID:   &actorID,
		UserID:    &userID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"active": strconv.FormatBool(active),
		},
	})
}

// LeadsDeleted logs a bulk lead deletion.
func (l *Logger) LeadsDeleted(ctx context.Context, r *http.Request, actorID primitive.ObjectID, count int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventLeadsDeleted,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		Success:   true,
		Details: map[string]string{
			"count": strconv.FormatInt(count, 10),
		},
	})
}
