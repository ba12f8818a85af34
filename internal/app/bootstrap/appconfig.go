// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig handles
// framework-level settings (HTTP ports, TLS, logging, CORS); AppConfig is
// everything specific to LeadHub.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: leadhub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Base URL, used by the health endpoint's certificate check.
	BaseURL string

	// Admin bootstrap: when set and no such user exists, an admin account is
	// created on startup so a fresh deployment is reachable.
	AdminEmail    string
	AdminPassword string

	// SweepInterval controls the background assignment-consistency sweep.
	// Zero disables it.
	SweepInterval time.Duration

	// Audit logging destinations per category: "all" (db+log), "db",
	// "log", or "off".
	AuditAuth       string
	AuditAssignment string
	AuditAdmin      string
}
