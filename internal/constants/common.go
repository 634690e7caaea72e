package constants

// Environments
const (
	ProdEnvironment  = "prod"
	DevEnvironment   = "dev"
	LocalEnvironment = "local"
)

// Log levels
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// ServiceName is attached to every structured log line in production.
const ServiceName = "cyphera-wallet"

// Header names
const (
	CorrelationIDHeader = "X-Correlation-ID"
)

// Context keys
const (
	CorrelationIDKey = "correlationID"
)
