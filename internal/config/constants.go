package config

import "time"

// ConfigFileEnv names the environment variable holding the config file path
const ConfigFileEnv = "SUPPORT_CONFIG_FILE"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout      = 60 * time.Second
	TrackerRequestTimeout   = 30 * time.Second
	ServerShutdownTimeout   = 30 * time.Second
	ServerReadHeaderTimeout = 10 * time.Second
	TestTimeout             = 100 * time.Millisecond
)

// Server defaults
const (
	DefaultServerPort  = "8080"
	DefaultServiceName = "support-backend"
	// DefaultMaxBodyBytes fits every attachment at its default ceiling, base64 encoded, plus the payload
	DefaultMaxBodyBytes = 100 * MB
	// EnvelopeSlackBytes is the room left for the JSON payload around the attachments
	EnvelopeSlackBytes = 16 * MB
)

// Tracker defaults
const (
	DefaultIssueType         = "Task"
	DefaultUploadConcurrency = 3
)

// Attachment and ticket limits
const (
	MB                          = 1 << 20
	DefaultMaxScreenshots       = 5
	DefaultMaxScreenshotBytes   = 5 * MB
	DefaultMaxRecordingBytes    = 25 * MB
	DefaultMaxNetworkLogBytes   = 10 * MB
	DefaultMaxSummaryCharacters = 120
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self' blob: data:;"
)
