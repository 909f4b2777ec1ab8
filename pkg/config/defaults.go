package config

// Convert defaults.
const (
	DefaultSuffix      = "_Godot"
	DefaultPartial     = false
	DefaultWorkers     = 0
	DefaultMaxFileSize = "4MiB"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)

// Server defaults.
const (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 8080
	DefaultReadTimeout  = "30s"
	DefaultWriteTimeout = "30s"
	DefaultIdleTimeout  = "60s"
	DefaultMaxBodySize  = "1MiB"
)

// Observability defaults.
const (
	DefaultServiceName = "gdport"
	DefaultSampleRatio = 1.0
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)
