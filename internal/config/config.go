// Package config handles application configuration loading from a YAML file and environment variables.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "supportapp/internal/utils"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Issue tracker the tickets are filed in
	Tracker TrackerConfig `json:"tracker" yaml:"tracker"`

	// Email Configuration
	Email EmailConfig `json:"email" yaml:"email"`

	// Attachment limits, shared by the server and the submission client
	Limits LimitsConfig `json:"limits" yaml:"limits"`

	// Submission client used by the adm CLI
	Client ClientConfig `json:"client" yaml:"client"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port        string   `json:"port" yaml:"port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
	// MaxBodyBytes caps the size of a ticket submission request body.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "support-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`   // Use the auto SDK tracer provider instead of the OTLP exporter
}

// TrackerConfig represents the Jira-compatible issue tracker configuration
type TrackerConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	BaseURL    string   `json:"base_url" yaml:"base_url"`
	Email      string   `json:"email" yaml:"email"`
	APIToken   string   `json:"api_token" yaml:"api_token"`
	ProjectKey string   `json:"project_key" yaml:"project_key"`
	IssueType  string   `json:"issue_type" yaml:"issue_type"`
	Labels     []string `json:"labels" yaml:"labels"`
	// UploadConcurrency bounds the number of attachment uploads in flight per ticket.
	UploadConcurrency int `json:"upload_concurrency" yaml:"upload_concurrency"`
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP    SMTPConfig `json:"smtp" yaml:"smtp"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
	// SupportInbox receives a copy of every created ticket.
	SupportInbox string `json:"support_inbox" yaml:"support_inbox"`
	// CopyUser sends a confirmation to the reporter when they left an email address.
	CopyUser bool `json:"copy_user" yaml:"copy_user"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// LimitsConfig represents attachment limits. Sizes are in bytes.
type LimitsConfig struct {
	MaxScreenshots       int   `json:"max_screenshots" yaml:"max_screenshots"`
	MaxScreenshotBytes   int64 `json:"max_screenshot_bytes" yaml:"max_screenshot_bytes"`
	MaxRecordingBytes    int64 `json:"max_recording_bytes" yaml:"max_recording_bytes"`
	MaxNetworkLogBytes   int64 `json:"max_network_log_bytes" yaml:"max_network_log_bytes"`
	MaxSummaryCharacters int   `json:"max_summary_characters" yaml:"max_summary_characters"`
}

// ClientConfig represents the submission client configuration
type ClientConfig struct {
	SubmitURL string        `json:"submit_url" yaml:"submit_url"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// Load config from YAML file
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	// Override with environment variables
	config.overrideFromEnv()
	config.applyDefaults()

	return config, nil
}

// applyDefaults fills in zero values that have a sensible default
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = DefaultServiceName
	}
	if c.OpenTelemetry.SamplingRate <= 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
	if c.Tracker.IssueType == "" {
		c.Tracker.IssueType = DefaultIssueType
	}
	if c.Tracker.UploadConcurrency <= 0 {
		c.Tracker.UploadConcurrency = DefaultUploadConcurrency
	}
	if c.Limits.MaxScreenshots <= 0 {
		c.Limits.MaxScreenshots = DefaultMaxScreenshots
	}
	if c.Limits.MaxScreenshotBytes <= 0 {
		c.Limits.MaxScreenshotBytes = DefaultMaxScreenshotBytes
	}
	if c.Limits.MaxRecordingBytes <= 0 {
		c.Limits.MaxRecordingBytes = DefaultMaxRecordingBytes
	}
	if c.Limits.MaxNetworkLogBytes <= 0 {
		c.Limits.MaxNetworkLogBytes = DefaultMaxNetworkLogBytes
	}
	if c.Limits.MaxSummaryCharacters <= 0 {
		c.Limits.MaxSummaryCharacters = DefaultMaxSummaryCharacters
	}
	if c.Client.Timeout <= 0 {
		c.Client.Timeout = DefaultHTTPTimeout
	}
	// The body cap follows the limits so a submission at every ceiling still fits
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = max(DefaultMaxBodyBytes, c.Limits.EnvelopeBytes())
	}
}

// EnvelopeBytes is the largest request body a submission within every limit can need.
// Attachments travel base64 encoded.
func (l LimitsConfig) EnvelopeBytes() int64 {
	total := int64(l.MaxScreenshots)*base64Len(l.MaxScreenshotBytes) +
		base64Len(l.MaxRecordingBytes) +
		base64Len(l.MaxNetworkLogBytes)
	return total + EnvelopeSlackBytes
}

func base64Len(n int64) int64 {
	return (n + 2) / 3 * 4
}

// TrackerConfigured reports whether enough tracker settings are present to file tickets
func (c *Config) TrackerConfigured() bool {
	t := c.Tracker
	return t.Enabled && t.BaseURL != "" && t.APIToken != "" && t.ProjectKey != ""
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables.
// TRACKER_API_TOKEN maps to Tracker.APIToken, EMAIL_SMTP_HOST to Email.SMTP.Host.
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		// time.Duration is an int64 kind, parse it as a duration string first
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS or TRACKER_LABELS)
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by SUPPORT_CONFIG_FILE, or config.yaml
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
