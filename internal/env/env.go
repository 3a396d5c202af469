package env

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type EnvironmentVariables struct {
	InstanceName     string
	RedisAddr        string
	BackendPort      string
	Environment      string
	ApprovalTTL      time.Duration
	NotifyWorkers    int
	ExpirerInterval  time.Duration
	SmsAttemptsLimit int
}

type RejectBehavior string

const (
	RejectRedirect RejectBehavior = "redirect"
	RejectModal    RejectBehavior = "modal"
)

// ClientVariables configures the one-touch polling client.
type ClientVariables struct {
	PaymentBaseURL      string
	PollInterval        time.Duration
	FallbackReveal      time.Duration
	MaxPolls            int
	PollTimeout         time.Duration
	MaxTransportRetries int
	EnableSmsFallback   bool
	OnReject            RejectBehavior
	HTTPTimeout         time.Duration
}

const (
	DefaultPollInterval        = 2500 * time.Millisecond
	DefaultFallbackReveal      = 15 * time.Second
	DefaultPollTimeout         = 1200 * time.Second
	DefaultMaxTransportRetries = 3
	DefaultHTTPTimeout         = 10 * time.Second
	DefaultApprovalTTL         = 1200 * time.Second
)

var (
	Env *EnvironmentVariables
)

func Load() {
	Env = &EnvironmentVariables{
		InstanceName:     getRequiredEnv("INSTANCE_NAME"),
		RedisAddr:        getRequiredEnv("REDIS_ADDR"),
		BackendPort:      getRequiredEnv("BACKEND_PORT"),
		Environment:      getOptionalEnv("ENVIRONMENT", "development"),
		ApprovalTTL:      getOptionalSeconds("APPROVAL_TTL_SECONDS", DefaultApprovalTTL),
		NotifyWorkers:    getOptionalInt("NOTIFY_WORKERS", 4),
		ExpirerInterval:  getOptionalMillis("EXPIRER_INTERVAL_MS", 5*time.Second),
		SmsAttemptsLimit: getOptionalInt("SMS_ATTEMPTS_LIMIT", 3),
	}

	log.Info().
		Str("instance", Env.InstanceName).
		Str("redis", Env.RedisAddr).
		Str("port", Env.BackendPort).
		Dur("approvalTTL", Env.ApprovalTTL).
		Int("notifyWorkers", Env.NotifyWorkers).
		Msg("[ENV] Environment variables loaded successfully")
}

// LoadClient reads the client configuration. PAYMENT_BASE_URL may be left
// empty when the caller supplies it another way (e.g. a CLI flag).
func LoadClient() *ClientVariables {
	return &ClientVariables{
		PaymentBaseURL:      getOptionalEnv("PAYMENT_BASE_URL", ""),
		PollInterval:        getOptionalMillis("POLL_INTERVAL_MS", DefaultPollInterval),
		FallbackReveal:      getOptionalMillis("FALLBACK_REVEAL_MS", DefaultFallbackReveal),
		MaxPolls:            getOptionalInt("MAX_POLLS", 0),
		PollTimeout:         getOptionalMillis("POLL_TIMEOUT_MS", DefaultPollTimeout),
		MaxTransportRetries: getOptionalInt("MAX_TRANSPORT_RETRIES", DefaultMaxTransportRetries),
		EnableSmsFallback:   getOptionalBool("ENABLE_SMS_FALLBACK", true),
		OnReject:            parseRejectBehavior(getOptionalEnv("ON_REJECT", string(RejectRedirect))),
		HTTPTimeout:         getOptionalMillis("HTTP_TIMEOUT_MS", DefaultHTTPTimeout),
	}
}

func parseRejectBehavior(value string) RejectBehavior {
	switch RejectBehavior(strings.ToLower(value)) {
	case RejectModal:
		return RejectModal
	case RejectRedirect:
		return RejectRedirect
	default:
		log.Warn().Str("value", value).Msg("[ENV] Unknown ON_REJECT value, using redirect")
		return RejectRedirect
	}
}

func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Msgf("[ENV] Required environment variable %s is not set", key)
	}
	return value
}

func getOptionalEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getOptionalInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("[ENV] Invalid integer, using default")
		return defaultValue
	}
	return n
}

func getOptionalBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("[ENV] Invalid boolean, using default")
		return defaultValue
	}
	return b
}

func getOptionalMillis(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(getOptionalInt(key, int(defaultValue/time.Millisecond))) * time.Millisecond
}

func getOptionalSeconds(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(getOptionalInt(key, int(defaultValue/time.Second))) * time.Second
}

func IsProduction() bool {
	return getOptionalEnv("ENVIRONMENT", "development") == "production"
}

func IsDevelopment() bool {
	return !IsProduction()
}
