package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	platformstrings "lmsgate/pkg/platform/strings"
)

// DevJWTSigningKey is only acceptable outside prod.
const DevJWTSigningKey = "dev-secret-key-change-in-production"

// Session modes select how the access gate validates session claims.
const (
	SessionModeJWT    = "jwt"
	SessionModeKratos = "kratos"
)

// Auth-event sinks.
const (
	SinkNone     = "none"
	SinkMemory   = "memory"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	Env      string
	LogLevel string
	// Theme is the process-wide UI theme handed to every rendered page.
	Theme string
	// MetricsToken protects /metrics when set.
	MetricsToken string

	Gate    Gate
	Session Session
	Redis   RedisConfig
	AuthLog AuthLog
	IPAPI   IPAPI
}

// Gate configures the redirect targets of the access gate.
type Gate struct {
	LoginPath     string
	ForbiddenPath string
}

// Session configures claim resolution.
type Session struct {
	Mode          string
	CookieName    string
	CacheTTL      time.Duration
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	KratosURL     string
	KratosTimeout time.Duration
}

// RedisConfig holds the optional Redis connection backing token revocation.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthLog configures the auth-event logger and its forwarding sink.
type AuthLog struct {
	Sink         string
	Buffer       int
	RateLimit    int
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
}

// IPAPI configures the proxied IP geolocation service.
type IPAPI struct {
	BaseURL string
	Timeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:         getString("LMSGATE_ADDR", ":8080"),
		Env:          strings.ToLower(getString("LMSGATE_ENV", "dev")),
		LogLevel:     getString("LOG_LEVEL", "info"),
		Theme:        getString("THEME", "light"),
		MetricsToken: os.Getenv("METRICS_TOKEN"),
		Gate: Gate{
			LoginPath:     getString("LOGIN_PATH", "/login"),
			ForbiddenPath: getString("FORBIDDEN_PATH", "/unauthorized"),
		},
		Session: Session{
			Mode:          strings.ToLower(getString("SESSION_MODE", SessionModeJWT)),
			CookieName:    getString("SESSION_COOKIE", "lms_session"),
			CacheTTL:      getDuration("SESSION_CACHE_TTL", 30*time.Second),
			JWTSigningKey: getString("JWT_SIGNING_KEY", DevJWTSigningKey),
			JWTIssuer:     os.Getenv("JWT_ISSUER"),
			JWTAudience:   os.Getenv("JWT_AUDIENCE"),
			KratosURL:     getString("KRATOS_PUBLIC_URL", "http://localhost:4433"),
			KratosTimeout: getDuration("KRATOS_TIMEOUT", 3*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		AuthLog: AuthLog{
			Sink:         strings.ToLower(getString("AUTHLOG_SINK", SinkNone)),
			Buffer:       getInt("AUTHLOG_BUFFER", 1024),
			RateLimit:    getInt("AUTHLOG_RATE_LIMIT", 120),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			KafkaBrokers: platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getString("AUTHLOG_KAFKA_TOPIC", "lms.auth-events"),
		},
		IPAPI: IPAPI{
			BaseURL: getString("IPAPI_BASE_URL", "https://ipapi.co"),
			Timeout: getDuration("IPAPI_TIMEOUT", 5*time.Second),
		},
	}
}

// IsProd reports whether the service runs with production settings.
func (s Server) IsProd() bool {
	return s.Env == "prod"
}

// Validate rejects combinations that would start a half-configured service.
func (s Server) Validate() error {
	var errs []error

	switch s.Session.Mode {
	case SessionModeJWT, SessionModeKratos:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_MODE %q", s.Session.Mode))
	}
	if s.IsProd() && s.Session.Mode == SessionModeJWT && s.Session.JWTSigningKey == DevJWTSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in prod"))
	}

	switch s.AuthLog.Sink {
	case SinkNone, SinkMemory:
	case SinkPostgres:
		if s.AuthLog.DatabaseURL == "" {
			errs = append(errs, errors.New("AUTHLOG_SINK=postgres requires DATABASE_URL"))
		}
	case SinkKafka:
		if len(s.AuthLog.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("AUTHLOG_SINK=kafka requires KAFKA_BROKERS"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTHLOG_SINK %q", s.AuthLog.Sink))
	}

	if !strings.HasPrefix(s.Gate.LoginPath, "/") {
		errs = append(errs, fmt.Errorf("LOGIN_PATH must be an absolute path, got %q", s.Gate.LoginPath))
	}

	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
