package config

import "time"

// DefaultRosterCapacity is the number of collaborators a team leader may hold.
const DefaultRosterCapacity = 10

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RosterCapacity     int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	EventHeartbeat     time.Duration
	// TrustedProxies are addresses or CIDR ranges allowed to set X-Forwarded-For.
	TrustedProxies []string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	cfg := APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":8001"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://crew:crew@db:5432/crew?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		RefreshTokenTTL:    time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		RosterCapacity:     GetInt("TEAM_ROSTER_CAPACITY", DefaultRosterCapacity),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		EventHeartbeat:     GetDuration("EVENT_HEARTBEAT", 25*time.Second),
		TrustedProxies:     GetList("TRUSTED_PROXIES"),
	}
	if cfg.RosterCapacity <= 0 {
		cfg.RosterCapacity = DefaultRosterCapacity
	}
	return cfg
}
