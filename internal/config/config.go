package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/grievance-desk/sla-service/internal/domain"
	"github.com/grievance-desk/sla-service/internal/sla"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom            string
	WebhookURL           string
	WebhookRatePerMinute int
}

// SLAConfig holds the working calendar, budget table and escalation cadence.
// It is read once at startup; changing it requires a restart.
type SLAConfig struct {
	Timezone     string
	DayStartHour int
	DayEndHour   int
	WorkingDays  string
	Holidays     []string

	BudgetLowHours          float64
	BudgetMediumHours       float64
	BudgetHighHours         float64
	BudgetCriticalSoftHours float64
	AtRiskRatio             float64
	MaxEscalationLevels     map[string]int
	PriorityBumpEvery       int

	CycleIntervalSeconds     int
	CycleTimeoutSeconds      int
	CycleBatchSize           int
	CycleWorkers             int
	CycleLeaseKey            string
	AnalyticsCacheTTLSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	slaCfg, err := loadSLA()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "grievance-sla-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:            getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL:           getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookRatePerMinute: getEnvAsInt("NOTIFY_WEBHOOK_RATE_PER_MINUTE", 60),
		},
		SLA: slaCfg,
	}

	return cfg, nil
}

func loadSLA() (SLAConfig, error) {
	cfg := SLAConfig{
		Timezone:      getEnv("SLA_TIMEZONE", "UTC"),
		WorkingDays:   getEnv("SLA_WORKING_DAYS", "mon,tue,wed,thu,fri,sat"),
		Holidays:      getEnvAsList("SLA_HOLIDAYS"),
		CycleLeaseKey: getEnv("SLA_CYCLE_LEASE_KEY", "sla:escalation-cycle"),

		MaxEscalationLevels: map[string]int{},
	}

	// Day hours feed the calendar, so a bad value is a calendar error.
	hours := []struct {
		key  string
		dest *int
		def  int
	}{
		{"SLA_DAY_START_HOUR", &cfg.DayStartHour, 9},
		{"SLA_DAY_END_HOUR", &cfg.DayEndHour, 17},
	}
	for _, h := range hours {
		v, err := getEnvAsIntStrict(h.key, h.def)
		if err != nil {
			return SLAConfig{}, fmt.Errorf("%w: %w", sla.ErrInvalidCalendarConfig, err)
		}
		*h.dest = v
	}

	ints := []struct {
		key  string
		dest *int
		def  int
	}{
		{"SLA_PRIORITY_BUMP_EVERY", &cfg.PriorityBumpEvery, 2},
		{"SLA_CYCLE_INTERVAL_SECONDS", &cfg.CycleIntervalSeconds, 300},
		{"SLA_CYCLE_TIMEOUT_SECONDS", &cfg.CycleTimeoutSeconds, 240},
		{"SLA_CYCLE_BATCH_SIZE", &cfg.CycleBatchSize, 200},
		{"SLA_CYCLE_WORKERS", &cfg.CycleWorkers, 4},
		{"SLA_ANALYTICS_CACHE_TTL_SECONDS", &cfg.AnalyticsCacheTTLSeconds, 60},
	}
	for _, i := range ints {
		v, err := getEnvAsIntStrict(i.key, i.def)
		if err != nil {
			return SLAConfig{}, err
		}
		*i.dest = v
	}

	budgets := []struct {
		key  string
		dest *float64
		def  float64
	}{
		{"SLA_BUDGET_LOW_HOURS", &cfg.BudgetLowHours, 4},
		{"SLA_BUDGET_MEDIUM_HOURS", &cfg.BudgetMediumHours, 24},
		{"SLA_BUDGET_HIGH_HOURS", &cfg.BudgetHighHours, 72},
		{"SLA_BUDGET_CRITICAL_HOURS", &cfg.BudgetCriticalSoftHours, 72},
		{"SLA_AT_RISK_RATIO", &cfg.AtRiskRatio, 0.8},
	}
	for _, b := range budgets {
		v, err := getEnvAsFloat(b.key, b.def)
		if err != nil {
			return SLAConfig{}, err
		}
		*b.dest = v
	}

	maxLevel, err := getEnvAsIntStrict("SLA_MAX_ESCALATION_LEVEL", 3)
	if err != nil {
		return SLAConfig{}, err
	}
	for _, tier := range []string{"low", "medium", "high", "critical"} {
		level, err := getEnvAsIntStrict("SLA_MAX_ESCALATION_LEVEL_"+strings.ToUpper(tier), maxLevel)
		if err != nil {
			return SLAConfig{}, err
		}
		cfg.MaxEscalationLevels[tier] = level
	}
	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the configured timezone.
func (s SLAConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_TIMEZONE %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// CycleInterval returns the escalation cycle cadence.
func (s SLAConfig) CycleInterval() time.Duration {
	if s.CycleIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.CycleIntervalSeconds) * time.Second
}

// CycleTimeout bounds one cycle; it never exceeds the interval so a cycle
// finishes before the next tick.
func (s SLAConfig) CycleTimeout() time.Duration {
	interval := s.CycleInterval()
	if s.CycleTimeoutSeconds <= 0 {
		return interval
	}
	timeout := time.Duration(s.CycleTimeoutSeconds) * time.Second
	if timeout > interval {
		return interval
	}
	return timeout
}

// Calendar builds the working calendar. Any error wraps
// sla.ErrInvalidCalendarConfig and must stop the process.
func (s SLAConfig) Calendar() (*sla.WorkingCalendar, error) {
	loc, err := s.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sla.ErrInvalidCalendarConfig, err)
	}
	days, err := sla.ParseWeekdays(s.WorkingDays)
	if err != nil {
		return nil, err
	}
	return sla.NewWorkingCalendar(sla.CalendarConfig{
		Location:     loc,
		DayStartHour: s.DayStartHour,
		DayEndHour:   s.DayEndHour,
		WorkingDays:  days,
		Holidays:     s.Holidays,
	})
}

// Policy builds the SLA budget table.
func (s SLAConfig) Policy() (sla.Policy, error) {
	levels := make(map[domain.IssuePriority]int, len(s.MaxEscalationLevels))
	for tier, level := range s.MaxEscalationLevels {
		levels[domain.IssuePriority(tier)] = level
	}
	return sla.NewPolicy(sla.PolicyConfig{
		LowHours:            s.BudgetLowHours,
		MediumHours:         s.BudgetMediumHours,
		HighHours:           s.BudgetHighHours,
		CriticalSoftHours:   s.BudgetCriticalSoftHours,
		AtRiskRatio:         s.AtRiskRatio,
		MaxEscalationLevels: levels,
		PriorityBumpEvery:   s.PriorityBumpEvery,
	})
}

// AnalyticsCacheTTL returns how long SLA summaries are cached.
func (s SLAConfig) AnalyticsCacheTTL() time.Duration {
	return time.Duration(s.AnalyticsCacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsIntStrict is getEnvAsInt for settings where a silent fallback
// would change behavior.
func getEnvAsIntStrict(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsFloat returns an error for unparsable values instead of the fallback.
func getEnvAsFloat(key string, fallback float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
