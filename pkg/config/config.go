package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Transition policy modes for the applicant status engine.
const (
	TransitionPolicyWarn   = "warn"
	TransitionPolicyStrict = "strict"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Admissions AdmissionsConfig
	Mail       MailConfig
	Summary    SummaryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdmissionsConfig tunes the admission pipeline rules.
type AdmissionsConfig struct {
	CampusAlphaCode         string
	CampusNumericCode       string
	ExamDefaultTotalItems   int
	ExamPassingRatio        float64
	DeclineReasonMaxLength  int
	InterviewOnlyCategories []string
	ExamCategories          []string
	RequiredDocuments       map[string][]string
	TransitionPolicy        string
	ProgramHeadRole         string
}

// MailConfig configures the asynchronous status mail dispatcher.
type MailConfig struct {
	From       string
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// SummaryConfig governs caching of the pipeline summary endpoint.
type SummaryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	ratio := v.GetFloat64("EXAM_PASSING_RATIO")
	if ratio <= 0 || ratio > 1 {
		ratio = 0.75
	}
	totalItems := v.GetInt("EXAM_DEFAULT_TOTAL_ITEMS")
	if totalItems <= 0 {
		totalItems = 75
	}
	reasonMax := v.GetInt("DECLINE_REASON_MAX_LENGTH")
	if reasonMax <= 0 {
		reasonMax = 500
	}
	policy := strings.ToLower(strings.TrimSpace(v.GetString("TRANSITION_POLICY")))
	if policy != TransitionPolicyStrict {
		policy = TransitionPolicyWarn
	}
	cfg.Admissions = AdmissionsConfig{
		CampusAlphaCode:         strings.ToUpper(v.GetString("CAMPUS_ALPHA_CODE")),
		CampusNumericCode:       v.GetString("CAMPUS_NUMERIC_CODE"),
		ExamDefaultTotalItems:   totalItems,
		ExamPassingRatio:        ratio,
		DeclineReasonMaxLength:  reasonMax,
		InterviewOnlyCategories: upperAll(splitAndTrim(v.GetString("INTERVIEW_ONLY_CATEGORIES"))),
		ExamCategories:          upperAll(splitAndTrim(v.GetString("EXAM_CATEGORIES"))),
		RequiredDocuments:       ParseRequiredDocuments(v.GetString("REQUIRED_DOCUMENTS")),
		TransitionPolicy:        policy,
		ProgramHeadRole:         v.GetString("PROGRAM_HEAD_ROLE"),
	}

	cfg.Mail = MailConfig{
		From:       v.GetString("MAIL_FROM"),
		Workers:    v.GetInt("MAIL_WORKERS"),
		Retries:    v.GetInt("MAIL_RETRIES"),
		RetryDelay: parseDuration(v.GetString("MAIL_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Summary = SummaryConfig{
		CacheEnabled: v.GetBool("ENABLE_SUMMARY_CACHE"),
		CacheTTL:     parseDuration(v.GetString("SUMMARY_CACHE_TTL"), 2*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admissions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CAMPUS_ALPHA_CODE", "MN")
	v.SetDefault("CAMPUS_NUMERIC_CODE", "01")
	v.SetDefault("EXAM_DEFAULT_TOTAL_ITEMS", 75)
	v.SetDefault("EXAM_PASSING_RATIO", 0.75)
	v.SetDefault("DECLINE_REASON_MAX_LENGTH", 500)
	v.SetDefault("INTERVIEW_ONLY_CATEGORIES", "TESDA,DIPLOMA")
	v.SetDefault("EXAM_CATEGORIES", "")
	v.SetDefault("REQUIRED_DOCUMENTS", "")
	v.SetDefault("TRANSITION_POLICY", TransitionPolicyWarn)
	v.SetDefault("PROGRAM_HEAD_ROLE", "PROGRAM_HEAD")

	v.SetDefault("MAIL_FROM", "admissions@localhost")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_RETRIES", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_SUMMARY_CACHE", false)
	v.SetDefault("SUMMARY_CACHE_TTL", "2m")
}

// ParseRequiredDocuments parses "CHED:form 138|birth certificate;TESDA:birth certificate".
func ParseRequiredDocuments(raw string) map[string][]string {
	result := make(map[string][]string)
	for _, group := range strings.Split(raw, ";") {
		category, types, found := strings.Cut(group, ":")
		if !found {
			continue
		}
		category = strings.ToUpper(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		for _, t := range strings.Split(types, "|") {
			if t = strings.TrimSpace(t); t != "" {
				result[category] = append(result[category], t)
			}
		}
	}
	return result
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func upperAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToUpper(v)
	}
	return values
}
