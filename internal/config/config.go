package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	SourcePostgres = "postgres"
	SourceGTFS     = "gtfs"
	SourceFixture  = "fixture"
)

type Config struct {
	TimetableSource  string `validate:"oneof=postgres gtfs fixture"`
	GTFSPath         string `validate:"required_unless=TimetableSource postgres"`
	DatabaseURL      string `validate:"required_if=TimetableSource postgres"`
	City             string
	ServiceDate      time.Time
	ServiceDateFixed bool // SERVICE_DATE given; otherwise each load uses today
	Location         *time.Location `validate:"required"`

	NATSURL          string `validate:"required"`
	NATSQuerySubject string `validate:"required"`
	NATSResultPrefix string `validate:"required"`
	LogNATSSubjects  bool

	MaxRounds            int           `validate:"gt=0"`
	QueryTimeout         time.Duration `validate:"gt=0"`
	MaxConcurrentQueries int           `validate:"gt=0"`
	RefreshInterval      time.Duration `validate:"gte=0"`
	MetricsAddr          string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.TimetableSource = strings.ToLower(getenvDefault("TIMETABLE_SOURCE", SourcePostgres))
	cfg.GTFSPath = os.Getenv("GTFS_PATH")

	if cfg.TimetableSource == SourcePostgres {
		dsn, err := databaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	}

	// City name for dynamic DB resolution
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))

	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	if v := os.Getenv("SERVICE_DATE"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVICE_DATE: %q", v)
		}
		cfg.ServiceDate = d
		cfg.ServiceDateFixed = true
	} else {
		now := time.Now().In(cfg.Location)
		cfg.ServiceDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, cfg.Location)
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSQuerySubject = getenvDefault("NATS_QUERY_SUBJECT", "raptor.query")
	cfg.NATSResultPrefix = getenvDefault("NATS_RESULT_PREFIX", "raptor.result")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	var err error
	if cfg.MaxRounds, err = positiveInt("MAX_ROUNDS", 8); err != nil {
		return nil, err
	}
	ms, err := positiveInt("QUERY_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	cfg.QueryTimeout = time.Duration(ms) * time.Millisecond
	if cfg.MaxConcurrentQueries, err = positiveInt("MAX_CONCURRENT_QUERIES", 16); err != nil {
		return nil, err
	}

	// Timetable refresh interval (seconds); 0 disables
	if v := os.Getenv("TIMETABLE_REFRESH_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid TIMETABLE_REFRESH_INTERVAL_SEC: %q", v)
		}
		cfg.RefreshInterval = time.Duration(sec) * time.Second
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and reports the first failing field by name.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("invalid config: %s failed %q", verrs[0].Field(), verrs[0].Tag())
	}
	return err
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	// If CITY is provided, default base DB to 'postgres' when PGDATABASE is not set.
	if db == "" && firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME")) != "" {
		db = "postgres"
	}
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set (set PGDATABASE=postgres when using CITY)")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func positiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
