package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Ledger LedgerConfig
}

// LedgerConfig carries the financial-ledger tunables.
type LedgerConfig struct {
	// GraceDays is the default number of days past due before a pending
	// installment counts as overdue.
	GraceDays int
	// TrackableMethods are the payment methods overdue tracking applies to.
	// Cash is excluded: there is nothing to chase on a cash sale.
	TrackableMethods []string
	// InstallmentMethods are the payment methods that may be split into
	// installments.
	InstallmentMethods []string
	// InstallmentCadenceMonths is the gap between consecutive installment
	// due dates.
	InstallmentCadenceMonths int
	// SettlementRetries bounds the optimistic-concurrency retry loop when
	// two payments race on the same finance.
	SettlementRetries int

	SweepInterval  time.Duration
	RepairInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "clinvia"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "clinvia"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		Ledger: LedgerConfig{
			GraceDays:                getenvInt("LEDGER_GRACE_DAYS", 5),
			TrackableMethods:         getenvList("LEDGER_TRACKABLE_METHODS", "credito,debito,pix,transferencia,boleto"),
			InstallmentMethods:       getenvList("LEDGER_INSTALLMENT_METHODS", "credito,boleto"),
			InstallmentCadenceMonths: getenvInt("LEDGER_INSTALLMENT_CADENCE_MONTHS", 1),
			SettlementRetries:        getenvInt("LEDGER_SETTLEMENT_RETRIES", 3),
			SweepInterval:            getenvDuration("LEDGER_SWEEP_INTERVAL", 6*time.Hour),
			RepairInterval:           getenvDuration("LEDGER_REPAIR_INTERVAL", time.Hour),
		},
	}

	return cfg
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return value
}

func getenvList(key, fallback string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
