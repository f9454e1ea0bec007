package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	PrimaryInput string
	AuxInput     string
	FlatOutput   string
	XLSXOutput   string

	TabularSink string
	TableName   string

	PipelineWorkers int
	JoinPartitions  int
	FailOnMalformed bool
	FlatEscape      bool

	GCPProject      string
	BigQueryDataset string
	BigQueryTable   string
	BigQueryPollRPS int
	BigQueryTimeout int
	GCSBucket       string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "suppliers.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		PrimaryInput: getEnv("PRIMARY_INPUT", filepath.Join(cwd, "data", "sample_suppliers_data.json")),
		AuxInput:     getEnv("AUX_INPUT", filepath.Join(cwd, "data", "company_ceo_data.csv")),
		FlatOutput:   getEnv("FLAT_OUTPUT", filepath.Join(cwd, "out", "suppliers_data_output.csv")),
		XLSXOutput:   getEnv("XLSX_OUTPUT", ""),

		TabularSink: strings.ToLower(strings.TrimSpace(getEnv("TABULAR_SINK", "sqlite"))),
		TableName:   getEnv("TABLE_NAME", "suppliers_data"),

		PipelineWorkers: getEnvInt("PIPELINE_WORKERS", 4),
		JoinPartitions:  getEnvInt("JOIN_PARTITIONS", 8),
		FailOnMalformed: getEnvBool("FAIL_ON_MALFORMED", false),
		FlatEscape:      getEnvBool("FLAT_ESCAPE", true),

		GCPProject:      getEnv("GCP_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "suppliers_data"),
		BigQueryTable:   getEnv("BIGQUERY_TABLE", "suppliers"),
		BigQueryPollRPS: getEnvInt("BIGQUERY_POLL_RPS", 1),
		BigQueryTimeout: getEnvInt("BIGQUERY_TIMEOUT_MS", 600000),
		GCSBucket:       getEnv("GCS_BUCKET", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
	}

	if cfg.PipelineWorkers <= 0 {
		cfg.PipelineWorkers = 1
	}
	if cfg.JoinPartitions <= 0 {
		cfg.JoinPartitions = 1
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
