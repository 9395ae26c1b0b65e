// Package config loads the scheduler's environment-driven configuration,
// grounded on the teacher's environment-variable conventions in its
// deployable wrapper. The scheduler core itself consumes only two of
// these fields directly (data directory and framework id); the rest are
// carried for the deployable wrapper per §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the scheduler process's full environment-driven configuration.
type Config struct {
	// Database connection pieces (owned by the deployable wrapper's
	// persistence layer; the core only receives a JobExecutionStore).
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// ClusterMasterURL is the cluster resource manager's address.
	ClusterMasterURL string

	// LeaderElectionURL is optional; its absence means a single-instance
	// scheduler (spec §6).
	LeaderElectionURL string

	// Elasticsearch fields are optional and unused by the core itself;
	// they are carried for the deployable wrapper's log shipping.
	ElasticsearchURL            string
	ElasticsearchSniffOnStart   bool
	ElasticsearchSniffOnFail    bool
	ElasticsearchSnifferTimeout time.Duration

	APIURLPrefix string
	AllowedHosts []string

	ImageName string
	ImageTag  string

	// DataDir is where the embedded bbolt store keeps its file.
	DataDir string

	// NodeErrorPeriod and MaxNodeErrors carry quarantine tuning from the
	// environment. Nothing in this module turns them into a
	// quarantine.Settings.
	NodeErrorPeriod time.Duration
	MaxNodeErrors   int

	FrameworkID string
}

// Load populates a Config from environment variables, applying the same
// defaults the teacher's deployable wrapper does for anything optional.
func Load() (*Config, error) {
	cfg := &Config{
		DBHost:                      getEnv("SCHEDULER_DB_HOST", "localhost"),
		DBPort:                      getEnvInt("SCHEDULER_DB_PORT", 5432),
		DBName:                      getEnv("SCHEDULER_DB_NAME", "scheduler"),
		DBUser:                      getEnv("SCHEDULER_DB_USER", "scheduler"),
		DBPassword:                  os.Getenv("SCHEDULER_DB_PASSWORD"),
		ClusterMasterURL:            getEnv("SCHEDULER_CLUSTER_MASTER_URL", ""),
		LeaderElectionURL:           os.Getenv("SCHEDULER_LEADER_ELECTION_URL"),
		ElasticsearchURL:            os.Getenv("SCHEDULER_ELASTICSEARCH_URL"),
		ElasticsearchSniffOnStart:   getEnvBool("SCHEDULER_ES_SNIFF_ON_START", true),
		ElasticsearchSniffOnFail:    getEnvBool("SCHEDULER_ES_SNIFF_ON_FAIL", true),
		ElasticsearchSnifferTimeout: getEnvDuration("SCHEDULER_ES_SNIFFER_TIMEOUT", 60*time.Second),
		APIURLPrefix:                getEnv("SCHEDULER_API_URL_PREFIX", "/api/v1"),
		ImageName:                   getEnv("SCHEDULER_IMAGE_NAME", ""),
		ImageTag:                    getEnv("SCHEDULER_IMAGE_TAG", "latest"),
		DataDir:                     getEnv("SCHEDULER_DATA_DIR", "./data"),
		NodeErrorPeriod:             getEnvDuration("SCHEDULER_NODE_ERROR_PERIOD", 0),
		MaxNodeErrors:               getEnvInt("SCHEDULER_MAX_NODE_ERRORS", 5),
		FrameworkID:                 getEnv("SCHEDULER_FRAMEWORK_ID", "scale"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on missing required fields, matching the teacher's
// fail-fast construction style.
func (c *Config) Validate() error {
	if c.ClusterMasterURL == "" {
		return fmt.Errorf("config: SCHEDULER_CLUSTER_MASTER_URL is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: SCHEDULER_DATA_DIR is required")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
