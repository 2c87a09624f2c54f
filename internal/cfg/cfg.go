package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	ClaudeAPIKey          string
	ClaudeSexModel        string
	ClaudeRaceModel       string
	ClaudeAgeModel        string
	ClaudeTimeoutSeconds  int
	Workers               int
	AgeEarlyOffset        int
	AgeMidOffset          int
	AgeLateOffset         int
	DatabaseURL           string
	RawTable              string
	SourceBatchSize       int
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token for API access (empty = auth disabled)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeSexModel, "claude-sex-model", "claude-3-5-haiku-20241022", "Claude model for sex classification")
	fs.StringVar(&c.ClaudeRaceModel, "claude-race-model", "claude-3-5-haiku-20241022", "Claude model for race classification")
	fs.StringVar(&c.ClaudeAgeModel, "claude-age-model", "claude-3-5-haiku-20241022", "Claude model for age extraction")
	fs.IntVar(&c.ClaudeTimeoutSeconds, "claude-timeout-seconds", 30, "per-call timeout for Claude requests (1..120)")
	fs.IntVar(&c.Workers, "workers", 8, "concurrent cleansing workers per run (1..64)")
	fs.IntVar(&c.AgeEarlyOffset, "age-early-offset", 2, `offset within a decade for "early" phrasings (0..9)`)
	fs.IntVar(&c.AgeMidOffset, "age-mid-offset", 5, `offset within a decade for "mid" phrasings (0..9)`)
	fs.IntVar(&c.AgeLateOffset, "age-late-offset", 8, `offset within a decade for "late" phrasings (0..9)`)
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.RawTable, "raw-table", "", "PostgreSQL table holding raw demographic rows (empty = no run source)")
	fs.IntVar(&c.SourceBatchSize, "source-batch-size", 500, "rows fetched per raw source query (1..10000)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Claude API key is required for LLM access
	if c.ClaudeAPIKey == "" {
		errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
	}

	// Every field cleanser needs a model
	if c.ClaudeSexModel == "" {
		errs = append(errs, errors.New("CLAUDE_SEX_MODEL is required"))
	}
	if c.ClaudeRaceModel == "" {
		errs = append(errs, errors.New("CLAUDE_RACE_MODEL is required"))
	}
	if c.ClaudeAgeModel == "" {
		errs = append(errs, errors.New("CLAUDE_AGE_MODEL is required"))
	}

	if c.ClaudeTimeoutSeconds <= 0 || c.ClaudeTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid CLAUDE_TIMEOUT_SECONDS %d (must be 1..120)", c.ClaudeTimeoutSeconds))
	}

	if c.Workers <= 0 || c.Workers > 64 {
		errs = append(errs, fmt.Errorf("invalid WORKERS %d (must be 1..64)", c.Workers))
	}

	for _, off := range []struct {
		name  string
		value int
	}{
		{"AGE_EARLY_OFFSET", c.AgeEarlyOffset},
		{"AGE_MID_OFFSET", c.AgeMidOffset},
		{"AGE_LATE_OFFSET", c.AgeLateOffset},
	} {
		if off.value < 0 || off.value > 9 {
			errs = append(errs, fmt.Errorf("invalid %s %d (must be 0..9)", off.name, off.value))
		}
	}

	if c.SourceBatchSize <= 0 || c.SourceBatchSize > 10000 {
		errs = append(errs, fmt.Errorf("invalid SOURCE_BATCH_SIZE %d (must be 1..10000)", c.SourceBatchSize))
	}

	// A raw table without a database has nothing to read from
	if c.RawTable != "" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("RAW_TABLE requires DATABASE_URL"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
