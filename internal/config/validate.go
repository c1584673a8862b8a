package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.ArtifactsDir) == "" {
		problems = append(problems, "paths.artifacts_dir must not be empty")
	}
	if strings.TrimSpace(c.Pipeline.Environment) == "" {
		problems = append(problems, "pipeline.environment must not be empty")
	}
	if c.Pipeline.CallbackTimeout <= 0 {
		problems = append(problems, "pipeline.callback_timeout_seconds must be positive")
	}
	if c.Pipeline.HistoryRetention <= 0 {
		problems = append(problems, "pipeline.history_retention must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
