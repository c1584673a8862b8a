package config

import (
	"fmt"
	"os"
)

const sampleTemplate = `# grimoire configuration
#
# All paths accept ~ for the home directory.

[paths]
# Job status documents, the processing ledger, and the chunk index.
data_dir = "%s"
# Each job writes its artifacts under its own directory here.
artifacts_dir = "%s"
log_dir = "%s"

[pipeline]
# Tags every job, ledger row, and status record.
environment = "%s"
# Upper bound on any single progress callback, in seconds.
callback_timeout_seconds = %d
# Completed job records kept on disk.
history_retention = %d
# Allow skipping extraction for sources already processed in this environment.
bypass_enabled = true

[logging]
# console or json
format = "%s"
level = "%s"
`

// ExpandPath resolves ~ and relative segments into an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes a commented sample configuration to the given path.
func CreateSample(path string) error {
	content := fmt.Sprintf(sampleTemplate,
		defaultDataDir,
		defaultArtifactsDir,
		defaultLogDir,
		defaultEnvironment,
		defaultCallbackTimeout,
		defaultHistoryRetention,
		defaultLogFormat,
		defaultLogLevel,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
