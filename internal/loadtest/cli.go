package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/scalefilter/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log lines to stdout and to logFile. An empty logFile
// gets a timestamped name. The returned closer closes the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file, nil
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Scale filter load test
======================

Submits generated reading batches to a running scale service and verifies
that every stored reading was scaled exactly once.

Usage:
  loadtest [options]

Options:
  -url string         Base URL of the service (default "http://localhost:9080")
  -batches int        Number of batches to submit (default 1000)
  -readings int       Readings per batch (default 10)
  -dup float          Share of batches re-submitted with the same id (default 0.1)
  -workers int        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration   HTTP request timeout (default 30s)
  -settle duration    Time allowed for the service to drain (default 1m)
  -output string      File to write the generated batches to
  -log string         Log file (default: loadtest_TIMESTAMP.log)
  -verbose            Enable debug logging
  -help               Show this help message
`)
}
