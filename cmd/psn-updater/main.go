// Command psn-updater looks up and downloads PlayStation 3 and PlayStation 4
// game update packages.
//
//	psn-updater check BCUS98148 CUSA00127
//	psn-updater download -version 01.13 BCUS98148
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/ytget/psn-updater/internal/config"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitQueryFailed    = 3
	ExitNoUpdates      = 4
	ExitDownloadFailed = 5
	ExitMergeFailed    = 6
	ExitStorageError   = 7
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "check":
		return runCheck(cmdArgs, stdout)
	case "download":
		return runDownload(cmdArgs, stdout)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: psn-updater <command> [options] <TITLEID>...

Commands:
  check     Look up the update packages of one or more titles
  download  Download, verify and optionally merge and archive update packages

Configuration is read from config.yaml (. or config/) or -config, and
PSNU_* environment variables, e.g. PSNU_DOWNLOAD_DIR, PSNU_LOG_LEVEL.

Use "psn-updater <command> -h" for command options.`)
}

// setup loads the configuration and installs the default logger.
func setup(configPath string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	runID := "run-" + uuid.NewString()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})).With("run_id", runID))

	if cfg.File != "" {
		slog.Debug("config loaded", "file", cfg.File)
	}
	return cfg, nil
}
