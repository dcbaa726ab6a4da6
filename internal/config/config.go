package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ytget/psn-updater/internal/download"
	"github.com/ytget/psn-updater/internal/platform"
	"github.com/ytget/psn-updater/internal/transport"
)

const (
	defaultConfigName = "config"
	envPrefix         = "PSNU"
)

// Configuration keys
const (
	KeyDownloadDir        = "download.dir"
	KeyMaxParallel        = "download.max_parallel"
	KeyChunkSize          = "download.chunk_size"
	KeySkipExisting       = "download.skip_existing"
	KeyQueryTimeout       = "query.timeout"
	KeyInsecureSkipVerify = "http.insecure_skip_verify"
	KeyUserAgent          = "http.user_agent"
	KeyMergeParts         = "merge.parts"
	KeyArchiveBucketURL   = "archive.bucket_url"
	KeyArchivePrefix      = "archive.prefix"
	KeyLogLevel           = "log.level"
)

// Default values
const (
	DefaultQueryTimeout     = 20 * time.Second
	DefaultLogLevel         = "info"
	DefaultSkipExisting     = true
	DefaultMergeParts       = true
	DefaultInsecureSkipTLS  = true
	DefaultArchiveKeyPrefix = "psn-updates"
)

type Config struct {
	DownloadDir  string
	MaxParallel  int
	ChunkSize    int
	SkipExisting bool

	QueryTimeout       time.Duration
	InsecureSkipVerify bool
	UserAgent          string

	MergeParts bool

	// ArchiveBucketURL enables mirroring of verified packages when set.
	ArchiveBucketURL string
	ArchivePrefix    string

	LogLevel slog.Level

	// File is the config file that was read, empty when none was found.
	File string
}

// Load reads the configuration. An explicit path must exist; without one
// config.yaml is searched in the working directory and config/, and a
// missing file is fine.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDownloadDir, platform.DefaultDownloadDir())
	v.SetDefault(KeyMaxParallel, download.DefaultMaxParallel)
	v.SetDefault(KeyChunkSize, download.DefaultChunkSize)
	v.SetDefault(KeySkipExisting, DefaultSkipExisting)
	v.SetDefault(KeyQueryTimeout, DefaultQueryTimeout)
	v.SetDefault(KeyInsecureSkipVerify, DefaultInsecureSkipTLS)
	v.SetDefault(KeyUserAgent, transport.DefaultUserAgent)
	v.SetDefault(KeyMergeParts, DefaultMergeParts)
	v.SetDefault(KeyArchiveBucketURL, "")
	v.SetDefault(KeyArchivePrefix, DefaultArchiveKeyPrefix)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		DownloadDir:        expandHome(strings.TrimSpace(v.GetString(KeyDownloadDir))),
		MaxParallel:        clampParallel(v.GetInt(KeyMaxParallel)),
		ChunkSize:          int(v.GetSizeInBytes(KeyChunkSize)),
		SkipExisting:       v.GetBool(KeySkipExisting),
		QueryTimeout:       v.GetDuration(KeyQueryTimeout),
		InsecureSkipVerify: v.GetBool(KeyInsecureSkipVerify),
		UserAgent:          strings.TrimSpace(v.GetString(KeyUserAgent)),
		MergeParts:         v.GetBool(KeyMergeParts),
		ArchiveBucketURL:   strings.TrimSpace(v.GetString(KeyArchiveBucketURL)),
		ArchivePrefix:      strings.Trim(strings.TrimSpace(v.GetString(KeyArchivePrefix)), "/"),
		File:               v.ConfigFileUsed(),
	}

	if cfg.DownloadDir == "" {
		return Config{}, fmt.Errorf("%s must not be empty", KeyDownloadDir)
	}
	if cfg.ChunkSize <= 0 {
		return Config{}, fmt.Errorf("invalid %s %q", KeyChunkSize, v.GetString(KeyChunkSize))
	}
	if cfg.QueryTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid %s %q", KeyQueryTimeout, v.GetString(KeyQueryTimeout))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v.GetString(KeyLogLevel)))); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	if cfg.File == "" || !fileExists(cfg.File) {
		cfg.File = ""
	}
	return cfg, nil
}

// Archive reports whether package mirroring is enabled.
func (c Config) Archive() bool {
	return c.ArchiveBucketURL != ""
}

// QueryTransport returns the HTTP options for vendor queries.
func (c Config) QueryTransport() transport.Options {
	opts := transport.DefaultOptions()
	opts.Timeout = c.QueryTimeout
	opts.InsecureSkipVerify = c.InsecureSkipVerify
	opts.UserAgent = c.UserAgent
	return opts
}

// DownloadTransport returns the HTTP options for package transfers, which
// carry no overall timeout.
func (c Config) DownloadTransport() transport.Options {
	opts := c.QueryTransport()
	opts.Timeout = 0
	opts.MaxIdleConnsPerHost = max(c.MaxParallel, opts.MaxIdleConnsPerHost)
	return opts
}

func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > download.MaxParallelLimit {
		return download.MaxParallelLimit
	}
	return n
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
