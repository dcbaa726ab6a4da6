package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ytget/psn-updater/internal/archive"
	"github.com/ytget/psn-updater/internal/config"
	"github.com/ytget/psn-updater/internal/download"
	"github.com/ytget/psn-updater/internal/merge"
	"github.com/ytget/psn-updater/internal/model"
	"github.com/ytget/psn-updater/internal/platform"
	"github.com/ytget/psn-updater/internal/progress"
	"github.com/ytget/psn-updater/internal/transport"
	"github.com/ytget/psn-updater/internal/updates"
)

// runDownload downloads the update packages of every title given.
func runDownload(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	dir := fs.String("dir", "", "Download directory (overrides download.dir)")
	parallel := fs.Int("parallel", 0, "Simultaneous downloads (overrides download.max_parallel)")
	versions := fs.String("version", "", "Comma-separated versions to download (default: all)")
	showProgress := fs.Bool("progress", true, "Show progress output")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: psn-updater download [options] <TITLEID>...

Download and verify the update packages of one or more titles. Split PS4
packages are merged once every part verified.

Options:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return ExitInvalidArgs
	}

	cfg, err := setup(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if *dir != "" {
		cfg.DownloadDir = *dir
	}
	if *parallel != 0 {
		cfg.MaxParallel = *parallel
	}

	ctx, stop := signalContext()
	defer stop()

	var store *archive.Archive
	if cfg.Archive() {
		store, err = archive.Open(ctx, cfg.ArchiveBucketURL, cfg.ArchivePrefix, slog.Default())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitStorageError
		}
		defer store.Close()
	}

	svc := newLookupService(cfg)
	dl := download.NewHTTPDownloader(download.Options{
		HTTPClient:   transport.New(cfg.DownloadTransport()),
		ChunkSize:    cfg.ChunkSize,
		SkipExisting: cfg.SkipExisting,
		Logger:       slog.Default(),
	})

	code := ExitSuccess
	for _, raw := range fs.Args() {
		if ctx.Err() != nil {
			break
		}
		info, c := lookup(ctx, svc, raw)
		if c != ExitSuccess {
			code = max(code, c)
			continue
		}
		c = downloadTitle(ctx, cfg, dl, store, info, splitList(*versions), *showProgress, stdout)
		code = max(code, c)
	}
	return code
}

func downloadTitle(ctx context.Context, cfg config.Config, dl download.Downloader, store *archive.Archive,
	info *model.UpdateInfo, versions []string, showProgress bool, stdout io.Writer) int {
	entries := updates.SelectVersions(updates.Dedupe(info.Packages), versions...)
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "%s: no packages match versions %s\n", info.TitleID, strings.Join(versions, ","))
		return ExitNoUpdates
	}

	if err := platform.MigrateLegacyDir(cfg.DownloadDir, info.TitleID, info.Title()); err != nil {
		slog.Warn("could not migrate legacy package folder", "title_id", info.TitleID, "error", err)
	}

	tasks := updates.Plan(info, entries, cfg.DownloadDir)

	var observer download.Observer
	var reporter *progress.Reporter
	if showProgress {
		reporter = progress.NewReporter(progress.Options{
			Title:  info.TitleID + " - " + info.Title(),
			Tasks:  tasks,
			Output: stdout,
		})
		observer = reporter
	}

	coordinator := download.NewCoordinator(dl, download.CoordinatorOptions{
		MaxParallel: cfg.MaxParallel,
		Observer:    observer,
		Logger:      slog.Default(),
	})

	if reporter != nil {
		reporter.Start()
	}
	result, err := coordinator.Run(ctx, tasks)
	if reporter != nil {
		reporter.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", info.TitleID, err)
		return ExitInvalidArgs
	}

	fmt.Fprintf(stdout, "%s: %d succeeded (%d verified, %d unverified), %d failed\n",
		info.TitleID, result.Succeeded, result.Verified, result.Unverified, result.Failed)
	if !result.AllSucceeded() {
		return ExitDownloadFailed
	}

	if cfg.MergeParts && info.AllParts() && len(entries) == len(info.Packages) {
		outputs, err := merge.Parts(ctx, result.Tasks, func(part int) {
			fmt.Fprintf(stdout, "%s: merged part %d/%d\n", info.TitleID, part, len(entries))
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: merge failed: %v\n", info.TitleID, err)
			return ExitMergeFailed
		}
		for _, out := range outputs {
			fmt.Fprintf(stdout, "%s: merged package %s\n", info.TitleID, out)
		}
	}

	if store != nil {
		for _, t := range result.Tasks {
			file := model.VerifiedFile{Path: t.Destination, Size: t.BytesTransferred, Verified: t.Verified}
			if !file.Verified {
				slog.Warn("not archiving unverified package", "path", t.Destination)
				continue
			}
			if _, _, err := store.Store(ctx, file, t.Entry, info.TitleID); err != nil {
				fmt.Fprintf(os.Stderr, "%s: archive failed: %v\n", info.TitleID, err)
				return ExitStorageError
			}
		}
	}
	return ExitSuccess
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
