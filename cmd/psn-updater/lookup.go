package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/ytget/psn-updater/internal/config"
	"github.com/ytget/psn-updater/internal/model"
	"github.com/ytget/psn-updater/internal/progress"
	"github.com/ytget/psn-updater/internal/query"
	"github.com/ytget/psn-updater/internal/titleid"
	"github.com/ytget/psn-updater/internal/transport"
	"github.com/ytget/psn-updater/internal/updates"
)

// runCheck prints the update packages of every title given.
func runCheck(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: psn-updater check [options] <TITLEID>...

Look up the update packages of one or more titles.

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

	ctx, stop := signalContext()
	defer stop()

	svc := newLookupService(cfg)
	code := ExitSuccess
	for _, raw := range fs.Args() {
		info, c := lookup(ctx, svc, raw)
		if c != ExitSuccess {
			code = max(code, c)
			continue
		}
		printInfo(stdout, info)
	}
	return code
}

func newLookupService(cfg config.Config) *updates.Service {
	client := query.NewClient(query.Options{
		HTTPClient: transport.New(cfg.QueryTransport()),
		Timeout:    cfg.QueryTimeout,
		Logger:     slog.Default(),
	})
	return updates.NewService(client, slog.Default())
}

// lookup resolves one title and maps the three lookup outcomes to exit
// codes: updates found, no updates, or a failed query.
func lookup(ctx context.Context, svc *updates.Service, raw string) (*model.UpdateInfo, int) {
	info, err := svc.Lookup(ctx, raw)
	switch {
	case errors.Is(err, titleid.ErrInvalidTitleID):
		fmt.Fprintf(os.Stderr, "Invalid title id %q: %v\n", raw, err)
		return nil, ExitInvalidArgs
	case updates.IsUnknownTitle(err):
		fmt.Fprintf(os.Stderr, "%s: unknown title id\n", titleid.Normalize(raw))
		return nil, ExitQueryFailed
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s: update query failed: %v\n", titleid.Normalize(raw), err)
		return nil, ExitQueryFailed
	case !info.HasUpdates():
		fmt.Fprintf(os.Stderr, "%s: no updates available\n", info.TitleID)
		return nil, ExitNoUpdates
	}
	return info, ExitSuccess
}

func printInfo(w io.Writer, info *model.UpdateInfo) {
	fmt.Fprintf(w, "%s - %s (%s)\n", info.TitleID, info.Title(), info.Platform)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  VERSION\tSIZE\tCHECKSUM\tFILE")
	for _, p := range info.Packages {
		sum := p.Checksum
		if sum == "" {
			sum = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.ID(), progress.FormatBytes(p.Size), sum, p.FileName())
	}
	tw.Flush()
	fmt.Fprintf(w, "  %d package(s), %s total\n", len(info.Packages), progress.FormatBytes(info.TotalSize()))
}
