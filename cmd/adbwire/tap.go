package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/adbwire/internal/config"
	"github.com/bamsammich/adbwire/internal/tap"
)

const (
	defaultTapListen   = "127.0.0.1:5038"
	defaultTapUpstream = "127.0.0.1:5037"
)

var tapCmd = &cobra.Command{
	Use:   "tap",
	Short: "Proxy ADB traffic and log every frame",
	Long: `Run a TCP proxy between an ADB client and an ADB endpoint (an adbd
listening on TCP, or a forwarded device port). Every frame in both
directions is decoded, logged and re-encoded.

Any frame that fails to decode ends that session: the stream cannot be
resynchronized, so both sides are disconnected.

With --record, each session writes two zstd capture files (c2s and s2c)
that "adbwire decode" can read back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTap,
}

func init() {
	tapCmd.Flags().String("listen", defaultTapListen, "listen address (host:port)")
	tapCmd.Flags().String("upstream", defaultTapUpstream, "address to relay to (host:port)")
	tapCmd.Flags().String("record", "", "directory for per-session capture files")
	tapCmd.Flags().String("bwlimit", "", "per-session bandwidth limit (e.g. 10MB, 512K)")
	tapCmd.Flags().Bool("digest", false, "log a BLAKE3 digest of each payload")
	tapCmd.Flags().Int("preview", 0, "payload bytes to preview in logs")
}

func runTap(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	listen, _ := flags.GetString("listen")     //nolint:errcheck // flag name is hardcoded
	upstream, _ := flags.GetString("upstream") //nolint:errcheck // flag name is hardcoded
	record, _ := flags.GetString("record")     //nolint:errcheck // flag name is hardcoded
	bwlimit, _ := flags.GetString("bwlimit")   //nolint:errcheck // flag name is hardcoded

	if !flags.Changed("listen") {
		listen = config.StringOr(cfg.Tap.Listen, listen)
	}
	if !flags.Changed("upstream") {
		upstream = config.StringOr(cfg.Tap.Upstream, upstream)
	}
	if !flags.Changed("record") {
		record = config.StringOr(cfg.Tap.RecordDir, record)
	}
	if !flags.Changed("bwlimit") {
		bwlimit = config.StringOr(cfg.Tap.BWLimit, bwlimit)
	}

	limit, err := config.ParseBandwidth(bwlimit)
	if err != nil {
		return fmt.Errorf("--bwlimit: %w", err)
	}
	if record != "" {
		if err := os.MkdirAll(record, 0o755); err != nil {
			return fmt.Errorf("create record dir: %w", err)
		}
	}

	opts := dumpOptions(cmd)
	if !flags.Changed("preview") && cfg.Dump.Preview == nil {
		opts.Preview = 0
	}

	t, err := tap.New(tap.Config{
		Logger:     slog.Default(),
		ListenAddr: listen,
		Upstream:   upstream,
		RecordDir:  record,
		Dump:       opts,
		BWLimit:    limit,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return t.Serve(ctx)
}
