package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/adbwire/internal/capture"
	"github.com/bamsammich/adbwire/internal/dump"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <capture>",
	Short: "Print every frame in a capture file",
	Long: `Decode a capture file (the raw bytes of one direction of an ADB
connection) and print one line per frame. Files ending in .zst are
decompressed. Use "-" to read from stdin.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDecode,
}

func init() {
	decodeCmd.Flags().Bool("digest", false, "show a BLAKE3 digest of each payload")
	decodeCmd.Flags().Int("preview", dump.DefaultPreview, "payload bytes to preview (0 disables)")
}

func dumpOptions(cmd *cobra.Command) dump.Options {
	opts := dump.DefaultOptions()
	if cfg.Dump.Digest != nil {
		opts.Digest = *cfg.Dump.Digest
	}
	if cfg.Dump.Preview != nil {
		opts.Preview = *cfg.Dump.Preview
	}
	if cmd.Flags().Changed("digest") {
		opts.Digest, _ = cmd.Flags().GetBool("digest") //nolint:errcheck // flag name is hardcoded
	}
	if cmd.Flags().Changed("preview") {
		opts.Preview, _ = cmd.Flags().GetInt("preview") //nolint:errcheck // flag name is hardcoded
	}
	return opts
}

func runDecode(cmd *cobra.Command, args []string) error {
	opts := dumpOptions(cmd)

	var src io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := capture.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	snap, err := dump.Decode(src, cmd.OutOrStdout(), opts)
	slog.Info("decode finished", "stats", snap.String())
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	return nil
}
