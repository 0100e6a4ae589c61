package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bamsammich/adbwire/internal/adb"
	"github.com/bamsammich/adbwire/internal/dump"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a single frame",
	Long: `Build one ADB frame and write it out. With --text the payload is the
string plus a NUL terminator, the form used for service names and banners.
With --hex the payload is taken verbatim.

Without -o the frame is printed as hex on stdout.`,
	Example: `  adbwire encode --command CNXN --arg0 0x01000000 --arg1 0x100000 --text host::
  adbwire encode --command OKAY --arg0 1 --arg1 5 -o okay.bin`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runEncode,
}

func init() {
	encodeCmd.Flags().String("command", "", "command tag (CNXN, OPEN, OKAY, CLSE, WRTE, SYNC)")
	encodeCmd.Flags().String("arg0", "0", "first argument (decimal or 0x hex)")
	encodeCmd.Flags().String("arg1", "0", "second argument (decimal or 0x hex)")
	encodeCmd.Flags().String("text", "", "payload text (NUL-terminated on the wire)")
	encodeCmd.Flags().String("hex", "", "payload bytes as hex")
	encodeCmd.Flags().StringP("output", "o", "", "write raw frame bytes to FILE")
	encodeCmd.MarkFlagsMutuallyExclusive("text", "hex")
	_ = encodeCmd.MarkFlagRequired("command") //nolint:errcheck // flag defined above
}

func parseArg(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid argument %q: %w", s, err)
	}
	return uint32(v), nil //nolint:gosec // G115: ParseUint bounded to 32 bits
}

// buildFrame assembles the frame described by the encode flags.
func buildFrame(command, arg0s, arg1s, text, hexPayload string, hasText bool) (*adb.Message, error) {
	cmd, err := adb.ParseCommand(command)
	if err != nil {
		return nil, err
	}
	arg0, err := parseArg(arg0s)
	if err != nil {
		return nil, err
	}
	arg1, err := parseArg(arg1s)
	if err != nil {
		return nil, err
	}

	var m *adb.Message
	switch {
	case hasText:
		m = adb.CreateString(cmd, arg0, arg1, text)
	case hexPayload != "":
		payload, err := hex.DecodeString(hexPayload)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		m = adb.Create(cmd, arg0, arg1, payload)
	default:
		m = adb.Create(cmd, arg0, arg1, nil)
	}

	h, _ := m.Header()
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func runEncode(cmd *cobra.Command, _ []string) error {
	command, _ := cmd.Flags().GetString("command") //nolint:errcheck // flag name is hardcoded
	arg0, _ := cmd.Flags().GetString("arg0")       //nolint:errcheck // flag name is hardcoded
	arg1, _ := cmd.Flags().GetString("arg1")       //nolint:errcheck // flag name is hardcoded
	text, _ := cmd.Flags().GetString("text")       //nolint:errcheck // flag name is hardcoded
	hexPayload, _ := cmd.Flags().GetString("hex")  //nolint:errcheck // flag name is hardcoded
	output, _ := cmd.Flags().GetString("output")   //nolint:errcheck // flag name is hardcoded

	m, err := buildFrame(command, arg0, arg1, text, hexPayload, cmd.Flags().Changed("text"))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), dump.Describe(m, dump.DefaultOptions()))

	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(m.Bytes()))
		return nil
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return errors.Join(f.Sync(), f.Close())
}
