package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jitdump/internal/disasm"
	"jitdump/internal/dump"
)

var rawCmd = &cobra.Command{
	Use:   "raw <arch> <file|->",
	Short: "Disassemble raw machine code",
	Long: `Disassemble a file of raw machine code, or stdin when the file is "-".
The code is taken to be loaded at --base. No symbols or debug info are
available, so only local labels are printed.`,
	Example: `
# A JIT buffer dumped to disk
jitdump raw --base 0x7f0012340000 amd64 buffer.bin

# From stdin, with raw bytes
printf '\x1f\x20\x03\xd5\xc0\x03\x5f\xd6' | jitdump raw --binary arm64 -
  `,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return profiled(cmd, func() error {
			return runRaw(cmd, args[0], args[1])
		})
	},
}

func init() {
	addOutputFlags(rawCmd)
	rawCmd.Flags().String("base", "0x0", "Address the code is loaded at")
	rootCmd.AddCommand(rawCmd)
}

func runRaw(cmd *cobra.Command, archName, path string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	arch, err := disasm.DefaultTargets().Lookup(archName)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(disasm.DefaultTargets().Names(), ", "))
	}
	baseFlag, _ := cmd.Flags().GetString("base")
	base, err := parseAddress(baseFlag)
	if err != nil {
		return err
	}

	var code []byte
	if path == "-" {
		code, err = io.ReadAll(cmd.InOrStdin())
	} else {
		code, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no code in %s", path)
	}

	text, err := dump.String(code, dump.Region{Base: base, Size: uint64(len(code))}, arch, dump.Options{
		Syntax:    disasm.ParseSyntax(cfg.Syntax),
		DebugInfo: cfg.DebugInfo,
		Binary:    cfg.Binary,
		LineStart: cfg.LineStart,
		Logger:    slog.Default(),
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd, text, cfg.LineStart)
}

// parseAddress accepts 0x-prefixed hex, 0-prefixed octal and decimal.
func parseAddress(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}
