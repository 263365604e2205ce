package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"jitdump/internal/config"
	"jitdump/internal/jitdump/log"
	"jitdump/internal/ui/colorize"
)

var rootCmd = &cobra.Command{
	Use:   "jitdump",
	Short: "Annotated disassembly of machine code",
	Long: `jitdump disassembles a region of machine code into assembly text.
Branch and call targets inside the region get local labels, addresses
outside it are named from the symbol table, and source locations from the
debug info (including inlined calls) are printed as comment lines.`,
	Example: `
# Disassemble a function of an ELF binary
jitdump dump ./server main.handle

# Disassemble 64 bytes at an address, Intel syntax
jitdump dump --syntax intel --size 64 ./server 0x4011f0

# Disassemble raw bytes read from stdin
printf '\xe8\x00\x00\x00\x00\xc3' | jitdump raw amd64 -
  `,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.Setup(debug)

		noColor, _ := cmd.Flags().GetBool("no-color")
		if noColor || !term.IsTerminal(os.Stdout.Fd()) {
			os.Setenv("JITDUMP_NO_COLOR", "1")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "JSON configuration file")
	rootCmd.PersistentFlags().String("cpuprofile", "", "Write CPU profile to file")
	rootCmd.PersistentFlags().String("memprofile", "", "Write memory profile to file")
}

func Execute() {
	// fang renders help and errors for a terminal; piped output stays plain
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the output flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("syntax") {
		cfg.Syntax, _ = flags.GetString("syntax")
	}
	if flags.Changed("debuginfo") {
		cfg.DebugInfo, _ = flags.GetString("debuginfo")
	}
	if flags.Changed("binary") {
		cfg.Binary, _ = flags.GetBool("binary")
	}
	if flags.Changed("comment") {
		cfg.LineStart, _ = flags.GetString("comment")
	}
	if flags.Changed("no-dwarf") {
		cfg.NoDWARF, _ = flags.GetBool("no-dwarf")
	}
	if flags.Changed("no-demangle") {
		cfg.NoDemangle, _ = flags.GetBool("no-demangle")
	}
	if flags.Changed("no-strings") {
		cfg.NoStrings, _ = flags.GetBool("no-strings")
	}
	if flags.Changed("lidia") {
		cfg.LidiaPath, _ = flags.GetString("lidia")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("syntax", "att", "Assembler syntax: att, intel or go")
	cmd.Flags().String("debuginfo", "default", "Source annotations: default, source or none")
	cmd.Flags().Bool("binary", false, "Print code origin and raw instruction bytes")
	cmd.Flags().String("comment", "; ", "Prefix of annotation lines")
}

// writeOutput prints a finished disassembly, colored unless disabled.
func writeOutput(cmd *cobra.Command, text, lineStart string) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), colorize.Dump(text, lineStart))
	return err
}

// profiled runs fn under the CPU and heap profilers the flags ask for.
func profiled(cmd *cobra.Command, fn func() error) error {
	cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	memprofile, _ := cmd.Flags().GetString("memprofile")
	if memprofile != "" {
		defer func() {
			f, err := os.Create(memprofile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
				return
			}
			defer f.Close()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
			}
		}()
	}

	return fn()
}
