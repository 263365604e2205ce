package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"jitdump/internal/config"
	"jitdump/internal/debuginfo"
	"jitdump/internal/disasm"
	"jitdump/internal/dump"
	"jitdump/internal/elfx"
	"jitdump/internal/symtab"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <elf> <symbol|0xaddr>",
	Short: "Disassemble a function of an ELF binary",
	Long: `Disassemble a function of an ELF binary, given by name or by address.
An address inside a known symbol selects that symbol; otherwise --size
gives the number of bytes to disassemble.`,
	Example: `
# By name, with source annotations from DWARF
jitdump dump ./server main.handle

# By address, names taken from a lidia table
jitdump dump --size 128 --lidia server.lidia ./server 0x4011f0
  `,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return profiled(cmd, func() error {
			return runDump(cmd, args[0], args[1])
		})
	},
}

func init() {
	addOutputFlags(dumpCmd)
	dumpCmd.Flags().Uint64("size", 0, "Bytes to disassemble (defaults to the symbol size)")
	dumpCmd.Flags().String("lidia", "", "Lidia symbol table consulted for names")
	dumpCmd.Flags().Bool("no-dwarf", false, "Ignore DWARF debug info")
	dumpCmd.Flags().Bool("no-demangle", false, "Print symbol names as stored")
	dumpCmd.Flags().Bool("no-strings", false, "Do not name string literals in read-only data")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, path, target string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	size, _ := cmd.Flags().GetUint64("size")

	img, err := elfx.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer img.Close()

	arch, err := disasm.DefaultTargets().ForMachine(img.Machine())
	if err != nil {
		return err
	}
	fn, err := img.Function(target, size)
	if err != nil {
		return err
	}
	code, ok := img.SliceVA(fn.Addr, fn.Size)
	if !ok {
		return fmt.Errorf("%d bytes at %#x are not in a loaded segment", fn.Size, fn.Addr)
	}
	slog.Debug("Disassembling", "function", fn.Name, "addr", fmt.Sprintf("%#x", fn.Addr), "size", fn.Size, "arch", arch.Name)

	names, closeNames, err := symbolicator(cfg, img)
	if err != nil {
		return err
	}
	defer closeNames()

	opts := dump.Options{
		Syntax:       disasm.ParseSyntax(cfg.Syntax),
		DebugInfo:    cfg.DebugInfo,
		Binary:       cfg.Binary,
		LineStart:    cfg.LineStart,
		Symbolicator: names,
		Logger:       slog.Default(),
	}
	if p := provider(cfg, img); p != nil {
		opts.Provider = p
	}

	text, err := dump.String(code, dump.Region{Base: fn.Addr, Size: fn.Size}, arch, opts)
	if err != nil {
		return err
	}
	return writeOutput(cmd, text, cfg.LineStart)
}

// symbolicator names addresses from the image symbols, then string
// literals, then the lidia table if one is configured.
func symbolicator(cfg config.Config, img *elfx.Image) (symtab.Symbolicator, func(), error) {
	sources := []symtab.Symbolicator{img}
	if !cfg.NoStrings {
		sources = append(sources, img.Strings())
	}
	closer := func() {}
	if cfg.LidiaPath != "" {
		lt, err := elfx.OpenLidia(cfg.LidiaPath)
		if err != nil {
			return nil, closer, err
		}
		sources = append(sources, lt)
		closer = func() { lt.Close() }
	}

	var s symtab.Symbolicator = symtab.Chain(sources...)
	if !cfg.NoDemangle {
		s = symtab.Demangling(s)
	}
	cached, err := symtab.Cached(s, cfg.SymbolCacheSize)
	if err != nil {
		closer()
		return nil, func() {}, err
	}
	return cached, closer, nil
}

// provider returns the DWARF line info of img, or nil when there is none
// or it is turned off.
func provider(cfg config.Config, img *elfx.Image) *debuginfo.DWARF {
	if cfg.NoDWARF || cfg.DebugInfo == "none" {
		return nil
	}
	data, err := img.DWARF()
	if err != nil {
		slog.Debug("No DWARF data", "error", err)
		return nil
	}
	return debuginfo.NewDWARF(data, slog.Default())
}
