package elfx

import (
	"fmt"
	"os"

	"github.com/grafana/pyroscope/lidia"
)

// CreateLidia writes a lidia symbol table for the ELF image at exePath.
func CreateLidia(exePath, outPath string) error {
	if err := lidia.CreateLidia(exePath, outPath, lidia.WithCRC(), lidia.WithFiles(), lidia.WithLines()); err != nil {
		return fmt.Errorf("create lidia table: %w", err)
	}
	return nil
}

// LidiaTable names addresses from a prebuilt lidia symbol table, for
// binaries whose own symbols are gone.
type LidiaTable struct {
	table  *lidia.Table
	frames []lidia.SourceInfoFrame
}

// OpenLidia opens the lidia table at path and verifies its checksums.
func OpenLidia(path string) (*LidiaTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lidia table: %w", err)
	}
	t, err := lidia.OpenReader(f, lidia.WithCRC())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read lidia table: %w", err)
	}
	if err := t.CheckCRC(); err != nil {
		t.Close()
		return nil, fmt.Errorf("lidia table %s: %w", path, err)
	}
	return &LidiaTable{table: t}, nil
}

// NameAt returns the physical function containing va. Lookups reuse an
// internal buffer, so a LidiaTable is not safe for concurrent use.
func (l *LidiaTable) NameAt(va uint64) string {
	frames, err := l.table.Lookup(l.frames, va)
	l.frames = frames
	if err != nil || len(frames) == 0 {
		return ""
	}
	// Inlined frames come first, the function that owns the code last.
	return frames[len(frames)-1].FunctionName
}

func (l *LidiaTable) Close() error {
	l.table.Close()
	return nil
}
