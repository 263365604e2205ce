// Package testprog builds small ELF executables with symbols and DWARF
// for tests that need a real image on disk.
package testprog

import (
	_ "embed"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

//go:embed testdata/main.go
var goSource []byte

//go:embed testdata/plt.c
var cSource []byte

// Source positions in testdata/main.go.
const (
	File = "main.go"

	Work  = "main.work"
	Outer = "main.outer"
	Sq    = "main.sq"

	// WorkCallsOuter is the line in work that calls outer, OuterCallsSq
	// the line in outer that calls sq, SqBody the line of sq's body.
	WorkCallsOuter = 15
	OuterCallsSq   = 10
	SqBody         = 6
)

func skipUnlessLinux(t testing.TB) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("ELF fixtures need linux, have %s", runtime.GOOS)
	}
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skipf("no disassembler for %s", runtime.GOARCH)
	}
}

// BuildGo compiles testdata/main.go into a non-PIE executable with DWARF
// and returns its path. work is kept out of line; outer and sq are
// inlined into it.
func BuildGo(t testing.TB) string {
	t.Helper()
	skipUnlessLinux(t)
	goBin, err := exec.LookPath("go")
	if err != nil {
		goBin = filepath.Join(runtime.GOROOT(), "bin", "go")
		if _, err := os.Stat(goBin); err != nil {
			t.Skip("go command not found")
		}
	}

	dir := t.TempDir()
	write(t, filepath.Join(dir, "go.mod"), []byte("module prog\n\ngo 1.21\n"))
	write(t, filepath.Join(dir, File), goSource)
	out := filepath.Join(dir, "prog")

	cmd := exec.Command(goBin, "build", "-buildmode=exe", "-o", out, ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOFLAGS=", "GOWORK=off", "GOTOOLCHAIN=local")
	if msg, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, msg)
	}
	return out
}

// BuildC compiles testdata/plt.c, which calls puts through the PLT. It
// skips when no C compiler is installed.
func BuildC(t testing.TB) string {
	t.Helper()
	skipUnlessLinux(t)
	cc, err := exec.LookPath("cc")
	if err != nil {
		if cc, err = exec.LookPath("gcc"); err != nil {
			t.Skip("no C compiler")
		}
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "plt.c")
	write(t, src, cSource)
	out := filepath.Join(dir, "plt")

	cmd := exec.Command(cc, "-O1", "-g", "-o", out, src)
	cmd.Dir = dir
	if msg, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cc failed: %v\n%s", err, msg)
	}
	return out
}

func write(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
