package colorize

import (
	"strings"
	"testing"
)

const sample = "; ┌ @ x.c:1 within `a`\n" +
	"L0:\n" +
	"\t.long\t0xdeadbeef\n" +
	"\tbl\t0x1000\t// L0\n" +
	"; └\n"

func TestDumpKeepsText(t *testing.T) {
	t.Setenv("JITDUMP_NO_COLOR", "")

	got := Dump(sample, "; ")
	if got == sample {
		t.Fatal("expected escape sequences in colored output")
	}
	if plain := stripANSIStr(got); plain != sample {
		t.Errorf("colored text differs from input:\n got %q\nwant %q", plain, sample)
	}
}

func TestDumpDisabled(t *testing.T) {
	t.Setenv("JITDUMP_NO_COLOR", "1")
	if got := Dump(sample, "; "); got != sample {
		t.Errorf("Dump() with colors disabled = %q", got)
	}
	if got := ColorizeInstructionLine("\tret"); got != "\tret" {
		t.Errorf("ColorizeInstructionLine() with colors disabled = %q", got)
	}
}

func TestStripANSIStr(t *testing.T) {
	if got := stripANSIStr("\x1b[38;2;79;79;79mabc\x1b[0m"); got != "abc" {
		t.Errorf("stripANSIStr() = %q", got)
	}
}

// stripANSIStr removes ANSI codes and returns the plain string
func stripANSIStr(s string) string {
	var result strings.Builder
	inEscape := false

	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
		} else if inEscape {
			if r == 'm' {
				inEscape = false
			}
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
