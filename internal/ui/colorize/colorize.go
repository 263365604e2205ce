package colorize

import (
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss/v2"
)

var (
	annotationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EBC2ED"))
	labelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true)
)

// Disabled reports whether JITDUMP_NO_COLOR turns colors off.
func Disabled() bool {
	return os.Getenv("JITDUMP_NO_COLOR") != ""
}

// getAssemblyLexer returns an appropriate assembly lexer with fallbacks
func getAssemblyLexer() chroma.Lexer {
	// GAS first: the dump prints GNU-style directives and comments
	candidates := []string{"gas", "GAS", "armasm", "nasm"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	candidates := []string{"disasm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Dump colors the text of a disassembly line by line. Lines starting with
// lineStart are annotations, lines ending in ':' are labels, everything
// else goes through the assembly lexer.
func Dump(text, lineStart string) string {
	if Disabled() {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		switch {
		case body == "":
		case lineStart != "" && strings.HasPrefix(body, lineStart):
			b.WriteString(annotationStyle.Render(body))
		case strings.HasSuffix(body, ":") && !strings.HasPrefix(body, "\t") && !strings.Contains(body, " "):
			b.WriteString(labelStyle.Render(body))
		default:
			b.WriteString(ColorizeInstructionLine(body))
		}
		if len(body) != len(line) {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ColorizeInstructionLine colorizes a single instruction line while preserving formatting
func ColorizeInstructionLine(line string) string {
	if Disabled() {
		return line
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		return line
	}

	// Make sure our custom style is registered
	_ = DisasmDark

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return line
	}

	// Lexers that ensure a trailing newline add one we do not want.
	colorized := buf.String()
	if !strings.HasSuffix(line, "\n") {
		if i := strings.LastIndex(colorized, "\n"); i >= 0 {
			colorized = colorized[:i] + colorized[i+1:]
		}
	}
	return colorized
}
