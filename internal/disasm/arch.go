package disasm

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrUnknownArch is returned when no target description matches a name
// or machine type.
var ErrUnknownArch = errors.New("unknown target architecture")

// Arch describes one target: how to decode it and how to print what
// cannot be decoded.
type Arch struct {
	Name string
	// MinStep is the number of bytes skipped over an undecodable
	// instruction. Fixed-width targets use their instruction width.
	MinStep       int
	FixedWidth    bool
	ByteOrder     binary.ByteOrder
	CommentMarker string
	Machine       elf.Machine
	NewDecoder    func() Decoder
}

// Step returns MinStep, never less than one byte.
func (a *Arch) Step() int {
	if a.MinStep < 1 {
		return 1
	}
	return a.MinStep
}

// Targets is a registry of target descriptions keyed by name. It is
// built once by its owner and read-only afterwards.
type Targets struct {
	archs   map[string]*Arch
	aliases map[string]string
}

// NewTargets builds a registry holding archs.
func NewTargets(archs ...*Arch) *Targets {
	t := &Targets{
		archs:   make(map[string]*Arch, len(archs)),
		aliases: make(map[string]string),
	}
	for _, a := range archs {
		t.archs[a.Name] = a
	}
	return t
}

// DefaultTargets returns a registry with every architecture this package
// ships a decoder for.
func DefaultTargets() *Targets {
	t := NewTargets(AMD64(), I386(), ARM64())
	t.Alias("x86_64", "amd64")
	t.Alias("x86-64", "amd64")
	t.Alias("i386", "386")
	t.Alias("x86", "386")
	t.Alias("aarch64", "arm64")
	return t
}

// Alias makes alias resolve to the target registered as name.
func (t *Targets) Alias(alias, name string) {
	t.aliases[alias] = name
}

// Lookup finds a target by name or alias.
func (t *Targets) Lookup(name string) (*Arch, error) {
	key := strings.ToLower(name)
	if real, ok := t.aliases[key]; ok {
		key = real
	}
	if a, ok := t.archs[key]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownArch, name)
}

// ForMachine finds the target for an ELF machine type.
func (t *Targets) ForMachine(m elf.Machine) (*Arch, error) {
	for _, name := range t.Names() {
		if a := t.archs[name]; a.Machine == m {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownArch, m)
}

// Names lists the registered target names in sorted order.
func (t *Targets) Names() []string {
	names := maps.Keys(t.archs)
	slices.Sort(names)
	return names
}
