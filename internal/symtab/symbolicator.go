package symtab

import (
	"fmt"

	"github.com/ianlancetaylor/demangle"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Symbolicator names addresses outside the code being disassembled. An
// empty result means the address is unknown.
type Symbolicator interface {
	NameAt(addr uint64) string
}

// SymbolicatorFunc adapts a function to Symbolicator.
type SymbolicatorFunc func(addr uint64) string

func (f SymbolicatorFunc) NameAt(addr uint64) string { return f(addr) }

type chain []Symbolicator

// Chain asks each symbolicator in turn and returns the first name found.
// Nil entries are skipped.
func Chain(s ...Symbolicator) Symbolicator {
	c := make(chain, 0, len(s))
	for _, sym := range s {
		if sym != nil {
			c = append(c, sym)
		}
	}
	return c
}

func (c chain) NameAt(addr uint64) string {
	for _, s := range c {
		if name := s.NameAt(addr); name != "" {
			return name
		}
	}
	return ""
}

type demangling struct {
	s    Symbolicator
	opts []demangle.Option
}

// Demangling demangles the names s returns. Names that do not demangle
// are passed through. Without options clone suffixes are dropped.
func Demangling(s Symbolicator, opts ...demangle.Option) Symbolicator {
	if len(opts) == 0 {
		opts = []demangle.Option{demangle.NoClones}
	}
	return demangling{s: s, opts: opts}
}

func (d demangling) NameAt(addr uint64) string {
	name := d.s.NameAt(addr)
	if name == "" {
		return ""
	}
	return demangle.Filter(name, d.opts...)
}

type cached struct {
	s     Symbolicator
	cache *lru.Cache[uint64, string]
}

// Cached memoizes up to size answers of s, misses included. The result is
// safe for concurrent use if s is.
func Cached(s Symbolicator, size int) (Symbolicator, error) {
	cache, err := lru.New[uint64, string](size)
	if err != nil {
		return nil, fmt.Errorf("symbol cache: %w", err)
	}
	return &cached{s: s, cache: cache}, nil
}

func (c *cached) NameAt(addr uint64) string {
	if name, ok := c.cache.Get(addr); ok {
		return name
	}
	name := c.s.NameAt(addr)
	c.cache.Add(addr, name)
	return name
}
