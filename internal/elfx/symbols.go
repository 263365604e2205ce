package elfx

import (
	"debug/elf"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sym is a named function or data object of the image.
type Sym struct {
	Name  string
	Addr  uint64
	Size  uint64
	Func  bool
	IsPLT bool
}

// Contains reports whether va lies inside the symbol. Symbols of unknown
// size only contain their start address.
func (s Sym) Contains(va uint64) bool {
	if s.Size == 0 {
		return va == s.Addr
	}
	return va >= s.Addr && va-s.Addr < s.Size
}

type rawSym struct {
	Sym
	section elf.SectionIndex
}

// loadSymbols merges .symtab and .dynsym, keeping functions and data
// objects with an address, sorted by address.
func (im *Image) loadSymbols() {
	if im.File == nil {
		return
	}

	var raw []rawSym
	seen := make(map[string]bool)
	add := func(syms []elf.Symbol) {
		for _, sym := range syms {
			typ := elf.ST_TYPE(sym.Info)
			if sym.Value == 0 || sym.Name == "" || sym.Section == elf.SHN_UNDEF {
				continue
			}
			if typ != elf.STT_FUNC && typ != elf.STT_OBJECT && typ != elf.STT_GNU_IFUNC {
				continue
			}
			key := sym.Name + "@" + strconv.FormatUint(sym.Value, 16)
			if seen[key] {
				continue
			}
			seen[key] = true
			raw = append(raw, rawSym{
				Sym: Sym{
					Name:  sym.Name,
					Addr:  sym.Value,
					Size:  sym.Size,
					Func:  typ != elf.STT_OBJECT,
					IsPLT: strings.HasSuffix(sym.Name, "@plt"),
				},
				section: sym.Section,
			})
		}
	}

	// .symtab first: it is complete where present, .dynsym only adds what
	// a stripped binary still exports.
	if syms, err := im.File.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := im.File.DynamicSymbols(); err == nil {
		add(syms)
	}

	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Addr < raw[j].Addr })
	im.Syms = make([]Sym, len(raw))
	for i, r := range raw {
		if r.Size == 0 {
			r.Size = im.impliedSize(raw, i)
		}
		im.Syms[i] = r.Sym
	}
}

// impliedSize bounds a symbol that does not state its size by the next
// symbol at a higher address in the same section, or else by the end of
// its section.
func (im *Image) impliedSize(raw []rawSym, i int) uint64 {
	s := raw[i]
	size := im.sectionEnd(s.section, s.Addr)
	for _, next := range raw[i+1:] {
		if next.Addr == s.Addr || next.section != s.section {
			continue
		}
		if gap := next.Addr - s.Addr; size == 0 || gap < size {
			size = gap
		}
		break
	}
	return size
}

// sectionEnd returns the distance from va to the end of its section.
func (im *Image) sectionEnd(idx elf.SectionIndex, va uint64) uint64 {
	if int(idx) <= 0 || int(idx) >= len(im.File.Sections) {
		return 0
	}
	s := im.File.Sections[idx]
	if va < s.Addr || va >= s.Addr+s.Size {
		return 0
	}
	return s.Addr + s.Size - va
}

// FindFunctionByName searches for a function by name in the symbol tables.
func (im *Image) FindFunctionByName(name string) (Sym, bool) {
	for _, sym := range im.Syms {
		if sym.Name == name && sym.Func && !sym.IsPLT {
			return sym, true
		}
	}
	return Sym{}, false
}

// SymbolAt returns the symbol containing va. Functions win over data
// objects and the innermost (latest starting) symbol wins among equals.
func (im *Image) SymbolAt(va uint64) (Sym, bool) {
	i := sort.Search(len(im.Syms), func(i int) bool { return im.Syms[i].Addr > va })
	var best Sym
	found := false
	for i--; i >= 0; i-- {
		s := im.Syms[i]
		if !s.Contains(va) {
			continue
		}
		if !found || (s.Func && !best.Func) {
			best, found = s, true
		}
		if best.Func {
			break
		}
	}
	return best, found
}

// NameAt names va for a disassembly: PLT stubs by their import, anything
// else by the symbol containing it. It returns "" when nothing matches.
func (im *Image) NameAt(va uint64) string {
	if im.IsPLTEntry(va) {
		for _, stub := range im.PLTStubs {
			if stub.Addr == va && stub.SymName != "" {
				return stub.SymName + "@plt"
			}
		}
	}
	if s, ok := im.SymbolAt(va); ok {
		return s.Name
	}
	return ""
}

// Function resolves a function given by name or by a hexadecimal address
// ("0x..."). An address inside a known symbol resolves to that symbol; a
// bare address needs size to be non-zero.
func (im *Image) Function(target string, size uint64) (Sym, error) {
	if strings.HasPrefix(target, "0x") || strings.HasPrefix(target, "0X") {
		va, err := strconv.ParseUint(target[2:], 16, 64)
		if err != nil {
			return Sym{}, fmt.Errorf("parse address %q: %w", target, err)
		}
		if size != 0 {
			name := ""
			if s, ok := im.SymbolAt(va); ok {
				name = s.Name
			}
			return Sym{Name: name, Addr: va, Size: size, Func: true}, nil
		}
		s, ok := im.SymbolAt(va)
		if !ok || s.Size == 0 {
			return Sym{}, fmt.Errorf("no symbol at %#x, give a size", va)
		}
		return s, nil
	}

	s, ok := im.FindFunctionByName(target)
	if !ok {
		return Sym{}, fmt.Errorf("function %q not found", target)
	}
	if size != 0 {
		s.Size = size
	}
	if s.Size == 0 {
		return Sym{}, fmt.Errorf("function %q has no size, give one", target)
	}
	return s, nil
}
