// Package elfx provides helpers for opening ELF binaries, mapping virtual
// addresses to file contents, and naming the code and data they contain.
package elfx

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"os"
	"syscall"
)

type Image struct {
	Path     string
	File     *elf.File
	All      []byte
	Loads    []Seg
	Text     Section
	Rodata   Section
	PLT      Section
	PLTSec   Section
	Syms     []Sym
	PLTStubs []PLTStub
	f        *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

// Contains reports whether va lies in the section.
func (s Section) Contains(va uint64) bool {
	return s.Size != 0 && va >= s.VA && va-s.VA < s.Size
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, f: of}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	for _, s := range f.Sections {
		switch s.Name {
		case ".text":
			im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
		case ".rodata":
			im.Rodata = Section{s.Name, s.Addr, s.Offset, s.Size}
		case ".plt":
			im.PLT = Section{s.Name, s.Addr, s.Offset, s.Size}
		case ".plt.sec":
			im.PLTSec = Section{s.Name, s.Addr, s.Offset, s.Size}
		}
	}

	// Stripped binaries keep their code in the executable segment.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	if im.Rodata.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_R != 0 && l.Flags&(elf.PF_W|elf.PF_X) == 0 && l.Filesz > 0 {
				im.Rodata = Section{"LOAD(ro)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	im.loadSymbols()
	im.parsePLT()
	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		err3 := im.File.Close()
		if err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// Machine is the target architecture recorded in the ELF header.
func (im *Image) Machine() elf.Machine {
	return im.File.Machine
}

// DWARF returns the image's debug info.
func (im *Image) DWARF() (*dwarf.Data, error) {
	d, err := im.File.DWARF()
	if err != nil {
		return nil, fmt.Errorf("load dwarf: %w", err)
	}
	return d, nil
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns a subslice of the mapped file corresponding to the virtual address range [va, va+size).
// It returns (nil, false) if the VA is unmapped or the range is out of bounds.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	end := off + size
	if end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[off:end], true
}

// IsPLTEntry returns true if the given virtual address lies within
// a PLT section, indicating it's a dynamically linked function stub.
func (im *Image) IsPLTEntry(va uint64) bool {
	return im.PLT.Contains(va) || im.PLTSec.Contains(va)
}
