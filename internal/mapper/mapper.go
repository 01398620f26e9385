// Package mapper implements the cartridge mapper abstraction: PRG/CHR
// banking, nametable-source selection, and the per-cycle observation of PPU
// fetches that lets complex mappers (MMC5, Rainbow) derive a scanline
// counter and assert IRQs without any direct PPU access.
//
// The PPU is never given a handle to the mapper's notion of "what scanline
// is this"; instead the PPU pushes a fetch notification to the mapper via
// the return value of PpuFetch, inverting what would otherwise be a cyclic
// reference between PPU and mapper.
package mapper

import (
	"fmt"

	"nescore/internal/ines"
)

// BusKind distinguishes the CPU's and PPU's concurrent 16-bit address
// spaces, since a mapper frequently behaves differently depending on which
// bus issued the access (e.g. MMC5's EXRAM is CPU-mapped at $5C00-$5FFF but
// also PPU-readable as an extended-attribute table).
type BusKind uint8

const (
	Cpu BusKind = iota
	Ppu
)

// FetchKind lets a mapper distinguish a real tile/attribute/pattern fetch
// from the idle bus value the PPU drives during non-rendering dots; mappers
// that derive scanline timing from fetch patterns (MMC5, Rainbow) need this
// to avoid mistaking idle-bus repeats for real scanline boundaries.
type FetchKind uint8

const (
	Idle FetchKind = iota
	Read
	Write
)

// Nametable tells the PPU whether a VRAM read in the $2000-$2FFF window is
// satisfied by one of its own two internal 1KiB nametables or by memory the
// mapper itself supplies (EXRAM, fill-mode, or an external CHR-RAM bank).
type Nametable uint8

const (
	InternalA Nametable = iota
	InternalB
	External
)

// Mapper is the cartridge-side half of both the CPU and PPU buses. Every
// mapper in this package is ticked once per master cycle regardless of
// which bus is active that cycle, matching real cartridge hardware which
// has no notion of "CPU time" vs. "PPU time" beyond the clock it is handed.
type Mapper interface {
	// Peek/Read/Write service addr on the given bus. Read may have side
	// effects (bank-select latches that some mappers key off specific
	// reads); Peek must not.
	Peek(b BusKind, addr uint16) uint8
	Read(b BusKind, addr uint16) uint8
	Write(b BusKind, addr uint16, value uint8)

	// Tick advances any per-cycle counters (IRQ reload latches, audio
	// generators) that don't depend on observing a PPU fetch.
	Tick()

	// IRQ reports whether the mapper is currently asserting the CPU's IRQ
	// line.
	IRQ() bool

	// PpuFetch notifies the mapper of a PPU-bus access at addr (kind
	// distinguishes a real fetch from an idle-bus dot) and returns which
	// nametable source should satisfy it when addr falls in the
	// $2000-$2FFF nametable window. Mappers that don't remap nametables
	// return External only when they intend to serve the byte themselves
	// via Read; otherwise InternalA/InternalB per the cartridge's wired
	// mirroring.
	PpuFetch(addr uint16, kind FetchKind) Nametable

	// Sample returns the mapper's own audio contribution this CPU cycle,
	// if it produces one (MMC5's PCM channel, expansion-audio mappers).
	// Most mappers never produce a sample.
	Sample() (int16, bool)
}

// WRAMSaver is implemented by mappers with battery-backed or persistent RAM
// that a host may wish to save/restore; this is the one hook the out-of-
// scope save-state subsystem needs from a mapper.
type WRAMSaver interface {
	SaveWRAM() []byte
	LoadWRAM([]byte)
}

// Mirroring is the cartridge-declared nametable wiring a simple mapper uses
// to answer PpuFetch without any per-tile substitution logic.
type Mirroring uint8

const (
	Horizontal Mirroring = iota
	Vertical
	SingleScreenA
	SingleScreenB
	FourScreen
)

// Resolve maps a nametable-window address (v&0xFFF style, i.e. already
// stripped of the $2000 base) to an internal nametable source per m.
func (m Mirroring) Resolve(addr uint16) Nametable {
	table := (addr >> 10) & 0x3
	switch m {
	case Horizontal:
		if table == 0 || table == 1 {
			return InternalA
		}
		return InternalB
	case Vertical:
		if table == 0 || table == 2 {
			return InternalA
		}
		return InternalB
	case SingleScreenA:
		return InternalA
	case SingleScreenB:
		return InternalB
	case FourScreen:
		return External
	default:
		return InternalA
	}
}

// New constructs the mapper named by img's declared mapper number. Unknown
// or unimplemented mapper numbers return *UnsupportedMapperError so the
// machine's initialization boundary (the only fallible path in the core,
// per the error-handling design) can report it.
func New(img *ines.Image) (Mapper, error) {
	switch img.Mapper {
	case 0:
		return NewNROM(img), nil
	case 5:
		return NewMMC5(img), nil
	case 68:
		return NewRainbow(img), nil
	default:
		return nil, &UnsupportedMapperError{Number: img.Mapper}
	}
}

// UnsupportedMapperError is returned by New for a mapper number this core
// does not implement.
type UnsupportedMapperError struct {
	Number uint16
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("mapper: unsupported mapper number %d", e.Number)
}
