package mapper

import "nescore/internal/ines"

// NROM is mapper 0, the simplest mapper: no bank switching. 16KiB PRG-ROM
// images are mirrored to fill the 32KiB CPU window; CHR is either fixed
// ROM or, when the image declares CHR-RAM, a writable 8KiB block.
type NROM struct {
	prg  []uint8
	chr  []uint8
	ram  [0x2000]uint8
	chrW bool // true when chr is RAM

	mirroring Mirroring
}

// NewNROM builds the NROM mapper for img.
func NewNROM(img *ines.Image) *NROM {
	m := &NROM{
		prg:       img.PRG,
		mirroring: convertMirroring(img.Mirroring),
	}
	if len(img.CHR) > 0 {
		m.chr = append([]uint8(nil), img.CHR...)
	} else {
		size := img.CHRRAMSize
		if size == 0 {
			size = 8192
		}
		m.chr = make([]uint8, size)
		m.chrW = true
	}
	return m
}

func convertMirroring(m ines.Mirroring) Mirroring {
	switch m {
	case ines.Vertical:
		return Vertical
	case ines.FourScreen:
		return FourScreen
	default:
		return Horizontal
	}
}

func (m *NROM) Peek(b BusKind, addr uint16) uint8 { return m.read(b, addr) }
func (m *NROM) Read(b BusKind, addr uint16) uint8 { return m.read(b, addr) }

func (m *NROM) read(b BusKind, addr uint16) uint8 {
	switch b {
	case Cpu:
		switch {
		case addr >= 0x6000 && addr < 0x8000:
			return m.ram[addr-0x6000]
		case addr >= 0x8000:
			offset := addr - 0x8000
			if len(m.prg) == 0x4000 {
				offset &= 0x3FFF
			}
			if int(offset) < len(m.prg) {
				return m.prg[offset]
			}
		}
	case Ppu:
		if int(addr) < len(m.chr) {
			return m.chr[addr]
		}
	}
	return 0
}

func (m *NROM) Write(b BusKind, addr uint16, value uint8) {
	switch b {
	case Cpu:
		if addr >= 0x6000 && addr < 0x8000 {
			m.ram[addr-0x6000] = value
		}
	case Ppu:
		if m.chrW && int(addr) < len(m.chr) {
			m.chr[addr] = value
		}
	}
}

func (m *NROM) Tick()         {}
func (m *NROM) IRQ() bool     { return false }
func (m *NROM) Sample() (int16, bool) { return 0, false }

func (m *NROM) PpuFetch(addr uint16, kind FetchKind) Nametable {
	if addr < 0x2000 {
		return External
	}
	return m.mirroring.Resolve(addr & 0x0FFF)
}

func (m *NROM) SaveWRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram[:])
	return out
}

func (m *NROM) LoadWRAM(data []byte) {
	copy(m.ram[:], data)
}
