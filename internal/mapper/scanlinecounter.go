package mapper

// scanlineCounter implements the fetch-pattern scanline counter shared by
// MMC3-derived IRQ hardware: the real chip has no connection to the PPU's
// scanline/dot counters at all, so it infers "a new scanline has started"
// by noticing that the PPU fetched the same nametable address twice in a
// row (the two dummy nametable fetches at dots 337 and 339 read the same
// address). Three
// consecutive cycles with no PPU read at all means rendering has stopped
// and the counter should consider the frame over.
type scanlineCounter struct {
	lastAddr   uint16
	hasLast    bool
	matchCount uint8

	inFrame    bool
	lineFetch  uint8
	scanline   uint8
	compare    uint8
	irqPending bool
	irqEnabled bool

	// noBoundaryIRQ disables the scanline == compare boundary trigger
	// below. Rainbow sets this: its hardware only raises the IRQ at a
	// specific dot offset within the target scanline (see
	// Rainbow.PpuFetch), not at the scanline boundary itself.
	noBoundaryIRQ bool

	// lastFetchPos is the lineFetch value immediately after the current
	// fetch's increment, before any match-twice reset to 0. Rainbow's
	// dot-offset IRQ needs this pre-reset position; tick-to-tick callers
	// that only care about frame/scanline bookkeeping use lineFetch.
	lastFetchPos uint8

	reading  bool
	idleTick uint8
}

// fetch observes a PPU-bus read at addr (already reduced to the raw VRAM
// address) and updates the scanline/IRQ state per the match-twice rule.
func (s *scanlineCounter) fetch(addr uint16) {
	s.lineFetch++
	s.lastFetchPos = s.lineFetch

	if addr >= 0x2000 && addr <= 0x2FFF && s.hasLast && addr == s.lastAddr {
		s.matchCount++
		if s.matchCount == 2 {
			if s.inFrame {
				s.scanline++
				if s.scanline == s.compare && s.irqEnabled && !s.noBoundaryIRQ {
					s.irqPending = true
				}
			} else {
				s.inFrame = true
				s.scanline = 0
			}
			s.lineFetch = 0
			s.matchCount = 0
		}
	} else {
		s.matchCount = 1
	}

	s.lastAddr = addr
	s.hasLast = true
	s.reading = true
}

// fetchPos returns the lineFetch position as of the fetch() call just
// made, before any match-twice reset to 0.
func (s *scanlineCounter) fetchPos() uint8 {
	return s.lastFetchPos
}

// tick advances the idle-bus timeout that ends a frame when rendering
// stops (e.g. during VBlank with rendering disabled).
func (s *scanlineCounter) tick() {
	if s.reading {
		s.idleTick = 0
	} else {
		if s.idleTick < 3 {
			s.idleTick++
		}
		if s.idleTick == 3 {
			s.leaveFrame()
		}
	}
	s.reading = false
}

func (s *scanlineCounter) leaveFrame() {
	s.inFrame = false
	s.irqPending = false
	s.scanline = 0
	s.hasLast = false
}

func (s *scanlineCounter) setCompare(v uint8) {
	s.compare = v
}

func (s *scanlineCounter) acknowledge() {
	s.irqPending = false
}

func (s *scanlineCounter) irq() bool {
	return s.irqPending
}

// ppuReadKind classifies the access that lineFetch's current position
// corresponds to within the 340-dot scanline fetch sequence. MMC5 and
// Rainbow both derive this purely from the fetch count (never from the
// address passed to PpuFetch) exactly as original_source's
// exrom.rs/rainbow.rs PpuState::read() does, since the real chips have no
// other way to tell a nametable byte from a pattern byte.
type ppuReadKind uint8

const (
	readNone ppuReadKind = iota
	readNametable
	readAttribute
	readBackground
	readSprite
)

// readKind mirrors PpuState::read(): tile fetches 0..127 are the 32
// background tiles of the visible scanline (NT, AT, pattern-low,
// pattern-high every 4 fetches), 128..159 are the 8 sprite fetches for the
// next scanline (two dummy NT fetches then low/high pattern), 160..167
// reload the first two tiles of the next scanline, and 168..169 are two
// final dummy nametable fetches.
func (s *scanlineCounter) readKind() ppuReadKind {
	if !s.inFrame || s.lineFetch == 0 {
		return readNone
	}
	// lineFetch counts fetches observed so far (post-increment); the fetch
	// just made is the one at the pre-increment position, lineFetch-1.
	f := s.lineFetch - 1
	switch {
	case f < 128:
		switch f & 3 {
		case 0:
			return readNametable
		case 1:
			return readAttribute
		default:
			return readBackground
		}
	case f < 160:
		switch f & 3 {
		case 0, 1:
			return readNametable
		default:
			return readSprite
		}
	case f < 168:
		switch f & 3 {
		case 0:
			return readNametable
		case 1:
			return readAttribute
		default:
			return readBackground
		}
	case f < 170:
		return readNametable
	default:
		return readNone
	}
}

// tileNumber mirrors PpuState::tile_number(): the background tile column
// (2..33) being fetched during the first 128 dots, or the next scanline's
// first two tile columns (0..1) during dots 160..167. Used by the
// vertical-split window to know which screen column is currently being
// rendered.
func (s *scanlineCounter) tileNumber() (uint8, bool) {
	if s.lineFetch == 0 {
		return 0, false
	}
	f := s.lineFetch - 1
	switch {
	case f < 128:
		return f/4 + 2, true
	case f < 160:
		return 0, false
	case f < 168:
		return (f - 160) / 4, true
	default:
		return 0, false
	}
}
