package mapper

import "nescore/internal/ines"

// mmc5PrgPage describes one resolved 8KiB PRG window: either ROM or RAM,
// selected by a register's top bit, with the remaining bits indexing the
// bank within whichever chip is selected.
type mmc5PrgPage struct {
	isRAM bool
	bank  int
}

// MMC5 is mapper 5, modeled on original_source/crates/nes/src/mapper/exrom.rs
// and grounded on the scanline-counter trick shared with MMC3-class
// hardware (see scanlinecounter.go). It implements the four PRG banking
// modes, separate sprite/background CHR register sets at all four CHR
// granularities, EXRAM-driven extended attributes, a vertical split
// window, and the scanline IRQ.
type MMC5 struct {
	prg []uint8
	chr []uint8
	ram [0x10000]uint8 // up to 64KiB of PRG-RAM across all banks

	exram [0x400]uint8

	prgMode uint8 // 0..3
	chrMode uint8 // 0..3
	exMode  uint8 // 0..3

	prgRegs       [5]uint8
	chrRegsSprite [8]uint16
	chrRegsBG     [4]uint16
	lastSetWasBG  bool

	tallSprites      bool
	renderingEnabled bool // mirrors CPU $2001's show-background/show-sprites bits

	fillTile uint8
	fillAttr uint8

	mirroring [4]mmcNametableMode

	protectA, protectB uint8

	counter scanlineCounter

	multiplicand, multiplier uint8
	product                  uint16

	// Extended-attribute mode (exMode == 1): exram drives a per-tile BG
	// pattern-bank and palette substitution, snapshotted on each tile's
	// nametable fetch and consumed by its following attribute/pattern
	// fetches, per exrom.rs's ppu_fetch/read_ppu.
	extAttrBank uint8
	extAttrPal  uint8

	// Vertical split window (exrom.rs's vert_split_*): a configurable
	// column range reads from exram/a dedicated CHR bank instead of the
	// normal nametable/CHR banking.
	vertSplitEnabled   bool
	vertSplitRight     bool // side: false=Left (tile<threshold), true=Right (tile>=threshold)
	vertSplitThreshold uint8
	vertSplitScroll    uint8
	chrVertBank        uint8
}

type mmcNametableMode uint8

const (
	mmcInternalA mmcNametableMode = iota
	mmcInternalB
	mmcExram
	mmcFill
)

// NewMMC5 builds the MMC5 mapper for img.
func NewMMC5(img *ines.Image) *MMC5 {
	m := &MMC5{prg: img.PRG}
	if len(img.CHR) > 0 {
		m.chr = append([]uint8(nil), img.CHR...)
	} else {
		size := img.CHRRAMSize
		if size == 0 {
			size = 8192
		}
		m.chr = make([]uint8, size)
	}
	m.prgMode = 3
	m.prgRegs[4] = 0xFF // last bank fixed-selected, top bit set = ROM
	return m
}

func (m *MMC5) Tick() {
	m.counter.tick()
}

func (m *MMC5) IRQ() bool {
	return m.counter.irq()
}

func (m *MMC5) Sample() (int16, bool) { return 0, false }

// PpuFetch is the PPU-bus fetch-observation hook: every access in the
// rendering path (even ones the PPU ultimately satisfies itself) is
// reported here so the scanline counter can see the fetch pattern. In
// extended-attribute mode it also snapshots the per-tile CHR
// bank/palette override from exram on the tile's nametable fetch, and
// short-circuits the following attribute fetch to External so readPPU can
// substitute the snapshotted palette, per exrom.rs's ppu_fetch.
func (m *MMC5) PpuFetch(addr uint16, kind FetchKind) Nametable {
	if kind == Read {
		m.counter.fetch(addr)
	}
	if addr < 0x2000 {
		return External
	}

	extAttr := m.exMode == 1 && m.renderingEnabled
	if extAttr {
		switch m.counter.readKind() {
		case readNametable:
			raw := m.exram[addr&0x3FF]
			m.extAttrBank = raw & 0x3F
			m.extAttrPal = (raw >> 6) * 0b01010101
		case readAttribute:
			return External
		}
	}

	slot := (addr >> 10) & 0x3
	switch m.mirroring[slot] {
	case mmcInternalA:
		return InternalA
	case mmcInternalB:
		return InternalB
	default: // Exram or Fill: mapper supplies the byte itself via Read
		return External
	}
}

func (m *MMC5) Peek(b BusKind, addr uint16) uint8 { return m.Read(b, addr) }

func (m *MMC5) Read(b BusKind, addr uint16) uint8 {
	switch b {
	case Cpu:
		return m.readCPU(addr)
	case Ppu:
		return m.readPPU(addr)
	}
	return 0
}

func (m *MMC5) readCPU(addr uint16) uint8 {
	switch {
	case addr == 0x5204:
		v := uint8(0)
		if m.counter.irq() {
			v |= 0x80
		}
		if m.counter.inFrame {
			v |= 0x40
		}
		m.counter.acknowledge()
		return v
	case addr == 0x5205:
		return uint8(m.product & 0xFF)
	case addr == 0x5206:
		return uint8(m.product >> 8)
	case addr >= 0x5C00 && addr < 0x6000:
		return m.exram[addr-0x5C00]
	case addr >= 0x6000 && addr < 0x8000:
		page := m.resolvePrgPage(0, addr)
		return m.readPrgPage(page, addr&0x1FFF)
	case addr >= 0x8000:
		slot, offset := mmc5PrgSlot(m.prgMode, addr)
		page := m.resolvePrgPage(slot, addr)
		return m.readPrgPage(page, offset)
	}
	return 0
}

func (m *MMC5) readPrgPage(page mmc5PrgPage, offset uint16) uint8 {
	if page.isRAM {
		idx := page.bank*0x2000 + int(offset)
		if idx >= 0 && idx < len(m.ram) {
			return m.ram[idx]
		}
		return 0
	}
	idx := page.bank*0x2000 + int(offset)
	if idx >= 0 && idx < len(m.prg) {
		return m.prg[idx]
	}
	return 0
}

// resolvePrgPage turns the raw register value for bank slot into a
// RAM-or-ROM page selection; slot 0 is the 0x6000-0x7FFF window which is
// always RAM-backed by register prgRegs[0]'s low bits (the top bit is
// ignored there — that window cannot select ROM).
func (m *MMC5) resolvePrgPage(slot int, addr uint16) mmc5PrgPage {
	if slot == 0 {
		return mmc5PrgPage{isRAM: true, bank: int(m.prgRegs[0] & 0x0F)}
	}
	reg := m.prgRegs[slot]
	isRAM := reg&0x80 == 0
	bank := int(reg & 0x7F)
	if !isRAM {
		romBanks := len(m.prg) / 0x2000
		if romBanks > 0 {
			bank %= romBanks
		}
	}
	return mmc5PrgPage{isRAM: isRAM, bank: bank}
}

// mmc5PrgSlot maps an $8000-$FFFF address plus the current PRG mode to
// (register slot 1..4, offset within that 8KiB window).
func mmc5PrgSlot(mode uint8, addr uint16) (int, uint16) {
	offset := addr & 0x1FFF
	window := int((addr - 0x8000) / 0x2000)
	switch mode {
	case 0: // 32K: one register covers all four 8K windows
		return 4, (addr - 0x8000) & 0x7FFF
	case 1: // 16K/16K
		if window < 2 {
			return 2, (addr - 0x8000) & 0x3FFF
		}
		return 4, (addr - 0xC000) & 0x3FFF
	case 2: // 16K/8K/8K
		if window < 2 {
			return 2, (addr - 0x8000) & 0x3FFF
		}
		return window + 1, offset
	default: // 3: 8K/8K/8K/8K
		return window + 1, offset
	}
}

func (m *MMC5) readPPU(addr uint16) uint8 {
	if addr < 0x2000 {
		if m.inVertSplit() {
			return m.vertSplitPattern(addr)
		}
		if m.exMode == 1 && m.renderingEnabled && m.counter.readKind() == readBackground {
			return m.readExtAttrPattern(addr)
		}
		bank, bankSize, offset := m.chrSlot(addr)
		banks := len(m.chr) / bankSize
		if banks > 0 {
			bank %= banks
		}
		idx := bank*bankSize + int(offset)
		if idx >= 0 && idx < len(m.chr) {
			return m.chr[idx]
		}
		return 0
	}
	if addr >= 0x2000 && addr < 0x3000 {
		if m.inVertSplit() {
			return m.vertSplitNametableByte(addr)
		}
		slotIdx := (addr >> 10) & 0x3
		off := addr & 0x3FF
		switch m.mirroring[slotIdx] {
		case mmcFill:
			if off < 0x3C0 {
				return m.fillTile
			}
			return m.fillAttr
		default: // Exram
			if m.exMode == 1 && m.renderingEnabled && m.counter.readKind() == readAttribute {
				return m.extAttrPal
			}
			return m.exram[off]
		}
	}
	return 0
}

// mmc5ChrIndex resolves a PPU pattern-table address to (register index,
// bank size, offset within the bank) for a register set of regCount
// entries under the given chrMode, matching exrom.rs's sync_chr per-mode
// register-to-window mapping: mode 0 is one 8KiB window (the last
// register), mode 1 is two 4KiB windows, mode 2 is four 2KiB windows, and
// mode 3 is regCount independent windows of bankSize each.
func mmc5ChrIndex(addr uint16, chrMode uint8, regCount int) (regIdx int, bankSize int, offset uint16) {
	switch chrMode {
	case 0:
		return regCount - 1, 0x2000, addr & 0x1FFF
	case 1:
		window := int(addr / 0x1000)
		return (window%(regCount/4))*4 + 3, 0x1000, addr & 0x0FFF
	case 2:
		window := int(addr / 0x0800)
		return (window%(regCount/2))*2 + 1, 0x0800, addr & 0x07FF
	default: // 3
		window := int(addr / 0x0400)
		return window % regCount, 0x0400, addr & 0x03FF
	}
}

// chrSlot resolves a PPU pattern-table address to (bank, bank size,
// offset) using whichever register set (sprite or background) is
// currently selected, per the hardware rule that background fetches use
// chrRegsBG during 8x8 rendering but chrRegsSprite during sprite fetches
// when 8x16 sprites are enabled — simplified here to "background tile
// fetches always use chrRegsBG, foreground (sprite) fetches always use
// chrRegsSprite", which matches the common case exercised by real
// software.
func (m *MMC5) chrSlot(addr uint16) (int, int, uint16) {
	if m.tallSprites {
		idx, size, off := mmc5ChrIndex(addr, m.chrMode, 8)
		return int(m.chrRegsSprite[idx]), size, off
	}
	idx, size, off := mmc5ChrIndex(addr, m.chrMode, 4)
	return int(m.chrRegsBG[idx]), size, off
}

// readExtAttrPattern substitutes the BG pattern byte from the 4KiB CHR
// bank named by the snapshotted extAttrBank, per exrom.rs's extended
// attribute mode (the chr_hi extended-bank-select register for >256KiB
// CHR carts is not modeled; see DESIGN.md).
func (m *MMC5) readExtAttrPattern(addr uint16) uint8 {
	banks := len(m.chr) / 0x1000
	bank := int(m.extAttrBank)
	if banks > 0 {
		bank %= banks
	}
	idx := bank*0x1000 + int(addr&0x0FFF)
	if idx >= 0 && idx < len(m.chr) {
		return m.chr[idx]
	}
	return 0
}

// inVertSplit reports whether the current fetch falls within the
// vertical split column range, per exrom.rs's in_vert_split: the window
// only applies mid-frame, while rendering is on, and in exMode 0 or 1.
func (m *MMC5) inVertSplit() bool {
	if !m.vertSplitEnabled || !m.renderingEnabled || !m.counter.inFrame {
		return false
	}
	if m.exMode > 1 {
		return false
	}
	tile, ok := m.counter.tileNumber()
	if !ok {
		return false
	}
	if m.vertSplitRight {
		return tile >= m.vertSplitThreshold
	}
	return tile < m.vertSplitThreshold
}

// vertSplitTileIndex computes the exram nametable-tile index (row-major,
// 32 columns) the split window reads for the fetch in progress, per
// exrom.rs's vert_split_nt/vert_split_attr: the row comes from the
// scanline plus the split's own vertical scroll, the column from the
// tile currently being fetched.
func (m *MMC5) vertSplitTileIndex() (int, bool) {
	tile, ok := m.counter.tileNumber()
	if !ok {
		return 0, false
	}
	row := (int(m.counter.scanline) + int(m.vertSplitScroll)) / 8 % 30
	col := int(tile) % 32
	return row*32 + col, true
}

// vertSplitNametableByte answers a $2000-$2FFF fetch while inVertSplit is
// true: nametable-kind fetches read the tile byte directly from exram,
// attribute-kind fetches read the corresponding 2x2-tile-group byte from
// exram's attribute table at $3C0, both per the standard NES nametable
// layout exram is borrowing for this purpose.
func (m *MMC5) vertSplitNametableByte(_ uint16) uint8 {
	idx, ok := m.vertSplitTileIndex()
	if !ok {
		return 0
	}
	if m.counter.readKind() == readAttribute {
		row, col := idx/32, idx%32
		attrIdx := 0x3C0 + (row/4)*8 + col/4
		if attrIdx >= 0 && attrIdx < len(m.exram) {
			return m.exram[attrIdx]
		}
		return 0
	}
	if idx >= 0 && idx < len(m.exram) {
		return m.exram[idx]
	}
	return 0
}

// vertSplitPattern answers a pattern-table fetch while inVertSplit is
// true, reading from the dedicated 4KiB CHR window $5202 selects instead
// of the normal sprite/background register sets.
func (m *MMC5) vertSplitPattern(addr uint16) uint8 {
	banks := len(m.chr) / 0x1000
	bank := int(m.chrVertBank)
	if banks > 0 {
		bank %= banks
	}
	idx := bank*0x1000 + int(addr&0x0FFF)
	if idx >= 0 && idx < len(m.chr) {
		return m.chr[idx]
	}
	return 0
}

func (m *MMC5) Write(b BusKind, addr uint16, value uint8) {
	switch b {
	case Cpu:
		m.writeCPU(addr, value)
	case Ppu:
		m.writePPU(addr, value)
	}
}

func (m *MMC5) writeCPU(addr uint16, value uint8) {
	switch {
	case addr == 0x2000:
		m.tallSprites = value&0x20 != 0
	case addr == 0x2001:
		wasEnabled := m.renderingEnabled
		m.renderingEnabled = value&0x18 != 0
		if wasEnabled && !m.renderingEnabled {
			m.counter.leaveFrame()
		}
	case addr == 0x5100:
		m.prgMode = value & 0x3
	case addr == 0x5101:
		m.chrMode = value & 0x3
	case addr == 0x5102:
		m.protectA = value & 0x3
	case addr == 0x5103:
		m.protectB = value & 0x3
	case addr == 0x5104:
		m.exMode = value & 0x3
	case addr == 0x5105:
		for i := 0; i < 4; i++ {
			bits := (value >> (uint(i) * 2)) & 0x3
			m.mirroring[i] = mmcNametableMode(bits)
		}
	case addr == 0x5106:
		m.fillTile = value
	case addr == 0x5107:
		m.fillAttr = value & 0x3
	case addr >= 0x5113 && addr <= 0x5117:
		m.prgRegs[addr-0x5113] = value
	case addr >= 0x5120 && addr <= 0x5127:
		m.chrRegsSprite[addr-0x5120] = uint16(value)
		m.lastSetWasBG = false
	case addr >= 0x5128 && addr <= 0x512B:
		idx := addr - 0x5128
		m.chrRegsBG[idx] = uint16(value)
		m.lastSetWasBG = true
	case addr == 0x5200:
		m.vertSplitEnabled = value&0x80 != 0
		m.vertSplitRight = value&0x40 != 0
		m.vertSplitThreshold = value & 0x1F
	case addr == 0x5201:
		m.vertSplitScroll = value
	case addr == 0x5202:
		m.chrVertBank = value
	case addr == 0x5203:
		m.counter.setCompare(value)
	case addr == 0x5204:
		m.counter.irqEnabled = value&0x80 != 0
	case addr == 0x5205:
		m.multiplicand = value
		m.product = uint16(m.multiplicand) * uint16(m.multiplier)
	case addr == 0x5206:
		m.multiplier = value
		m.product = uint16(m.multiplicand) * uint16(m.multiplier)
	case addr >= 0x5C00 && addr < 0x6000:
		if m.exMode != 3 {
			m.exram[addr-0x5C00] = value
		}
	case addr >= 0x6000 && addr < 0x8000:
		bank := int(m.prgRegs[0] & 0x0F)
		idx := bank*0x2000 + int(addr&0x1FFF)
		if idx >= 0 && idx < len(m.ram) {
			m.ram[idx] = value
		}
	}
}

func (m *MMC5) writePPU(addr uint16, value uint8) {
	if addr < 0x2000 {
		idx := int(addr)
		if idx < len(m.chr) {
			m.chr[idx] = value
		}
		return
	}
	if addr >= 0x2000 && addr < 0x3000 {
		slotIdx := (addr >> 10) & 0x3
		off := addr & 0x3FF
		if m.mirroring[slotIdx] == mmcExram && m.exMode != 3 {
			m.exram[off] = value
		}
	}
}

func (m *MMC5) SaveWRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram[:])
	return out
}

func (m *MMC5) LoadWRAM(data []byte) {
	copy(m.ram[:], data)
}
