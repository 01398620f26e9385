// Package ppu implements the 2C02 Picture Processing Unit: a dot-accurate
// scheduler that interleaves background tile fetches, sprite evaluation,
// sprite fetches, VRAM-address scroll logic and pixel composition, driven
// one dot per Tick call exactly as the CPU package is driven one cycle per
// Tick call.
package ppu

import (
	"github.com/golang/glog"

	"nescore/internal/mapper"
)

// Screen is the PPU's pixel output: one 9-bit palette index (6 color bits
// plus 3 emphasis bits) per pixel. RGB conversion is the NTSC filter's job.
type Screen [256 * 240]uint16

// delayReg models a write to a CPU-visible register that doesn't take
// effect on the PPU's internal behavior until a fixed number of ticks
// later (PPUMASK's rendering-enable bits pass through a four-entry shift
// register and take effect on the third Tick after the write, matching the
// reference engine's DelayReg).
type delayReg struct {
	values [4]uint8
}

func newDelayReg(v uint8) delayReg {
	return delayReg{values: [4]uint8{v, v, v, v}}
}

func (d *delayReg) tick() {
	d.values[0] = d.values[1]
	d.values[1] = d.values[2]
	d.values[2] = d.values[3]
}

func (d *delayReg) value() uint8 { return d.values[0] }

func (d *delayReg) update(v uint8) { d.values[3] = v }

type spriteData struct {
	active        uint8
	x             uint8
	attributes    uint8
	patternHigh   uint8
	patternLow    uint8
}

// PPU is the 2C02. It owns no CPU-visible bus wiring itself (the machine
// registers it on the CPU bus fabric as a bus.Device); its own VRAM access
// goes straight to its two internal nametable blocks or out to the mapper,
// mirroring the reference engine's direct ownership split.
type PPU struct {
	region Region
	mapper mapper.Mapper

	ntInternalA [1024]uint8
	ntInternalB [1024]uint8
	screen      Screen

	steps    []step
	stepIdx  int
	curStep  step

	frame            uint64
	lastStatusRead   uint64
	lastNMIToggle    uint64
	currentTick      uint64
	regs             [8]uint8
	vblank           bool
	spriteZeroHit    bool
	spriteOverflow   bool
	lastWrite        uint8
	lastWriteDecay   uint64

	writeLatch bool

	dataReadBuffer uint8

	vramAddr     uint16
	vramAddrTemp uint16
	vramFineX    uint16

	oamAddr      uint8
	oamData      [256]uint8
	lineOAMData  [32]uint8

	paletteData [32]uint8

	nametableTile uint8

	attributeLow  uint8
	attributeHigh uint8

	patternLow  uint8
	patternHigh uint8

	lowBGShift  uint16
	highBGShift uint16

	lowAttrShift  uint16
	highAttrShift uint16

	nextSpriteByte    uint8
	spriteN           uint32
	spriteM           uint32
	spriteReadLoop    bool
	blockOAMWrites    bool
	foundSprites      uint32
	spriteReads       uint32
	lineOAMIndex      int
	spriteZeroOnLine  bool
	spriteZeroOnNext  bool
	spriteAnyOnLine   bool

	spriteRenderData [8]spriteData
	spriteRenderIdx  int

	resetDelay uint32

	ppuMask delayReg
}

// New constructs a PPU wired to m for VRAM access, scheduled for region's
// scanline/dot layout (NTSC 262 lines, PAL 312).
func New(region Region, m mapper.Mapper) *PPU {
	return &PPU{
		region:      region,
		mapper:      m,
		screen:      Screen{},
		steps:       generateSteps(region),
		paletteData: [32]uint8{},
		ppuMask:     newDelayReg(0),
	}
}

// Power runs the register-write sequence real hardware's power-on performs,
// then arms the ~2-frame delay before the PPU accepts further register
// writes (29658 CPU cycles, expressed here in PPU dots since the PPU is
// ticked three times per CPU cycle).
func (p *PPU) Power() {
	p.Write(0x2000, 0)
	p.Write(0x2001, 0)
	p.regs[2] = 0xA0
	p.Write(0x2003, 0)
	p.Write(0x2005, 0)
	p.Write(0x2005, 0)
	p.Write(0x2006, 0)
	p.Write(0x2006, 0)
	p.dataReadBuffer = 0
	p.resetDelay = 29658 * 3
}

// Reset runs the subset of the power-on sequence real hardware performs on
// a reset line assertion (OAMADDR and the palette are left untouched).
func (p *PPU) Reset() {
	p.Write(0x2000, 0)
	p.Write(0x2001, 0)
	p.Write(0x2005, 0)
	p.Write(0x2005, 0)
	p.dataReadBuffer = 0
	p.resetDelay = 29658 * 3
}

// Frame reports the number of frames rendered since power-on.
func (p *PPU) Frame() uint64 { return p.frame }

// Screen returns the current frame's pixel buffer.
func (p *PPU) Screen() *Screen { return &p.screen }

// NMI reports whether the PPU is currently asserting the CPU's NMI line.
func (p *PPU) NMI() bool {
	return p.vblank && p.isNMIEnabled()
}

// Read services a CPU-side register read at $2000-$2007 or any of its
// mirrors; only the low three bits of addr select the register.
func (p *PPU) Read(addr uint16) uint8 {
	var value uint8
	switch addr & 7 {
	case 0, 1, 3, 5, 6:
		value = p.lastWrite
	case 2:
		p.lastWriteDecay = p.currentTick
		value = p.status()
		p.writeLatch = false
		p.vblank = false
		p.lastStatusRead = p.currentTick
	case 4:
		p.lastWriteDecay = p.currentTick
		if p.isRendering() && !p.inVBlank() {
			value = p.nextSpriteByte
		} else {
			value = p.oamData[p.oamAddr]
		}
	case 7:
		p.lastWriteDecay = p.currentTick
		value = p.readData()
	}
	p.lastWrite = value
	return value
}

// Peek is Read without the side effects ($2002's VBlank clear and write-
// latch reset, $2007's buffer advance and VRAM increment), for debuggers.
func (p *PPU) Peek(addr uint16) uint8 {
	switch addr & 7 {
	case 2:
		return p.status()
	case 4:
		return p.oamData[p.oamAddr]
	case 7:
		return p.peekData()
	default:
		return p.lastWrite
	}
}

func (p *PPU) peekData() uint8 {
	if p.vramAddr&0x3F00 == 0x3F00 {
		return p.paletteByte(p.vramAddr)
	}
	return p.dataReadBuffer
}

// Write services a CPU-side register write at $2000-$2007.
func (p *PPU) Write(addr uint16, value uint8) {
	p.lastWrite = value
	p.lastWriteDecay = p.currentTick
	switch addr & 7 {
	case 0: // PPUCTRL
		wasNMI := p.isNMIEnabled()
		if p.resetDelay != 0 {
			return
		}
		p.regs[0] = value
		p.vramAddrTemp &= 0xF3FF
		p.vramAddrTemp |= p.baseNametable()
		if wasNMI != p.isNMIEnabled() {
			p.lastNMIToggle = p.currentTick
		}
	case 1: // PPUMASK
		if p.resetDelay != 0 {
			return
		}
		p.ppuMask.update(value)
		p.regs[1] = value
	case 2: // PPUSTATUS, read-only
		p.regs[2] = value
	case 3: // OAMADDR
		p.oamAddr = value
	case 4: // OAMDATA
		if !p.inVBlank() && p.isRendering() {
			p.spriteN++
			if p.spriteN == 64 {
				p.spriteN = 0
			}
		} else {
			if p.oamAddr&3 == 2 {
				p.oamData[p.oamAddr] = value & 0xE3
			} else {
				p.oamData[p.oamAddr] = value
			}
			p.oamAddr++
		}
	case 5: // PPUSCROLL
		if p.resetDelay != 0 {
			return
		}
		if p.writeLatch {
			v16 := uint16(value)
			p.vramAddrTemp &= 0x0C1F
			p.vramAddrTemp |= (v16 & 0xF8) << 2
			p.vramAddrTemp |= (v16 & 0x07) << 12
		} else {
			p.vramAddrTemp &= 0x7FE0
			p.vramAddrTemp |= uint16(value) >> 3
			p.vramFineX = uint16(value) & 0x07
		}
		p.writeLatch = !p.writeLatch
	case 6: // PPUADDR
		if p.resetDelay != 0 {
			return
		}
		if p.writeLatch {
			p.vramAddrTemp &= 0x7F00
			p.vramAddrTemp |= uint16(value)
			p.vramAddr = p.vramAddrTemp
		} else {
			p.vramAddrTemp &= 0x00FF
			p.vramAddrTemp |= (uint16(value) & 0x3F) << 8
		}
		p.writeLatch = !p.writeLatch
	case 7: // PPUDATA
		if p.vramAddr&0x3F00 == 0x3F00 {
			p.setPaletteByte(p.vramAddr, value)
		} else {
			p.vramWrite(p.vramAddr, value)
		}
		if !p.inVBlank() && p.isRendering() {
			p.horzIncrement()
			p.vertIncrement()
		} else {
			p.vramAddr = (p.vramAddr + p.vramInc()) & 0x7FFF
		}
	}
}

func (p *PPU) readData() uint8 {
	addr := p.vramAddr
	var result uint8
	if addr&0x3F00 == 0x3F00 {
		result = p.paletteByte(addr)
	} else {
		result = p.dataReadBuffer
	}
	p.dataReadBuffer = p.vramRead(p.vramAddr)
	if !p.inVBlank() && p.isRendering() {
		p.horzIncrement()
		p.vertIncrement()
	} else {
		p.vramAddr = (p.vramAddr + p.vramInc()) & 0x7FFF
	}
	return result
}

func (p *PPU) paletteByte(addr uint16) uint8 {
	idx := paletteIndex(addr)
	v := p.paletteData[idx]
	if p.isGrayscale() {
		v &= 0x30
	}
	return v
}

func (p *PPU) setPaletteByte(addr uint16, value uint8) {
	p.paletteData[paletteIndex(addr)] = value
}

// paletteIndex folds the 0x3F00-0x3FFF window down to the 32-byte palette
// RAM, mirroring the background-color-entry aliasing: 0x10/0x14/0x18/0x1C
// mirror 0x00/0x04/0x08/0x0C.
func paletteIndex(addr uint16) uint16 {
	if addr&0x03 != 0 {
		return addr & 0x1F
	}
	return addr & 0x0F
}

// Tick advances the PPU by one dot.
func (p *PPU) Tick() {
	if p.resetDelay != 0 {
		p.resetDelay--
	}
	p.ppuMask.tick()

	s := p.steps[p.stepIdx]
	p.stepIdx++
	if p.stepIdx >= len(p.steps) {
		p.stepIdx = 0
	}

	switch s.state {
	case stSkippedTick:
		if p.frame%2 == 1 && p.isRendering() {
			skipped := p.steps[p.stepIdx]
			p.stepIdx++
			if p.stepIdx >= len(p.steps) {
				p.stepIdx = 0
			}
			s.scanline = 0
			s.dot = 0
			s.sprite = skipped.sprite
		}
	case stSetVblank:
		p.vblank = p.lastStatusRead != p.currentTick
	case stClearVblank:
		p.spriteZeroHit = false
		p.spriteOverflow = false
		p.vblank = false
		p.frame++
		if p.currentTick-p.lastWriteDecay > 262*341*40 {
			p.lastWrite = 0
		}
	}

	p.currentTick++

	if s.sprite == spReset {
		p.spriteReset()
	}

	if p.isRendering() {
		p.runBackgroundStep(s.background)
		p.runSpriteStep(s)
	}

	if !p.isRendering() || p.inVBlank() {
		if s.dot&1 == 1 {
			p.mapper.PpuFetch(p.vramAddr&0x3FFF, mapper.Idle)
		}
	}

	if s.scanline < p.region.vblankLine() && s.dot < 256 {
		p.render(s.dot, s.scanline)
	}

	p.curStep = s
}

func (p *PPU) runBackgroundStep(b backgroundStep) {
	switch b {
	case bgVertReset:
		p.vertReset()
	case bgHorzReset:
		p.horzReset()
	case bgVertIncrement:
		p.horzIncrement()
		p.vertIncrement()
	case bgHorzIncrement:
		p.loadBGShifters()
		p.horzIncrement()
	case bgShiftedHorzIncrement:
		p.lowBGShift <<= 8
		p.highBGShift <<= 8
		p.lowAttrShift <<= 8
		p.highAttrShift <<= 8
		p.loadBGShifters()
		p.horzIncrement()
	case bgNametable:
		p.fetchNametable()
	case bgAttribute:
		p.fetchAttribute()
	case bgLowPattern:
		p.fetchLowBGPattern()
	case bgHighPattern:
		p.fetchHighBGPattern()
	}
}

func (p *PPU) runSpriteStep(s step) {
	switch s.sprite {
	case spClear:
		p.initLineOAM(s.dot / 2)
	case spEval:
		p.spriteEval(s.scanline, s.dot)
	case spRead:
		p.spriteOAMRead(p.spriteM)
	case spHblank:
		p.spriteN = 0
		p.spriteEval(s.scanline, s.dot)
		p.spriteAnyOnLine = false
	case spFetch0:
		p.spriteOAMRead(0)
	case spFetch1:
		p.spriteOAMRead(1)
		p.fetchNametable()
	case spFetch2:
		p.spriteOAMRead(2)
	case spFetch3:
		p.spriteOAMRead(3)
		p.fetchAttribute()
	case spFetch4:
		p.spriteOAMRead(3)
	case spFetch5:
		p.spriteOAMRead(3)
		p.spriteFetch(s.scanline, false)
	case spFetch6:
		p.spriteOAMRead(3)
	case spFetch7:
		p.spriteOAMRead(3)
		p.spriteFetch(s.scanline, true)
	case spBackgroundWait:
		p.nextSpriteByte = p.lineOAMData[0]
	}
}

// render composites and writes one background+sprite pixel, called for
// every dot < 256 of every visible scanline regardless of
// whether rendering is enabled (matching the reference: the shifters still
// advance so the pipeline stays in lock-step, but the pixel written is the
// backdrop/palette passthrough when rendering is off).
func (p *PPU) render(dot, scanline int) {
	fineX := p.vramFineX
	colorBit := (p.lowBGShift>>(15-fineX))&0x1 | (p.highBGShift>>(14-fineX))&0x2
	attrBit := (p.lowAttrShift>>(15-fineX))&0x1 | (p.highAttrShift>>(14-fineX))&0x2
	attr := attrBit
	if colorBit == 0 {
		attr = 0
	} else {
		attr <<= 2
	}
	palette := colorBit | attr

	var spriteZero bool
	var spritePixel uint16
	var behindBG bool
	leftSprites := p.isLeftSprites()
	if p.isSpritesEnabled() && p.spriteAnyOnLine {
		for idx := range p.spriteRenderData {
			sp := &p.spriteRenderData[idx]
			if sp.x == 0 {
				sp.active = 1
			}
			if sp.active > 0 && sp.active <= 8 {
				attr := sp.attributes
				high := sp.patternHigh
				low := sp.patternLow
				flipHorz := attr&0x40 != 0
				pal := uint16(attr&0x3) << 2

				palBit := uint8(0x80)
				if flipHorz {
					palBit = 0x1
				}
				var c uint16
				if high&palBit != 0 {
					c = 2
				}
				if low&palBit != 0 {
					c |= 1
				}
				if !leftSprites && dot < 8 {
					c = 0
				}
				if c != 0 && spritePixel == 0 {
					spriteZero = idx == 0 && p.spriteZeroOnLine && dot < 255
					spritePixel = c | pal
					behindBG = attr&0x20 != 0
				}

				sp.active++
				if flipHorz {
					sp.patternHigh >>= 1
					sp.patternLow >>= 1
				} else {
					sp.patternHigh <<= 1
					sp.patternLow <<= 1
				}
			}
			if sp.active == 0 && sp.x != 0 {
				sp.x--
			}
		}
	}

	bgColored := colorBit != 0 && (dot > 7 || p.isLeftBackground()) && p.isBackgroundEnabled()
	spriteColored := spritePixel != 0

	var pixelAddr uint16
	switch {
	case !bgColored && !spriteColored:
		pixelAddr = 0x3F00
	case !bgColored && spriteColored:
		pixelAddr = 0x3F10 | spritePixel
	case bgColored && !spriteColored:
		pixelAddr = 0x3F00 | palette
	case behindBG:
		if spriteZero {
			p.spriteZeroHit = true
		}
		pixelAddr = 0x3F00 | palette
	default:
		if spriteZero {
			p.spriteZeroHit = true
		}
		pixelAddr = 0x3F10 | spritePixel
	}

	if !p.isRendering() && p.vramAddr&0x3F00 == 0x3F00 {
		pixelAddr = p.vramAddr & 0x3F1F
	}
	pixelResult := p.paletteData[paletteIndex(pixelAddr)]
	if p.isGrayscale() {
		pixelResult &= 0x30
	}

	p.screen[scanline*256+dot] = uint16(pixelResult) | p.emphBits()

	p.lowAttrShift <<= 1
	p.highAttrShift <<= 1
	p.lowBGShift <<= 1
	p.highBGShift <<= 1
}

func (p *PPU) spriteOnLine(spriteY uint8, scanline int) bool {
	if spriteY > 239 {
		return false
	}
	height := 8
	if p.isTallSprites() {
		height = 16
	}
	return int(spriteY)+height > scanline && int(spriteY) <= scanline
}

func (p *PPU) spriteFetch(scanline int, high bool) {
	idx := p.spriteRenderIdx
	spriteY := p.lineOAMData[idx*4]
	spriteTile := uint16(p.lineOAMData[idx*4+1])
	spriteAttr := p.lineOAMData[idx*4+2]
	spriteX := p.lineOAMData[idx*4+3]

	flipVert := spriteAttr&0x80 != 0
	height := 8
	if p.isTallSprites() {
		height = 16
	}
	var line uint16
	if scanline >= int(spriteY) && scanline-int(spriteY) < height {
		line = uint16(scanline - int(spriteY))
	}

	var tileAddr uint16
	if p.isTallSprites() {
		bottomHalf := line >= 8
		if bottomHalf {
			line -= 8
		}
		if flipVert {
			line = 7 - line
		}
		patternTable := (spriteTile & 1) << 12
		spriteTile &= 0xFE
		if (flipVert && bottomHalf) || (!flipVert && !bottomHalf) {
			tileAddr = (spriteTile<<4 | patternTable) + line
		} else {
			tileAddr = ((spriteTile+1)<<4 | patternTable) + line
		}
	} else {
		if flipVert {
			line = 7 - line
		}
		tileAddr = spriteTile<<4 | p.spritePatternTable() + line
	}

	patternAddr := tileAddr
	if high {
		patternAddr |= 0x08
	}
	patternByte := p.vramRead(patternAddr)
	onLine := p.spriteOnLine(spriteY, scanline)
	p.spriteAnyOnLine = p.spriteAnyOnLine || onLine

	sp := &p.spriteRenderData[idx]
	sp.x = spriteX
	sp.attributes = spriteAttr
	sp.active = 0
	if high {
		sp.patternHigh = patternByte
		if !onLine {
			sp.patternHigh = 0
		}
		p.spriteRenderIdx++
	} else {
		sp.patternLow = patternByte
		if !onLine {
			sp.patternLow = 0
		}
	}
}

func (p *PPU) spriteOAMRead(offset uint32) {
	p.nextSpriteByte = p.oamData[p.spriteN*4+offset]
	if offset == 2 {
		p.nextSpriteByte &= 0xE3
	}
}

// spriteEval implements hardware's flawed n/m iteration through OAM,
// including the sprite-overflow bug where the comparison continues
// incrementing m spuriously once eight sprites have already been found.
func (p *PPU) spriteEval(scanline, dot int) {
	if p.spriteReadLoop {
		return
	}

	if !p.blockOAMWrites {
		p.lineOAMData[p.lineOAMIndex] = p.nextSpriteByte
	}

	if p.foundSprites == 8 {
		if p.spriteReads != 0 {
			p.spriteM = (p.spriteM + 1) & 3
			if p.spriteM == 0 {
				p.spriteN++
				if p.spriteN == 64 {
					p.spriteReadLoop = true
					p.spriteN = 0
					p.spriteM = 0
				}
			}
			p.spriteReads--
		} else if p.spriteOnLine(p.nextSpriteByte, scanline) {
			if !p.spriteOverflow {
				glog.V(2).Infof("ppu: sprite overflow on scanline %d", scanline)
			}
			p.spriteOverflow = true
			p.spriteM = (p.spriteM + 1) & 3
			p.spriteReads = 3
		} else {
			p.spriteN++
			p.spriteM = (p.spriteM + 1) & 3
			if p.spriteN == 64 {
				p.spriteReadLoop = true
				p.spriteN = 0
			}
		}
		return
	}

	if dot == 66 {
		p.spriteZeroOnNext = false
	}

	if p.spriteReads != 0 {
		p.spriteM = (p.spriteM + 1) & 3
		p.lineOAMIndex++
		p.spriteReads--
		if p.spriteReads == 0 {
			p.foundSprites++
		}
	} else if p.spriteOnLine(p.nextSpriteByte, scanline) {
		if dot == 66 {
			p.spriteZeroOnNext = true
		}
		p.spriteM++
		p.spriteReads = 3
		p.lineOAMIndex++
	}
	if p.spriteReads == 0 {
		p.spriteN++
		p.spriteM = 0
		if p.spriteN == 64 {
			p.spriteReadLoop = true
			p.spriteN = 0
		} else if p.foundSprites == 8 {
			p.blockOAMWrites = true
		}
	}
}

func (p *PPU) initLineOAM(addr int) {
	p.nextSpriteByte = 0xFF
	p.lineOAMData[addr] = p.nextSpriteByte
}

func (p *PPU) spriteReset() {
	p.spriteRenderIdx = 0
	p.spriteN = 0
	p.spriteM = 0
	p.foundSprites = 0
	p.spriteReads = 0
	p.lineOAMIndex = 0
	p.spriteReadLoop = false
	p.blockOAMWrites = false
	p.spriteZeroOnLine = p.spriteZeroOnNext
	p.spriteZeroOnNext = false
}

func (p *PPU) horzIncrement() {
	addr := p.vramAddr
	if addr&0x001F == 0x1F {
		addr &^= 0x001F
		addr ^= 0x0400
	} else {
		addr++
	}
	p.vramAddr = addr
}

func (p *PPU) vertIncrement() {
	addr := p.vramAddr
	if addr&0x7000 != 0x7000 {
		addr += 0x1000
	} else {
		addr &^= 0x7000
		y := (addr & 0x03E0) >> 5
		switch y {
		case 29:
			y = 0
			addr ^= 0x0800
		case 31:
			y = 0
		default:
			y++
		}
		addr = (addr &^ 0x03E0) | (y << 5)
	}
	p.vramAddr = addr
}

func (p *PPU) horzReset() {
	p.vramAddr = (p.vramAddr & 0xFBE0) | (p.vramAddrTemp & 0x041F)
}

func (p *PPU) vertReset() {
	p.vramAddr = (p.vramAddr & 0x841F) | (p.vramAddrTemp & 0x7BE0)
}

func (p *PPU) loadBGShifters() {
	p.lowBGShift = p.lowBGShift&0xFF00 | uint16(p.patternLow)
	p.highBGShift = p.highBGShift&0xFF00 | uint16(p.patternHigh)
	p.lowAttrShift = p.lowAttrShift&0xFF00 | (uint16(p.attributeLow&1) * 0xFF)
	p.highAttrShift = p.highAttrShift&0xFF00 | (uint16(p.attributeHigh&1) * 0xFF)
}

func (p *PPU) fetchNametable() {
	addr := 0x2000 | (p.vramAddr & 0xFFF)
	p.nametableTile = p.vramRead(addr)
}

func (p *PPU) fetchAttribute() {
	v := p.vramAddr
	addr := 0x23C0 | (v & 0x0C00) | ((v >> 4) & 0x38) | ((v >> 2) & 0x07)
	at := p.vramRead(addr)

	tileIdx := p.vramAddr & 0x3FF
	row := tileIdx >> 5
	col := tileIdx & 0x1F
	bits := (row & 0x2) | ((col >> 1) & 0x1)
	var palette uint8
	switch bits {
	case 0:
		palette = (at >> 0) & 0x3
	case 1:
		palette = (at >> 2) & 0x3
	case 2:
		palette = (at >> 4) & 0x3
	case 3:
		palette = (at >> 6) & 0x3
	}
	p.attributeLow = palette & 0x1
	p.attributeHigh = palette >> 1
}

func (p *PPU) fetchLowBGPattern() {
	v := p.vramAddr
	addr := (v>>12)&0x07 | uint16(p.nametableTile)<<4 | p.backgroundPatternTable()
	p.patternLow = p.vramRead(addr)
}

func (p *PPU) fetchHighBGPattern() {
	v := p.vramAddr
	addr := (v>>12)&0x07 | uint16(p.nametableTile)<<4 | p.backgroundPatternTable() | 0x08
	p.patternHigh = p.vramRead(addr)
}

// vramRead and vramWrite are the PPU's own bus: its two internal 1KiB
// nametables, or whatever the mapper serves (CHR-ROM/RAM pattern tables,
// or a remapped/external nametable source).
func (p *PPU) vramRead(addr uint16) uint8 {
	bank := p.mapper.PpuFetch(addr&0x3FFF, mapper.Read)
	switch bank {
	case mapper.InternalA:
		return p.ntInternalA[addr&0x3FF]
	case mapper.InternalB:
		return p.ntInternalB[addr&0x3FF]
	default:
		return p.mapper.Read(mapper.Ppu, addr&0x3FFF)
	}
}

func (p *PPU) vramWrite(addr uint16, value uint8) {
	bank := p.mapper.PpuFetch(addr&0x3FFF, mapper.Write)
	switch bank {
	case mapper.InternalA:
		p.ntInternalA[addr&0x3FF] = value
	case mapper.InternalB:
		p.ntInternalB[addr&0x3FF] = value
	default:
		p.mapper.Write(mapper.Ppu, addr&0x3FFF, value)
	}
}

func (p *PPU) isNMIEnabled() bool    { return p.regs[0]&0x80 != 0 }
func (p *PPU) isTallSprites() bool   { return p.regs[0]&0x20 != 0 }
func (p *PPU) isGrayscale() bool     { return p.regs[1]&0x01 != 0 }
func (p *PPU) isLeftBackground() bool { return p.regs[1]&0x02 != 0 }
func (p *PPU) isLeftSprites() bool   { return p.regs[1]&0x04 != 0 }
func (p *PPU) isRedEmph() bool       { return p.regs[1]&0x20 != 0 }
func (p *PPU) isGreenEmph() bool     { return p.regs[1]&0x40 != 0 }
func (p *PPU) isBlueEmph() bool      { return p.regs[1]&0x80 != 0 }

func (p *PPU) isBackgroundEnabled() bool { return p.ppuMask.value()&0x08 != 0 }
func (p *PPU) isSpritesEnabled() bool    { return p.ppuMask.value()&0x10 != 0 }
func (p *PPU) isRendering() bool         { return p.ppuMask.value()&0x18 != 0 }

func (p *PPU) backgroundPatternTable() uint16 {
	if p.regs[0]&0x10 != 0 {
		return 0x1000
	}
	return 0x0000
}

func (p *PPU) spritePatternTable() uint16 {
	if p.regs[0]&0x08 != 0 {
		return 0x1000
	}
	return 0x0000
}

func (p *PPU) vramInc() uint16 {
	if p.regs[0]&0x04 != 0 {
		return 0x20
	}
	return 0x01
}

func (p *PPU) baseNametable() uint16 {
	return uint16(p.regs[0]&3) << 10
}

// emphBits packs the color-emphasis bits into the 9-bit pixel per the
// region's BGR/BRG wiring order (PAL PPUs swap red/green emphasis wiring
// relative to NTSC).
func (p *PPU) emphBits() uint16 {
	var val uint16
	if p.region == PAL {
		if p.isGreenEmph() {
			val |= 0x40
		}
		if p.isRedEmph() {
			val |= 0x80
		}
	} else {
		if p.isRedEmph() {
			val |= 0x40
		}
		if p.isGreenEmph() {
			val |= 0x80
		}
	}
	if p.isBlueEmph() {
		val |= 0x100
	}
	return val
}

func (p *PPU) status() uint8 {
	value := p.lastWrite & 0x1F
	if p.spriteOverflow {
		value |= 0x20
	}
	if p.spriteZeroHit {
		value |= 0x40
	}
	if p.vblank {
		value |= 0x80
	}
	return value
}

func (p *PPU) inVBlank() bool {
	return p.curStep.scanline >= p.region.vblankLine() && p.curStep.scanline < p.region.prerenderLine()
}
