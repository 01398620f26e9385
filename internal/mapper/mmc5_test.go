package mapper

import "testing"

func TestMMC5ScanlineCounterSignalsAfterTwoIdenticalFetches(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.writeCPU(0x5203, 10) // compare = scanline 10
	m.writeCPU(0x5204, 0x80)

	// Simulate the hardware trick: fetch the same nametable address twice
	// in a row, once per visible scanline, for 11 scanlines.
	for line := 0; line < 11; line++ {
		m.PpuFetch(0x2000, Read)
		m.PpuFetch(0x2000, Read)
	}

	if !m.IRQ() {
		t.Fatalf("expected MMC5 IRQ pending after reaching scanline compare")
	}
}

func TestMMC5IdleBusEndsFrame(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.PpuFetch(0x2000, Read)
	m.PpuFetch(0x2000, Read)
	if !m.counter.inFrame {
		t.Fatalf("expected in_frame after two matching fetches")
	}
	m.Tick() // observes the two fetches above, so it is not an idle tick
	for i := 0; i < 3; i++ {
		m.Tick()
	}
	if m.counter.inFrame {
		t.Fatalf("expected in_frame to clear after 3 idle ticks")
	}
}

func TestMMC5PRGRAMBanking(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.writeCPU(0x5113, 0x01) // bank 1 of PRG-RAM at 0x6000
	m.writeCPU(0x6000, 0x42)
	if got := m.readCPU(0x6000); got != 0x42 {
		t.Fatalf("PRG-RAM readback = %#x, want 0x42", got)
	}
	m.writeCPU(0x5113, 0x00)
	if got := m.readCPU(0x6000); got == 0x42 {
		t.Fatalf("switching PRG-RAM bank should change the visible byte")
	}
}

func TestMMC5Multiplier(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.writeCPU(0x5205, 12)
	m.writeCPU(0x5206, 10)
	if lo, hi := m.readCPU(0x5205), m.readCPU(0x5206); uint16(hi)<<8|uint16(lo) != 120 {
		t.Fatalf("12*10 product = %d, want 120", uint16(hi)<<8|uint16(lo))
	}
}

func TestMMC5ChrMode0UsesOneEightKWindow(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.chr = make([]uint8, 0x10000)
	m.writeCPU(0x5101, 0) // chrMode = 0 (8K)
	m.writeCPU(0x5127, 3) // chrRegsSprite[7], the mode-0 register, = bank 3
	m.tallSprites = true  // select the sprite register set

	m.chr[3*0x2000+0x123] = 0xEE
	if got := m.readPPU(0x0123); got != 0xEE {
		t.Fatalf("CHR mode 0 read = %#x, want 0xEE", got)
	}
}

func TestMMC5ChrMode3UsesIndependentOneKWindows(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.chr = make([]uint8, 0x8000)
	m.writeCPU(0x5101, 3) // chrMode = 3 (1K)
	m.writeCPU(0x5128, 5) // chrRegsBG[0] -> window 0 = bank 5
	m.writeCPU(0x5129, 7) // chrRegsBG[1] -> window 1 = bank 7

	m.chr[7*0x400+0x10] = 0x42
	if got := m.readPPU(0x0410); got != 0x42 {
		t.Fatalf("CHR mode 3 window 1 read = %#x, want 0x42", got)
	}
}

func TestMMC5VerticalSplitNametableSubstitution(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.renderingEnabled = true
	m.counter.inFrame = true
	m.counter.scanline = 16
	m.exMode = 0
	m.writeCPU(0x5200, 0x80|0x05) // enabled, left side, threshold = 5
	m.writeCPU(0x5201, 0)         // split scroll = 0

	m.counter.lineFetch = 1 // f=0: tileNumber() = 2, left of the threshold

	idx := (16/8%30)*32 + 2 // row*32+col per vertSplitTileIndex
	m.exram[idx] = 0x77

	if got := m.readPPU(0x2000); got != 0x77 {
		t.Fatalf("vertical split nametable substitution = %#x, want 0x77", got)
	}
}

func TestMMC5VerticalSplitOutsideThresholdUsesNormalNametable(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.renderingEnabled = true
	m.counter.inFrame = true
	m.writeCPU(0x5200, 0x80|0x05) // enabled, left side, threshold = 5
	m.counter.lineFetch = 1      // tileNumber() = 2, left of threshold: split active
	if !m.inVertSplit() {
		t.Fatalf("expected column 2 to fall inside the left split (<5)")
	}

	m.counter.lineFetch = 25 // f=24: tileNumber() = 24/4+2 = 8, right of threshold
	if m.inVertSplit() {
		t.Fatalf("expected column 8 to fall outside the left split (<5)")
	}
}

func TestMMC5ExtendedAttributeModeSubstitutesPattern(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.chr = make([]uint8, 0x4000) // four 4KiB banks
	m.renderingEnabled = true
	m.exMode = 1
	m.counter.inFrame = true

	m.exram[0] = 0x42 // bank 2 (0x42&0x3F), palette bits 01

	m.PpuFetch(0x2000, Read) // nametable fetch (f=0): snapshots extAttrBank/extAttrPal
	m.PpuFetch(0x2001, Read) // attribute fetch (f=1): short-circuited to External
	m.PpuFetch(0x2002, Read) // first background pattern fetch (f=2)

	m.chr[2*0x1000+0x07] = 0x9A
	if got := m.readPPU(0x0007); got != 0x9A {
		t.Fatalf("extended-attribute pattern substitution = %#x, want 0x9A", got)
	}
	if m.extAttrPal != 0b01010101 {
		t.Fatalf("extAttrPal = %#b, want 0b01010101", m.extAttrPal)
	}
}

func TestMMC5RenderingDisableMidFrameEndsFrame(t *testing.T) {
	m := NewMMC5(prgImage(4))
	m.writeCPU(0x2001, 0x18) // enable background+sprites
	m.counter.inFrame = true

	m.writeCPU(0x2001, 0x00) // disable rendering mid-frame

	if m.counter.inFrame {
		t.Fatalf("disabling rendering mid-frame should end the in-progress frame")
	}
}
