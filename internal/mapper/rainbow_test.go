package mapper

import "testing"

func TestRainbowFPGARAMReadWrite(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.writeCPU(0x4115, 0x01) // select FPGA RAM window
	m.writeCPU(0x6000, 0x99)
	if got := m.readCPU(0x6000); got != 0x99 {
		t.Fatalf("FPGA RAM read = %#x, want 0x99", got)
	}
}

func TestRainbowFPGAIndirectPort(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.writeCPU(0x415D, 0x10) // fpga addr low = 0x10
	m.writeCPU(0x415C, 0x00)
	m.writeCPU(0x415F, 0x77) // indirect write, auto-increments
	if got := m.fpga[0x10]; got != 0x77 {
		t.Fatalf("fpga[0x10] = %#x, want 0x77", got)
	}
	if m.fpgaAddr != 0x11 {
		t.Fatalf("fpgaAddr after write = %#x, want 0x11", m.fpgaAddr)
	}
}

func TestRainbowCPUIRQReloadLatch(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.writeCPU(0x4020, 2) // reload low
	m.writeCPU(0x4021, 0) // reload high
	m.writeCPU(0x4022, 1) // enable, latches reload into counter

	m.Tick() // counter 2 -> 1
	m.Tick() // counter 1 -> 0
	if m.IRQ() {
		t.Fatalf("IRQ should not assert until counter reaches 0 on a Tick")
	}
	m.Tick() // counter already 0: pending
	if !m.IRQ() {
		t.Fatalf("expected IRQ pending once counter reaches 0")
	}
}

func TestRainbowCHRBankWindow(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.chr = make([]uint8, 0x1000)
	m.chr[0x200] = 0xAB
	m.writeCPU(0x4121, 1) // window 1 (0x200-0x3FF) -> bank 1
	if got := m.readPPU(0x0200); got != 0xAB {
		t.Fatalf("CHR window read = %#x, want 0xAB", got)
	}
}

func TestRainbowVectorRedirection(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.writeCPU(0x4171, 0x34) // nmi vector lo
	m.writeCPU(0x4172, 0x12) // nmi vector hi
	m.writeCPU(0x4173, 0x78) // irq vector lo
	m.writeCPU(0x4174, 0x56) // irq vector hi
	m.writeCPU(0x4170, 0x03) // arm both redirects

	if got := m.readCPU(0xFFFA); got != 0x34 {
		t.Fatalf("redirected NMI vector lo = %#x, want 0x34", got)
	}
	if got := m.readCPU(0xFFFB); got != 0x12 {
		t.Fatalf("redirected NMI vector hi = %#x, want 0x12", got)
	}
	if got := m.readCPU(0xFFFE); got != 0x78 {
		t.Fatalf("redirected IRQ vector lo = %#x, want 0x78", got)
	}
	if got := m.readCPU(0xFFFF); got != 0x56 {
		t.Fatalf("redirected IRQ vector hi = %#x, want 0x56", got)
	}
}

func TestRainbowNMIVectorReadEndsFrame(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.counter.inFrame = true
	m.counter.scanline = 5

	m.readCPU(0xFFFA)

	if m.counter.inFrame {
		t.Fatalf("reading the NMI vector should end the in-progress frame, even unredirected")
	}
}

func TestRainbowDotOffsetIRQFires(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.writeCPU(0x4150, 5)  // compare = 5
	m.writeCPU(0x4151, 1)  // enable scanline IRQ
	m.writeCPU(0x4152, 10) // dot offset = 10

	m.counter.inFrame = true
	m.counter.scanline = 5
	m.counter.lineFetch = 9
	m.counter.hasLast = false

	m.PpuFetch(0x2000, Read)

	if !m.IRQ() {
		t.Fatalf("expected dot-offset IRQ to fire once lineFetch reaches the configured offset")
	}
}

func TestRainbowScanlineBoundaryAloneDoesNotFireIRQ(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.writeCPU(0x4150, 1) // compare = 1
	m.writeCPU(0x4151, 1) // enable scanline IRQ

	m.counter.inFrame = true
	m.counter.scanline = 0
	m.counter.hasLast = true
	m.counter.lastAddr = 0x2000
	m.counter.matchCount = 1
	m.counter.lineFetch = 50 // far from the default dot offset (135)

	m.PpuFetch(0x2000, Read) // repeats lastAddr: triggers the match-twice boundary

	if m.counter.scanline != 1 {
		t.Fatalf("scanline should still advance on the boundary, got %d", m.counter.scanline)
	}
	if m.IRQ() {
		t.Fatalf("Rainbow's scanline boundary alone must not fire the IRQ (noBoundaryIRQ)")
	}
}

func TestRainbowShadowOAMSpriteSubstitution(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.chr = make([]uint8, 0x2000)
	m.chr[0x1005] = 0xCD

	m.writeCPU(0x2003, 0)  // OAMADDR = 0
	m.writeCPU(0x2004, 10) // sprite 0 Y = 10
	m.writeCPU(0x2004, 0)  // tile
	m.writeCPU(0x2004, 0)  // attr
	m.writeCPU(0x2004, 0)  // X

	m.writeCPU(0x4153, 1) // arm shadow-OAM CHR substitution
	m.writeCPU(0x4200, 1) // sprite slot 0's substituted bank = 1

	m.counter.inFrame = true
	m.evalShadowSprites(10)
	m.counter.lineFetch = 131 // sprite-fetch window, slot 0

	if got := m.readPPU(0x0005); got != 0xCD {
		t.Fatalf("shadow-OAM substituted sprite CHR read = %#x, want 0xCD", got)
	}
}

func TestRainbowShadowOAMEvaluationCapsAtEightAndTallSprites(t *testing.T) {
	m := NewRainbow(prgImage(4))
	m.shadowCtrl = 0x20 // tall (8x16) sprites
	for i := 0; i < 64; i++ {
		m.shadowOAM[i][0] = 20 // every sprite covers scanline 20..35
	}

	m.evalShadowSprites(20)

	for i, oamIdx := range m.shadowLineOAM {
		if oamIdx != uint8(i) {
			t.Fatalf("shadowLineOAM[%d] = %d, want %d (first 8 in OAM order)", i, oamIdx, i)
		}
	}

	m.evalShadowSprites(200) // no sprite covers this scanline
	for i, oamIdx := range m.shadowLineOAM {
		if oamIdx != 0xFF {
			t.Fatalf("shadowLineOAM[%d] = %d, want 0xFF (empty)", i, oamIdx)
		}
	}
}
