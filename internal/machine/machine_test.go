package machine

import (
	"testing"

	"nescore/internal/ines"
)

// newTestImage builds a minimal NROM image with a 16KiB PRG bank: the reset
// vector points at $8000, which holds an infinite JMP $8000 loop so a test
// can run the machine for a bounded number of cycles without depending on
// any particular instruction's behavior.
func newTestImage() *ines.Image {
	prg := make([]uint8, 0x4000)
	// JMP $8000 at reset entry.
	prg[0x0000] = 0x4C
	prg[0x0001] = 0x00
	prg[0x0002] = 0x80
	// Reset vector at $FFFC (mirrors to PRG offset 0x3FFC in a 16KiB bank).
	prg[0x3FFC] = 0x00
	prg[0x3FFD] = 0x80
	// NMI vector at $FFFA, IRQ/BRK vector at $FFFE: both point at the same
	// loop so a spurious interrupt doesn't crash the test.
	prg[0x3FFA] = 0x00
	prg[0x3FFB] = 0x80
	prg[0x3FFE] = 0x00
	prg[0x3FFF] = 0x80

	return &ines.Image{
		PRG:        prg,
		Mapper:     0,
		Mirroring:  ines.Horizontal,
		CHRRAMSize: 0x2000,
	}
}

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := New(newTestImage(), DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNew_UnsupportedMapperReturnsInitError(t *testing.T) {
	img := newTestImage()
	img.Mapper = 255

	_, err := New(img, DefaultConfig())
	if err == nil {
		t.Fatal("expected an error for an unsupported mapper number")
	}
	if _, ok := err.(*InitError); !ok {
		t.Fatalf("expected *InitError, got %T: %v", err, err)
	}
}

func TestPowerOn_LoadsResetVectorIntoPC(t *testing.T) {
	m := newTestMachine(t)
	m.PowerOn()

	// Run enough cycles for the 7-cycle reset sequence to complete and land
	// on the JMP instruction.
	for i := 0; i < 20; i++ {
		m.Tick()
	}

	if m.cpu.Regs.PC < 0x8000 {
		t.Fatalf("expected PC in ROM space after reset, got %#04x", m.cpu.Regs.PC)
	}
}

func TestTick_AdvancesFrameEventually(t *testing.T) {
	m := newTestMachine(t)
	m.PowerOn()

	start := m.Frame()
	const maxTicks = 200000
	i := 0
	for ; i < maxTicks; i++ {
		m.Tick()
		if m.Frame() > start {
			break
		}
	}
	if i == maxTicks {
		t.Fatal("frame counter never advanced within a generous tick budget")
	}
}

func TestSetButtons_ReflectedOnControllerPort(t *testing.T) {
	m := newTestMachine(t)
	m.PowerOn()

	m.SetButtons(1, [8]bool{true, false, false, false, false, false, false, false})

	m.latch.Write(0x4016, 1)
	m.latch.Write(0x4016, 0)

	if got := m.latch.Read(0x4016); got != 1 {
		t.Errorf("expected button A bit 1 after SetButtons, got %d", got)
	}
}

func TestSaveStateLoadState_ReportUnsupported(t *testing.T) {
	m := newTestMachine(t)

	if _, err := m.SaveState(); err != ErrSaveStateUnsupported {
		t.Errorf("expected ErrSaveStateUnsupported, got %v", err)
	}
	if err := m.LoadState(nil); err != ErrSaveStateUnsupported {
		t.Errorf("expected ErrSaveStateUnsupported, got %v", err)
	}
}

func TestReset_DoesNotPanicAfterPowerOn(t *testing.T) {
	m := newTestMachine(t)
	m.PowerOn()
	for i := 0; i < 100; i++ {
		m.Tick()
	}
	m.Reset()
	for i := 0; i < 100; i++ {
		m.Tick()
	}
}
