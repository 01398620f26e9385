package mapper

import "testing"

func TestNROMMirrors16KBankAcrossFullWindow(t *testing.T) {
	m := NewNROM(prgImage(1))
	if got, want := m.Read(Cpu, 0x8000), uint8(0); got != want {
		t.Fatalf("0x8000 = %d, want %d", got, want)
	}
	if got, want := m.Read(Cpu, 0xC000), m.Read(Cpu, 0x8000); got != want {
		t.Fatalf("0xC000 = %d, want mirror of 0x8000 = %d", got, want)
	}
}

func TestNROM32KIsDirectMapped(t *testing.T) {
	img := prgImage(2)
	img.PRG[0x4000] = 0xFF // prgImage repeats every 256 bytes; make the halves differ here
	m := NewNROM(img)
	if m.Read(Cpu, 0x8000) == m.Read(Cpu, 0xC000) {
		t.Fatalf("32K ROM should not mirror 0x8000 onto 0xC000")
	}
}

func TestNROMPRGRAMReadWrite(t *testing.T) {
	m := NewNROM(prgImage(1))
	m.Write(Cpu, 0x6000, 0x55)
	if got := m.Read(Cpu, 0x6000); got != 0x55 {
		t.Fatalf("PRG RAM read = %#x, want 0x55", got)
	}
}

func TestNROMCHRRAMWhenAbsent(t *testing.T) {
	m := NewNROM(prgImage(1))
	m.Write(Ppu, 0x0010, 0xAB)
	if got := m.Read(Ppu, 0x0010); got != 0xAB {
		t.Fatalf("CHR RAM read = %#x, want 0xAB", got)
	}
}

func TestNROMHorizontalMirroring(t *testing.T) {
	m := NewNROM(prgImage(1))
	if m.PpuFetch(0x2000, Read) != InternalA {
		t.Fatalf("0x2000 should resolve to InternalA under horizontal mirroring")
	}
	if m.PpuFetch(0x2800, Read) != InternalB {
		t.Fatalf("0x2800 should resolve to InternalB under horizontal mirroring")
	}
}
