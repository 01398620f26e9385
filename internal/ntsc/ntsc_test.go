package ntsc

import "testing"

func TestOutWidth_RoundsDownToWholeChunks(t *testing.T) {
	cases := []struct{ in, want int }{
		{1, 7},
		{4, 14},
		{256, 602},
	}
	for _, c := range cases {
		if got := OutWidth(c.in); got != c.want {
			t.Errorf("OutWidth(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNewBlitter_BurstPhaseWrapsModuloBurstCount(t *testing.T) {
	f := NewFilter(Composite())
	bl := NewBlitter(f, 5) // 5 % burstCount(3) == 2

	if got := bl.BurstPhase(); got != 2 {
		t.Fatalf("BurstPhase() = %d, want 2", got)
	}
}

func TestBlitter_RowAdvancesBurstPhaseEachCall(t *testing.T) {
	f := NewFilter(Composite())
	bl := NewBlitter(f, 0)

	in := make([]uint16, 256)
	out := make([]uint32, OutWidth(256))

	want := []int{1, 2, 0, 1}
	for i, w := range want {
		bl.Row(in, 256, out)
		if got := bl.BurstPhase(); got != w {
			t.Fatalf("after Row() call %d: BurstPhase() = %d, want %d", i, got, w)
		}
	}
}

func TestPalette_IsDeterministicForTheSameSetup(t *testing.T) {
	f1 := NewFilter(Composite())
	f2 := NewFilter(Composite())

	p1 := f1.Palette()
	p2 := f2.Palette()

	if len(p1) != paletteSize*3 {
		t.Fatalf("Palette() length = %d, want %d", len(p1), paletteSize*3)
	}
	if p1 != p2 {
		t.Error("Palette() should be deterministic for identical Setup values")
	}
}

func TestPalette_DiffersBetweenCompositeAndMonochrome(t *testing.T) {
	color := NewFilter(Composite()).Palette()
	gray := NewFilter(Monochrome()).Palette()

	if color == gray {
		t.Error("expected Composite and Monochrome setups to produce different palettes")
	}
}

func TestBlitter_RowFillsEntireOutputSlice(t *testing.T) {
	f := NewFilter(Composite())
	bl := NewBlitter(f, 0)

	in := make([]uint16, 256)
	outWidth := OutWidth(256)
	out := make([]uint32, outWidth)

	bl.Row(in, 256, out)

	allZero := true
	for _, px := range out {
		if px != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Error("expected Row to write non-trivial pixel data into out")
	}
}
