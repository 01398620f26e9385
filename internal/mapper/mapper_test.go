package mapper

import "nescore/internal/ines"

func prgImage(banks int) *ines.Image {
	prg := make([]uint8, banks*16384)
	for i := range prg {
		prg[i] = uint8(i)
	}
	return &ines.Image{PRG: prg, Mirroring: ines.Horizontal}
}
