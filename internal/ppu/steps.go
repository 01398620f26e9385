package ppu

// backgroundStep names the background-pipeline side effect a dot performs,
// mirroring the reference engine's per-dot step table instead of a giant
// scanline/dot conditional scattered through Tick.
type backgroundStep uint8

const (
	bgNone backgroundStep = iota
	bgVertReset
	bgHorzReset
	bgVertIncrement
	bgHorzIncrement
	bgShiftedHorzIncrement
	bgNametable
	bgAttribute
	bgLowPattern
	bgHighPattern
)

// spriteStep names the sprite-pipeline side effect a dot performs. fetch0..7
// are the eight dots of one sprite's 8-dot fetch block (257-320).
type spriteStep uint8

const (
	spNone spriteStep = iota
	spReset
	spClear
	spEval
	spRead
	spHblank
	spFetch0
	spFetch1
	spFetch2
	spFetch3
	spFetch4
	spFetch5
	spFetch6
	spFetch7
	spBackgroundWait
)

// stateChange names a dot's frame/vblank bookkeeping side effect.
type stateChange uint8

const (
	stNone stateChange = iota
	stSkippedTick
	stSetVblank
	stClearVblank
)

// step is one entry of the precomputed scanline/dot schedule.
type step struct {
	scanline    int
	dot         int
	background  backgroundStep
	sprite      spriteStep
	state       stateChange
}

// region distinguishes NTSC's 262-line frame from PAL's 312-line frame; the
// dot-level pipeline is identical, only the number of post-render/vblank
// filler lines differs.
type Region uint8

const (
	NTSC Region = iota
	PAL
)

func (r Region) totalLines() int {
	if r == PAL {
		return 312
	}
	return 262
}

func (r Region) vblankLine() int {
	return 240
}

func (r Region) prerenderLine() int {
	return r.totalLines() - 1
}

// generateSteps builds the full scanline/dot schedule for region, one entry
// per dot of every scanline in the frame (dots 0-340, scanlines 0..totalLines-1,
// with the prerender line stored at index totalLines-1). This is computed
// once at construction and walked by an index counter each Tick.
func generateSteps(r Region) []step {
	total := r.totalLines()
	steps := make([]step, 0, total*341)
	prerender := r.prerenderLine()
	vblankLine := r.vblankLine()

	fetchSteps := [8]spriteStep{spFetch0, spFetch1, spFetch2, spFetch3, spFetch4, spFetch5, spFetch6, spFetch7}

	for sl := 0; sl < total; sl++ {
		for dot := 0; dot < 341; dot++ {
			s := step{scanline: sl, dot: dot}
			visible := sl < vblankLine
			isPrerender := sl == prerender

			if sl == vblankLine && dot == 1 {
				s.state = stSetVblank
			}
			if isPrerender && dot == 1 {
				s.state = stClearVblank
			}
			// The one dot/341 skip on odd frames with rendering enabled:
			// dot 339 of the prerender line is where the reference engine
			// steals an extra step() call.
			if isPrerender && dot == 339 {
				s.state = stSkippedTick
			}

			if visible || isPrerender {
				renderRange := dot >= 1 && dot <= 256
				prefetchRange := dot >= 321 && dot <= 336
				if renderRange || prefetchRange {
					switch dot % 8 {
					case 1:
						s.background = bgNametable
					case 3:
						s.background = bgAttribute
					case 5:
						s.background = bgLowPattern
					case 7:
						s.background = bgHighPattern
					case 0:
						if dot == 256 {
							s.background = bgVertIncrement
						} else if dot == 328 || dot == 336 {
							s.background = bgShiftedHorzIncrement
						} else {
							s.background = bgHorzIncrement
						}
					}
				}
				// Two dummy nametable fetches end every rendered line.
				if dot == 337 || dot == 339 {
					s.background = bgNametable
				}
				if dot == 257 {
					s.background = bgHorzReset
				}
				if isPrerender && dot >= 280 && dot <= 304 {
					s.background = bgVertReset
				}
			}

			if visible || isPrerender {
				switch {
				case dot == 0:
					s.sprite = spReset
				case dot >= 1 && dot <= 64:
					s.sprite = spClear
				case dot >= 65 && dot <= 255:
					if dot%2 == 1 {
						s.sprite = spRead
					} else {
						s.sprite = spEval
					}
				case dot == 256:
					s.sprite = spHblank
				case dot >= 257 && dot <= 320:
					rel := dot - 257
					sub := rel % 8
					s.sprite = fetchSteps[sub]
				case dot >= 321 && dot <= 340:
					s.sprite = spBackgroundWait
				}
			}

			steps = append(steps, s)
		}
	}
	return steps
}
