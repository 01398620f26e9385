// Package ntsc synthesizes a composite-video look from the PPU's raw
// 9-bit (6 color + 3 emphasis) palette indices, porting Shay Green's
// nes_ntsc filter: a precomputed 512x128 kernel table blitted 3-pixels-in,
// 7-pixels-out with a per-scanline burst-phase rotation.
package ntsc

import "math"

// Setup holds the tunable filter parameters. Use one of the preset
// constructors (Composite, Monochrome, SVideo, RGB) and adjust fields
// before calling NewFilter.
type Setup struct {
	// Hue: -1 = -180 degrees, +1 = +180 degrees.
	Hue float64
	// Saturation: -1 = grayscale, +1 = oversaturated.
	Saturation float64
	// Contrast: -1 = dark (0.5), +1 = light (1.5).
	Contrast float64
	// Brightness: -1 = dark (0.5), +1 = light (1.5).
	Brightness float64
	// Sharpness controls edge contrast enhancement/blurring.
	Sharpness float64
	// Gamma: -1 = dark (1.5), +1 = light (0.5).
	Gamma float64
	// Resolution controls image detail.
	Resolution float64
	// Artifacts controls color changes caused by luma transitions.
	Artifacts float64
	// Fringing controls color artifacts caused by brightness changes.
	Fringing float64
	// Bleed controls color bleed (chroma resolution reduction).
	Bleed float64
	// MergeFields averages adjacent phase variants to reduce dot crawl.
	MergeFields bool
}

// Composite is the default NTSC composite-in look.
func Composite() Setup {
	return Setup{MergeFields: true}
}

// Monochrome disables color entirely, matching a greyscale monitor.
func Monochrome() Setup {
	return Setup{
		Saturation:  -1.0,
		Sharpness:   0.2,
		Resolution:  0.2,
		Artifacts:   -0.2,
		Fringing:    -0.2,
		Bleed:       -1.0,
		MergeFields: true,
	}
}

// SVideo approximates an S-Video connection: no dot crawl, some blur.
func SVideo() Setup {
	return Setup{
		Sharpness:   0.2,
		Resolution:  0.2,
		Artifacts:   -1.0,
		Fringing:    -1.0,
		MergeFields: true,
	}
}

// RGB approximates a direct RGB connection: sharp, no artifacts.
func RGB() Setup {
	return Setup{
		Sharpness:   0.2,
		Resolution:  0.7,
		Artifacts:   -1.0,
		Fringing:    -1.0,
		Bleed:       -1.0,
		MergeFields: true,
	}
}

const (
	emphasisEnabled = true
	paletteSize     = 64 * 8
	entrySize       = 128

	alignmentCount = 3
	burstCount     = 3
	rescaleIn      = 8
	rescaleOut     = 7

	artifactsMid  = 1.0
	artifactsMax  = artifactsMid * 1.5
	fringingMid   = 1.0
	fringingMax   = fringingMid * 2.0
	stdDecoderHue = -15

	lumaCutoff    = 0.2
	rgbBits       = 8
	extDecoderHue = stdDecoderHue + 15
	rgbUnit       = 1 << rgbBits
	rgbOffset     = float64(rgbUnit*2) + 0.5

	burstSize  = entrySize / burstCount
	kernelHalf = 16
	kernelSize = kernelHalf*2 + 1

	inChunk  = 3
	outChunk = 7
	black    = 15

	rgbKernelSize = burstSize / alignmentCount
)

var defaultDecoder = [6]float64{0.956, 0.621, -0.272, -0.647, -1.105, 1.702}

// rgbColor is a 64-bit packed accumulator with headroom above each of the
// three 8-bit channels (see packRGB for the bit layout), enough to absorb
// the filter's rounding/clamp arithmetic without per-channel overflow.
type rgbColor = uint64

const (
	rgbBuilder = rgbColor(1<<21 | 1<<11 | 1<<1)
	clampMask  = rgbBuilder * 3 / 2
	clampAdd   = rgbBuilder * 0x101
	rgbBias    = rgbColor(rgbUnit) * 2 * rgbBuilder
)

type initParams struct {
	toRGB      [burstCount * 6]float64
	contrast   float64
	brightness float64
	artifacts  float64
	fringing   float64
	kernel     [rescaleOut * kernelSize * 2]float64
}

func newInit(s Setup) initParams {
	var p initParams

	p.brightness = s.Brightness*(0.5*rgbUnit) + rgbOffset
	p.contrast = s.Contrast*(0.5*rgbUnit) + rgbUnit

	p.artifacts = s.Artifacts
	if p.artifacts > 0 {
		p.artifacts *= artifactsMax - artifactsMid
	}
	p.artifacts = p.artifacts*artifactsMid + artifactsMid

	p.fringing = s.Fringing
	if p.fringing > 0 {
		p.fringing *= fringingMax - fringingMid
	}
	p.fringing = p.fringing*fringingMid + fringingMid

	initFilters(&p, s)

	hue := s.Hue*math.Pi + math.Pi/180.0*extDecoderHue
	sat := s.Saturation + 1.0
	hue += math.Pi / 180.0 * (stdDecoderHue - extDecoderHue)
	decoder := defaultDecoder

	sinH := math.Sin(hue) * sat
	cosH := math.Cos(hue) * sat
	outIdx := 0
	for b := 0; b < burstCount; b++ {
		inIdx := 0
		for i := 0; i < 3; i++ {
			iComp := decoder[inIdx]
			inIdx++
			qComp := decoder[inIdx]
			inIdx++

			p.toRGB[outIdx] = iComp*cosH - qComp*sinH
			outIdx++
			p.toRGB[outIdx] = iComp*sinH + qComp*cosH
			outIdx++
		}
		sinH, cosH = rotateIQ(sinH, cosH, 0.866025, -0.5)
	}

	return p
}

func initFilters(p *initParams, s Setup) {
	var kernels [kernelSize * 2]float64

	rolloff := 1.0 + s.Sharpness*0.032
	const maxh = 32.0
	powAN := math.Pow(rolloff, maxh)

	toAngle := s.Resolution + 1.0
	toAngle = math.Pi / maxh * lumaCutoff * (toAngle*toAngle + 1.0)
	kernels[kernelSize*3/2] = maxh
	for i := 0; i < kernelHalf*2+1; i++ {
		x := float64(i - kernelHalf)
		angle := x * toAngle

		if x != 0 || powAN > 1.056 || powAN < 0.981 {
			rolloffCosA := rolloff * math.Cos(angle)
			num := 1.0 - rolloffCosA - powAN*math.Cos(maxh*angle) + powAN*rolloff*math.Cos((maxh-1.0)*angle)
			den := 1.0 - rolloffCosA - rolloffCosA + rolloff*rolloff
			dsf := num / den
			kernels[kernelSize*3/2-kernelHalf+i] = dsf - 0.5
		}
	}

	sum := 0.0
	for i := 0; i < kernelHalf*2+1; i++ {
		x := math.Pi * 2.0 / float64(kernelHalf*2) * float64(i)
		blackman := 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(x*2.0)
		idx := kernelSize*3/2 - kernelHalf + i
		kernels[idx] *= blackman
		sum += kernels[idx]
	}

	sum = 1.0 / sum
	for i := 0; i < kernelHalf*2+1; i++ {
		idx := kernelSize*3/2 - kernelHalf + i
		kernels[idx] *= sum
	}

	const cutoffFactor = -0.03125
	cutoff := s.Bleed

	if cutoff < 0 {
		cutoff *= cutoff
		cutoff *= cutoff
		cutoff *= cutoff
		cutoff *= -30.0 / 0.65
	}
	cutoff = cutoffFactor - 0.65*cutoffFactor*cutoff

	for i := -kernelHalf; i <= kernelHalf; i++ {
		idx := kernelSize/2 + i
		fi := float64(i)
		kernels[idx] = math.Exp(fi * fi * cutoff)
	}

	for i := 0; i < 2; i++ {
		s := 0.0
		for x := i; x < kernelSize; x += 2 {
			s += kernels[x]
		}
		s = 1.0 / s
		for x := i; x < kernelSize; x += 2 {
			kernels[x] *= s
		}
	}

	weight := 1.0
	outIdx := 0
	for r := 0; r < rescaleOut; r++ {
		remain := 0.0
		weight -= 1.0 / rescaleIn
		for i := 0; i < kernelSize*2; i++ {
			cur := kernels[i]
			m := cur * weight
			p.kernel[outIdx] = m + remain
			outIdx++
			remain = cur - m
		}
	}
}

func rotateIQ(i, q, sinB, cosB float64) (float64, float64) {
	t := i*cosB - q*sinB
	return t, i*sinB + q*cosB
}

// Filter is the constructed 512x128 kernel table, ready to blit frames.
type Filter struct {
	table [paletteSize][entrySize]rgbColor
}

// NewFilter builds the kernel table for s. This is the expensive
// one-time setup; Blit reuses the result for every frame.
func NewFilter(s Setup) *Filter {
	f := &Filter{}
	init := newInit(s)

	gamma := s.Gamma * -0.5
	gamma += 0.1333

	gammaFactor := math.Pow(math.Abs(gamma), 0.73)
	if gamma < 0 {
		gammaFactor = -gammaFactor
	}

	mergeFields := s.MergeFields
	if s.Artifacts <= -1.0 && s.Fringing <= -1.0 {
		mergeFields = true
	}

	loLevels := [4]float64{-0.12, 0.0, 0.31, 0.72}
	hiLevels := [4]float64{0.4, 0.68, 1.0, 1.0}
	phases := [0x10 + 3]float64{
		-1.0, -0.866025, -0.5, 0.0, 0.5, 0.866025, 1.0, 0.866025, 0.5, 0.0, -0.5,
		-0.866025, -1.0, -0.866025, -0.5, 0.0, 0.5, 0.866025, 1.0,
	}

	for entry := 0; entry < paletteSize; entry++ {
		level := entry >> 4 & 0x03
		lo := loLevels[level]
		hi := hiLevels[level]

		color := entry & 0x0f
		switch {
		case color == 0:
			lo = hi
		case color == 0x0d:
			hi = lo
		case color > 0x0d:
			hi = 0.0
			lo = 0.0
		}

		sat := (hi - lo) * 0.5
		y := (hi + lo) * 0.5
		i := phases[color] * sat
		q := phases[color+3] * sat

		if emphasisEnabled {
			tint := entry >> 6 & 7
			if tint != 0 && color <= 0x0d {
				const attenMul = 0.79399
				const attenSub = 0.0782838

				if tint == 7 {
					y = y*(attenMul*1.13) - attenSub*1.13
				} else {
					tints := [8]int{0, 6, 10, 8, 2, 4, 0, 0}
					tintColor := tints[tint]
					s := hi*(0.5-attenMul*0.5) + attenSub*0.5
					y -= s * 0.5
					if tint >= 3 && tint != 4 {
						s *= 0.6
						y -= s
					}
					i += phases[tintColor] * s
					q += phases[tintColor+3] * s
				}
			}
		}

		y = y*(s.Contrast*0.5+1.0) + s.Brightness*0.5 - 0.5/256.0
		r, g, b := yiqToFloat(y, i, q, defaultDecoder)
		r = (r*gammaFactor-gammaFactor)*r + r
		g = (g*gammaFactor-gammaFactor)*g + g
		b = (b*gammaFactor-gammaFactor)*b + b

		y, i, q = rgbToYIQ(r, g, b)

		i *= rgbUnit
		q *= rgbUnit
		y *= rgbUnit
		y += rgbOffset

		packedR, packedG, packedB := yiqToInt(y, i, q, init.toRGB[:])
		color64 := packRGB(packedR, packedG, min32(packedB, 0x3e0))

		kernel := &f.table[entry]
		genKernel(&init, y, i, q, kernel[:])
		if mergeFields {
			mergeKernelFields(kernel[:])
		}
		correctErrors(color64, kernel[:])
	}

	return f
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func mergeKernelFields(io []rgbColor) {
	for n := 0; n < burstSize; n++ {
		p0 := io[n+burstSize*0] + rgbBias
		p1 := io[n+burstSize*1] + rgbBias
		p2 := io[n+burstSize*2] + rgbBias

		io[n+burstSize*0] = ((p0+p1)-((p0^p1)&rgbBuilder))>>1 - rgbBias
		io[n+burstSize*1] = ((p1+p2)-((p1^p2)&rgbBuilder))>>1 - rgbBias
		io[n+burstSize*2] = ((p2+p0)-((p2^p0)&rgbBuilder))>>1 - rgbBias
	}
}

func correctErrors(color rgbColor, out []rgbColor) {
	outIdx := 0
	for n := 0; n < burstCount; n++ {
		row := out[outIdx:]
		for i := 0; i < rgbKernelSize/2; i++ {
			diff := color - row[i] - row[(i+12)%14+14] - row[(i+10)%14+28] -
				row[i+7] - row[i+5+14] - row[i+3+28]
			distributeError(i+3+28, i+5+14, i+7, diff, i, row)
		}
		outIdx += alignmentCount * rgbKernelSize
	}
}

func distributeError(a, b, c int, err rgbColor, i int, out []rgbColor) {
	fourth := (err + 2*rgbBuilder) >> 2
	fourth &= (rgbBias >> 1) - rgbBuilder
	fourth -= rgbBias >> 2
	out[a] += fourth
	out[b] += fourth
	out[c] += fourth
	out[i] += err - fourth*3
}

type pixelInfo struct {
	offset int
	negate float64
	kernel [4]float64
}

func pixelOffset(ntscPixel, scaled int) (int, float64) {
	n := ntscPixel - scaled/rescaleOut*rescaleIn
	sc := (scaled + rescaleOut*10) % rescaleOut
	extra := 0
	if sc != 0 {
		extra = 1
	}
	a := kernelSize/2 + n + extra + (rescaleOut-sc)%rescaleOut + kernelSize*2*sc
	b := 1 - ((ntscPixel+100)&2)
	return a, float64(b)
}

func newPixelInfo(ntscPixel, scaled int, kernel [4]float64) pixelInfo {
	offset, negate := pixelOffset(ntscPixel, scaled)
	return pixelInfo{offset: offset, negate: negate, kernel: kernel}
}

var pixelTable = [alignmentCount]pixelInfo{
	newPixelInfo(-4, -9, [4]float64{1.0, 1.0, 0.6667, 0.0}),
	newPixelInfo(-2, -7, [4]float64{0.3333, 1.0, 1.0, 0.3333}),
	newPixelInfo(0, -5, [4]float64{0.0, 0.6667, 1.0, 1.0}),
}

func genKernel(p *initParams, y, i, q float64, out []rgbColor) {
	outIdx := 0
	toRGBIdx := 0

	y -= rgbOffset
	for b := 0; b < burstCount; b++ {
		for pi := 0; pi < alignmentCount; pi++ {
			pixel := pixelTable[pi]
			yy := y * p.fringing * pixel.negate
			ic0 := (i + yy) * pixel.kernel[0]
			qc1 := (q + yy) * pixel.kernel[1]
			ic2 := (i - yy) * pixel.kernel[2]
			qc3 := (q - yy) * pixel.kernel[3]

			factor := p.artifacts * pixel.negate
			ii := i * factor
			yc0 := (y + ii) * pixel.kernel[0]
			yc2 := (y - ii) * pixel.kernel[2]

			qq := q * factor
			yc1 := (y + qq) * pixel.kernel[1]
			yc3 := (y - qq) * pixel.kernel[3]

			kIdx := pixel.offset
			for r := 0; r < rgbKernelSize; r++ {
				k := p.kernel[kIdx:]
				iv := k[0]*ic0 + k[2]*ic2
				qv := k[1]*qc1 + k[3]*qc3
				yv := k[kernelSize]*yc0 + k[kernelSize+1]*yc1 + k[kernelSize+2]*yc2 + k[kernelSize+3]*yc3 + rgbOffset

				switch {
				case rescaleOut <= 1:
					kIdx--
				case kIdx < kernelSize*2*(rescaleOut-1):
					kIdx += kernelSize*2 - 1
				default:
					kIdx -= kernelSize*2*(rescaleOut-1) + 2
				}

				rr, gg, bb := yiqToInt(yv, iv, qv, p.toRGB[toRGBIdx:])
				out[outIdx] = packRGB(rr, gg, bb) - rgbBias
				outIdx++
			}
		}
		toRGBIdx += 6
		i, q = rotateIQ(i, q, -0.866025, -0.5)
	}
}

func rgbToYIQ(r, g, b float64) (float64, float64, float64) {
	y := r*0.299 + g*0.587 + b*0.114
	i := r*0.596 - g*0.275 - b*0.321
	q := r*0.212 - g*0.523 + b*0.311
	return y, i, q
}

func yiqToFloat(y, i, q float64, toRGB [6]float64) (float64, float64, float64) {
	r := y + toRGB[0]*i + toRGB[1]*q
	g := y + toRGB[2]*i + toRGB[3]*q
	b := y + toRGB[4]*i + toRGB[5]*q
	return r, g, b
}

func yiqToInt(y, i, q float64, toRGB []float64) (int32, int32, int32) {
	r := y + toRGB[0]*i + toRGB[1]*q
	g := y + toRGB[2]*i + toRGB[3]*q
	b := y + toRGB[4]*i + toRGB[5]*q
	return int32(r), int32(g), int32(b)
}

func packRGB(r, g, b int32) rgbColor {
	return rgbColor(r)<<21 | rgbColor(g)<<11 | rgbColor(b)<<1
}

func clamp(io rgbColor, bits uint) rgbColor {
	sub := io >> (9 - bits) & clampMask
	c := clampAdd - sub
	io |= c
	c -= sub
	io &= c
	return io
}

// Palette renders the filter's 512-entry lookup table as packed 24-bit
// RGB triples, suitable for a plain indexed blitter that does not need
// the full composite-artifact simulation.
func (f *Filter) Palette() [paletteSize * 3]uint8 {
	var out [paletteSize * 3]uint8
	for entry := 0; entry < paletteSize; entry++ {
		rgb := clamp(f.table[entry][0]+rgbBias, 8-rgbBits)
		out[entry*3+0] = uint8(rgb >> 21)
		out[entry*3+1] = uint8(rgb >> 11)
		out[entry*3+2] = uint8(rgb >> 1)
	}
	return out
}

// Blitter streams one frame of 9-bit NES palette indices through the
// filter, producing 24-bit RGB output pixels 7-at-a-time per 3-in chunk.
type Blitter struct {
	filter      *Filter
	kernel      [3]int
	kernelx     [3]int
	burstPhase  int
	burstOffset int
}

// NewBlitter starts a blit at the given initial burst phase (0, 1, or 2);
// callers normally carry this across frames so alternating scanlines keep
// rotating rather than resetting.
func NewBlitter(f *Filter, burstPhase int) *Blitter {
	return &Blitter{filter: f, burstPhase: burstPhase % burstCount}
}

// BurstPhase reports the phase the next row will start at.
func (bl *Blitter) BurstPhase() int { return bl.burstPhase }

// Row filters one scanline of in (inWidth 9-bit palette indices) into out
// (packed 0xRRGGBB pixels). len(out) must be at least OutWidth(inWidth).
func (bl *Blitter) Row(in []uint16, inWidth int, out []uint32) {
	bl.beginRow(black, black, in[0])
	in = in[1:]

	chunkCount := (inWidth - 1) / inChunk
	for c := 0; c < chunkCount; c++ {
		bl.colorIn(0, in[0])
		bl.rgbOut(out, 0)
		bl.rgbOut(out, 1)

		bl.colorIn(1, in[1])
		bl.rgbOut(out, 2)
		bl.rgbOut(out, 3)

		bl.colorIn(2, in[2])
		bl.rgbOut(out, 4)
		bl.rgbOut(out, 5)
		bl.rgbOut(out, 6)

		in = in[3:]
		out = out[7:]
	}

	bl.colorIn(0, black)
	bl.rgbOut(out, 0)
	bl.rgbOut(out, 1)

	bl.colorIn(1, black)
	bl.rgbOut(out, 2)
	bl.rgbOut(out, 3)

	bl.colorIn(2, black)
	bl.rgbOut(out, 4)
	bl.rgbOut(out, 5)
	bl.rgbOut(out, 6)

	bl.burstPhase = (bl.burstPhase + 1) % burstCount
}

func (bl *Blitter) beginRow(p0, p1, p2 uint16) {
	bl.burstOffset = bl.burstPhase * burstSize
	bl.kernel[0] = int(p0)
	bl.kernel[1] = int(p1)
	bl.kernel[2] = int(p2)

	bl.kernelx[0] = 0
	bl.kernelx[1] = bl.kernel[0]
	bl.kernelx[2] = bl.kernel[0]
}

func (bl *Blitter) colorIn(index int, color uint16) {
	bl.kernelx[index] = bl.kernel[index]
	bl.kernel[index] = int(color)
}

func (bl *Blitter) rgbOut(out []uint32, index int) {
	k := func(entry, x int) rgbColor { return bl.filter.table[entry][x+bl.burstOffset] }
	raw := k(bl.kernel[0], index) +
		k(bl.kernel[1], (index+12)%7+14) +
		k(bl.kernel[2], (index+10)%7+28) +
		k(bl.kernelx[0], (index+7)%14) +
		k(bl.kernelx[1], (index+5)%7+21) +
		k(bl.kernelx[2], (index+3)%7+35)

	raw = clamp(raw, 8-rgbBits)

	out[index] = uint32(raw>>5&0xff0000 | raw>>3&0xff00 | raw>>1&0xff)
}

// OutWidth returns the number of output pixels a Row call produces for a
// row of inWidth input pixels (rounded down to a whole number of 3-in
// chunks, never rounding 256 down).
func OutWidth(inWidth int) int {
	return ((inWidth-1)/inChunk + 1) * outChunk
}
