// Package machine is the top-level orchestrator: it owns the CPU, PPU, APU,
// mapper and bus fabric, wires every device onto the CPU's address space,
// and drives the master tick loop at the CPU:PPU ratio the region demands.
package machine

import (
	"fmt"

	"github.com/golang/glog"

	"nescore/internal/apu"
	"nescore/internal/bus"
	"nescore/internal/cpu"
	"nescore/internal/ines"
	"nescore/internal/input"
	"nescore/internal/mapper"
	"nescore/internal/ppu"
)

// Region selects NTSC or PAL timing. It is an alias of ppu.Region so the
// scanline/dot table generator and the machine's own CPU:PPU tick ratio
// agree on the same value without either package importing a third
// definition.
type Region = ppu.Region

const (
	NTSC = ppu.NTSC
	PAL  = ppu.PAL
)

// Config is the small set of knobs the core itself consumes, trimmed from
// the teacher's internal/app.Config (which also carries window/input/audio-
// backend settings that are a host's concern, not the core's) down to what
// the machine constructor actually needs.
type Config struct {
	// Region picks the PPU scanline count and the CPU:PPU tick ratio.
	Region Region

	// SampleRate is the APU's target output sample rate in Hz.
	SampleRate int
}

// DefaultConfig returns NTSC timing at 44.1kHz, the common case.
func DefaultConfig() Config {
	return Config{Region: NTSC, SampleRate: 44100}
}

// InitError is returned by New when img cannot be turned into a running
// machine — this is the one fallible boundary in the core; every error path
// is logged at construction time in addition to being returned, so a
// headless host that only checks the error still has a trace of why.
type InitError struct {
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("machine: %s: %v", e.Reason, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ppuRatioDen is the fixed-point denominator for the PAL 1:3.2 CPU:PPU tick
// ratio (16 PPU dots per 5 CPU cycles), modeled as a fractional accumulator
// rather than a floating divisor so the schedule is exactly reproducible.
const ppuRatioDen = 5

// Machine couples the CPU, PPU, APU and mapper into one cooperatively
// scheduled core. It is not safe for concurrent use; callers that need to
// talk to a running machine from another goroutine must serialize through
// their own channel, per the concurrency model.
type Machine struct {
	cfg Config

	cpu *cpu.CPU
	ppu *ppu.PPU
	apu *apu.APU
	mp  mapper.Mapper

	cpuBus *bus.Bus
	ram    *bus.RAM
	latch  *input.Latch

	mapperDev mapperDevice

	ppuAccum int // fractional PPU-dot credit for the PAL 1:3.2 ratio

	pin     cpu.PinIn
	powered bool
}

// New constructs a Machine for img under cfg. img is assumed already
// decoded (the ROM-container parsing step is out of scope for the core
// proper; internal/ines is a peripheral convenience for test harnesses and
// hosts that want one).
func New(img *ines.Image, cfg Config) (*Machine, error) {
	mp, err := mapper.New(img)
	if err != nil {
		ierr := &InitError{Reason: "unsupported mapper", Err: err}
		glog.Errorf("%v", ierr)
		return nil, ierr
	}

	m := &Machine{
		cfg:   cfg,
		cpu:   cpu.New(),
		ppu:   ppu.New(cfg.Region, mp),
		apu:   apu.New(),
		mp:    mp,
		ram:   bus.NewRAM(0x800),
		latch: input.NewLatch(),
	}
	m.mapperDev = mapperDevice{m: mp}

	m.apu.SetSampleRate(cfg.SampleRate)
	m.apu.SetMemReader(m.readCPU)
	m.apu.SetStallRequester(m.cpu.RequestDMCStall)
	m.apu.SetExternalSample(m.mapperSample)

	m.buildBus()
	return m, nil
}

// buildBus registers every device the CPU can see, in the order of the
// address map, low to high. Some windows overlap on purpose (the mapper
// also listens to writes at $2000/$2001/$2003/$2004); the bus sends such a
// write to every matching device.
func (m *Machine) buildBus() {
	b := bus.New()

	// $0000-$1FFF: 2KiB internal RAM mirrored four times.
	b.Listen(bus.RangeAndMask(0x0000, 0x2000, 0x07FF), m.ram)

	// $2000-$3FFF: PPU registers, mirrored every 8 bytes.
	b.Listen(bus.AndAndMask(0x2000, 0xE000), m.ppu)

	// $2000/$2001/$2003/$2004 writes are additionally mirrored to the mapper:
	// MMC5 snoops $2000's sprite-height bit and $2001's rendering-enable
	// bits, and Rainbow's shadow OAM
	// mirrors $2003/$2004 to track sprite evaluation independent of the
	// PPU's own OAM, exactly as original_source's exrom.rs/rainbow.rs
	// register the mapper as a second write listener on those CPU
	// addresses alongside the PPU.
	b.ListenWrite(bus.Address(0x2000), m.mapperDev)
	b.ListenWrite(bus.Address(0x2001), m.mapperDev)
	b.ListenWrite(bus.Address(0x2003), m.mapperDev)
	b.ListenWrite(bus.Address(0x2004), m.mapperDev)

	// $4000-$4013, $4015, $4017: APU registers. $4014 is OAM-DMA, handled
	// separately since it stalls the CPU rather than being a plain device
	// write. $4016/$4017 read dispatch is the controller latch; $4017 is
	// also the APU's frame-counter write, so the APU alone listens on $4017
	// writes and the controller alone on $4017 reads.
	b.Listen(bus.RangeAndMask(0x4000, 0x4014, 0xFFFF), apuRegisters{m.apu})
	b.ListenRead(bus.Address(0x4015), apuRegisters{m.apu})
	b.ListenWrite(bus.Address(0x4015), apuRegisters{m.apu})
	b.ListenWrite(bus.Address(0x4017), apuRegisters{m.apu})

	b.ListenWrite(bus.Address(0x4014), oamDMA{m})

	b.Listen(bus.Address(0x4016), m.latch)
	b.ListenRead(bus.Address(0x4017), controllerOnly{m.latch})

	// $4020-$FFFF: the mapper's registers, PRG-RAM and PRG-ROM windows.
	// RangeAndMask's upper bound is exclusive and a uint16 cannot hold
	// $10000, so $FFFF is registered separately.
	b.Listen(bus.RangeAndMask(0x4020, 0xFFFF, 0xFFFF), m.mapperDev)
	b.Listen(bus.Address(0xFFFF), m.mapperDev)

	m.cpuBus = b
}

// mapperSample adapts the mapper's signed-16-bit expansion-audio
// contribution to the APU mixer's normalized float32 samples.
func (m *Machine) mapperSample() float32 {
	v, ok := m.mp.Sample()
	if !ok {
		return 0
	}
	return float32(v) / 32768.0
}

// mapperDevice adapts mapper.Mapper's (BusKind, addr) shape to bus.Device's
// plain (addr) shape for the CPU side.
type mapperDevice struct{ m mapper.Mapper }

func (d mapperDevice) Read(addr uint16) uint8         { return d.m.Read(mapper.Cpu, addr) }
func (d mapperDevice) Write(addr uint16, value uint8) { d.m.Write(mapper.Cpu, addr, value) }
func (d mapperDevice) Peek(addr uint16) uint8         { return d.m.Peek(mapper.Cpu, addr) }

// apuRegisters adapts apu.APU's WriteRegister/ReadStatus surface to
// bus.Device.
type apuRegisters struct{ a *apu.APU }

func (d apuRegisters) Read(addr uint16) uint8 {
	if addr == 0x4015 {
		return d.a.ReadStatus()
	}
	return 0
}

func (d apuRegisters) Write(addr uint16, value uint8) {
	d.a.WriteRegister(addr, value)
}

// controllerOnly exposes only Read(0x4017) (the APU also claims the write
// side of that address for the frame counter; the controller port and the
// frame-counter register share the address but not the direction).
type controllerOnly struct{ l *input.Latch }

func (d controllerOnly) Read(addr uint16) uint8         { return d.l.Read(addr) }
func (d controllerOnly) Write(addr uint16, value uint8) {}

// oamDMA triggers the CPU's DMA stall sequence on a $4014 write; the actual
// 256 read/write pairs are issued by cpu.CPU's internal dma sub-module,
// which calls back into the bus exactly like any other cycle.
type oamDMA struct{ m *Machine }

func (d oamDMA) Read(addr uint16) uint8 { return 0 }
func (d oamDMA) Write(addr uint16, value uint8) {
	d.m.cpu.TriggerDMA(value)
}

// readCPU is the DMC channel's memory-read hook, wired via apu.SetMemReader.
func (m *Machine) readCPU(addr uint16) uint8 {
	return m.cpuBus.Read(addr)
}

// PowerOn runs the power-on reset sequence: PPU register initialization
// followed by the CPU's internal reset-vector fetch, matching real
// hardware's simultaneous power-on behavior.
func (m *Machine) PowerOn() {
	m.ppu.Power()
	m.apu.Reset()
	m.latch.Reset()
	m.ppuAccum = 0
	m.pin = cpu.PinIn{Power: true}
	m.powered = true
	// Run one CPU tick with Power asserted to force the internal reset
	// sequence to begin; subsequent ticks carry Power=false.
	m.tickCPU()
	m.pin.Power = false
}

// Reset runs the subset of power-on behavior a reset line assertion
// performs: the PPU's short register-clear sequence and the CPU's reset
// interrupt vector, without reinitializing RAM or the mapper's persistent
// state. The reset line is held across several cycles rather than pulsed
// for exactly one, since the CPU only samples it at an instruction's
// polling point, not on every cycle.
func (m *Machine) Reset() {
	m.ppu.Reset()
	m.pin.Reset = true
	for i := 0; i < 8; i++ {
		m.tickCPU()
	}
	m.pin.Reset = false
}

// SetButtons sets all eight buttons of the named controller port (1 or 2)
// at once.
func (m *Machine) SetButtons(port int, buttons [8]bool) {
	switch port {
	case 1:
		m.latch.Controller1.SetButtons(buttons)
	case 2:
		m.latch.Controller2.SetButtons(buttons)
	}
}

// SetMapperInput is the generic hook for mapper-specific host input that
// isn't a standard controller (e.g. an FDS disk side-select button). None
// of the three mappers implemented here (NROM, MMC5, Rainbow) currently
// define such an input; it is kept as a typed no-op boundary so a future
// mapper can be wired without changing the Machine API.
func (m *Machine) SetMapperInput(id int, value uint8) {}

// SaveState and LoadState are a typed-but-unimplemented boundary: the
// save-state serialization format is out of scope for this core (see
// SPEC_FULL.md / DESIGN.md), but a future host-side implementation needs
// somewhere to report into rather than the core silently doing nothing.
var ErrSaveStateUnsupported = fmt.Errorf("machine: save-state serialization is not implemented")

func (m *Machine) SaveState() ([]byte, error) { return nil, ErrSaveStateUnsupported }
func (m *Machine) LoadState(data []byte) error { return ErrSaveStateUnsupported }

// Frame returns the number of frames the PPU has completed.
func (m *Machine) Frame() uint64 { return m.ppu.Frame() }

// Screen returns the current frame buffer of 9-bit palette indices.
func (m *Machine) Screen() *ppu.Screen { return m.ppu.Screen() }

// Samples drains and returns the audio samples generated since the last
// call.
func (m *Machine) Samples() []float32 { return m.apu.GetSamples() }

// Halted reports whether the CPU has jammed on a KIL opcode.
func (m *Machine) Halted() bool { return m.cpu.Halted() }

// Powered reports whether PowerOn has been called.
func (m *Machine) Powered() bool { return m.powered }

// tickCPU performs exactly one CPU master cycle: service the previous
// cycle's bus operation, sample the IRQ/NMI lines, call cpu.Tick, and feed
// the result back into the bus for next cycle's Data.
func (m *Machine) tickCPU() {
	m.pin.IRQ = m.mp.IRQ() || m.apu.IRQ()
	m.pin.NMI = m.ppu.NMI()

	result := m.cpu.Tick(m.pin)

	switch result.Kind {
	case cpu.Read, cpu.Fetch:
		m.pin.Data = m.cpuBus.Read(result.Addr)
	case cpu.Write:
		m.cpuBus.Write(result.Addr, result.Value)
	case cpu.Idle:
		// No bus transaction this cycle; Data is whatever was last driven
		// (open-bus), matching real hardware floating the data lines.
	}

	m.mp.Tick()
	m.apu.Step()

	if glog.V(3) {
		glog.Infof("machine: cycle kind=%d addr=%04X data=%02X", result.Kind, result.Addr, m.pin.Data)
	}
}

// Tick advances the machine by exactly one CPU master cycle and the
// corresponding PPU dots (3 for NTSC, a 3-or-4 alternation averaging 3.2
// for PAL via a fractional accumulator). This is the primitive a host's run
// loop (or a test harness wanting sub-frame granularity) calls directly;
// StepFrame below is the common case of running until the frame counter
// advances.
func (m *Machine) Tick() {
	m.tickCPU()

	switch m.cfg.Region {
	case PAL:
		m.ppuAccum += 16
		for m.ppuAccum >= ppuRatioDen {
			m.ppuAccum -= ppuRatioDen
			m.ppu.Tick()
		}
	default:
		m.ppu.Tick()
		m.ppu.Tick()
		m.ppu.Tick()
	}
}

// StepFrame runs the machine until the PPU completes one more frame than
// it had when StepFrame was called.
func (m *Machine) StepFrame() {
	target := m.ppu.Frame() + 1
	for m.ppu.Frame() < target {
		m.Tick()
	}
}
