package apu

import "testing"

func TestWriteRegister_PulseLengthCounterReflectedInStatus(t *testing.T) {
	a := New()
	a.WriteRegister(0x4015, 0x01) // enable pulse1
	a.WriteRegister(0x4003, 0x08) // length index 1 -> lengthTable[1] = 254

	status := a.ReadStatus()
	if status&0x01 == 0 {
		t.Fatalf("status = %#02x, want bit0 set (pulse1 length counter > 0)", status)
	}
}

func TestWriteChannelEnable_DisablingClearsLengthCounter(t *testing.T) {
	a := New()
	a.WriteRegister(0x4015, 0x01)
	a.WriteRegister(0x4003, 0x08)

	a.WriteRegister(0x4015, 0x00) // disable pulse1

	status := a.ReadStatus()
	if status&0x01 != 0 {
		t.Fatalf("status = %#02x, want bit0 clear after disabling pulse1", status)
	}
}

func TestFrameCounter_FourStepModeAssertsIRQAt29830(t *testing.T) {
	a := New() // frameIRQEnable defaults true, 4-step mode
	for i := 0; i < 29830; i++ {
		a.Step()
	}

	if !a.IRQ() {
		t.Fatal("expected the frame sequencer to assert IRQ after 29830 cycles in 4-step mode")
	}
}

func TestReadStatus_ClearsFrameIRQFlag(t *testing.T) {
	a := New()
	for i := 0; i < 29830; i++ {
		a.Step()
	}

	status := a.ReadStatus()
	if status&0x40 == 0 {
		t.Fatalf("status = %#02x, want bit6 set for a pending frame IRQ", status)
	}
	if a.IRQ() {
		t.Error("expected ReadStatus to clear the frame IRQ flag")
	}
}

func TestWriteFrameCounter_DisablingIRQClearsPendingFlag(t *testing.T) {
	a := New()
	for i := 0; i < 29830; i++ {
		a.Step()
	}

	a.WriteRegister(0x4017, 0x40) // bit6 set disables the frame IRQ

	if a.IRQ() {
		t.Error("expected writing $4017 with bit6 set to clear a pending frame IRQ immediately")
	}
}

func TestFrameCounter_FiveStepModeClocksImmediately(t *testing.T) {
	a := New()
	a.WriteRegister(0x4000, 0x05) // pulse1 volume 5, sets envelopeStart

	a.WriteRegister(0x4017, 0x80) // switch to 5-step mode

	if a.pulse1.envelopeStart {
		t.Error("expected envelopeStart cleared by the immediate quarter-frame clock in 5-step mode")
	}
	if a.pulse1.envelopeCounter != 15 {
		t.Fatalf("envelopeCounter = %d, want 15 after the immediate clock", a.pulse1.envelopeCounter)
	}
}

func TestPulseEnvelope_ClocksAtFirstQuarterFrame(t *testing.T) {
	a := New()
	a.WriteRegister(0x4000, 0x05) // volume 5, envelope enabled, no loop

	for i := 0; i < 7457; i++ {
		a.Step()
	}

	if a.pulse1.envelopeStart {
		t.Error("expected envelopeStart cleared after the first quarter-frame clock")
	}
	if a.pulse1.envelopeCounter != 15 {
		t.Fatalf("envelopeCounter = %d, want 15 (initial load)", a.pulse1.envelopeCounter)
	}
}

func TestPulseSweep_Pulse1NegateUsesOnesComplement(t *testing.T) {
	a := New()
	a.pulse1.timer = 100
	a.pulse1.sweepEnable = true
	a.pulse1.sweepShift = 1
	a.pulse1.sweepNegate = true
	a.pulse1.sweepPeriod = 0
	a.pulse1.sweepCounter = 0

	a.clockPulseSweep(&a.pulse1, true)

	want := uint16(100 - (100 >> 1) - 1)
	if a.pulse1.timer != want {
		t.Fatalf("pulse1 timer after sweep = %d, want %d (one's complement adjustment)", a.pulse1.timer, want)
	}
}

func TestPulseSweep_Pulse2NegateUsesTwosComplement(t *testing.T) {
	a := New()
	a.pulse2.timer = 100
	a.pulse2.sweepEnable = true
	a.pulse2.sweepShift = 1
	a.pulse2.sweepNegate = true
	a.pulse2.sweepPeriod = 0
	a.pulse2.sweepCounter = 0

	a.clockPulseSweep(&a.pulse2, false)

	want := uint16(100 - (100 >> 1))
	if a.pulse2.timer != want {
		t.Fatalf("pulse2 timer after sweep = %d, want %d (two's complement adjustment)", a.pulse2.timer, want)
	}
}

func TestTriangleLinearCounter_ReloadsThenDecrements(t *testing.T) {
	a := New()
	a.triangle.linearCounterLoad = 10
	a.triangle.linearCounterReload = true
	a.triangle.lengthCounterHalt = false

	a.clockTriangleLinear(&a.triangle)
	if a.triangle.linearCounter != 10 {
		t.Fatalf("linearCounter = %d, want 10 after reload", a.triangle.linearCounter)
	}
	if a.triangle.linearCounterReload {
		t.Error("expected linearCounterReload cleared since lengthCounterHalt is false")
	}

	a.clockTriangleLinear(&a.triangle)
	if a.triangle.linearCounter != 9 {
		t.Fatalf("linearCounter = %d, want 9 after a second clock", a.triangle.linearCounter)
	}
}

func TestNoiseShiftRegister_Mode0Feedback(t *testing.T) {
	a := New()
	a.noise.shiftRegister = 1
	a.noise.periodIndex = 0
	a.noise.timerCounter = 0

	a.stepNoiseTimer(&a.noise)

	want := uint16(0) | (1 << 14) // feedback = bit0(1) ^ bit1(0) = 1
	if a.noise.shiftRegister != want {
		t.Fatalf("shiftRegister = %#04x, want %#04x", a.noise.shiftRegister, want)
	}
}

func TestNoiseOutput_MutedWhenShiftBit0Set(t *testing.T) {
	a := New()
	a.noise.lengthCounter = 5
	a.noise.shiftRegister = 0x01
	a.noise.envelopeDisable = true
	a.noise.volume = 9

	if got := a.getNoiseOutput(&a.noise); got != 0 {
		t.Fatalf("output = %d, want 0 when shift register bit0 is set", got)
	}

	a.noise.shiftRegister = 0x00
	if got := a.getNoiseOutput(&a.noise); got != 9 {
		t.Fatalf("output = %d, want 9 (constant volume)", got)
	}
}

func TestDMC_FetchesSampleByteOnEnable(t *testing.T) {
	a := New()
	var stalled int
	var readAddr uint16
	a.SetStallRequester(func(cycles int) { stalled += cycles })
	a.SetMemReader(func(addr uint16) uint8 {
		readAddr = addr
		return 0xAA
	})

	a.WriteRegister(0x4012, 0x02) // sample address = $C000 + (2<<6) = $C080
	a.WriteRegister(0x4013, 0x01) // sample length = (1<<4)+1 = 17
	a.WriteRegister(0x4015, 0x10) // enable DMC

	a.Step()

	if readAddr != 0xC080 {
		t.Fatalf("DMC read address = %#04x, want %#04x", readAddr, 0xC080)
	}
	if stalled != 4 {
		t.Fatalf("stall cycles requested = %d, want 4", stalled)
	}
}

func TestDMC_SetsIRQFlagWhenSampleEndsWithoutLoop(t *testing.T) {
	a := New()
	a.SetMemReader(func(addr uint16) uint8 { return 0 })
	a.SetStallRequester(func(cycles int) {})

	a.WriteRegister(0x4010, 0x8F) // IRQ enable, rate index 15, no loop
	a.WriteRegister(0x4012, 0x00)
	a.WriteRegister(0x4013, 0x00) // sample length = 1 byte
	a.WriteRegister(0x4015, 0x10) // enable DMC

	a.Step()

	if !a.GetDMCIRQ() {
		t.Fatal("expected the DMC IRQ flag set once a non-looping sample finishes playing")
	}
	if !a.IRQ() {
		t.Error("expected IRQ() to report true via the DMC IRQ line")
	}

	a.WriteRegister(0x4015, 0x00) // disabling clears the DMC IRQ flag too
	if a.GetDMCIRQ() {
		t.Error("expected writing $4015 to clear a pending DMC IRQ flag")
	}
}

func TestMixChannels_SilenceProducesFloorSample(t *testing.T) {
	a := New()
	if got := a.mixChannels(0, 0, 0, 0, 0); got != -1.0 {
		t.Fatalf("mixChannels(0,0,0,0,0) = %v, want -1.0", got)
	}
}

func TestGetSamples_DrainsBuffer(t *testing.T) {
	a := New()
	a.sampleBuffer = append(a.sampleBuffer, 0.5, -0.5)

	samples := a.GetSamples()
	if len(samples) != 2 || samples[0] != 0.5 || samples[1] != -0.5 {
		t.Fatalf("GetSamples() = %v, want [0.5 -0.5]", samples)
	}
	if len(a.sampleBuffer) != 0 {
		t.Fatalf("sampleBuffer not drained, len=%d", len(a.sampleBuffer))
	}
}

func TestReset_ClearsChannelsAndFrameState(t *testing.T) {
	a := New()
	a.WriteRegister(0x4015, 0x1F)
	a.WriteRegister(0x4003, 0x08)
	a.cycles = 100

	a.Reset()

	if a.pulse1.lengthCounter != 0 {
		t.Errorf("pulse1.lengthCounter = %d, want 0 after reset", a.pulse1.lengthCounter)
	}
	if a.cycles != 0 {
		t.Errorf("cycles = %d, want 0 after reset", a.cycles)
	}
	if a.noise.shiftRegister != 1 {
		t.Errorf("noise.shiftRegister = %d, want 1 (LFSR re-seeded)", a.noise.shiftRegister)
	}
	for i, enabled := range a.channelEnable {
		if enabled {
			t.Errorf("channelEnable[%d] still true after reset", i)
		}
	}
}
