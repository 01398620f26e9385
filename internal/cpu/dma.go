package cpu

// dma models the OAM-DMA unit triggered by a CPU write to $4014: the CPU is
// stalled for 513 or 514 cycles (one extra on an odd starting cycle) while
// 256 paired (read page byte, write $2004) bus transactions are issued. A
// second, independent counter models the APU DMC channel's 4-cycle sample-
// refill stall, which can overlap an in-progress OAM-DMA (the two sources
// add rather than overwrite each other, per the specification's DMA
// section).
type dma struct {
	active   bool
	page     uint16
	cycle    int // 0..513/514
	totalCyc int
	oddCycle bool
	dmcStall int
}

// Trigger starts an OAM-DMA transfer from page (already shifted: page<<8).
func (d *dma) Trigger(page uint16, cpuCycleParity bool) {
	if d.active {
		return
	}
	d.active = true
	d.page = page
	d.cycle = 0
	d.oddCycle = cpuCycleParity
	if cpuCycleParity {
		d.totalCyc = 514
	} else {
		d.totalCyc = 513
	}
}

// RequestDMCStall adds n cycles of DMC-triggered stall.
func (d *dma) RequestDMCStall(n int) {
	d.dmcStall += n
}

// tick advances the DMA unit by one cycle and returns the bus operation to
// perform this cycle, or ok=false if DMA is not active (the CPU should run
// normally). pin.Data carries the byte the bus drove in response to the
// *previous* cycle's request, which is what a write-cycle forwards to
// $2004 — the read and its paired write are on consecutive cycles, so the
// value read one cycle lands in pin.Data exactly when it's needed.
func (d *dma) tick(pin PinIn) (Result, bool) {
	if d.dmcStall > 0 {
		d.dmcStall--
		return Result{Kind: Idle}, true
	}
	if !d.active {
		return Result{}, false
	}

	// First cycle (and, when starting on an odd CPU cycle, the cycle
	// before it) are pure alignment stalls; the actual 256 read/write
	// pairs occupy the remaining 512 cycles.
	align := d.totalCyc - 512
	if d.cycle < align {
		d.cycle++
		if d.cycle >= d.totalCyc {
			d.active = false
		}
		return Result{Kind: Idle}, true
	}

	offset := d.cycle - align
	index := offset / 2
	result := Result{}
	if offset%2 == 0 {
		result = Result{Kind: Read, Addr: d.page + uint16(index)}
	} else {
		result = Result{Kind: Write, Addr: 0x2004, Value: pin.Data}
	}
	d.cycle++
	if d.cycle >= d.totalCyc {
		d.active = false
	}
	return result, true
}

// Active reports whether the DMA unit is currently overriding the CPU.
func (d *dma) Active() bool {
	return d.active || d.dmcStall > 0
}
