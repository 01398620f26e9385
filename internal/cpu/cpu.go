package cpu

import "github.com/golang/glog"

// CPU is the 2A03's instruction engine. It owns no bus; Tick is driven
// externally by a bus fabric (see internal/bus and internal/machine) that
// performs the returned Result and feeds the response back as the next
// call's PinIn.Data.
type CPU struct {
	Regs Registers

	s           scratch
	curOp       *opEntry
	pendingData uint8
	pendingApply func(c *CPU, data uint8)

	queue []microOp
	pos   int

	decodePending bool
	halted        bool

	in  interrupts
	dma dma

	cycles uint64
}

// New returns a CPU with registers zeroed; PowerOn should be called before
// the first Tick to run the reset sequence, matching how real hardware
// comes up.
func New() *CPU {
	return &CPU{}
}

// TriggerDMA starts an OAM-DMA transfer from page<<8, called by the bus
// fabric when it observes a CPU write to $4014.
func (c *CPU) TriggerDMA(page uint8) {
	c.dma.Trigger(uint16(page)<<8, c.cycles%2 == 1)
}

// RequestDMCStall is called by the APU's DMC channel when it needs to
// steal 4 cycles to refill its sample buffer.
func (c *CPU) RequestDMCStall(n int) {
	c.dma.RequestDMCStall(n)
}

// Halted reports whether the CPU has executed a KIL opcode and stopped
// advancing.
func (c *CPU) Halted() bool { return c.halted }

// Tick performs exactly one clock cycle, returning the bus operation the
// caller must service. The response to that operation must be supplied as
// pin.Data on the following call.
func (c *CPU) Tick(pin PinIn) Result {
	c.cycles++
	c.pendingData = pin.Data

	if c.pendingApply != nil {
		// This is the tick a deferred read-category instruction's value
		// actually becomes available, which is also the cycle hardware
		// polls interrupt lines for that instruction (one cycle later
		// than the read that produced the value).
		c.in.poll(pin)
		fn := c.pendingApply
		c.pendingApply = nil
		fn(c, pin.Data)
	}

	if pin.Power {
		c.powerOn()
	}

	if r, ok := c.dma.tick(pin); ok {
		return r
	}

	if c.halted {
		// A KIL/JAM opcode freezes the bus on $FFFF until reset or power;
		// unlike the normal queue-polling cadence, the reset line must be
		// sampled every idle cycle or a held pin.Reset could be missed
		// entirely since no queue boundary will ever come around again.
		c.in.poll(pin)
		if vector, isReset, ok := c.in.pending(c.Regs.I); ok && isReset {
			c.halted = false
			c.in.acknowledge(isReset)
			c.curOp = &opEntry{name: "RESET"}
			c.queue = c.interruptQueue(vector, isReset, false)
			c.pos = 0
			op := c.queue[c.pos]
			c.pos++
			return op(c)
		}
		return Result{Kind: Idle, Addr: 0xFFFF}
	}

	if c.pendingApply == nil && len(c.queue) > 0 && c.pos == len(c.queue)-1 {
		c.in.poll(pin)
	}

	if c.pos >= len(c.queue) {
		c.beginInstruction(pin)
	}

	op := c.queue[c.pos]
	c.pos++
	result := op(c)
	if glog.V(3) {
		glog.Infof("cpu: pc=%04X op=%s kind=%d addr=%04X", c.Regs.PC, opName(c.curOp), result.Kind, result.Addr)
	}
	return result
}

func opName(op *opEntry) string {
	if op == nil {
		return "?"
	}
	return op.name
}

func (c *CPU) powerOn() {
	c.Regs = Registers{SP: 0xFD}
	c.Regs.SetStatus(0x24)
	c.s = scratch{}
	c.pendingApply = nil
	c.queue = nil
	c.pos = 0
	c.decodePending = false
	c.halted = false
	c.in = interrupts{resetLine: true}
	c.dma = dma{}
}

// beginInstruction is called whenever the previous queue is exhausted. It
// either decodes the opcode byte fetched by the previous instruction's
// final cycle, services a pending interrupt, or issues the next opcode
// fetch.
func (c *CPU) beginInstruction(pin PinIn) {
	if c.decodePending {
		c.decodePending = false
		c.queue = c.buildQueue(c.pendingData)
		c.pos = 0
		return
	}

	if vector, isReset, ok := c.in.pending(c.Regs.I); ok {
		c.in.acknowledge(isReset)
		c.curOp = &opEntry{name: interruptName(isReset, vector)}
		c.queue = c.interruptQueue(vector, isReset, false)
		c.pos = 0
		return
	}

	c.queue = []microOp{func(c *CPU) Result {
		addr := c.Regs.PC
		c.Regs.PC++
		c.decodePending = true
		return Result{Kind: Fetch, Addr: addr}
	}}
	c.pos = 0
}

func interruptName(isReset bool, vector uint16) string {
	if isReset {
		return "RESET"
	}
	if vector == nmiVector {
		return "NMI"
	}
	return "IRQ"
}

// interruptQueue builds the 7-cycle push-PC/push-status/fetch-vector
// sequence shared by BRK, NMI, IRQ and RESET. RESET suppresses the three
// stack writes (hardware performs them as reads, since the reset line
// holds the data bus in a high-impedance state) and forces the I flag.
func (c *CPU) interruptQueue(vector uint16, isReset bool, isBRK bool) []microOp {
	return []microOp{
		func(c *CPU) Result { return Result{Kind: Read, Addr: c.Regs.PC} },
		func(c *CPU) Result {
			addr := c.Regs.stackAddr()
			hi := uint8(c.Regs.PC >> 8)
			if isReset {
				c.Regs.SP--
				return Result{Kind: Read, Addr: addr}
			}
			c.Regs.SP--
			return Result{Kind: Write, Addr: addr, Value: hi}
		},
		func(c *CPU) Result {
			addr := c.Regs.stackAddr()
			lo := uint8(c.Regs.PC & 0xFF)
			if isReset {
				c.Regs.SP--
				return Result{Kind: Read, Addr: addr}
			}
			c.Regs.SP--
			return Result{Kind: Write, Addr: addr, Value: lo}
		},
		func(c *CPU) Result {
			addr := c.Regs.stackAddr()
			status := c.Regs.Status(isBRK)
			if isReset {
				c.Regs.SP--
				return Result{Kind: Read, Addr: addr}
			}
			c.Regs.SP--
			return Result{Kind: Write, Addr: addr, Value: status}
		},
		func(c *CPU) Result {
			c.Regs.I = true
			return Result{Kind: Read, Addr: vector}
		},
		func(c *CPU) Result {
			c.s.lo = c.pendingData
			c.pendingApply = func(c *CPU, d uint8) {
				c.Regs.PC = uint16(d)<<8 | uint16(c.s.lo)
			}
			return Result{Kind: Read, Addr: vector + 1}
		},
	}
}
