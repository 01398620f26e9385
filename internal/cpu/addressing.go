package cpu

// AddressingMode names the 6502's addressing modes, matching the
// specification's enumeration.
type AddressingMode uint8

const (
	ModeImplied AddressingMode = iota
	ModeAccumulator
	ModeImmediate
	ModeZeroPage
	ModeZeroPageX
	ModeZeroPageY
	ModeAbsolute
	ModeAbsoluteX
	ModeAbsoluteY
	ModeIndirect // JMP (abs) only, with the page-wrap bug
	ModeIndirectX
	ModeIndirectY
	ModeRelative
)

// dummyPolicy selects when AbsoluteX/AbsoluteY/IndirectY perform their
// extra dummy read: always (write and read-modify-write instructions pay
// the cost regardless, since the CPU cannot know in advance whether it
// will need to write back) or onCarry (plain read instructions only pay
// it when the index addition actually crosses a page).
type dummyPolicy uint8

const (
	always dummyPolicy = iota
	onCarry
)

// microOp is one tick's worth of work. It reads/writes CPU scratch state
// and registers and returns the single bus Result for that cycle.
type microOp func(c *CPU) Result

// scratch holds the operand-resolution state threaded between the micro-ops
// of a single instruction's addressing + execute sequence.
type scratch struct {
	lo, hi  uint8
	addr    uint16
	ptr     uint16
	crossed bool
	rmwOld  uint8
	branch  bool // relative-branch taken/not-taken, decided by the opcode's run()
}

func readPC(c *CPU) Result {
	addr := c.Regs.PC
	c.Regs.PC++
	return Result{Kind: Fetch, Addr: addr}
}

// insertNext splices ops to run immediately after the one currently
// executing, extending the active instruction's queue at runtime. This is
// how a variable-length dummy-read decision (known only once the operand
// bytes have actually been fetched from the bus) grows the queue.
func (c *CPU) insertNext(ops []microOp) {
	tail := append([]microOp{}, c.queue[c.pos:]...)
	c.queue = append(append(c.queue[:c.pos:c.pos], ops...), tail...)
}

// buildQueue returns the full micro-op sequence for the already-fetched
// opcode byte (the fetch itself was issued by the previous instruction's
// last cycle, per beginInstruction).
func (c *CPU) buildQueue(opcode uint8) []microOp {
	op := &opcodeTable[opcode]
	c.s = scratch{}
	c.curOp = op
	switch op.cat {
	case catImplied, catAccumulator, catBranch, catJump, catStack, catKIL:
		return c.specialQueue(op)
	}
	switch op.mode {
	case ModeImmediate:
		return []microOp{func(c *CPU) Result {
			addr := c.Regs.PC
			c.Regs.PC++
			c.pendingApply = func(c *CPU, d uint8) { op.read(c, d) }
			return Result{Kind: Fetch, Addr: addr}
		}}
	case ModeZeroPage:
		return append([]microOp{readPC}, c.accessOps(op, func(c *CPU) uint16 {
			return uint16(c.pendingData)
		})...)
	case ModeZeroPageX:
		return c.zeroPageIndexed(op, func() uint8 { return c.Regs.X })
	case ModeZeroPageY:
		return c.zeroPageIndexed(op, func() uint8 { return c.Regs.Y })
	case ModeAbsolute:
		return c.absoluteSimple(op)
	case ModeAbsoluteX:
		return c.absoluteIndexed(op, func() uint8 { return c.Regs.X })
	case ModeAbsoluteY:
		return c.absoluteIndexed(op, func() uint8 { return c.Regs.Y })
	case ModeIndirect:
		return c.indirectAbsolute()
	case ModeIndirectX:
		return c.indirectX(op)
	case ModeIndirectY:
		return c.indirectY(op)
	}
	return nil
}

// zeroPageIndexed builds the zero-page,X/Y sequence: fetch the base byte,
// dummy-read the unindexed base address while adding reg() (wrapping within
// page zero), then perform the access at the indexed address.
func (c *CPU) zeroPageIndexed(op *opEntry, reg func() uint8) []microOp {
	return []microOp{
		func(c *CPU) Result {
			r := readPC(c)
			return r
		},
		func(c *CPU) Result {
			base := c.pendingData
			c.s.addr = uint16(base+reg()) & 0xFF
			return Result{Kind: Read, Addr: uint16(base)}
		},
		c.finishOp(op),
	}
}

func (c *CPU) absoluteSimple(op *opEntry) []microOp {
	return []microOp{
		readPC,
		func(c *CPU) Result {
			lo := c.pendingData
			c.s.lo = lo
			return readPC(c)
		},
		func(c *CPU) Result {
			c.s.addr = uint16(c.pendingData)<<8 | uint16(c.s.lo)
			return c.finishOp(op)(c)
		},
	}
}

func (c *CPU) absoluteIndexed(op *opEntry, reg func() uint8) []microOp {
	return []microOp{
		readPC,
		func(c *CPU) Result {
			lo := c.pendingData
			c.s.lo = lo
			return readPC(c)
		},
		func(c *CPU) Result {
			hi := c.pendingData
			base := uint16(hi)<<8 | uint16(c.s.lo)
			full := base + uint16(reg())
			crossed := (base & 0xFF00) != (full & 0xFF00)
			c.s.addr = full
			c.s.crossed = crossed
			needDummy := op.dummy == always || (op.dummy == onCarry && crossed)
			if needDummy {
				dummyAddr := (base & 0xFF00) | (full & 0x00FF)
				c.insertNext(c.accessOps(op, nil))
				return Result{Kind: Read, Addr: dummyAddr}
			}
			return c.finishOp(op)(c)
		},
	}
}

func (c *CPU) indirectAbsolute() []microOp {
	return []microOp{
		readPC,
		func(c *CPU) Result {
			lo := c.pendingData
			c.s.lo = lo
			return readPC(c)
		},
		func(c *CPU) Result {
			hi := c.pendingData
			c.s.ptr = uint16(hi)<<8 | uint16(c.s.lo)
			return Result{Kind: Read, Addr: c.s.ptr}
		},
		func(c *CPU) Result {
			c.s.lo = c.pendingData // pointer target low byte
			// The famous page-wrap bug: the high-byte fetch wraps within
			// the same page instead of crossing into the next one.
			wrapped := (c.s.ptr & 0xFF00) | ((c.s.ptr + 1) & 0x00FF)
			c.pendingApply = func(c *CPU, d uint8) {
				c.Regs.PC = uint16(d)<<8 | uint16(c.s.lo)
			}
			return Result{Kind: Read, Addr: wrapped}
		},
	}
}

func (c *CPU) indirectX(op *opEntry) []microOp {
	return []microOp{
		readPC,
		func(c *CPU) Result {
			base := c.pendingData
			c.s.lo = base
			return Result{Kind: Read, Addr: uint16(base)}
		},
		func(c *CPU) Result {
			zpAddr := (c.s.lo + c.Regs.X) & 0xFF
			c.s.lo = zpAddr
			return Result{Kind: Read, Addr: uint16(zpAddr)}
		},
		func(c *CPU) Result {
			c.s.ptr = uint16(c.pendingData) // pointer low byte
			return Result{Kind: Read, Addr: uint16((c.s.lo + 1) & 0xFF)}
		},
		func(c *CPU) Result {
			c.s.addr = uint16(c.pendingData)<<8 | c.s.ptr
			return c.finishOp(op)(c)
		},
	}
}

func (c *CPU) indirectY(op *opEntry) []microOp {
	return []microOp{
		readPC,
		func(c *CPU) Result {
			zp := c.pendingData
			c.s.ptr = uint16(zp)
			return Result{Kind: Read, Addr: uint16(zp)}
		},
		func(c *CPU) Result {
			lo := c.pendingData
			c.s.lo = lo
			return Result{Kind: Read, Addr: (c.s.ptr + 1) & 0xFF}
		},
		func(c *CPU) Result {
			hi := c.pendingData
			base := uint16(hi)<<8 | uint16(c.s.lo)
			full := base + uint16(c.Regs.Y)
			crossed := (base & 0xFF00) != (full & 0xFF00)
			c.s.addr = full
			c.s.crossed = crossed
			needDummy := op.dummy == always || (op.dummy == onCarry && crossed)
			if needDummy {
				dummyAddr := (base & 0xFF00) | (full & 0x00FF)
				c.insertNext(c.accessOps(op, nil))
				return Result{Kind: Read, Addr: dummyAddr}
			}
			return c.finishOp(op)(c)
		},
	}
}

// finishOp returns the single op that performs the final bus access once
// c.s.addr is known, for modes where no dummy-read decision is involved
// (i.e. the access always happens on the very next cycle after addressing
// completes). It always accesses c.s.addr: it passes no addrFromPending
// override to accessOps (ModeZeroPage calls accessOps directly for that).
func (c *CPU) finishOp(op *opEntry) microOp {
	return func(c *CPU) Result {
		ops := c.accessOps(op, nil)
		if len(ops) > 1 {
			c.insertNext(ops[1:])
		}
		return ops[0](c)
	}
}

// accessOps returns the op(s) that perform the category-specific bus
// access(es) against c.s.addr: one Read (catRead, deferred register
// apply), one Write (catWrite), or three (catRMW: read, write-old,
// write-new). addrFromPending overrides the effective address computed
// from this same cycle's pendingData (used only by ModeZeroPage).
func (c *CPU) accessOps(op *opEntry, addrFromPending func(c *CPU) uint16) []microOp {
	switch op.cat {
	case catRead:
		return []microOp{func(c *CPU) Result {
			addr := c.s.addr
			if addrFromPending != nil {
				addr = addrFromPending(c)
				c.s.addr = addr
			}
			c.pendingApply = func(c *CPU, d uint8) { op.read(c, d) }
			return Result{Kind: Read, Addr: addr}
		}}
	case catWrite:
		return []microOp{func(c *CPU) Result {
			addr := c.s.addr
			if addrFromPending != nil {
				addr = addrFromPending(c)
				c.s.addr = addr
			}
			return Result{Kind: Write, Addr: addr, Value: op.write(c)}
		}}
	case catRMW:
		return []microOp{
			func(c *CPU) Result {
				addr := c.s.addr
				if addrFromPending != nil {
					addr = addrFromPending(c)
					c.s.addr = addr
				}
				return Result{Kind: Read, Addr: addr}
			},
			func(c *CPU) Result {
				c.s.rmwOld = c.pendingData
				return Result{Kind: Write, Addr: c.s.addr, Value: c.s.rmwOld}
			},
			func(c *CPU) Result {
				newVal := op.rmw(c, c.s.rmwOld)
				return Result{Kind: Write, Addr: c.s.addr, Value: newVal}
			},
		}
	}
	return nil
}
