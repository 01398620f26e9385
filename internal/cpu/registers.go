package cpu

// Registers is the 6502 register file. Flags are kept as individual bools
// rather than a packed byte because only two of the eight packed-status
// bits (the B and unused bits) have no live register backing them — they
// exist only in the byte snapshot pushed by BRK/PHP and read back by
// PLP/RTI, per the data model's invariant.
type Registers struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, V, N bool
}

const stackBase = 0x0100

// Status packs the six live flags plus the two stack-only bits (break and
// the always-set bit 5) into the byte BRK/PHP push.
func (r *Registers) Status(brk bool) uint8 {
	var p uint8
	if r.C {
		p |= 0x01
	}
	if r.Z {
		p |= 0x02
	}
	if r.I {
		p |= 0x04
	}
	if r.D {
		p |= 0x08
	}
	if brk {
		p |= 0x10
	}
	p |= 0x20
	if r.V {
		p |= 0x40
	}
	if r.N {
		p |= 0x80
	}
	return p
}

// SetStatus unpacks a byte (from PLP/RTI) into the live flags; the B and
// unused bits are discarded since they have no live register.
func (r *Registers) SetStatus(p uint8) {
	r.C = p&0x01 != 0
	r.Z = p&0x02 != 0
	r.I = p&0x04 != 0
	r.D = p&0x08 != 0
	r.V = p&0x40 != 0
	r.N = p&0x80 != 0
}

func (r *Registers) setZN(v uint8) uint8 {
	r.Z = v == 0
	r.N = v&0x80 != 0
	return v
}

// stackAddr is the CPU-bus address the current top-of-stack byte lives at;
// SP+0x100 always addresses it, per the data model invariant.
func (r *Registers) stackAddr() uint16 {
	return stackBase + uint16(r.SP)
}
