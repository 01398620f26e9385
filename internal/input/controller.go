// Package input implements the NES's two-port controller shift-register
// latch exposed at $4016/$4017.
package input

import "github.com/golang/glog"

// Button identifies one of the eight standard controller buttons, in NES
// shift-register order (A is bit 0, Right is bit 7).
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller is one standard NES controller: an 8-bit parallel-load shift
// register. Writing 1 to $4016 holds the register loaded with the live
// button state (every read returns button A); writing 0 lets each read
// shift the next button out, LSB first, returning 1 past the eighth read.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool
	bitsRead      uint8
}

// New returns a Controller with no buttons held.
func New() *Controller {
	return &Controller{}
}

// SetButton sets or clears a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons replaces all eight button states at once, in
// A, B, Select, Start, Up, Down, Left, Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	var b uint8
	for i, pressed := range buttons {
		if pressed {
			b |= 1 << uint(i)
		}
	}
	c.buttons = b
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// IsPressed reports whether button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write latches the strobe bit. While strobe is held high the shift
// register continuously reloads from the live button state; the
// falling edge freezes whatever the buttons read at that instant for
// serial readout.
func (c *Controller) Write(value uint8) {
	strobe := value&1 != 0
	if strobe || c.strobe {
		c.shiftRegister = c.buttons
	}
	c.strobe = strobe
	if !strobe {
		c.bitsRead = 0
	}
}

// Read shifts out the next button bit, or returns button A's live state
// for as long as strobe is held high.
func (c *Controller) Read() uint8 {
	if c.strobe {
		return c.buttons & 1
	}

	if c.bitsRead >= 8 {
		return 1
	}
	bit := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitsRead++
	return bit
}

// Reset clears all held buttons and the shift register.
func (c *Controller) Reset() {
	*c = Controller{}
}

// Port identifies which controller address a latch belongs to.
type Port uint16

const (
	Port1 Port = 0x4016
	Port2 Port = 0x4017
)

// Latch is the pair of controller ports as they appear on the CPU bus:
// a single write to $4016 strobes both controllers, while each port's
// reads are independent. Implements bus.Device.
type Latch struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewLatch returns a Latch with two fresh controllers.
func NewLatch() *Latch {
	return &Latch{Controller1: New(), Controller2: New()}
}

// Reset resets both controllers.
func (l *Latch) Reset() {
	l.Controller1.Reset()
	l.Controller2.Reset()
}

// Read implements bus.Device for $4016/$4017. $4017's upper bits read
// back as open bus on real hardware; bit 6 is conventionally set to
// mimic the expansion-port line most games never populate.
func (l *Latch) Read(addr uint16) uint8 {
	switch Port(addr) {
	case Port1:
		v := l.Controller1.Read()
		if glog.V(4) {
			glog.Infof("input: $4016 read -> %#02x", v)
		}
		return v
	case Port2:
		v := l.Controller2.Read() | 0x40
		if glog.V(4) {
			glog.Infof("input: $4017 read -> %#02x", v)
		}
		return v
	default:
		return 0
	}
}

// Write implements bus.Device. Only $4016 is wired to the strobe line;
// $4017 is APU-frame-counter territory and is not this package's concern.
func (l *Latch) Write(addr uint16, value uint8) {
	if Port(addr) == Port1 {
		l.Controller1.Write(value)
		l.Controller2.Write(value)
	}
}
