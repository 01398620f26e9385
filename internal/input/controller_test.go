package input

import "testing"

func TestNew_ShouldCreateControllerWithDefaultState(t *testing.T) {
	controller := New()

	if controller == nil {
		t.Fatal("Expected controller, got nil")
	}
	if controller.buttons != 0 {
		t.Errorf("Expected initial buttons state 0, got %d", controller.buttons)
	}
	if controller.shiftRegister != 0 {
		t.Errorf("Expected initial shift register 0, got %d", controller.shiftRegister)
	}
	if controller.strobe != false {
		t.Error("Expected initial strobe false, got true")
	}
}

func TestSetButton_ShouldUpdateButtonState(t *testing.T) {
	controller := New()

	buttons := []Button{
		ButtonA, ButtonB, ButtonSelect, ButtonStart,
		ButtonUp, ButtonDown, ButtonLeft, ButtonRight,
	}

	for _, button := range buttons {
		controller.SetButton(button, true)

		if !controller.IsPressed(button) {
			t.Errorf("Button %d should be pressed after SetButton(true)", button)
		}
		if controller.buttons != uint8(button) {
			t.Errorf("Expected buttons state %d, got %d", uint8(button), controller.buttons)
		}

		controller.SetButton(button, false)

		if controller.IsPressed(button) {
			t.Errorf("Button %d should not be pressed after SetButton(false)", button)
		}
	}
}

func TestSetButton_MultipleButtons_ShouldCombineStates(t *testing.T) {
	controller := New()

	controller.SetButton(ButtonA, true)
	controller.SetButton(ButtonB, true)
	controller.SetButton(ButtonStart, true)

	expectedState := uint8(ButtonA) | uint8(ButtonB) | uint8(ButtonStart)

	if controller.buttons != expectedState {
		t.Errorf("Expected combined button state %d, got %d", expectedState, controller.buttons)
	}

	if !controller.IsPressed(ButtonA) {
		t.Error("ButtonA should be pressed")
	}
	if !controller.IsPressed(ButtonB) {
		t.Error("ButtonB should be pressed")
	}
	if !controller.IsPressed(ButtonStart) {
		t.Error("ButtonStart should be pressed")
	}
	if controller.IsPressed(ButtonSelect) {
		t.Error("ButtonSelect should not be pressed")
	}
}

func TestSetButtons_ShouldSetAllEightButtons(t *testing.T) {
	controller := New()

	controller.SetButtons([8]bool{true, false, true, false, true, false, true, false})

	if !controller.IsPressed(ButtonA) {
		t.Error("ButtonA should be pressed")
	}
	if controller.IsPressed(ButtonB) {
		t.Error("ButtonB should not be pressed")
	}
	if !controller.IsPressed(ButtonSelect) {
		t.Error("ButtonSelect should be pressed")
	}
	if !controller.IsPressed(ButtonUp) {
		t.Error("ButtonUp should be pressed")
	}
	if !controller.IsPressed(ButtonLeft) {
		t.Error("ButtonLeft should be pressed")
	}
	if controller.IsPressed(ButtonRight) {
		t.Error("ButtonRight should not be pressed")
	}
}

func TestRead_WhileStrobeHigh_AlwaysReturnsButtonA(t *testing.T) {
	controller := New()
	controller.SetButtons([8]bool{true, true, true, true, true, true, true, true})
	controller.Write(1)

	for i := 0; i < 20; i++ {
		if got := controller.Read(); got != 1 {
			t.Fatalf("read %d: expected button A bit 1 while strobed, got %d", i, got)
		}
	}

	controller.SetButton(ButtonA, false)
	if got := controller.Read(); got != 0 {
		t.Errorf("expected button A bit 0 after release, got %d", got)
	}
}

func TestRead_AfterStrobeLow_ShiftsOutButtonsInOrder(t *testing.T) {
	controller := New()
	controller.SetButtons([8]bool{true, false, true, false, false, false, false, false})

	controller.Write(1)
	controller.Write(0)

	want := []uint8{1, 0, 1, 0, 0, 0, 0, 0}
	for i, w := range want {
		if got := controller.Read(); got != w {
			t.Errorf("bit %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestRead_PastEighthBit_ReturnsOne(t *testing.T) {
	controller := New()
	controller.Write(1)
	controller.Write(0)

	for i := 0; i < 8; i++ {
		controller.Read()
	}

	for i := 0; i < 5; i++ {
		if got := controller.Read(); got != 1 {
			t.Errorf("extended read %d: expected 1, got %d", i, got)
		}
	}
}

func TestWrite_StrobeHigh_ReloadsShiftRegisterContinuously(t *testing.T) {
	controller := New()
	controller.SetButton(ButtonA, true)
	controller.Write(1)

	controller.SetButton(ButtonA, false)
	controller.SetButton(ButtonB, true)

	controller.Write(0)
	if got := controller.Read(); got != 0 {
		t.Errorf("expected reloaded shift register's first bit (A released) to read 0, got %d", got)
	}
}

func TestReset_ShouldClearAllState(t *testing.T) {
	controller := New()
	controller.SetButton(ButtonA, true)
	controller.Write(1)
	controller.Write(0)
	controller.Read()

	controller.Reset()

	if controller.buttons != 0 {
		t.Errorf("expected buttons cleared, got %d", controller.buttons)
	}
	if controller.shiftRegister != 0 {
		t.Errorf("expected shift register cleared, got %d", controller.shiftRegister)
	}
	if controller.strobe {
		t.Error("expected strobe cleared")
	}
	if controller.bitsRead != 0 {
		t.Errorf("expected bitsRead cleared, got %d", controller.bitsRead)
	}
}

func TestLatch_Write4016StrobesBothControllers(t *testing.T) {
	latch := NewLatch()
	latch.Controller1.SetButton(ButtonA, true)
	latch.Controller2.SetButton(ButtonB, true)

	latch.Write(0x4016, 1)
	latch.Write(0x4016, 0)

	if got := latch.Read(0x4016); got != 1 {
		t.Errorf("controller 1 bit 0: expected 1, got %d", got)
	}
	if got := latch.Read(0x4017) & 1; got != 0 {
		t.Errorf("controller 2 bit 0: expected 0, got %d", got)
	}
}

func TestLatch_Read4017_SetsOpenBusBit6(t *testing.T) {
	latch := NewLatch()
	latch.Write(0x4016, 1)

	got := latch.Read(0x4017)
	if got&0x40 == 0 {
		t.Errorf("expected bit 6 set on $4017 read, got %#02x", got)
	}
}

func TestLatch_UnknownAddressReadsZero(t *testing.T) {
	latch := NewLatch()
	if got := latch.Read(0x4018); got != 0 {
		t.Errorf("expected 0 for unmapped address, got %d", got)
	}
}
