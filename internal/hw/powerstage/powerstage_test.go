package powerstage

import (
	"testing"
	"time"

	"github.com/rvernhes/stepduo/internal/hw/gpio"
)

// recordingDriver records GPIO writes for verification.
type recordingDriver struct {
	writes []write
}

type write struct {
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error { return nil }

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.writes = append(d.writes, write{pin: pin, level: level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) { return gpio.High, nil }

func (d *recordingDriver) Close() error { return nil }

func testStage(t *testing.T, drv *recordingDriver) *Stage {
	t.Helper()
	s, err := New(drv, Config{
		ResetPin:  22,
		EnablePin: 23,
		ResetHold: time.Microsecond,
		Settle:    time.Microsecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStage_StartupSequence(t *testing.T) {
	drv := &recordingDriver{}
	s := testStage(t, drv)
	drv.writes = nil

	if err := s.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}

	want := []write{
		{pin: 22, level: gpio.Low},  // assert reset
		{pin: 22, level: gpio.High}, // release reset
		{pin: 23, level: gpio.Low},  // enable
	}
	if len(drv.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", drv.writes, want)
	}
	for i, w := range want {
		if drv.writes[i] != w {
			t.Errorf("write %d = %v, want %v", i, drv.writes[i], w)
		}
	}
}

func TestStage_InitLeavesStageInactive(t *testing.T) {
	drv := &recordingDriver{}
	testStage(t, drv)

	want := []write{
		{pin: 22, level: gpio.High}, // reset released
		{pin: 23, level: gpio.High}, // disabled
	}
	if len(drv.writes) != len(want) {
		t.Fatalf("init writes = %v, want %v", drv.writes, want)
	}
	for i, w := range want {
		if drv.writes[i] != w {
			t.Errorf("init write %d = %v, want %v", i, drv.writes[i], w)
		}
	}
}

func TestStage_EnableDisable(t *testing.T) {
	drv := &recordingDriver{}
	s := testStage(t, drv)
	drv.writes = nil

	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := s.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	want := []write{
		{pin: 23, level: gpio.Low},
		{pin: 23, level: gpio.High},
	}
	for i, w := range want {
		if drv.writes[i] != w {
			t.Errorf("write %d = %v, want %v", i, drv.writes[i], w)
		}
	}
}

func TestStage_NoPinsIsNoOp(t *testing.T) {
	drv := &recordingDriver{}
	s, err := New(drv, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Startup(); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if len(drv.writes) != 0 {
		t.Errorf("unwired stage should produce no GPIO writes, got %v", drv.writes)
	}
}
