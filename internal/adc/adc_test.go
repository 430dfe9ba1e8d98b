package adc

import (
	"errors"
	"testing"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		volts float64
		want  int
	}{
		{-0.2, 0},
		{0, 0},
		{1.65, 2047},
		{3.3, FullScale},
		{4.0, FullScale},
	}
	for _, tt := range tests {
		if got := codeFor(tt.volts); got != tt.want {
			t.Errorf("codeFor(%v): expected %d, got %d", tt.volts, tt.want, got)
		}
	}
}

func TestFakeReader(t *testing.T) {
	f := NewFakeReader()
	f.Set(Throttle, 2000)
	f.SetVolts(Battery, 3.3)

	got, err := f.ReadAnalog(Throttle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2000 {
		t.Errorf("throttle: expected 2000, got %d", got)
	}

	got, _ = f.ReadAnalog(Battery)
	if got != FullScale {
		t.Errorf("battery: expected %d, got %d", FullScale, got)
	}

	got, _ = f.ReadAnalog(Torque)
	if got != 0 {
		t.Errorf("unset channel: expected 0, got %d", got)
	}

	if f.Reads[Throttle] != 1 {
		t.Errorf("expected 1 throttle read, got %d", f.Reads[Throttle])
	}
}

func TestFakeReaderFail(t *testing.T) {
	f := NewFakeReader()
	sentinel := errors.New("i2c nack")
	f.Fail(MotorTemp, sentinel)

	if _, err := f.ReadAnalog(MotorTemp); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}

	f.Fail(MotorTemp, nil)
	if _, err := f.ReadAnalog(MotorTemp); err != nil {
		t.Errorf("expected error cleared, got %v", err)
	}
}

func TestWiringCoversEveryChannel(t *testing.T) {
	for _, ch := range []Channel{Throttle, Torque, Battery, MotorTemp, ControllerTemp} {
		if _, ok := channelWiring[ch]; !ok {
			t.Errorf("%s has no converter input", ch)
		}
	}
}
