package logic

import "time"

// SensorReader converts raw channel samples into calibrated readings.
type SensorReader struct {
	cfg     Config
	cadence *CadenceCounter
}

// NewSensorReader returns a reader using cfg's calibration and the given
// cadence counter.
func NewSensorReader(cfg Config, cadence *CadenceCounter) *SensorReader {
	return &SensorReader{cfg: cfg, cadence: cadence}
}

// Read converts one raw sample taken at now.
func (r *SensorReader) Read(raw RawInputs, now time.Time) Readings {
	rpm, active := r.cadence.Sample(now)
	voltage := PackVoltage(raw.Battery, r.cfg.DividerRatio)

	return Readings{
		Throttle:       ThrottlePercent(raw.Throttle, r.cfg.ThrottleMin, r.cfg.ThrottleMax),
		BrakeActive:    raw.BrakeFront || raw.BrakeRear,
		Cadence:        rpm,
		CadenceActive:  active,
		Torque:         TorqueNm(raw.Torque, r.cfg.TorqueOffset),
		Voltage:        voltage,
		BatteryLevel:   BatteryLevel(voltage),
		MotorTemp:      Temperature(raw.MotorTemp),
		ControllerTemp: Temperature(raw.ControllerTemp),
		Charging:       !raw.ChargingLevel,
	}
}

// ThrottlePercent maps a raw throttle code through [min, max] onto 0..100.
func ThrottlePercent(raw, min, max int) float64 {
	pct := float64(raw-min) / float64(max-min) * 100
	return clamp(pct, 0, 100)
}

// TorqueNm converts a raw torque code to Nm. Readings just under the offset
// come out slightly negative and are left as is.
func TorqueNm(raw, offset int) float64 {
	return float64(raw-offset) * TorqueNmPerCount
}

// PackVoltage converts a raw divider code to pack volts.
func PackVoltage(raw int, dividerRatio float64) float64 {
	return fraction(raw) * ADCReference * dividerRatio
}

// BatteryLevel maps pack voltage to a 0..100 state of charge, truncated.
func BatteryLevel(voltage float64) int {
	switch {
	case voltage >= PackFullVoltage:
		return 100
	case voltage <= PackEmptyVoltage:
		return 0
	}
	return int((voltage - PackEmptyVoltage) / (PackFullVoltage - PackEmptyVoltage) * 100)
}

// Temperature is a linear 0..100 °C proxy over the ADC range, not an NTC curve.
func Temperature(raw int) float64 {
	return fraction(raw) * 100
}

// fraction clamps a raw code into range and returns it as a share of FullScale.
func fraction(raw int) float64 {
	if raw < 0 {
		raw = 0
	}
	if raw > FullScale {
		raw = FullScale
	}
	return float64(raw) / FullScale
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
