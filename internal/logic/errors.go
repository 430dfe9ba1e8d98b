package logic

import "errors"

var (
	// ErrSensorRead is returned when an input channel cannot be sampled.
	// The control task treats it as sensor loss.
	ErrSensorRead = errors.New("sensor read failed")

	// ErrActuatorTransport is returned when a PWM or serial write does not complete.
	ErrActuatorTransport = errors.New("actuator transport failed")
)
