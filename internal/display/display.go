// Package display formats controller state into screens and hands them to
// renderers. Formatting is pure; renderers own the output device.
package display

import (
	"fmt"
	"strings"

	"github.com/sweeney/ebike-controller/internal/logic"
)

// Kind identifies which screen is shown.
type Kind string

const (
	KindStartup   Kind = "startup"
	KindDashboard Kind = "dashboard"
	KindEmergency Kind = "emergency"
	KindShutdown  Kind = "shutdown"
)

// Line is one text run positioned in pixels on a 128x64 panel.
type Line struct {
	Text string `json:"text"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Screen is a full frame. Each Render replaces the previous screen.
type Screen struct {
	Kind  Kind   `json:"kind"`
	Lines []Line `json:"lines"`
}

// Text returns the lines joined with " | ", for logs.
func (s Screen) Text() string {
	parts := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, " | ")
}

// Equal reports whether two screens would draw the same pixels.
func (s Screen) Equal(o Screen) bool {
	if s.Kind != o.Kind || len(s.Lines) != len(o.Lines) {
		return false
	}
	for i := range s.Lines {
		if s.Lines[i] != o.Lines[i] {
			return false
		}
	}
	return true
}

// Renderer draws screens on an output device.
type Renderer interface {
	Render(s Screen) error
}

// Dashboard row positions.
const (
	rowSpeed    = 0
	rowPower    = 12
	rowDistance = 24
	rowCadence  = 36
	rowStatus   = 48
)

// torqueShown is the torque above which the dashboard shows it.
const torqueShown = 0.5

// Startup is the banner shown once at power-on.
func Startup(power logic.PowerClass) Screen {
	return Screen{
		Kind: KindStartup,
		Lines: []Line{
			{Text: "eBike Controller", X: 0, Y: 0},
			{Text: fmt.Sprintf("%dW System", int(power)), X: 0, Y: 16},
			{Text: "Initializing...", X: 0, Y: 32},
		},
	}
}

// Dashboard is the riding screen.
func Dashboard(s logic.SystemState) Screen {
	lines := []Line{
		{Text: fmt.Sprintf("Speed: %.1fkm/h", s.Speed), X: 0, Y: rowSpeed},
		{Text: fmt.Sprintf("Batt: %d%%", s.BatteryLevel), X: 70, Y: rowSpeed},
		{Text: fmt.Sprintf("Power: %.0fW", s.Power), X: 0, Y: rowPower},
		{Text: fmt.Sprintf("%.1fA", s.CommandedCurrent), X: 90, Y: rowPower},
		{Text: fmt.Sprintf("Dist: %.1fkm", s.Distance), X: 0, Y: rowDistance},
		{Text: fmt.Sprintf("Mode: %d", s.AssistLevel), X: 70, Y: rowDistance},
		{Text: fmt.Sprintf("Cadence: %.0fRPM", s.Cadence), X: 0, Y: rowCadence},
	}
	if s.Torque > torqueShown {
		lines = append(lines, Line{Text: fmt.Sprintf("%.1fNm", s.Torque), X: 90, Y: rowCadence})
	}
	lines = append(lines, Line{Text: statusWords(s), X: 0, Y: rowStatus})

	return Screen{Kind: KindDashboard, Lines: lines}
}

func statusWords(s logic.SystemState) string {
	var words []string
	if s.LightsOn {
		words = append(words, "LIGHTS")
	}
	if s.HornActive {
		words = append(words, "HORN")
	}
	if s.Charging {
		words = append(words, "CHARGING")
	}
	if s.RegenActive {
		words = append(words, "REGEN")
	}
	return strings.Join(words, " ")
}

// Emergency is the latched-fault banner.
func Emergency(f logic.Fault) Screen {
	lines := []Line{{Text: "EMERGENCY STOP", X: 0, Y: 0}}
	if reason := f.String(); reason != "" {
		lines = append(lines, Line{Text: reason, X: 0, Y: 16})
	}
	return Screen{Kind: KindEmergency, Lines: lines}
}

// Shutdown is the final screen drawn on exit.
func Shutdown() Screen {
	return Screen{
		Kind:  KindShutdown,
		Lines: []Line{{Text: "SYSTEM SHUTDOWN", X: 0, Y: 0}},
	}
}

// ScreenFor picks the emergency banner while shutdown is latched and the
// dashboard otherwise.
func ScreenFor(s logic.SystemState) Screen {
	if s.EmergencyShutdown {
		return Emergency(s.Fault)
	}
	return Dashboard(s)
}
