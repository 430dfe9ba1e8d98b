package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ebike-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>eBike Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>eBike Controller ({{.Config.Power}}W)</h1>

{{if .State.EmergencyShutdown}}<p id="fault" class="fault">EMERGENCY STOP{{with .State.Fault.String}}: {{.}}{{end}}</p>{{end}}

<h2>Ride</h2>
<table>
<tr><th>Speed</th><td id="speed">{{printf "%.1f" .State.Speed}} km/h</td></tr>
<tr><th>Distance</th><td>{{printf "%.2f" .State.Distance}} km</td></tr>
<tr><th>Cadence</th><td>{{printf "%.0f" .State.Cadence}} RPM</td></tr>
<tr><th>Torque</th><td>{{printf "%.1f" .State.Torque}} Nm</td></tr>
<tr><th>Throttle</th><td>{{printf "%.0f" .State.Throttle}}%</td></tr>
<tr><th>Assist</th><td id="assist">{{.State.AssistLevel}}</td></tr>
<tr><th>Brake</th><td class="{{if .State.BrakeActive}}on{{else}}off{{end}}">{{onOff .State.BrakeActive}}</td></tr>
</table>

<h2>Drive</h2>
<table>
<tr><th>Current</th><td>{{printf "%.1f" .State.CommandedCurrent}} A (max {{.Config.MaxCurrent}} A)</td></tr>
<tr><th>Power</th><td>{{printf "%.0f" .State.Power}} W</td></tr>
<tr><th>Regen</th><td class="{{if .State.RegenActive}}on{{else}}off{{end}}">{{onOff .State.RegenActive}}</td></tr>
<tr><th>Motor</th><td>{{printf "%.1f" .State.MotorTemp}} °C</td></tr>
<tr><th>Controller</th><td>{{printf "%.1f" .State.ControllerTemp}} °C</td></tr>
</table>

<h2>Battery</h2>
<table>
<tr><th>Level</th><td id="battery">{{.State.BatteryLevel}}%</td></tr>
<tr><th>Voltage</th><td>{{printf "%.1f" .State.Voltage}} V</td></tr>
<tr><th>Charging</th><td class="{{if .State.Charging}}on{{else}}off{{end}}">{{onOff .State.Charging}}</td></tr>
</table>

<h2>Accessories</h2>
<table>
<tr><th>Lights</th><td class="{{if .State.LightsOn}}on{{else}}off{{end}}">{{onOff .State.LightsOn}}</td></tr>
<tr><th>Horn</th><td class="{{if .State.HornActive}}on{{else}}off{{end}}">{{onOff .State.HornActive}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Actuator</th><td>{{.Config.Actuator}}</td></tr>
<tr><th>Control tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Overruns</th><td id="overruns">{{.Overruns}}</td></tr>
<tr><th>Fault latch</th><td>{{if .Config.LatchShutdown}}until reset{{else}}auto-clear{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
