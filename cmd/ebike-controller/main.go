// Command ebike-controller runs the e-bike motor controller: it samples the
// rider inputs, drives the motor actuator and reports state to the display,
// MQTT and HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/ebike-controller/internal/actuator"
	"github.com/sweeney/ebike-controller/internal/adc"
	"github.com/sweeney/ebike-controller/internal/controller"
	"github.com/sweeney/ebike-controller/internal/display"
	"github.com/sweeney/ebike-controller/internal/gpio"
	"github.com/sweeney/ebike-controller/internal/logic"
	"github.com/sweeney/ebike-controller/internal/mqtt"
	"github.com/sweeney/ebike-controller/internal/status"
	"github.com/sweeney/ebike-controller/internal/web"
)

const clientID = "ebike-controller"

type options struct {
	power         int
	actuator      string
	serialDevice  string
	baud          int
	pwmPin        int
	i2cBus        string
	divider       float64
	latch         bool
	integralLimit float64
	assist        int

	tick      time.Duration
	display   time.Duration
	safety    time.Duration
	horn      time.Duration
	heartbeat time.Duration
	debounce  time.Duration

	broker     string
	httpAddr   string
	printState bool

	pins   gpio.Pins
	inputs inputPins
}

// inputPins are the BCM offsets of the edge-triggered inputs.
type inputPins struct {
	Cadence    int
	AssistUp   int
	AssistDown int
	Lights     int
	Horn       int
}

func main() {
	defaults := logic.NewConfig(logic.Power500)
	var o options

	flag.IntVar(&o.power, "power", int(logic.Power500), "Motor power class in watts (250, 500, 1000)")
	flag.StringVar(&o.actuator, "actuator", "pwm", "Motor actuator: pwm or serial")
	flag.StringVar(&o.serialDevice, "serial", "/dev/serial0", "Serial device for the serial actuator")
	flag.IntVar(&o.baud, "baud", actuator.DefaultBaud, "Serial baud rate")
	flag.IntVar(&o.pwmPin, "pwm-pin", actuator.DefaultPWMPin, "BCM pin for the PWM actuator")
	flag.StringVar(&o.i2cBus, "i2c", "", "I2C bus for the ADCs (empty for the first bus)")
	flag.Float64Var(&o.divider, "divider", defaults.DividerRatio, "Battery voltage divider ratio")
	flag.BoolVar(&o.latch, "latch", defaults.LatchShutdown, "Keep emergency shutdown latched until reset (SIGUSR1)")
	flag.Float64Var(&o.integralLimit, "integral-limit", 0, "Speed loop integral bound (0 for unbounded)")
	flag.IntVar(&o.assist, "assist", defaults.InitialAssist, "Initial assist level")

	flag.DurationVar(&o.tick, "tick", defaults.TickPeriod, "Control loop period")
	flag.DurationVar(&o.display, "display", defaults.DisplayPeriod, "Display refresh period")
	flag.DurationVar(&o.safety, "safety", defaults.SafetyPeriod, "Safety sweep period")
	flag.DurationVar(&o.horn, "horn", defaults.HornDuration, "Horn blast duration")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.debounce, "debounce", 20*time.Millisecond, "Button debounce duration")

	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	flag.BoolVar(&o.printState, "print-state", false, "Print current input readings and exit")

	o.pins = gpio.DefaultPins()
	pinFlag := func(name string, ch gpio.Channel, usage string) {
		v := o.pins[ch]
		flag.Func(name, fmt.Sprintf("%s (default %d)", usage, v), func(s string) error {
			var n int
			if _, err := fmt.Sscan(s, &n); err != nil {
				return err
			}
			o.pins[ch] = n
			return nil
		})
	}
	pinFlag("pin-brake-front", gpio.BrakeFront, "BCM pin for the front brake switch")
	pinFlag("pin-brake-rear", gpio.BrakeRear, "BCM pin for the rear brake switch")
	pinFlag("pin-charging", gpio.Charging, "BCM pin for charger detect")
	pinFlag("pin-headlight", gpio.Headlight, "BCM pin for the headlight")
	pinFlag("pin-taillight", gpio.Taillight, "BCM pin for the taillight")
	pinFlag("pin-horn", gpio.Horn, "BCM pin for the horn")
	flag.IntVar(&o.inputs.Cadence, "pin-cadence", gpio.DefaultPinCadence, "BCM pin for the cadence sensor")
	flag.IntVar(&o.inputs.AssistUp, "pin-assist-up", gpio.DefaultPinAssistUp, "BCM pin for the assist up button")
	flag.IntVar(&o.inputs.AssistDown, "pin-assist-down", gpio.DefaultPinAssistDown, "BCM pin for the assist down button")
	flag.IntVar(&o.inputs.Lights, "pin-lights", gpio.DefaultPinLights, "BCM pin for the lights button")
	flag.IntVar(&o.inputs.Horn, "pin-horn-button", gpio.DefaultPinHornButton, "BCM pin for the horn button")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// buildConfig turns command-line options into a validated controller config.
func buildConfig(o options) (logic.Config, error) {
	power := logic.PowerClass(o.power)
	switch power {
	case logic.Power250, logic.Power500, logic.Power1000:
	default:
		return logic.Config{}, fmt.Errorf("unsupported power class %dW (want 250, 500 or 1000)", o.power)
	}

	cfg := logic.NewConfig(power)
	cfg.DividerRatio = o.divider
	cfg.LatchShutdown = o.latch
	cfg.IntegralLimit = o.integralLimit
	cfg.InitialAssist = o.assist
	cfg.TickPeriod = o.tick
	cfg.DisplayPeriod = o.display
	cfg.SafetyPeriod = o.safety
	cfg.HornDuration = o.horn

	if cfg.DividerRatio <= 0 {
		return logic.Config{}, fmt.Errorf("divider ratio must be positive, got %v", cfg.DividerRatio)
	}
	if cfg.DisplayPeriod <= 0 || cfg.SafetyPeriod <= 0 {
		return logic.Config{}, fmt.Errorf("display and safety periods must be positive")
	}
	if err := cfg.Validate(); err != nil {
		return logic.Config{}, err
	}
	return cfg, nil
}

func run(o options) error {
	cfg, err := buildConfig(o)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Initialize GPIO
	bank, err := gpio.NewRealBank(o.pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer bank.Close()

	// Initialize ADCs
	analog, err := adc.NewADS1115Reader(o.i2cBus)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer analog.Close()

	// Print state mode
	if o.printState {
		return printInputs(os.Stdout, analog, bank)
	}

	act, actCloser, err := openActuator(o.actuator, o.serialDevice, o.baud, o.pwmPin, cfg.MaxCurrent)
	if err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	defer actCloser.Close()

	// Initialize MQTT
	renderer := display.Multi{display.NewLogRenderer()}
	var events *eventQueue
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		client, err := mqtt.NewRealClient(o.broker, clientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer client.Close()
		renderer = append(renderer, mqtt.NewDisplay(client))
		events = newEventQueue(mqtt.NewPublisher(client), eventQueueSize)
		defer events.close(eventDrainWait)
		mqttStatus = client
	}

	if err := renderer.Render(display.Startup(cfg.Power)); err != nil {
		log.Printf("failed to render startup screen: %v", err)
	}

	ctrl, err := controller.New(cfg, controller.Deps{ADC: analog, GPIO: bank, Actuator: act})
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	cadence := gpio.NewRealWatcher(0)
	defer cadence.Close()
	buttons := gpio.NewRealWatcher(o.debounce)
	defer buttons.Close()
	if err := watchInputs(cadence, buttons, ctrl, o.inputs); err != nil {
		ctrl.Shutdown()
		return fmt.Errorf("watch inputs: %w", err)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Power:         int(cfg.Power),
		MaxCurrent:    cfg.MaxCurrent,
		MaxSpeed:      cfg.MaxSpeed,
		Actuator:      o.actuator,
		LatchShutdown: cfg.LatchShutdown,
		TickMs:        cfg.TickPeriod.Milliseconds(),
		DisplayMs:     cfg.DisplayPeriod.Milliseconds(),
		SafetyMs:      cfg.SafetyPeriod.Milliseconds(),
		Broker:        o.broker,
		HTTPAddr:      o.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.Update(ctrl.State(), 0)

	emit(events, mqttStatus, tracker, "STARTUP", "", true)

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: power=%dW actuator=%s tick=%v safety=%v broker=%s",
		cfg.Power, o.actuator, cfg.TickPeriod, cfg.SafetyPeriod, o.broker)

	controlTicker := time.NewTicker(cfg.TickPeriod)
	defer controlTicker.Stop()
	safetyTicker := time.NewTicker(cfg.SafetyPeriod)
	defer safetyTicker.Stop()
	displayTicker := time.NewTicker(cfg.DisplayPeriod)
	defer displayTicker.Stop()

	ticks := loopTicks{control: controlTicker.C, safety: safetyTicker.C}
	if o.heartbeat > 0 {
		heartbeatTicker := time.NewTicker(o.heartbeat)
		defer heartbeatTicker.Stop()
		ticks.heartbeat = heartbeatTicker.C
	}

	ctx, cancel := context.WithCancel(context.Background())
	displayDone := make(chan struct{})
	go func() {
		defer close(displayDone)
		runDisplay(ctx, tracker, renderer, displayTicker.C)
	}()
	stopDisplay := func() {
		cancel()
		<-displayDone
	}
	defer stopDisplay()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	return runLoop(ctrl, events, mqttStatus, tracker, renderer, stopDisplay, time.Now, ticks, sigCh)
}

// openActuator opens the motor output named by mode. The returned closer
// releases the underlying hardware.
func openActuator(mode, device string, baud, pwmPin int, maxCurrent float64) (actuator.Actuator, io.Closer, error) {
	switch mode {
	case "pwm":
		out, err := actuator.OpenRPIODuty(pwmPin)
		if err != nil {
			return nil, nil, fmt.Errorf("open pwm: %w", err)
		}
		return actuator.NewPWM(out, maxCurrent), out, nil
	case "serial":
		port, err := actuator.OpenSerialPort(device, baud)
		if err != nil {
			return nil, nil, fmt.Errorf("open serial: %w", err)
		}
		return actuator.NewSerial(port), port, nil
	}
	return nil, nil, fmt.Errorf("unknown actuator %q (want pwm or serial)", mode)
}

// watchInputs binds the edge-triggered inputs to the controller. The cadence
// sensor is debounced by the control core; buttons by the watcher.
func watchInputs(cadence, buttons gpio.Watcher, ctrl *controller.Controller, pins inputPins) error {
	if err := cadence.Watch(pins.Cadence, ctrl.OnCadenceEdge); err != nil {
		return err
	}

	bind := []struct {
		offset int
		h      gpio.EdgeHandler
	}{
		{pins.AssistUp, func(time.Time) { ctrl.StepAssist(1) }},
		{pins.AssistDown, func(time.Time) { ctrl.StepAssist(-1) }},
		{pins.Lights, func(time.Time) {
			if on, err := ctrl.ToggleLights(); err == nil {
				log.Printf("lights: %s", onOff(on))
			}
		}},
		{pins.Horn, func(time.Time) { ctrl.SoundHorn(0) }},
	}
	for _, b := range bind {
		if err := buttons.Watch(b.offset, b.h); err != nil {
			return err
		}
	}
	return nil
}

// loopTicks are the periodic inputs to runLoop. A nil channel disables
// that activity.
type loopTicks struct {
	control   <-chan time.Time
	safety    <-chan time.Time
	heartbeat <-chan time.Time
}

// runLoop owns the control tick. Events go through the queue so a slow
// broker never delays a tick.
func runLoop(ctrl *controller.Controller, events *eventQueue, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, renderer display.Renderer, stopDisplay func(), now func() time.Time, ticks loopTicks, sig <-chan os.Signal) error {
	latched := ctrl.State().EmergencyShutdown

	// observe pushes the controller state to the tracker and reports fault
	// transitions.
	observe := func() {
		state := ctrl.State()
		tracker.Update(state, ctrl.Overruns())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}

		switch {
		case state.EmergencyShutdown && !latched:
			emit(events, mqttStatus, tracker, "FAULT", state.Fault.String(), false)
		case !state.EmergencyShutdown && latched:
			emit(events, mqttStatus, tracker, "FAULT_CLEARED", "", false)
		}
		latched = state.EmergencyShutdown
	}

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGUSR1 {
				log.Printf("received %v, resetting fault", s)
				ctrl.ResetFault()
				observe()
				continue
			}

			log.Printf("received %v, shutting down", s)
			if err := ctrl.Shutdown(); err != nil {
				log.Printf("failed to zero motor output: %v", err)
			}
			if stopDisplay != nil {
				stopDisplay()
			}
			if err := renderer.Render(display.Shutdown()); err != nil {
				log.Printf("failed to render shutdown screen: %v", err)
			}
			tracker.Update(ctrl.State(), ctrl.Overruns())
			emit(events, mqttStatus, tracker, "SHUTDOWN", signalName(s), true)
			events.close(eventDrainWait)
			return nil

		case <-ticks.control:
			ctrl.Tick(now())
			observe()

		case <-ticks.safety:
			ctrl.SafetySweep(now())
			observe()

		case <-ticks.heartbeat:
			state := ctrl.State()
			log.Printf("heartbeat: speed=%.1fkm/h battery=%d%% distance=%.2fkm overruns=%d",
				state.Speed, state.BatteryLevel, state.Distance, ctrl.Overruns())
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			observe()
			emit(events, mqttStatus, tracker, "HEARTBEAT", "", false)
		}
	}
}

// runDisplay refreshes the display from the tracker until ctx is done.
// Repeated render errors are logged once.
func runDisplay(ctx context.Context, tracker *status.Tracker, renderer display.Renderer, tick <-chan time.Time) {
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			err := renderer.Render(display.ScreenFor(tracker.Snapshot().State))
			switch {
			case err != nil && err.Error() != lastErr:
				log.Printf("display render error: %v", err)
				lastErr = err.Error()
			case err == nil:
				lastErr = ""
			}
		}
	}
}

// printInputs writes one raw sample of every input.
func printInputs(w io.Writer, analog adc.Reader, bank gpio.Bank) error {
	for _, ch := range []adc.Channel{adc.Throttle, adc.Torque, adc.Battery, adc.MotorTemp, adc.ControllerTemp} {
		v, err := analog.ReadAnalog(ch)
		if err != nil {
			return fmt.Errorf("read adc: %w", err)
		}
		fmt.Fprintf(w, "%s: %d\n", ch, v)
	}
	for _, ch := range []gpio.Channel{gpio.BrakeFront, gpio.BrakeRear, gpio.Charging} {
		v, err := bank.ReadDigital(ch)
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Fprintf(w, "%s: %s\n", ch, onOff(v))
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
