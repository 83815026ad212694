package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/rvernhes/stepduo/internal/config"
	"github.com/rvernhes/stepduo/internal/debug"
	"github.com/rvernhes/stepduo/internal/hw/button"
	"github.com/rvernhes/stepduo/internal/hw/display"
	"github.com/rvernhes/stepduo/internal/hw/gpio"
	"github.com/rvernhes/stepduo/internal/hw/powerstage"
	"github.com/rvernhes/stepduo/internal/hw/stepper"
	"github.com/rvernhes/stepduo/internal/logic/jog"
	"github.com/rvernhes/stepduo/internal/logic/motion"
	"github.com/rvernhes/stepduo/internal/logic/speed"
	"github.com/rvernhes/stepduo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	accel := flag.Int("accel", 0, "override ramp acceleration in steps/sec²")
	revolutions := flag.Int("revolutions", 0, "override revolutions per jog command")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*accel, *revolutions); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	if *accel > 0 {
		cfg.Defaults.Acceleration = *accel
	}
	if *revolutions > 0 {
		cfg.Defaults.RevolutionsPerMove = *revolutions
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Acceleration", cfg.Defaults.Acceleration)
	debug.Value("Revolutions per move", cfg.Defaults.RevolutionsPerMove)

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Power up the shared driver board before any axis touches it
	debug.Step(2, "Starting driver power stage")
	stage, err := powerstage.New(gpioDriver, powerstage.Config{
		ResetPin:  cfg.PowerStage.ResetPin,
		EnablePin: cfg.PowerStage.EnablePin,
	})
	if err != nil {
		log.Fatalf("init power stage failed: %v", err)
	}
	if err := stage.Startup(); err != nil {
		log.Fatalf("power stage startup failed: %v", err)
	}
	defer func() {
		if err := stage.Disable(); err != nil {
			log.Printf("disabling power stage failed: %v", err)
		}
	}()

	// Initialize stepper axes. A failed axis is logged and skipped so
	// the remaining axis keeps working.
	debug.Step(3, "Initializing stepper axes")
	xAxis := newAxisFromConfig(gpioDriver, "X", cfg.XAxis)
	yAxis := newAxisFromConfig(gpioDriver, "Y", cfg.YAxis)
	if xAxis == nil && yAxis == nil {
		log.Fatal("no usable stepper axis")
	}

	// Speed table and coordinator
	debug.Step(4, "Building speed profile and coordinator")
	entries := make([]speed.Entry, 0, len(cfg.SpeedLevels))
	for _, lvl := range cfg.SpeedLevels {
		entries = append(entries, speed.Entry{RateHz: lvl.RateHz, Percent: lvl.Percent})
	}
	profile, err := speed.NewProfile(entries)
	if err != nil {
		log.Fatalf("invalid speed table: %v", err)
	}
	coord := motion.NewCoordinator(profile, float64(cfg.Defaults.Acceleration), xAxis, yAxis)
	coord.SetPollInterval(cfg.IdlePoll())
	defer coord.DisableAll()

	// Display
	debug.Step(5, "Initializing display")
	renderer, err := newDisplayFromConfig(cfg)
	if err != nil {
		log.Fatalf("init display failed: %v", err)
	}

	session := jog.NewSession(coord, renderer, cfg.StepsPerMove(), cfg.Defaults.RevolutionsPerMove)

	// Commands channel is unbuffered on purpose: a send only succeeds
	// when the session is idle, so button and web sources share the
	// same "one move at a time" gate.
	cmds := make(chan jog.Command)

	// Physical buttons
	if poller := newButtonsFromConfig(gpioDriver, cfg); poller != nil {
		events := make(chan button.Event, 8)
		go poller.Run(ctx, events)
		go dispatchButtons(ctx, cfg, events, cmds)
	}

	// Optional web UI
	if port := webPort.port(); port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		enqueue := func(name string) bool {
			cmd, ok := commandByName(name)
			if !ok {
				return false
			}
			select {
			case cmds <- cmd:
				return true
			default:
				return false
			}
		}
		status := func() web.Status { return currentStatus(coord, cfg) }

		srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, enqueue, status)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
				cancel()
			}
		}()
	}

	debug.Section("Ready")
	if err := session.Run(ctx, cmds); err != nil && err != context.Canceled {
		log.Fatalf("jog session: %v", err)
	}
}

// newAxisFromConfig builds one axis, returning nil when its pins cannot
// be set up. Coordinator operations skip nil axes.
func newAxisFromConfig(g gpio.Driver, label string, ac config.AxisConfig) *stepper.Axis {
	axis, err := stepper.NewAxis(g, stepper.Config{
		Label:         label,
		StepPin:       ac.StepPin,
		DirPin:        ac.DirPin,
		EnablePin:     ac.EnablePin,
		StepsPerRev:   ac.StepsPerRev,
		Microstepping: ac.Microstepping,
	})
	if err != nil {
		debug.Error(fmt.Errorf("axis %s unavailable: %w", label, err))
		log.Printf("axis %s unavailable: %v", label, err)
		return nil
	}
	debug.PrintStruct(label+" axis config", ac)
	return axis
}

// newDisplayFromConfig selects a display implementation based on configuration.
func newDisplayFromConfig(cfg *config.Config) (display.Renderer, error) {
	switch cfg.Display.Type {
	case "log":
		return display.LogRenderer{}, nil
	case "serial":
		serial, err := display.OpenSerial(cfg.Display.SerialPort, cfg.Display.SerialBaud)
		if err != nil {
			return nil, fmt.Errorf("open serial display: %w", err)
		}
		return display.Multi{display.LogRenderer{}, serial}, nil
	default:
		return nil, fmt.Errorf("unsupported display type: %s", cfg.Display.Type)
	}
}

// newButtonsFromConfig builds the jog button poller, or nil when no
// button pin is configured.
func newButtonsFromConfig(g gpio.Driver, cfg *config.Config) *button.Poller {
	var pins []int
	for _, pin := range []int{cfg.Buttons.ForwardPin, cfg.Buttons.BackwardPin, cfg.Buttons.SpeedPin} {
		if pin > 0 {
			pins = append(pins, pin)
		}
	}
	if len(pins) == 0 {
		return nil
	}
	poller, err := button.NewPoller(g, pins, cfg.ButtonPoll(), cfg.ButtonDebounce())
	if err != nil {
		debug.Error(fmt.Errorf("buttons unavailable: %w", err))
		log.Printf("buttons unavailable: %v", err)
		return nil
	}
	return poller
}

// dispatchButtons maps raw pin presses to jog commands. A press landing
// while a move is in flight is dropped, matching the web endpoint.
func dispatchButtons(ctx context.Context, cfg *config.Config, events <-chan button.Event, cmds chan<- jog.Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			var cmd jog.Command
			switch evt.Pin {
			case cfg.Buttons.ForwardPin:
				cmd = jog.MoveForward
			case cfg.Buttons.BackwardPin:
				cmd = jog.MoveBackward
			case cfg.Buttons.SpeedPin:
				cmd = jog.CycleSpeed
			default:
				continue
			}
			select {
			case cmds <- cmd:
			default:
				debug.Live("Button press dropped: move in progress")
			}
		}
	}
}

// commandByName translates web endpoint names to jog commands.
func commandByName(name string) (jog.Command, bool) {
	switch name {
	case "forward":
		return jog.MoveForward, true
	case "backward":
		return jog.MoveBackward, true
	case "cycle-speed":
		return jog.CycleSpeed, true
	default:
		return 0, false
	}
}

// currentStatus assembles the web status snapshot.
func currentStatus(coord *motion.Coordinator, cfg *config.Config) web.Status {
	report := coord.Report()
	axes := make([]web.AxisStatus, 0, len(report))
	for _, r := range report {
		axes = append(axes, web.AxisStatus{Label: r.Label, Pulses: r.Pulses})
	}
	cur := coord.Profile().Current()
	return web.Status{
		Axes:         axes,
		SpeedPercent: cur.Percent,
		RateHz:       cur.RateHz,
		Acceleration: cfg.Defaults.Acceleration,
		Revolutions:  cfg.Defaults.RevolutionsPerMove,
		Running:      coord.Running(),
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(accel, revolutions int) error {
	if accel != 0 {
		if accel < 1 || accel > 1000000 {
			return fmt.Errorf("accel must be between 1 and 1000000, got %d", accel)
		}
	}
	if revolutions != 0 {
		if revolutions < 1 || revolutions > 1000 {
			return fmt.Errorf("revolutions must be between 1 and 1000, got %d", revolutions)
		}
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
