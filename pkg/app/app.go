package app

import (
	"net/url"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"inftrace/pkg/app/config"
	"inftrace/pkg/bulk"
	"inftrace/pkg/model"
	"inftrace/pkg/mqtt"
	"inftrace/pkg/port"
	"inftrace/pkg/raspberry"
	"inftrace/pkg/runner"
	"inftrace/pkg/timing"
	"inftrace/pkg/uart"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Webserver.URL parameter
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// gpio is the handler to the gpio backend
	gpio raspberry.GPIO

	// transport is the serial transport for operator input and ingestion
	transport uart.Transport

	// timing is the controller of the inference timing lines
	timing *timing.Controller

	// mdl is the inference collaborator
	mdl model.Model

	// loop is the interactive control loop
	loop *runner.Runner

	// lastReport holds the report of the most recent iteration for the
	// web report route
	lastReport struct {
		sync.RWMutex
		report runner.Report
		valid  bool
	}
}

// New checks the web server URL and initializes the main app structure.
func New(cfg *config.Config) (*App, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("error parsing url %q: %s", cfg.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    cfg,
		urlParsed: u,

		web:  fiber.New(),
		mqtt: mqtt.New(),
	}, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.runLoop()

	return nil
}

// init opens the hardware, wires the components and registers the routes.
// Timing line failures are not fatal: the loop then runs without signals.
func (app *App) init() (err error) {
	if app.gpio, err = raspberry.Open(app.config.Gpio.Driver); err != nil {
		debug.ErrorLog.Printf("can't open gpio: %v", err)
		return err
	}

	app.timing = app.initTiming()

	if app.transport, err = uart.Open(app.config.Serial.Device, app.config.Serial.Baud, app.config.Serial.ReadTimeout); err != nil {
		debug.ErrorLog.Printf("can't open serial device %q: %v", app.config.Serial.Device, err)
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker: %v", err)
		return err
	}

	app.mdl = model.NewSynthetic(app.config.Model.InputSizes...)

	mode, err := runner.ParseMode(app.config.Loop.Mode)
	if err != nil {
		debug.ErrorLog.Printf("invalid loop config: %v", err)
		return err
	}

	channel := bulk.New(app.transport, app.config.Serial.ChunkSize, bulk.ConsoleProgress(os.Stdout))
	app.loop = runner.New(runner.Options{
		Timing:    app.timing,
		Channel:   channel,
		Transport: app.transport,
		Model:     app.mdl,
		Settle:    app.config.Timing.SettleTime,
		Mode:      mode,
		Report:    app.handleReport,
	})

	// initDefaultRoutes should always be called last because it accesses
	// the components initialized above
	app.initDefaultRoutes()

	return nil
}

// initTiming requests the timing lines and arms the controller.
// Any failure leaves the controller unarmed; assert and deassert calls then
// degrade to no-ops and inference runs without timing signals.
func (app *App) initTiming() *timing.Controller {
	pre, err := app.gpio.OutputPin(app.config.Gpio.Pre.Bank, app.config.Gpio.Pre.Line)
	if err != nil {
		debug.WarningLog.Printf("can't request pre-inference line: %v, timing signals disabled", err)
		return timing.New(nil, nil, nil)
	}

	post, err := app.gpio.OutputPin(app.config.Gpio.Post.Bank, app.config.Gpio.Post.Line)
	if err != nil {
		debug.WarningLog.Printf("can't request post-inference line: %v, timing signals disabled", err)
		return timing.New(nil, nil, nil)
	}

	ctrl := timing.New(pre, post, nil)
	if err := ctrl.Init(); err != nil {
		debug.WarningLog.Printf("can't initialize timing lines: %v, timing signals disabled", err)
		return ctrl
	}

	debug.InfoLog.Printf("timing lines initialized (pre=%d/%d, post=%d/%d)",
		app.config.Gpio.Pre.Bank, app.config.Gpio.Pre.Line,
		app.config.Gpio.Post.Bank, app.config.Gpio.Post.Line)

	if app.config.Timing.Diagnostics {
		app.initDiagnostics(ctrl)
	}

	return ctrl
}

// initDiagnostics requests and arms the diagnostic lines.
func (app *App) initDiagnostics(ctrl *timing.Controller) {
	lines := make([]port.Output, 0, len(app.config.Gpio.Diagnostics))
	for _, pc := range app.config.Gpio.Diagnostics {
		pin, err := app.gpio.OutputPin(pc.Bank, pc.Line)
		if err != nil {
			debug.WarningLog.Printf("can't request diagnostic line %d/%d: %v, diagnostic cycle disabled", pc.Bank, pc.Line, err)
			return
		}
		lines = append(lines, pin)
	}

	if err := ctrl.InitDiagnostics(lines...); err != nil {
		debug.WarningLog.Printf("can't initialize diagnostic lines: %v, diagnostic cycle disabled", err)
	}
}

// runLoop optionally runs the diagnostic cycle once, then hands control to
// the interactive loop. Designed to run in its own goroutine, see Run().
func (app *App) runLoop() {
	if app.config.Timing.Diagnostics {
		if err := app.timing.CycleDiagnostics(); err != nil {
			debug.ErrorLog.Printf("diagnostic cycle: %v", err)
		}
	}

	app.loop.Run()
}

// Close releases the loop and all hardware handles.
func (app *App) Close() error {
	if app.loop != nil {
		app.loop.Stop()
	}

	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if app.transport != nil {
		_ = app.transport.Close()
	}

	if app.gpio != nil {
		_ = app.gpio.Close()
	}

	return nil
}
