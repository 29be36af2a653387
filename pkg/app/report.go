package app

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"inftrace/pkg/mqtt"
	"inftrace/pkg/runner"
)

// handleReport receives the report of every completed loop iteration.
// It keeps the latest report for the web route and publishes it to mqtt.
func (app *App) handleReport(r runner.Report) {
	app.lastReport.Lock()
	app.lastReport.report = r
	app.lastReport.valid = true
	app.lastReport.Unlock()

	app.sendMQTT(app.config.MQTT.Topic, r)
}

// sendMQTT sends the report to the mqtt broker.
func (app *App) sendMQTT(topic string, r runner.Report) {
	go func(t string, r runner.Report) {
		debug.TraceLog.Printf("prepare mqtt message %v %+v", t, r)

		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
			return
		}

		app.mqtt.C <- mqtt.Message{
			Qos:      0,
			Retained: true,
			Topic:    t,
			Payload:  b,
		}
	}(topic, r)
}

// HandleReport is the get last inference report web handler.
func (app *App) HandleReport() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request report")

		app.lastReport.RLock()
		defer app.lastReport.RUnlock()

		if !app.lastReport.valid {
			ctx.Status(http.StatusNoContent)
			return nil
		}

		return ctx.JSON(app.lastReport.report)
	}
}
