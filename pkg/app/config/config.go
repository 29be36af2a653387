package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// Config holds the application configuration.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Gpio      GpioConfig      `yaml:"gpio"`
	Serial    SerialConfig    `yaml:"serial"`
	Timing    TimingConfig    `yaml:"timing"`
	Loop      LoopConfig      `yaml:"loop"`
	Model     ModelConfig     `yaml:"model"`
	Flag      FlagConfig      `yaml:"-"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Debug      string
	ConfigFile string
}

// PinConfig identifies one gpio output line.
// Bank selects the gpio chip, Line the offset within it; the memmap driver
// ignores Bank and reads Line as a BCM number.
type PinConfig struct {
	Bank int `yaml:"bank"`
	Line int `yaml:"line"`
}

// GpioConfig selects the gpio driver and the line-to-role mapping.
// The mapping is configuration rather than a compile-time constant so
// alternate board layouts need no code change.
type GpioConfig struct {
	Driver      string      `yaml:"driver"`
	Pre         PinConfig   `yaml:"pre"`
	Post        PinConfig   `yaml:"post"`
	Diagnostics []PinConfig `yaml:"diagnostics"`
}

// SerialConfig defines the serial transport and the bulk transfer tuning.
type SerialConfig struct {
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	ChunkSize      int           `yaml:"chunksize"`
	ReadTimeoutInt int           `yaml:"readtimeout"`
	ReadTimeout    time.Duration `yaml:"-"`
}

// TimingConfig defines the settling delay and the startup diagnostic cycle.
type TimingConfig struct {
	SettleTimeInt int           `yaml:"settletime"`
	SettleTime    time.Duration `yaml:"-"`
	Diagnostics   bool          `yaml:"diagnostics"`
}

// LoopConfig selects what the control loop does after an iteration.
type LoopConfig struct {
	// Mode is "single" (one iteration, then park) or "continuous".
	Mode string `yaml:"mode"`
}

// ModelConfig describes the synthetic stand-in model.
type ModelConfig struct {
	// InputSizes lists the byte size of each input tensor.
	InputSizes []int `yaml:"inputsizes"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

// NewConfig returns the default configuration.
// The default pin mapping is the devkit layout: pre on bank 1 line 4, post
// on bank 1 line 5, diagnostics on bank 0 lines 0, 1, 2 and 4.
func NewConfig() *Config {
	return &Config{
		Gpio: GpioConfig{
			Driver: "chardev",
			Pre:    PinConfig{Bank: 1, Line: 4},
			Post:   PinConfig{Bank: 1, Line: 5},
			Diagnostics: []PinConfig{
				{Bank: 0, Line: 0},
				{Bank: 0, Line: 1},
				{Bank: 0, Line: 2},
				{Bank: 0, Line: 4},
			},
		},
		Serial: SerialConfig{
			Device:         "/dev/ttyUSB0",
			Baud:           115200,
			ChunkSize:      4096,
			ReadTimeoutInt: 100,
		},
		Timing: TimingConfig{
			SettleTimeInt: 50,
			Diagnostics:   false,
		},
		Loop: LoopConfig{
			Mode: "single",
		},
		Model: ModelConfig{
			InputSizes: []int{10000},
		},
		Flag: FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"report":  true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "",
			Topic:      "/inftrace/report",
		},
	}
}

// LoadConfig reads the configuration file and applies flag overrides.
func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Serial.ReadTimeout = time.Duration(c.Serial.ReadTimeoutInt) * time.Millisecond
	c.Timing.SettleTime = time.Duration(c.Timing.SettleTimeInt) * time.Millisecond

	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
