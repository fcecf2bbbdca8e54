package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/logging"
)

// Bus types accepted by BUS_TYPE.
const (
	BusI2C  = "i2c"
	BusUART = "uart"
)

// Config holds all application configuration values.
type Config struct {
	// Sensor bus
	BusType  string
	I2CBus   string
	I2CAddr  uint8
	UARTPort string
	UARTBaud uint

	// Sensor
	OperatingMode   bno055.OperatingMode
	ResetPollLimit  int
	ExternalCrystal bool

	// Calibration
	CalibrationFile         string
	CalibrationPolicy       calibration.Policy
	CalibrationPollInterval time.Duration

	// Timing
	SampleInterval time.Duration

	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicSample      string
	TopicPose        string
	TopicCalibration string

	// Web Server
	WebServerPort int

	// NMEA heading output; disabled when the port is empty
	NMEASerialPort string
	NMEABaudRate   uint

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval time.Duration

	LogLevel string
}

// Default returns a Config with every optional key set.
func Default() *Config {
	return &Config{
		BusType:                 BusI2C,
		I2CAddr:                 bno055.DefaultAddress,
		UARTBaud:                115200,
		OperatingMode:           bno055.ModeNDOF,
		ResetPollLimit:          bno055.DefaultOpts.ResetPollLimit,
		CalibrationFile:         "bno055.cal",
		CalibrationPolicy:       calibration.Strict,
		CalibrationPollInterval: 500 * time.Millisecond,
		SampleInterval:          100 * time.Millisecond,
		MQTTClientIDProducer:    "bno055-producer",
		MQTTClientIDConsole:     "bno055-console",
		MQTTClientIDWeb:         "bno055-web",
		MQTTClientIDDisplay:     "bno055-display",
		TopicSample:             "bno055/sample",
		TopicPose:               "bno055/pose",
		TopicCalibration:        "bno055/calibration",
		WebServerPort:           8080,
		NMEABaudRate:            4800,
		DisplayI2CAddr:          0x3C,
		DisplayUpdateInterval:   500 * time.Millisecond,
		LogLevel:                "info",
	}
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Sensor bus
	case "BUS_TYPE":
		c.BusType = strings.ToLower(value)
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid I2C_ADDR %q: %w", value, err)
		}
		if addr != bno055.DefaultAddress && addr != bno055.AlternateAddress {
			return fmt.Errorf("I2C_ADDR must be 0x28 or 0x29, got 0x%02X", addr)
		}
		c.I2CAddr = uint8(addr)
	case "UART_PORT":
		c.UARTPort = value
	case "UART_BAUD":
		baud, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid UART_BAUD %q: %w", value, err)
		}
		c.UARTBaud = uint(baud)

	// Sensor
	case "OPERATING_MODE":
		mode, err := bno055.ParseOperatingMode(value)
		if err != nil {
			return err
		}
		c.OperatingMode = mode
	case "RESET_POLL_LIMIT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RESET_POLL_LIMIT %q: %w", value, err)
		}
		if n < 1 {
			return fmt.Errorf("RESET_POLL_LIMIT must be positive, got %d", n)
		}
		c.ResetPollLimit = n
	case "EXTERNAL_CRYSTAL":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid EXTERNAL_CRYSTAL %q: %w", value, err)
		}
		c.ExternalCrystal = on

	// Calibration
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "CALIBRATION_POLICY":
		p, err := calibration.ParsePolicy(value)
		if err != nil {
			return err
		}
		c.CalibrationPolicy = p
	case "CALIBRATION_POLL_INTERVAL":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.CalibrationPollInterval = d

	// Timing
	case "SAMPLE_INTERVAL":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.SampleInterval = d

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SAMPLE":
		c.TopicSample = value
	case "TOPIC_POSE":
		c.TopicPose = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// NMEA
	case "NMEA_SERIAL_PORT":
		c.NMEASerialPort = value
	case "NMEA_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid NMEA_BAUD_RATE %q: %w", value, err)
		}
		c.NMEABaudRate = uint(rate)

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		d, err := parseMillis(key, value)
		if err != nil {
			return err
		}
		c.DisplayUpdateInterval = d

	case "LOG_LEVEL":
		if _, err := logging.ParseLevel(value); err != nil {
			return err
		}
		c.LogLevel = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// parseMillis reads a positive interval given in milliseconds.
func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if ms <= 0 {
		return 0, fmt.Errorf("%s must be positive milliseconds, got %d", key, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	switch c.BusType {
	case BusI2C:
	case BusUART:
		if c.UARTPort == "" {
			return fmt.Errorf("UART_PORT is required when BUS_TYPE=uart")
		}
	default:
		return fmt.Errorf("BUS_TYPE must be %q or %q, got %q", BusI2C, BusUART, c.BusType)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.CalibrationFile == "" {
		return fmt.Errorf("CALIBRATION_FILE is required")
	}
	if c.OperatingMode == bno055.ModeConfig {
		return fmt.Errorf("OPERATING_MODE must not be CONFIG")
	}
	// The ssd1306 driver always talks to 0x3C.
	if c.DisplayI2CAddr != 0x3C {
		return fmt.Errorf("DISPLAY_I2C_ADDR must be 0x3C, got 0x%02X", c.DisplayI2CAddr)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return the first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
