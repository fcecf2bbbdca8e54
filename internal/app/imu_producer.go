package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/sensors"
)

// Device is everything the producer needs from the BNO055.
type Device interface {
	sensors.SampleReader
	calibration.Device
	EnableExternalCrystal(ctx context.Context, on bool) error
}

// Producer runs the node lifecycle: restore calibration, wait until the
// fusion engine is calibrated, persist the offsets and stream samples.
type Producer struct {
	Dev         Device
	Calibration *calibration.Manager
	Store       *calibration.Store
	Sinks       []Sink

	SampleInterval          time.Duration
	CalibrationPollInterval time.Duration
	ExternalCrystal         bool

	// Console receives the calibration progress lines; nil discards them.
	Console io.Writer
	// OnCalibrationStatus, if set, sees every status polled while waiting.
	OnCalibrationStatus func(calibration.Status)

	Logger *zap.SugaredLogger
}

// Run calibrates and then streams until ctx is done.
func (p *Producer) Run(ctx context.Context) error {
	if _, err := p.Calibrate(ctx); err != nil {
		return err
	}
	return p.Stream(ctx)
}

// Calibrate applies the stored record if there is one, waits for the
// calibration policy to be met and stores the resulting offsets. A failure
// to save is logged; the chip keeps the offsets either way.
func (p *Producer) Calibrate(ctx context.Context) (bno055.Offsets, error) {
	if stored, ok := p.Store.Load(); ok {
		p.Logger.Infof("BNO055: restoring calibration from %s", p.Store.Path)
		p.printf("%s\n", stored)
		if err := p.Calibration.Apply(ctx, stored); err != nil {
			return bno055.Offsets{}, err
		}
	}

	p.Logger.Infof("BNO055: waiting for calibration (policy %s)", p.Calibration.Policy())
	status, err := p.Calibration.WaitCalibrated(ctx, p.CalibrationPollInterval, func(s calibration.Status) {
		p.printf("%s\n", s)
		if p.OnCalibrationStatus != nil {
			p.OnCalibrationStatus(s)
		}
	})
	if err != nil {
		return bno055.Offsets{}, fmt.Errorf("BNO055: calibration: %w", err)
	}
	p.Logger.Infof("BNO055: calibrated (%s)", status)

	offsets, err := p.Calibration.Export(ctx)
	if err != nil {
		return bno055.Offsets{}, err
	}
	p.printf("%s\n", offsets)

	if err := p.Calibration.Apply(ctx, offsets); err != nil {
		return bno055.Offsets{}, err
	}
	if err := p.Store.Save(offsets); err != nil {
		p.Logger.Warnf("BNO055: %v", err)
	}

	if p.ExternalCrystal {
		if err := p.Dev.EnableExternalCrystal(ctx, true); err != nil {
			return offsets, fmt.Errorf("BNO055: external crystal: %w", err)
		}
		p.Logger.Infof("BNO055: external crystal enabled")
	}
	return offsets, nil
}

// Stream reads a sample every SampleInterval and hands it to every sink.
// Read and sink errors are logged and the loop continues.
func (p *Producer) Stream(ctx context.Context) error {
	ticker := time.NewTicker(p.SampleInterval)
	defer ticker.Stop()

	src := sensors.NewSampleSource(p.Dev)
	p.Logger.Infof("BNO055: streaming every %s", p.SampleInterval)
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}

		s, err := src.NextSample()
		if err != nil {
			p.Logger.Warnf("%v", err)
			continue
		}
		for _, sink := range p.Sinks {
			if err := sink.Publish(s); err != nil {
				p.Logger.Warnf("%v", err)
			}
		}
	}
}

func (p *Producer) printf(format string, args ...interface{}) {
	if p.Console != nil {
		fmt.Fprintf(p.Console, format, args...)
	}
}

// RunBNO055Producer wires the configured hardware, MQTT and NMEA outputs
// into a Producer and runs it until ctx is done.
func RunBNO055Producer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (err error) {
	logger.Infof("starting BNO055 producer (%s bus, %s mode)", cfg.BusType, cfg.OperatingMode)

	dev, err := sensors.OpenIMU(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dev.Close()) }()
	logger.Infof("BNO055: ready on %s", dev)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	sinks := []Sink{
		ConsoleSink{W: os.Stdout},
		MQTTSink{Client: client, SampleTopic: cfg.TopicSample, PoseTopic: cfg.TopicPose},
	}

	if cfg.NMEASerialPort != "" {
		port, err := serial.Open(serial.OpenOptions{
			PortName:        cfg.NMEASerialPort,
			BaudRate:        cfg.NMEABaudRate,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      serial.PARITY_NONE,
		})
		if err != nil {
			return fmt.Errorf("NMEA serial port %s: %w", cfg.NMEASerialPort, err)
		}
		defer port.Close()
		logger.Infof("NMEA heading output on %s at %d baud", cfg.NMEASerialPort, cfg.NMEABaudRate)
		sinks = append(sinks, NMEASink{W: port})
	}

	p := &Producer{
		Dev:                     dev,
		Calibration:             calibration.NewManager(dev, cfg.CalibrationPolicy, logger),
		Store:                   calibration.NewStore(cfg.CalibrationFile, logger),
		Sinks:                   sinks,
		SampleInterval:          cfg.SampleInterval,
		CalibrationPollInterval: cfg.CalibrationPollInterval,
		ExternalCrystal:         cfg.ExternalCrystal,
		Console:                 os.Stdout,
		OnCalibrationStatus: func(s calibration.Status) {
			if err := publishJSON(client, cfg.TopicCalibration, s); err != nil {
				logger.Warnf("%v", err)
			}
		},
		Logger: logger,
	}
	return p.Run(ctx)
}
