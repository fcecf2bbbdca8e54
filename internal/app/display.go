package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/bno055_node/internal/bus"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// Screen is the part of an SSD1306 the display loop draws on.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// displayData holds the latest sample for the display.
type displayData struct {
	mu     sync.RWMutex
	sample imu.Sample
	have   bool
}

func (d *displayData) set(s imu.Sample) {
	d.mu.Lock()
	d.sample, d.have = s, true
	d.mu.Unlock()
}

func (d *displayData) get() (imu.Sample, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sample, d.have
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLines(drawer *font.Drawer, x int, lines ...string) {
	for i, line := range lines {
		drawer.Dot = fixed.P(x, 13*(i+1))
		drawer.DrawString(line)
	}
}

// renderSample draws heading, yaw, roll, pitch and the calibration levels.
func renderSample(s imu.Sample, have bool) *image1bit.VerticalLSB {
	img, drawer := newFrame()
	if !have {
		drawLines(drawer, 0, "", "BNO055", "Waiting...")
		return img
	}
	pose := orientation.PoseFrom(s.Euler, s.Quaternion)
	c := s.Calibration
	drawLines(drawer, 0,
		fmt.Sprintf("H: %6.1f Y:%6.1f", pose.Heading, pose.Yaw),
		fmt.Sprintf("R: %6.1f", pose.Roll),
		fmt.Sprintf("P: %6.1f", pose.Pitch),
		fmt.Sprintf("T: %dC", s.Temperature),
		fmt.Sprintf("C: S%d G%d A%d M%d", c.System, c.Gyro, c.Accel, c.Mag),
	)
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()
	drawer.Dot = fixed.P(25, 26)
	drawer.DrawString("BNO055 node")
	drawer.Dot = fixed.P(15, 43)
	drawer.DrawString("Calibrating...")
	return img
}

func show(scr Screen, img image.Image) error {
	return scr.Draw(scr.Bounds(), img, image.Point{})
}

// runDisplayLoop redraws scr every interval until ctx is done.
func runDisplayLoop(ctx context.Context, scr Screen, data *displayData, interval time.Duration, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s, have := data.get()
		if err := show(scr, renderSample(s, have)); err != nil {
			logger.Warnf("display: error updating display: %v", err)
		}
	}
}

// RunDisplay shows the latest sample published by the producer on an
// SSD1306 OLED until ctx is done.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (err error) {
	b, err := bus.OpenI2C(cfg.I2CBus, 0)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, b.Close()) }()

	dev, err := ssd1306.NewI2C(b.Bus(), &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer func() { err = multierr.Append(err, dev.Halt()) }()
	logger.Infof("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := show(dev, renderSplash()); err != nil {
		logger.Warnf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicSample, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			logger.Warnf("display: sample unmarshal error: %v", err)
			return
		}
		data.set(s)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", cfg.TopicSample, token.Error())
	}
	logger.Infof("display: subscribed to %s", cfg.TopicSample)

	runDisplayLoop(ctx, dev, data, cfg.DisplayUpdateInterval, logger)
	return nil
}
