package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

func formatPose(p orientation.Pose) string {
	return fmt.Sprintf("[POSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f  HDG=%6.2f",
		p.Roll, p.Pitch, p.Yaw, p.Heading)
}

func formatSample(s imu.Sample) string {
	return fmt.Sprintf(
		"[IMU]   ax=%7.2f ay=%7.2f az=%7.2f  gx=%6.2f gy=%6.2f gz=%6.2f  mx=%7.2f my=%7.2f mz=%7.2f  T=%dC\n[IMU]   %s",
		s.Accel.X, s.Accel.Y, s.Accel.Z,
		s.Gyro.X, s.Gyro.Y, s.Gyro.Z,
		s.Mag.X, s.Mag.Y, s.Mag.Z,
		s.Temperature, s.StatusLine(),
	)
}

func formatCalibration(c calibration.Status) string {
	return "[CAL]   " + c.String()
}

// consoleLine turns one MQTT message into a console line. ok is false for
// unknown topics and undecodable payloads.
func consoleLine(cfg *config.Config, topic string, payload []byte) (string, bool, error) {
	switch topic {
	case cfg.TopicPose:
		var p orientation.Pose
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", false, fmt.Errorf("pose unmarshal error: %w", err)
		}
		return formatPose(p), true, nil
	case cfg.TopicSample:
		var s imu.Sample
		if err := json.Unmarshal(payload, &s); err != nil {
			return "", false, fmt.Errorf("sample unmarshal error: %w", err)
		}
		return formatSample(s), true, nil
	case cfg.TopicCalibration:
		var c calibration.Status
		if err := json.Unmarshal(payload, &c); err != nil {
			return "", false, fmt.Errorf("calibration unmarshal error: %w", err)
		}
		return formatCalibration(c), true, nil
	}
	return "", false, nil
}

// RunConsoleMQTT prints everything the producer publishes until ctx is
// done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, w io.Writer, logger *zap.SugaredLogger) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	lines := make(chan string, 64)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		line, ok, err := consoleLine(cfg, msg.Topic(), msg.Payload())
		if err != nil {
			logger.Warnf("console: %v", err)
			return
		}
		if !ok {
			return
		}
		select {
		case lines <- line:
		default:
			logger.Debugf("console: output behind, dropping %s message", msg.Topic())
		}
	}

	for _, topic := range []string{cfg.TopicPose, cfg.TopicSample, cfg.TopicCalibration} {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
		}
		logger.Infof("console: subscribed to %s", topic)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Infof("console: shutting down")
			return nil
		case line := <-lines:
			fmt.Fprintln(w, line)
		}
	}
}
