// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

// RunMockConsole prints a synthetic pose every interval until ctx is done.
// It exercises the console path without hardware.
func RunMockConsole(ctx context.Context, w io.Writer, interval time.Duration) error {
	return runPoseConsole(ctx, w, orientation.NewMockSource(), interval)
}

func runPoseConsole(ctx context.Context, w io.Writer, src orientation.Source, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		pose, err := src.Next()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, formatPose(pose))
	}
}

// RunMockProducer publishes synthetic poses to the pose topic so the
// subscribers can be exercised without a sensor.
func RunMockProducer(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer + "-mock")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	return publishPoses(ctx, client, cfg.TopicPose, orientation.NewMockSource(), cfg.SampleInterval, logger)
}

func publishPoses(ctx context.Context, client Publisher, topic string, src orientation.Source, interval time.Duration, logger *zap.SugaredLogger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		pose, err := src.Next()
		if err != nil {
			logger.Warnf("error from mock source: %v", err)
			continue
		}
		if err := publishJSON(client, topic, pose); err != nil {
			logger.Warnf("%v", err)
			continue
		}
		logger.Debugf("published pose: %+v", pose)
	}
}
