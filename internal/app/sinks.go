// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

// mqttPublishTimeout bounds how long a sink waits for the broker.
const mqttPublishTimeout = 2 * time.Second

// Sink receives every steady-state sample.
type Sink interface {
	Publish(s imu.Sample) error
}

// ConsoleSink prints the status lines for each sample.
type ConsoleSink struct {
	W io.Writer
}

// Publish implements Sink.
func (c ConsoleSink) Publish(s imu.Sample) error {
	_, err := fmt.Fprintf(c.W, "%s\n%s\n", s.StatusLine(), s.Calibration)
	return err
}

// Publisher is the part of an MQTT client the sinks use.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes the full sample and the derived pose as JSON.
type MQTTSink struct {
	Client      Publisher
	SampleTopic string
	PoseTopic   string
}

// Publish implements Sink.
func (m MQTTSink) Publish(s imu.Sample) error {
	if m.SampleTopic != "" {
		if err := publishJSON(m.Client, m.SampleTopic, s); err != nil {
			return err
		}
	}
	if m.PoseTopic != "" {
		if err := publishJSON(m.Client, m.PoseTopic, orientation.PoseFrom(s.Euler, s.Quaternion)); err != nil {
			return err
		}
	}
	return nil
}

func publishJSON(c Publisher, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal (%s): %w", topic, err)
	}
	token := c.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("MQTT publish (%s): timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish (%s): %w", topic, err)
	}
	return nil
}

// nmeaTalker identifies a north seeking heading source.
const nmeaTalker = "HE"

// HDTSentence formats heading as an NMEA 0183 HDT sentence without the
// trailing CRLF.
func HDTSentence(heading float64) string {
	body := nmeaTalker + nmea.TypeHDT + "," + strconv.FormatFloat(heading, 'f', 1, 64) + ",T"
	return "$" + body + "*" + nmea.Checksum(body)
}

// NMEASink writes the fused heading as HDT sentences, for chart plotters
// and autopilots.
type NMEASink struct {
	W io.Writer
}

// Publish implements Sink.
func (n NMEASink) Publish(s imu.Sample) error {
	if _, err := io.WriteString(n.W, HDTSentence(s.Euler.Heading)+"\r\n"); err != nil {
		return fmt.Errorf("NMEA write: %w", err)
	}
	return nil
}
