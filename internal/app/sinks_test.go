package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: f.err}
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func TestConsoleSink(t *testing.T) {
	var out bytes.Buffer
	err := ConsoleSink{W: &out}.Publish(imu.Sample{
		Euler:        bno055.Euler{Heading: 12.5},
		Yaw:          -12.5,
		SelfTest:     15,
		SystemStatus: 5,
		Calibration:  calibration.Status{Mag: 3, System: 1},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual,
		" 12.50 -12.50 result=15 err=0 status=5\nmag_status=3 accel_status=0 gyro_status=0 sys_status=1\n")
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := MQTTSink{Client: pub, SampleTopic: "bno055/sample", PoseTopic: "bno055/pose"}
	s := imu.Sample{Euler: bno055.Euler{Heading: 90, Roll: 1, Pitch: 2}, Quaternion: bno055.Quaternion{W: 1}}
	test.That(t, sink.Publish(s), test.ShouldBeNil)

	msgs := pub.snapshot()
	test.That(t, msgs, test.ShouldHaveLength, 2)
	test.That(t, msgs[0].topic, test.ShouldEqual, "bno055/sample")
	test.That(t, msgs[1].topic, test.ShouldEqual, "bno055/pose")
	test.That(t, msgs[1].retained, test.ShouldBeTrue)

	var pose orientation.Pose
	test.That(t, json.Unmarshal(msgs[1].payload, &pose), test.ShouldBeNil)
	test.That(t, pose, test.ShouldResemble, orientation.Pose{Roll: 1, Pitch: 2, Yaw: 0, Heading: 90})

	pub.err = errors.New("not connected")
	err := sink.Publish(s)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bno055/sample")
}

func TestHDTSentence(t *testing.T) {
	test.That(t, HDTSentence(123.44), test.ShouldEqual, "$HEHDT,123.4,T*2B")
	test.That(t, HDTSentence(0), test.ShouldEqual, "$HEHDT,0.0,T*2F")

	parsed, err := nmea.Parse(HDTSentence(271.25))
	test.That(t, err, test.ShouldBeNil)
	hdt, ok := parsed.(nmea.HDT)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, hdt.Heading, test.ShouldAlmostEqual, 271.2)
	test.That(t, hdt.True, test.ShouldBeTrue)

	var out bytes.Buffer
	test.That(t, NMEASink{W: &out}.Publish(imu.Sample{Euler: bno055.Euler{Heading: 123.4}}), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, "$HEHDT,123.4,T*2B\r\n")
}

func TestPublishPoses(t *testing.T) {
	pub := &fakePublisher{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := publishPoses(ctx, pub, "bno055/pose", orientation.NewMockSource(), time.Millisecond, zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	msgs := pub.snapshot()
	test.That(t, len(msgs), test.ShouldBeGreaterThan, 0)
	test.That(t, msgs[0].topic, test.ShouldEqual, "bno055/pose")
}
