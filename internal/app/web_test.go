package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	test.That(t, err, test.ShouldBeNil)
	return b
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	if resp.StatusCode == http.StatusOK {
		test.That(t, json.Unmarshal(body, v), test.ShouldBeNil)
	}
	return resp.StatusCode
}

func TestRelayServesLatestMessages(t *testing.T) {
	cfg := config.Default()
	relay := NewRelay(cfg, zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(relay.Handler(""))
	defer srv.Close()

	var pose orientation.Pose
	test.That(t, getJSON(t, srv.URL+"/api/orientation", &pose), test.ShouldEqual, http.StatusServiceUnavailable)

	relay.HandleMessage(cfg.TopicPose, mustJSON(t, orientation.Pose{Roll: 1, Pitch: 2, Yaw: 3, Heading: 4}))
	relay.HandleMessage(cfg.TopicSample, mustJSON(t, imu.Sample{
		Euler:       bno055.Euler{Heading: 12.5},
		Calibration: calibration.Status{System: 3, Gyro: 3},
	}))
	relay.HandleMessage("some/other/topic", []byte("ignored"))
	relay.HandleMessage(cfg.TopicPose, []byte("{not json"))

	test.That(t, getJSON(t, srv.URL+"/api/orientation", &pose), test.ShouldEqual, http.StatusOK)
	test.That(t, pose, test.ShouldResemble, orientation.Pose{Roll: 1, Pitch: 2, Yaw: 3, Heading: 4})

	var s imu.Sample
	test.That(t, getJSON(t, srv.URL+"/api/sample", &s), test.ShouldEqual, http.StatusOK)
	test.That(t, s.Euler.Heading, test.ShouldEqual, 12.5)

	var c calibration.Status
	test.That(t, getJSON(t, srv.URL+"/api/calibration", &c), test.ShouldEqual, http.StatusOK)
	test.That(t, c, test.ShouldResemble, calibration.Status{System: 3, Gyro: 3})

	relay.HandleMessage(cfg.TopicCalibration, mustJSON(t, calibration.Status{Mag: 1}))
	test.That(t, getJSON(t, srv.URL+"/api/calibration", &c), test.ShouldEqual, http.StatusOK)
	test.That(t, c, test.ShouldResemble, calibration.Status{Mag: 1})
}

func TestRelayStreamsSamplesOverWebsocket(t *testing.T) {
	cfg := config.Default()
	relay := NewRelay(cfg, zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(relay.Handler(""))
	defer srv.Close()

	first := mustJSON(t, imu.Sample{Yaw: 10})
	relay.HandleMessage(cfg.TopicSample, first)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// the last sample is replayed on connect
	_, msg, err := conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(msg), test.ShouldEqual, string(first))

	second := mustJSON(t, imu.Sample{Yaw: 20})
	relay.HandleMessage(cfg.TopicSample, second)
	_, msg, err = conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(msg), test.ShouldEqual, string(second))
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	test.That(t, err, test.ShouldBeNil)

	deadline := time.Now().Add(5 * time.Second)
	for hub.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	test.That(t, hub.Clients(), test.ShouldEqual, 1)

	conn.Close()
	for hub.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	test.That(t, hub.Clients(), test.ShouldEqual, 0)
}
