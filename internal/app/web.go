package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

// Relay keeps the latest MQTT messages from the producer and serves them
// over HTTP and a websocket stream of samples.
type Relay struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	hub    *Hub

	mu          sync.RWMutex
	pose        orientation.Pose
	havePose    bool
	sample      imu.Sample
	haveSample  bool
	calibration calibration.Status
	haveCal     bool
}

// NewRelay returns a relay for the configured topics.
func NewRelay(cfg *config.Config, logger *zap.SugaredLogger) *Relay {
	return &Relay{cfg: cfg, logger: logger, hub: NewHub(logger)}
}

// HandleMessage updates the relay state from one MQTT message.
func (r *Relay) HandleMessage(topic string, payload []byte) {
	switch topic {
	case r.cfg.TopicPose:
		var p orientation.Pose
		if err := json.Unmarshal(payload, &p); err != nil {
			r.logger.Warnf("web: pose unmarshal error: %v", err)
			return
		}
		r.mu.Lock()
		r.pose, r.havePose = p, true
		r.mu.Unlock()
	case r.cfg.TopicSample:
		var s imu.Sample
		if err := json.Unmarshal(payload, &s); err != nil {
			r.logger.Warnf("web: sample unmarshal error: %v", err)
			return
		}
		r.mu.Lock()
		r.sample, r.haveSample = s, true
		r.calibration, r.haveCal = s.Calibration, true
		r.mu.Unlock()
		r.hub.Broadcast(payload)
	case r.cfg.TopicCalibration:
		var c calibration.Status
		if err := json.Unmarshal(payload, &c); err != nil {
			r.logger.Warnf("web: calibration unmarshal error: %v", err)
			return
		}
		r.mu.Lock()
		r.calibration, r.haveCal = c, true
		r.mu.Unlock()
	}
}

// Handler returns the HTTP routes. Static files are served from staticDir
// when it is not empty.
func (r *Relay) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orientation", func(w http.ResponseWriter, _ *http.Request) {
		r.mu.RLock()
		p, ok := r.pose, r.havePose
		r.mu.RUnlock()
		r.writeJSON(w, p, ok)
	})
	mux.HandleFunc("/api/sample", func(w http.ResponseWriter, _ *http.Request) {
		r.mu.RLock()
		s, ok := r.sample, r.haveSample
		r.mu.RUnlock()
		r.writeJSON(w, s, ok)
	})
	mux.HandleFunc("/api/calibration", func(w http.ResponseWriter, _ *http.Request) {
		r.mu.RLock()
		c, ok := r.calibration, r.haveCal
		r.mu.RUnlock()
		r.writeJSON(w, c, ok)
	})
	mux.Handle("/ws", r.hub)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (r *Relay) writeJSON(w http.ResponseWriter, v interface{}, ok bool) {
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Warnf("web: json encode error: %v", err)
	}
}

// RunWeb subscribes to the producer topics and serves them until ctx is
// done.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	relay := NewRelay(cfg, logger)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	for _, topic := range []string{cfg.TopicPose, cfg.TopicSample, cfg.TopicCalibration} {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			relay.HandleMessage(msg.Topic(), msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
		}
		logger.Infof("subscribed to MQTT topic %s", topic)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           relay.Handler("web"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return serveUntilDone(ctx, srv, logger)
}

// serveUntilDone runs srv and shuts it down when ctx ends.
func serveUntilDone(ctx context.Context, srv *http.Server, logger *zap.SugaredLogger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("web server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
