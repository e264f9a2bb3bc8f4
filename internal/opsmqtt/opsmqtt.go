// Package opsmqtt publishes ensemble lifecycle telemetry to an MQTT
// broker for operations tooling: a retained status message per
// ensemble terminal outcome, plus availability tracking for the
// broker process itself. It is a supplemental, best-effort sink —
// the reducer's in-memory state.State remains authoritative.
//
// The bridge uses Eclipse Paho v2's autopaho package for connection
// management with automatic reconnection. A will message on the
// availability topic ensures it transitions to "offline" on
// unexpected disconnects; a birth message republishes "online" on
// every (re-)connect.
package opsmqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/equinor/faster-ee/internal/snapshot"
)

// Config configures the bridge's broker connection and topic
// namespace. BrokerURL is required; the rest have usable defaults.
type Config struct {
	BrokerURL string
	ClientID  string
	// TopicPrefix namespaces every topic this bridge publishes to,
	// e.g. "faster-ee" yields "faster-ee/availability" and
	// "faster-ee/ensembles/<id>/outcome".
	TopicPrefix string
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = "faster-ee"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "faster-ee"
	}
	return c
}

// Bridge maintains the MQTT connection and publishes ensemble
// outcome telemetry. It implements reduce.TerminalObserver.
type Bridge struct {
	cfg    Config
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Bridge but does not connect. Call [Bridge.Start] to
// begin the connection. A nil logger is replaced with [slog.Default].
func New(cfg Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{cfg: cfg.withDefaults(), logger: logger}
}

// Start connects to the MQTT broker and blocks only long enough to
// wait for the initial connection (or its timeout); autopaho keeps
// reconnecting in the background afterward. ctx governs the
// connection's whole lifetime, including reconnects.
func (b *Bridge) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(b.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("opsmqtt: parse broker url: %w", err)
	}

	availTopic := b.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{brokerURL},
		KeepAlive:  30,
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.Info("opsmqtt connected to broker", "broker", b.cfg.BrokerURL)
			publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			b.publishAvailability(publishCtx, cm, "online")
		},
		OnConnectError: func(err error) {
			b.logger.Warn("opsmqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: b.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("opsmqtt: connect: %w", err)
	}
	b.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		b.logger.Warn("opsmqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes an "offline" availability message and disconnects.
func (b *Bridge) Stop(ctx context.Context) error {
	if b.cm == nil {
		return nil
	}
	b.publishAvailability(ctx, b.cm, "offline")
	return b.cm.Disconnect(ctx)
}

// ObserveTerminal implements reduce.TerminalObserver. Publishing
// failures are logged, never propagated: a broken bridge must not
// affect the reducer's own control flow.
func (b *Bridge) ObserveTerminal(ensembleID string, final snapshot.EnsembleState, main *snapshot.EnsembleSnapshot) {
	if b.cm == nil {
		return
	}

	payload, err := json.Marshal(outcomePayload(ensembleID, final, main))
	if err != nil {
		b.logger.Error("opsmqtt marshal outcome payload", "ensemble_id", ensembleID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.cm.Publish(ctx, &paho.Publish{
		Topic:   b.outcomeTopic(ensembleID),
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		b.logger.Warn("opsmqtt outcome publish failed", "ensemble_id", ensembleID, "error", err)
	}
}

// outcomeMessage is the JSON payload published to an ensemble's
// outcome topic.
type outcomeMessage struct {
	EnsembleID       string     `json:"ensemble_id"`
	FinalState       string     `json:"final_state"`
	RealizationCount int        `json:"realization_count"`
	FailedCount      int        `json:"failed_count"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          time.Time  `json:"ended_at"`
}

func outcomePayload(ensembleID string, final snapshot.EnsembleState, main *snapshot.EnsembleSnapshot) outcomeMessage {
	started, ended := runSpan(main)
	failed, total := realizationCounts(main)
	return outcomeMessage{
		EnsembleID:       ensembleID,
		FinalState:       string(final),
		RealizationCount: total,
		FailedCount:      failed,
		StartedAt:        started,
		EndedAt:          ended,
	}
}

func runSpan(main *snapshot.EnsembleSnapshot) (started *time.Time, ended time.Time) {
	for _, real := range main.Realizations {
		if real.StartTime != nil && (started == nil || real.StartTime.Before(*started)) {
			started = real.StartTime
		}
		if real.EndTime != nil && real.EndTime.After(ended) {
			ended = *real.EndTime
		}
	}
	if ended.IsZero() {
		ended = time.Now()
	}
	return started, ended
}

func realizationCounts(main *snapshot.EnsembleSnapshot) (failed, total int) {
	total = len(main.Realizations)
	for _, real := range main.Realizations {
		if real.Status != nil && *real.Status == snapshot.RealFailed {
			failed++
		}
	}
	return failed, total
}

// --- Topic helpers ---

func (b *Bridge) availabilityTopic() string {
	return b.cfg.TopicPrefix + "/availability"
}

func (b *Bridge) outcomeTopic(ensembleID string) string {
	return b.cfg.TopicPrefix + "/ensembles/" + ensembleID + "/outcome"
}

func (b *Bridge) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   b.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		b.logger.Warn("opsmqtt availability publish failed", "status", status, "error", err)
	} else {
		b.logger.Info("opsmqtt availability published", "status", status)
	}
}
