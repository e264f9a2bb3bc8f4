package opsmqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/equinor/faster-ee/internal/snapshot"
)

func TestTopicPaths(t *testing.T) {
	b := New(Config{BrokerURL: "mqtt://localhost:1883", TopicPrefix: "faster-ee-test"}, nil)

	if got, want := b.availabilityTopic(), "faster-ee-test/availability"; got != want {
		t.Errorf("availabilityTopic() = %q, want %q", got, want)
	}
	if got, want := b.outcomeTopic("ens-1"), "faster-ee-test/ensembles/ens-1/outcome"; got != want {
		t.Errorf("outcomeTopic() = %q, want %q", got, want)
	}
}

func TestConfigDefaults(t *testing.T) {
	b := New(Config{BrokerURL: "mqtt://localhost:1883"}, nil)
	if b.cfg.ClientID == "" {
		t.Error("ClientID default was not applied")
	}
	if b.cfg.TopicPrefix == "" {
		t.Error("TopicPrefix default was not applied")
	}
}

func TestOutcomePayloadCountsRealizations(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	end := time.Now()
	failedStatus := snapshot.RealFailed
	finishedStatus := snapshot.RealFinished

	main := snapshot.New()
	main.Realizations["0"] = &snapshot.RealizationSnapshot{Status: &failedStatus, StartTime: &start, EndTime: &end}
	main.Realizations["1"] = &snapshot.RealizationSnapshot{Status: &finishedStatus, StartTime: &start, EndTime: &end}

	msg := outcomePayload("ens-1", snapshot.EnsembleFailed, main)

	if msg.EnsembleID != "ens-1" {
		t.Errorf("EnsembleID = %q, want ens-1", msg.EnsembleID)
	}
	if msg.FinalState != "Failed" {
		t.Errorf("FinalState = %q, want Failed", msg.FinalState)
	}
	if msg.RealizationCount != 2 {
		t.Errorf("RealizationCount = %d, want 2", msg.RealizationCount)
	}
	if msg.FailedCount != 1 {
		t.Errorf("FailedCount = %d, want 1", msg.FailedCount)
	}
	if msg.StartedAt == nil || !msg.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", msg.StartedAt, start)
	}
}

func TestOutcomePayloadMarshalsJSON(t *testing.T) {
	msg := outcomePayload("ens-2", snapshot.EnsembleSucceeded, snapshot.New())

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded["ensemble_id"] != "ens-2" {
		t.Errorf("ensemble_id = %v, want ens-2", decoded["ensemble_id"])
	}
	if _, ok := decoded["started_at"]; ok {
		t.Error("started_at should be omitted when no realizations have a start time")
	}
}

func TestObserveTerminalIsNoOpBeforeStart(t *testing.T) {
	b := New(Config{BrokerURL: "mqtt://localhost:1883"}, nil)
	// cm is nil until Start() succeeds; ObserveTerminal must not panic.
	b.ObserveTerminal("ens-1", snapshot.EnsembleFailed, snapshot.New())
}
