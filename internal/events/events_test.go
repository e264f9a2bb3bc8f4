package events

import (
	"testing"
)

func TestDecodeFMStepStart(t *testing.T) {
	payload := []byte(`{"event_type":"forward_model_step.start","time":"2026-01-01T00:00:00Z","fm_step":"0","real":"1","std_out":"out.txt"}`)
	ev, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fm, ok := ev.(FMStepEvent)
	if !ok {
		t.Fatalf("got %T, want FMStepEvent", ev)
	}
	if fm.FMStep != "0" || fm.Real != "1" {
		t.Errorf("fm_step/real = %q/%q, want 0/1", fm.FMStep, fm.Real)
	}
	if fm.Stdout == nil || *fm.Stdout != "out.txt" {
		t.Errorf("Stdout = %v, want out.txt", fm.Stdout)
	}
	if fm.DerivedStatus() != "Pending" {
		t.Errorf("DerivedStatus() = %q, want Pending", fm.DerivedStatus())
	}
}

func TestDecodeFMStepFailureErrorFallback(t *testing.T) {
	payload := []byte(`{"event_type":"forward_model_step.failure","time":"2026-01-01T00:00:00Z","fm_step":"0","real":"1","error_msg":"boom"}`)
	ev, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	fm := ev.(FMStepEvent)
	if fm.Error == nil || *fm.Error != "boom" {
		t.Errorf("Error = %v, want boom (from error_msg fallback)", fm.Error)
	}
}

func TestDecodeEnsembleStarted(t *testing.T) {
	payload := []byte(`{"event_type":"ensemble.started","ensemble":"ens-1","time":"2026-01-01T00:00:00Z"}`)
	ev, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	e := ev.(EnsembleEvent)
	if e.EnsembleID != "ens-1" {
		t.Errorf("EnsembleID = %q, want ens-1", e.EnsembleID)
	}
	if e.DerivedState() != "Started" {
		t.Errorf("DerivedState() = %q, want Started", e.DerivedState())
	}
}

func TestDecodeRealizationTimeout(t *testing.T) {
	payload := []byte(`{"event_type":"realization.timeout","real":"2","time":"2026-01-01T00:00:00Z"}`)
	ev, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	r := ev.(RealizationEvent)
	if r.DerivedStatus() != "Timeout" {
		t.Errorf("DerivedStatus() = %q, want Timeout", r.DerivedStatus())
	}
}

func TestDecodeSnapshotUpdate(t *testing.T) {
	payload := []byte(`{"event_type":"ee.snapshot_update","ensemble":"ens-1","snapshot":{"status":"Started","reals":{"0":{"status":"Running"}}}}`)
	ev, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d := ev.(SnapshotDeltaEvent)
	if d.Ensemble != "ens-1" {
		t.Errorf("Ensemble = %q, want ens-1", d.Ensemble)
	}
	if d.Snapshot.Status == nil || *d.Snapshot.Status != "Started" {
		t.Errorf("Snapshot.Status = %v, want Started", d.Snapshot.Status)
	}
}

func TestDecodeUserDone(t *testing.T) {
	payload := []byte(`{"event_type":"ee.user_done"}`)
	ev, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := ev.(UserDone); !ok {
		t.Fatalf("got %T, want UserDone", ev)
	}
}

func TestDecodeUnknownEventType(t *testing.T) {
	payload := []byte(`{"event_type":"bogus.thing"}`)
	if _, err := Decode(payload); err == nil {
		t.Fatal("expected error for unknown event_type")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
