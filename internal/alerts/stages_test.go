// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/audit"
	"github.com/tomtom215/iotpipeline/internal/devicecmd"
	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

var now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return now }

type fakeSender struct {
	mu      sync.Mutex
	sent    []devicecmd.Command
	outcome devicecmd.Outcome
	err     error
}

func (f *fakeSender) Send(ctx context.Context, cmd devicecmd.Command) (devicecmd.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	if f.err != nil {
		return devicecmd.Failed, f.err
	}
	return f.outcome, ctx.Err()
}

func (f *fakeSender) Sent() []devicecmd.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]devicecmd.Command(nil), f.sent...)
}

func newAlert(t *testing.T, sev domain.Severity) domain.Alert {
	t.Helper()
	a, err := domain.NewAlert(uuid.Nil, "dev-1", sev, "Temperature above threshold",
		domain.TimestampAt(now.Add(-time.Minute)), map[string]any{"zone": "A"}, now)
	if err != nil {
		t.Fatalf("NewAlert: %v", err)
	}
	return a
}

func newDispatcher(t *testing.T, store audit.Store, sender devicecmd.Sender) pipeline.Dispatcher {
	t.Helper()
	stages, err := NewStages(store, sender, fixedClock)
	if err != nil {
		t.Fatal(err)
	}
	reg := pipeline.NewRegistry()
	if err := stages.Register(reg); err != nil {
		t.Fatal(err)
	}
	return pipeline.NewOrchestrator(reg, pipeline.OrchestratorConfig{})
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity domain.Severity
		ack      bool
		want     bool
	}{
		{domain.SeverityInfo, false, false},
		{domain.SeverityWarning, false, false},
		{domain.SeverityError, false, true},
		{domain.SeverityCritical, false, true},
		{domain.SeverityCritical, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			t.Parallel()
			a := newAlert(t, tt.severity)
			if tt.ack {
				var err error
				if a, err = a.Acknowledge("ops", "", now); err != nil {
					t.Fatal(err)
				}
			}
			cmd := Evaluate(a)
			if (cmd != nil) != tt.want {
				t.Fatalf("Evaluate = %v, want command %v", cmd, tt.want)
			}
		})
	}
}

func TestEvaluate_Payload(t *testing.T) {
	t.Parallel()
	a := newAlert(t, domain.SeverityCritical)
	a, _ = a.WithMetadata("severity", "shadowed")

	cmd := Evaluate(a)
	if cmd == nil {
		t.Fatal("no command")
	}
	if cmd.DeviceID != "dev-1" || cmd.CommandName != "HandleAlert" || cmd.AlertID != a.ID {
		t.Errorf("command = %+v", cmd)
	}
	want := map[string]any{
		"alertId":   a.ID.String(),
		"severity":  "Critical",
		"message":   "Temperature above threshold",
		"timestamp": "2026-03-14T09:29:00Z",
		"zone":      "A",
	}
	if len(cmd.Payload) != len(want) {
		t.Fatalf("payload = %v", cmd.Payload)
	}
	for k, v := range want {
		if cmd.Payload[k] != v {
			t.Errorf("payload[%s] = %v, want %v", k, cmd.Payload[k], v)
		}
	}

	cmd.Payload["zone"] = "B"
	if a.Metadata["zone"] != "A" {
		t.Error("payload aliases alert metadata")
	}
}

// Critical alert: command sent, audit records commandSent=true with the
// original severity.
func TestCascade_CriticalAlert(t *testing.T) {
	t.Parallel()
	store := audit.NewMemoryStore()
	sender := &fakeSender{outcome: devicecmd.Delivered}
	d := newDispatcher(t, store, sender)

	a := newAlert(t, domain.SeverityCritical)
	if err := d.Dispatch(context.Background(), ProcessAlert{Alert: a, MessageID: a.ID.String()}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].DeviceID != "dev-1" || sent[0].Name != "HandleAlert" {
		t.Fatalf("sent = %+v", sent)
	}
	for _, k := range []string{"alertId", "severity", "message", "timestamp"} {
		if _, ok := sent[0].Payload[k]; !ok {
			t.Errorf("payload missing %s", k)
		}
	}

	rec, found, err := store.Get(context.Background(), a.ID).Get()
	if err != nil || !found {
		t.Fatalf("audit Get = %v, %v", found, err)
	}
	if !rec.CommandSent || rec.CommandResult != ResultDelivered {
		t.Errorf("record = %+v", rec)
	}
	if rec.Alert.Severity != domain.SeverityCritical {
		t.Errorf("audited severity = %v, want Critical", rec.Alert.Severity)
	}
	if rec.Alert.Metadata[MetadataCommandSent] != true ||
		rec.Alert.Metadata[MetadataCommandResult] != ResultDelivered ||
		rec.Alert.Metadata[MetadataProcessedAt] != "2026-03-14T09:30:00Z" {
		t.Errorf("audited metadata = %v", rec.Alert.Metadata)
	}
	if !rec.ProcessedAt.Equal(now) {
		t.Errorf("processedAt = %v", rec.ProcessedAt)
	}
}

// The same alert twice: one command, one audit record.
func TestCascade_DuplicateAlert(t *testing.T) {
	t.Parallel()
	store := audit.NewMemoryStore()
	sender := &fakeSender{outcome: devicecmd.Delivered}
	d := newDispatcher(t, store, sender)

	a := newAlert(t, domain.SeverityError)
	cmd := ProcessAlert{Alert: a, MessageID: a.ID.String()}
	for i := 0; i < 2; i++ {
		if err := d.Dispatch(context.Background(), cmd); err != nil {
			t.Fatalf("Dispatch %d: %v", i, err)
		}
	}
	if n := len(sender.Sent()); n != 1 {
		t.Errorf("commands sent = %d, want 1", n)
	}
	if n := store.Len(); n != 1 {
		t.Errorf("audit records = %d, want 1", n)
	}
}

func TestCascade_NonActionableAlertIsAudited(t *testing.T) {
	t.Parallel()
	store := audit.NewMemoryStore()
	sender := &fakeSender{}
	d := newDispatcher(t, store, sender)

	a := newAlert(t, domain.SeverityWarning)
	if err := d.Dispatch(context.Background(), ProcessAlert{Alert: a}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n := len(sender.Sent()); n != 0 {
		t.Errorf("commands sent = %d", n)
	}
	rec, found := store.Get(context.Background(), a.ID).Value()
	if !found || rec.CommandSent || rec.CommandResult != "" {
		t.Errorf("record = %+v, found %v", rec, found)
	}
	if _, ok := rec.Alert.Metadata[MetadataCommandResult]; ok {
		t.Error("commandResult set without a command")
	}
}

func TestCascade_CommandOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outcome  devicecmd.Outcome
		err      error
		wantSent bool
		want     string
	}{
		{"delivered", devicecmd.Delivered, nil, true, ResultDelivered},
		{"failed", devicecmd.Failed, nil, false, ResultFailed},
		{"timed out", devicecmd.TimedOut, nil, false, ResultTimedOut},
		{"sender error", devicecmd.Failed, devicecmd.ErrRateLimited, false, "Exception: device command rate limit exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := audit.NewMemoryStore()
			d := newDispatcher(t, store, &fakeSender{outcome: tt.outcome, err: tt.err})

			a := newAlert(t, domain.SeverityCritical)
			if err := d.Dispatch(context.Background(), ProcessAlert{Alert: a}); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			rec, _ := store.Get(context.Background(), a.ID).Value()
			if rec.CommandSent != tt.wantSent || rec.CommandResult != tt.want {
				t.Errorf("record = sent %v %q, want %v %q", rec.CommandSent, rec.CommandResult, tt.wantSent, tt.want)
			}
		})
	}
}

type failingStore struct {
	audit.Store
	err error
}

func (f failingStore) Get(context.Context, uuid.UUID) domain.Result[audit.Record] {
	return domain.Failed[audit.Record](f.err)
}

func TestCascade_AuditLookupFailureAborts(t *testing.T) {
	t.Parallel()
	lookupErr := errors.New("duckdb: database is locked")
	sender := &fakeSender{outcome: devicecmd.Delivered}
	d := newDispatcher(t, failingStore{Store: audit.NewMemoryStore(), err: lookupErr}, sender)

	err := d.Dispatch(context.Background(), ProcessAlert{Alert: newAlert(t, domain.SeverityCritical)})
	if !errors.Is(err, lookupErr) {
		t.Fatalf("err = %v", err)
	}
	if n := len(sender.Sent()); n != 0 {
		t.Errorf("command sent despite failed idempotency check")
	}
}

func TestCascade_CanceledSendIsNotAudited(t *testing.T) {
	t.Parallel()
	store := audit.NewMemoryStore()
	d := newDispatcher(t, store, &fakeSender{err: context.Canceled})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newAlert(t, domain.SeverityCritical)
	_ = d.Dispatch(ctx, ProcessAlert{Alert: a})
	if store.Len() != 0 {
		t.Error("canceled chain wrote an audit record")
	}
}
