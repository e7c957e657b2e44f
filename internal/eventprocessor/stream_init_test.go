// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

// fakeStream satisfies jetstream.Stream; only CachedInfo is exercised.
type fakeStream struct {
	jetstream.Stream
	cfg jetstream.StreamConfig
}

func (s *fakeStream) CachedInfo() *jetstream.StreamInfo {
	return &jetstream.StreamInfo{Config: s.cfg}
}

type fakeJetStream struct {
	streams   map[string]jetstream.StreamConfig
	lookupErr error
	created   int
	updated   int
}

func (f *fakeJetStream) Stream(_ context.Context, name string) (jetstream.Stream, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	cfg, ok := f.streams[name]
	if !ok {
		return nil, jetstream.ErrStreamNotFound
	}
	return &fakeStream{cfg: cfg}, nil
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created++
	f.streams[cfg.Name] = cfg
	return &fakeStream{cfg: cfg}, nil
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated++
	f.streams[cfg.Name] = cfg
	return &fakeStream{cfg: cfg}, nil
}

func TestStreamInitializer_EnsureStream(t *testing.T) {
	t.Parallel()

	js := &fakeJetStream{streams: map[string]jetstream.StreamConfig{}}
	cfg := DefaultStreamConfig()
	si, err := NewStreamInitializer(js, &cfg)
	if err != nil {
		t.Fatalf("NewStreamInitializer: %v", err)
	}

	ctx := context.Background()
	if _, err := si.EnsureStream(ctx); err != nil {
		t.Fatalf("first EnsureStream: %v", err)
	}
	if _, err := si.EnsureStream(ctx); err != nil {
		t.Fatalf("second EnsureStream: %v", err)
	}
	if js.created != 1 || js.updated != 1 {
		t.Errorf("created=%d updated=%d, want 1 and 1", js.created, js.updated)
	}

	got := js.streams["IOT"]
	if got.Storage != jetstream.FileStorage || got.Duplicates != cfg.DuplicateWindow {
		t.Errorf("stream config = %+v", got)
	}
	if len(got.Subjects) != 1 || got.Subjects[0] != "iot.>" {
		t.Errorf("subjects = %v", got.Subjects)
	}
	if h := si.HealthCheck(ctx); !h.Healthy {
		t.Errorf("health = %+v", h)
	}
}

func TestStreamInitializer_LookupFailure(t *testing.T) {
	t.Parallel()

	js := &fakeJetStream{streams: map[string]jetstream.StreamConfig{}, lookupErr: errors.New("nats: timeout")}
	cfg := DefaultStreamConfig()
	si, _ := NewStreamInitializer(js, &cfg)

	if _, err := si.EnsureStream(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if js.created != 0 {
		t.Error("stream created despite lookup failure")
	}
}

func TestNewStreamInitializer_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewStreamInitializer(nil, &StreamConfig{}); err == nil {
		t.Error("nil JetStream accepted")
	}
	js := &fakeJetStream{streams: map[string]jetstream.StreamConfig{}}
	if _, err := NewStreamInitializer(js, nil); err == nil {
		t.Error("nil config accepted")
	}
	if _, err := NewStreamInitializer(js, &StreamConfig{Name: "X"}); err == nil {
		t.Error("config without subjects accepted")
	}
}

