// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicecmd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"
)

type fakeJS struct {
	mu    sync.Mutex
	msgs  []*natsgo.Msg
	err   error
	block bool
}

func (f *fakeJS) PublishMsg(ctx context.Context, msg *natsgo.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: "IOT", Sequence: uint64(len(f.msgs))}, nil
}

var sentAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newSender(js MsgPublisher, cfg Config) *JetStreamSender {
	s := NewJetStreamSender(js, cfg, nil)
	s.now = func() time.Time { return sentAt }
	return s
}

func TestSend_Delivered(t *testing.T) {
	t.Parallel()
	js := &fakeJS{}
	s := newSender(js, DefaultConfig())

	outcome, err := s.Send(context.Background(), Command{
		DeviceID: "dev-1",
		Name:     "HandleAlert",
		Payload:  map[string]any{"severity": "Critical"},
	})
	if err != nil || outcome != Delivered {
		t.Fatalf("Send = %v, %v", outcome, err)
	}
	if len(js.msgs) != 1 {
		t.Fatalf("published %d messages", len(js.msgs))
	}

	msg := js.msgs[0]
	if msg.Subject != "iot.commands.dev-1" {
		t.Errorf("subject = %q", msg.Subject)
	}
	tests := map[string]string{
		"command":   "HandleAlert",
		"timestamp": "2026-03-14T09:30:00Z",
		"expires":   "2026-03-14T10:30:00Z",
	}
	for h, want := range tests {
		if got := msg.Header.Get(h); got != want {
			t.Errorf("header %s = %q, want %q", h, got, want)
		}
	}
	if msg.Header.Get(natsgo.MsgIdHdr) == "" {
		t.Error("missing message id")
	}

	var body wireCommand
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		t.Fatal(err)
	}
	if body.Command != "HandleAlert" || body.Payload["severity"] != "Critical" || !body.Timestamp.Equal(sentAt) {
		t.Errorf("body = %+v", body)
	}
}

func TestSend_Failed(t *testing.T) {
	t.Parallel()
	s := newSender(&fakeJS{err: errors.New("nats: no responders available for request")}, DefaultConfig())

	outcome, err := s.Send(context.Background(), Command{DeviceID: "dev-1", Name: "HandleAlert"})
	if err != nil || outcome != Failed {
		t.Errorf("Send = %v, %v; want failed, nil", outcome, err)
	}
}

func TestSend_TimedOut(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := newSender(&fakeJS{block: true}, cfg)

	outcome, err := s.Send(context.Background(), Command{DeviceID: "dev-1", Name: "HandleAlert"})
	if err != nil || outcome != TimedOut {
		t.Errorf("Send = %v, %v; want timed_out, nil", outcome, err)
	}
}

func TestSend_CallerCanceled(t *testing.T) {
	t.Parallel()
	s := newSender(&fakeJS{block: true}, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	if _, err := s.Send(ctx, Command{DeviceID: "dev-1", Name: "HandleAlert"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Send error = %v, want context.Canceled", err)
	}
}

func TestSend_RateLimited(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 2
	js := &fakeJS{}
	s := newSender(js, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if outcome, err := s.Send(ctx, Command{DeviceID: "dev-1", Name: "HandleAlert"}); err != nil || outcome != Delivered {
			t.Fatalf("send %d = %v, %v", i, outcome, err)
		}
	}
	if _, err := s.Send(ctx, Command{DeviceID: "dev-1", Name: "HandleAlert"}); !errors.Is(err, ErrRateLimited) {
		t.Errorf("third send error = %v, want ErrRateLimited", err)
	}
	if outcome, err := s.Send(ctx, Command{DeviceID: "dev-2", Name: "HandleAlert"}); err != nil || outcome != Delivered {
		t.Errorf("other device = %v, %v", outcome, err)
	}
	if len(js.msgs) != 3 {
		t.Errorf("published %d, want 3", len(js.msgs))
	}
}

func TestSend_OpenBreakerFails(t *testing.T) {
	t.Parallel()
	js := &fakeJS{err: errors.New("nats: connection closed")}
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "device-commands",
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
		Timeout:     time.Minute,
	})
	s := NewJetStreamSender(js, Config{RatePerSecond: 0}, cb)
	ctx := context.Background()

	_, _ = s.Send(ctx, Command{DeviceID: "dev-1", Name: "HandleAlert"})
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v", cb.State())
	}
	js.err = nil
	outcome, err := s.Send(ctx, Command{DeviceID: "dev-1", Name: "HandleAlert"})
	if err != nil || outcome != Failed {
		t.Errorf("Send with open breaker = %v, %v", outcome, err)
	}
	if len(js.msgs) != 0 {
		t.Error("open breaker let a publish through")
	}
}

func TestDeviceLimiter_Prune(t *testing.T) {
	t.Parallel()
	l := NewDeviceLimiter(1, 1)
	clock := sentAt
	l.now = func() time.Time { return clock }

	l.Allow("dev-1")
	clock = clock.Add(2 * time.Hour)
	l.Allow("dev-2")

	if n := l.Prune(time.Hour); n != 1 {
		t.Errorf("Prune = %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d", l.Len())
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	for o, want := range map[Outcome]string{Delivered: "delivered", Failed: "failed", TimedOut: "timed_out"} {
		if o.String() != want {
			t.Errorf("%d.String() = %q", int(o), o.String())
		}
	}
}
