// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

//go:build integration

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

type recordingDispatcher struct {
	cmds chan pipeline.Command
}

func (r *recordingDispatcher) Dispatch(_ context.Context, cmd pipeline.Command) error {
	r.cmds <- cmd
	return nil
}

func startEmbedded(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              -1,
		StoreDir:          t.TempDir(),
		JetStreamMaxMem:   64 << 20,
		JetStreamMaxStore: 256 << 20,
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestIntegration_IngestRoundTrip(t *testing.T) {
	srv := startEmbedded(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	streamCfg := DefaultStreamConfig()
	si, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		t.Fatalf("NewStreamInitializer: %v", err)
	}
	if _, err := si.EnsureStream(ctx); err != nil {
		t.Fatalf("EnsureStream: %v", err)
	}

	pub, err := NewPublisher(DefaultPublisherConfig(srv.ClientURL()), watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()
	pub.SetCircuitBreaker(NewCircuitBreaker(DefaultCircuitBreakerConfig("test-publisher")))

	subCfg := DefaultSubscriberConfig(srv.ClientURL(), "test")
	subCfg.SubscribersCount = 1
	sub, err := NewSubscriber(&subCfg, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()

	router, err := NewRouter(nil, pub.WatermillPublisher(), watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	d := &recordingDispatcher{cmds: make(chan pipeline.Command, 4)}
	router.AddConsumerHandler("test", SubjectTelemetry, sub, NewIngestHandler("test", decodePing, d))
	<-router.RunAsync(ctx)
	defer router.Close()

	if err := pub.PublishPayload(ctx, SubjectTelemetry, "", []byte("hello"), nil); err != nil {
		t.Fatalf("PublishPayload: %v", err)
	}

	select {
	case cmd := <-d.cmds:
		if got := cmd.(pingCmd).body; got != "hello" {
			t.Errorf("body = %q", got)
		}
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}

	hc := NewHealthChecker(time.Second)
	hc.RegisterComponent("nats_server", srv)
	hc.RegisterComponent("stream", si)
	hc.RegisterComponent("publisher", pub)
	hc.RegisterComponent("router", router)
	if h := hc.CheckAll(ctx); !h.Healthy {
		t.Errorf("health = %+v", h)
	}
}

func TestIntegration_PublisherClosed(t *testing.T) {
	srv := startEmbedded(t)
	pub, err := NewPublisher(DefaultPublisherConfig(srv.ClientURL()), nil)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	_ = pub.Close()
	err = pub.PublishPayload(context.Background(), SubjectTelemetry, "", []byte("x"), nil)
	if !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish after Close = %v", err)
	}
}
