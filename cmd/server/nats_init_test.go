// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package main

import (
	"context"
	"testing"
	"time"
)

func TestNATSComponents_IsRunning(t *testing.T) {
	t.Parallel()

	var nilComponents *NATSComponents
	if nilComponents.IsRunning() {
		t.Error("nil components report running")
	}
	if (&NATSComponents{}).IsRunning() {
		t.Error("zero components report running")
	}
	if !(&NATSComponents{running: true}).IsRunning() {
		t.Error("running components report stopped")
	}
}

func TestNATSComponents_ShutdownAndCloseAreSafe(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		var c *NATSComponents
		c.Shutdown(context.Background())
		c.Close(context.Background())
		if err := c.Start(context.Background()); err != nil {
			t.Errorf("Start on nil = %v", err)
		}
	})

	t.Run("partially initialized", func(t *testing.T) {
		t.Parallel()
		c := &NATSComponents{}

		done := make(chan struct{})
		go func() {
			c.Close(context.Background())
			c.Close(context.Background())
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Close blocked")
		}
		if !c.closed {
			t.Error("closed flag not set")
		}
	})
}
