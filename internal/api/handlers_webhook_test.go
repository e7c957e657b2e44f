// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/iotpipeline/internal/devices"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
)

func TestDeviceEvents_SubscriptionValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, true)

	body := `[{"id":"v-1","eventType":"Microsoft.EventGrid.SubscriptionValidationEvent","subject":"","data":{"validationCode":"512d38b6-c7b8-40c8-89fe-f46f9e9622b6"}}]`
	rec := ts.do(t, http.MethodPost, "/api/events/devices", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	got := decodeBody[map[string]string](t, rec)
	if got["validationResponse"] != "512d38b6-c7b8-40c8-89fe-f46f9e9622b6" {
		t.Errorf("response = %v", got)
	}
	if n := len(ts.pub.published()); n != 0 {
		t.Errorf("validation handshake published %d messages", n)
	}
}

func TestDeviceEvents_ValidationMissingCode(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/api/events/devices",
		`[{"id":"v-1","eventType":"Microsoft.EventGrid.SubscriptionValidationEvent","data":{}}]`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestDeviceEvents_Forwarded(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, true)

	body := `[
		{"id":"e-1","eventType":"Microsoft.Devices.DeviceCreated","subject":"devices/dev-1","eventTime":"2026-03-14T11:58:00Z","dataVersion":"1.0","data":{"deviceName":"Boiler"}},
		{"id":"e-2","eventType":"Microsoft.Devices.DeviceConnected","subject":"devices/dev-1","eventTime":"2026-03-14T11:58:01Z"},
		{"id":"e-3","eventType":"Microsoft.Devices.DeviceDeleted","subject":"devices/dev-2","eventTime":"2026-03-14T11:58:02Z"},
		{"id":"e-4","eventType":"Microsoft.Devices.DeviceCreated","subject":"devices/","eventTime":"2026-03-14T11:58:03Z"}
	]`
	rec := ts.do(t, http.MethodPost, "/api/events/devices", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got := decodeBody[webhookResponse](t, rec); got.Accepted != 2 || got.Skipped != 2 {
		t.Errorf("response = %+v", got)
	}

	msgs := ts.pub.published()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages", len(msgs))
	}
	for i, want := range []struct{ id, device, eventType string }{
		{"e-1", "dev-1", "Microsoft.Devices.DeviceCreated"},
		{"e-3", "dev-2", "Microsoft.Devices.DeviceDeleted"},
	} {
		m := msgs[i]
		if m.topic != eventprocessor.SubjectLifecycle || m.id != want.id {
			t.Errorf("msg %d topic/id = %s/%s", i, m.topic, m.id)
		}
		var ev devices.LifecycleEvent
		if err := json.Unmarshal(m.payload, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.DeviceID != want.device || ev.EventType != want.eventType {
			t.Errorf("msg %d = %+v", i, ev)
		}
	}

	// The forwarded payload decodes into the lifecycle entry command.
	cmd, err := devices.Decode(msgs[0].payload, eventprocessor.Envelope{ReceivedAt: testNow})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	created, ok := cmd.(devices.DeviceCreated)
	if !ok || created.DeviceID != "dev-1" || created.Data["deviceName"] != "Boiler" {
		t.Errorf("cmd = %#v", cmd)
	}
}

func TestDeviceEvents_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not an array", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t, true)
		rec := ts.do(t, http.MethodPost, "/api/events/devices", `{"eventType":"Microsoft.Devices.DeviceCreated"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t, true)
		ts.pub.err = errors.New("stream unavailable")
		rec := ts.do(t, http.MethodPost, "/api/events/devices",
			`[{"id":"e-1","eventType":"Microsoft.Devices.DeviceDeleted","subject":"devices/dev-1"}]`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(t, true)
		rec := ts.do(t, http.MethodPost, "/api/events/devices", `[]`)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestSubjectDeviceID(t *testing.T) {
	t.Parallel()
	for subject, want := range map[string]string{
		"devices/dev-1":          "dev-1",
		"hubs/hub-1/devices/d.2": "d.2",
		"devices/dev-1/":         "",
		"dev-3":                  "dev-3",
		"":                       "",
	} {
		if got := subjectDeviceID(subject); got != want {
			t.Errorf("subjectDeviceID(%q) = %q, want %q", subject, got, want)
		}
	}
}
