// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/eventprocessor"
)

func envelope() eventprocessor.Envelope {
	return eventprocessor.Envelope{
		MessageID:  "msg-1",
		ReceivedAt: now,
		Partition:  "3",
		Sequence:   42,
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		env     func() eventprocessor.Envelope
		wantTS  time.Time
		want    map[string]domain.Measurement
	}{
		{
			name:    "measurements object",
			payload: `{"deviceId":"dev-1","timestamp":"2026-03-14T11:59:00Z","measurements":{"temperature":21.5,"temperature_unit":"C","humidity":40,"humidity_quality":"uncertain"}}`,
			wantTS:  time.Date(2026, 3, 14, 11, 59, 0, 0, time.UTC),
			want: map[string]domain.Measurement{
				"temperature": {Value: 21.5, Unit: "C", Quality: domain.QualityGood},
				"humidity":    {Value: 40, Unit: "unknown", Quality: domain.QualityUncertain},
			},
		},
		{
			name:    "flat payload",
			payload: `{"deviceId":"dev-1","timestamp":"2026-03-14T13:59:00+02:00","pressure":1013.2,"pressure_unit":"hPa","label":"north","ok":true}`,
			wantTS:  time.Date(2026, 3, 14, 11, 59, 0, 0, time.UTC),
			want: map[string]domain.Measurement{
				"pressure": {Value: 1013.2, Unit: "hPa", Quality: domain.QualityGood},
			},
		},
		{
			name:    "enqueued time when timestamp missing",
			payload: `{"deviceId":"dev-1","measurements":{"rpm":900}}`,
			env: func() eventprocessor.Envelope {
				env := envelope()
				env.EnqueuedAt = now.Add(-time.Minute)
				return env
			},
			wantTS: now.Add(-time.Minute),
			want:   map[string]domain.Measurement{"rpm": {Value: 900, Unit: "unknown"}},
		},
		{
			name:    "receive time as last resort",
			payload: `{"deviceId":"dev-1","rpm":900}`,
			wantTS:  now,
			want:    map[string]domain.Measurement{"rpm": {Value: 900, Unit: "unknown"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := envelope()
			if tt.env != nil {
				env = tt.env()
			}
			cmd, err := Decode([]byte(tt.payload), env)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			pt, ok := cmd.(ProcessTelemetry)
			if !ok {
				t.Fatalf("command = %T", cmd)
			}
			if pt.PartitionID != "3" || pt.SequenceNumber != 42 {
				t.Errorf("partition/sequence = %q/%d", pt.PartitionID, pt.SequenceNumber)
			}
			r := pt.Reading
			if r.DeviceID != "dev-1" || !r.IsValid || !r.ReceivedAt.Time().Equal(now) {
				t.Errorf("reading = %+v", r)
			}
			if !r.Timestamp.Time().Equal(tt.wantTS) {
				t.Errorf("timestamp = %v, want %v", r.Timestamp, tt.wantTS)
			}
			if len(r.Measurements) != len(tt.want) {
				t.Fatalf("measurements = %v, want %v", r.Measurements, tt.want)
			}
			for name, want := range tt.want {
				if got := r.Measurements[name]; got != want {
					t.Errorf("%s = %v, want %v", name, got, want)
				}
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{"deviceId":`},
		{"missing device id", `{"temperature":21.5}`},
		{"invalid device id", `{"deviceId":"dev 1","temperature":21.5}`},
		{"no measurements", `{"deviceId":"dev-1","measurements":{}}`},
		{"only non numeric", `{"deviceId":"dev-1","label":"x"}`},
		{"bad timestamp", `{"deviceId":"dev-1","timestamp":"yesterday","t":1}`},
		{"numeric timestamp", `{"deviceId":"dev-1","timestamp":1710410813,"t":1}`},
		{"far future timestamp", `{"deviceId":"dev-1","timestamp":"2026-03-14T15:00:00Z","t":1}`},
		{"unknown quality", `{"deviceId":"dev-1","t":1,"t_quality":"meh"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if cmd, err := Decode([]byte(tt.payload), envelope()); err == nil {
				t.Errorf("Decode = %+v, want error", cmd)
			}
		})
	}
}

func TestDecode_NoMeasurementsError(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte(`{"deviceId":"dev-1"}`), envelope())
	if !errors.Is(err, errNoMeasurements) {
		t.Errorf("err = %v", err)
	}
}
