// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"testing"

	"github.com/goccy/go-json"
)

func deviceIn(t *testing.T, status DeviceStatus) Device {
	t.Helper()
	d, _, err := RegisterDevice("dev-1", "Boiler", "Thermostat", testNow)
	if err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	d.Status = status
	return d
}

func TestRegisterDevice(t *testing.T) {
	t.Parallel()

	d, events, err := RegisterDevice("dev-1", "Boiler", "Thermostat", testNow)
	if err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	if d.Status != StatusRegistered {
		t.Errorf("Status = %v, want Registered", d.Status)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if _, ok := events[0].(DeviceRegistered); !ok {
		t.Errorf("event = %T, want DeviceRegistered", events[0])
	}

	if _, _, err := RegisterDevice("dev-1", "", "Thermostat", testNow); !IsViolation(err) {
		t.Errorf("empty name error = %v, want violation", err)
	}
	if _, _, err := RegisterDevice("dev-1", "Boiler", " ", testNow); !IsViolation(err) {
		t.Errorf("blank type error = %v, want violation", err)
	}
}

func TestDevice_TransitionTable(t *testing.T) {
	t.Parallel()

	// "" is illegal, "=" is a no-op, anything else names the target status.
	const (
		E = ""
		N = "="
	)
	table := map[DeviceStatus][6]string{
		StatusRegistered:     {"Active", E, "Disabled", "Maintenance", E, "Decommissioned"},
		StatusActive:         {N, "Inactive", "Disabled", "Maintenance", E, "Decommissioned"},
		StatusInactive:       {"Active", N, "Disabled", "Maintenance", E, "Decommissioned"},
		StatusDisabled:       {"Active", "Inactive", N, "Maintenance", E, "Decommissioned"},
		StatusMaintenance:    {"Active", "Inactive", "Disabled", N, "Active", "Decommissioned"},
		StatusDecommissioned: {E, E, E, E, E, N},
	}

	for from, row := range table {
		for i, action := range Actions {
			want := row[i]
			t.Run(from.String()+"/"+string(action), func(t *testing.T) {
				t.Parallel()
				d := deviceIn(t, from)
				got, events, err := d.Apply(action, testNow)

				switch want {
				case E:
					if ViolationRule(err) != RuleStatusTransition {
						t.Fatalf("error = %v, want status transition violation", err)
					}
					if got.Status != from {
						t.Errorf("Status = %v, want unchanged %v", got.Status, from)
					}
				case N:
					if err != nil {
						t.Fatalf("error = %v, want nil", err)
					}
					if got.Status != from || len(events) != 0 {
						t.Errorf("no-op changed status to %v with %d events", got.Status, len(events))
					}
					if got.LastModifiedAt != nil {
						t.Error("no-op touched LastModifiedAt")
					}
				default:
					if err != nil {
						t.Fatalf("error = %v, want nil", err)
					}
					if got.Status.String() != want {
						t.Errorf("Status = %v, want %s", got.Status, want)
					}
					if len(events) != 1 {
						t.Fatalf("len(events) = %d, want 1", len(events))
					}
					ev, ok := events[0].(DeviceStatusChanged)
					if !ok || ev.From != from || ev.To != got.Status {
						t.Errorf("event = %+v", events[0])
					}
					if got.LastModifiedAt == nil {
						t.Error("LastModifiedAt not set")
					}
				}
			})
		}
	}
}

func TestDevice_ApplyDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	d := deviceIn(t, StatusActive)
	d.Properties["floor"] = "2"
	updated, _, err := d.Disable(testNow)
	if err != nil {
		t.Fatal(err)
	}
	updated.Properties["floor"] = "3"
	if d.Status != StatusActive || d.Properties["floor"] != "2" {
		t.Errorf("receiver mutated: status %v, floor %q", d.Status, d.Properties["floor"])
	}
}

func TestDevice_CanSendTelemetry(t *testing.T) {
	t.Parallel()

	want := map[DeviceStatus]bool{
		StatusRegistered:     false,
		StatusActive:         true,
		StatusInactive:       false,
		StatusDisabled:       false,
		StatusMaintenance:    true,
		StatusDecommissioned: false,
	}
	for status, w := range want {
		if got := deviceIn(t, status).CanSendTelemetry(); got != w {
			t.Errorf("CanSendTelemetry() in %v = %v, want %v", status, got, w)
		}
	}
}

func TestDevice_Attributes(t *testing.T) {
	t.Parallel()

	d := deviceIn(t, StatusActive)

	if _, err := d.SetProperty("", "x", testNow); !IsViolation(err) {
		t.Errorf("SetProperty empty key error = %v, want violation", err)
	}
	d, err := d.SetProperty("firmware", "1.2.3", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if d.Properties["firmware"] != "1.2.3" {
		t.Errorf("firmware = %q", d.Properties["firmware"])
	}
	d = d.RemoveProperty("firmware", testNow)
	if _, ok := d.Properties["firmware"]; ok {
		t.Error("RemoveProperty did not remove key")
	}

	if _, err := d.Rename(" ", testNow); !IsViolation(err) {
		t.Errorf("Rename blank error = %v, want violation", err)
	}
	d = d.UpdateLocation("Building 7", testNow).RecordActivity(testNow)
	if d.Location != "Building 7" || d.LastSeenAt == nil {
		t.Errorf("Location = %q, LastSeenAt = %v", d.Location, d.LastSeenAt)
	}
}

func TestDevice_JSONStatusByName(t *testing.T) {
	t.Parallel()

	d := deviceIn(t, StatusMaintenance)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Device
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Status != StatusMaintenance {
		t.Errorf("Status = %v, want Maintenance (json %s)", decoded.Status, data)
	}
}
