// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// DeviceStatus is the lifecycle state of a device.
type DeviceStatus int

const (
	StatusRegistered DeviceStatus = iota
	StatusActive
	StatusInactive
	StatusDisabled
	StatusMaintenance
	StatusDecommissioned
)

var statusNames = [...]string{
	StatusRegistered:     "Registered",
	StatusActive:         "Active",
	StatusInactive:       "Inactive",
	StatusDisabled:       "Disabled",
	StatusMaintenance:    "Maintenance",
	StatusDecommissioned: "Decommissioned",
}

func (s DeviceStatus) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "DeviceStatus(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText encodes the status by name.
func (s DeviceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DeviceStatus) UnmarshalText(b []byte) error {
	v, ok := ParseDeviceStatus(string(b))
	if !ok {
		return fmt.Errorf("unknown device status %q", string(b))
	}
	*s = v
	return nil
}

// ParseDeviceStatus accepts the String form case-insensitively.
func ParseDeviceStatus(s string) (DeviceStatus, bool) {
	for i, name := range statusNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return DeviceStatus(i), true
		}
	}
	return StatusRegistered, false
}

// Action is a lifecycle command applied to a device.
type Action string

const (
	ActionActivate         Action = "Activate"
	ActionDeactivate       Action = "Deactivate"
	ActionDisable          Action = "Disable"
	ActionStartMaintenance Action = "StartMaintenance"
	ActionEndMaintenance   Action = "EndMaintenance"
	ActionDecommission     Action = "Decommission"
)

// Actions lists every Action in table order.
var Actions = []Action{
	ActionActivate, ActionDeactivate, ActionDisable,
	ActionStartMaintenance, ActionEndMaintenance, ActionDecommission,
}

// ParseAction accepts the Action name case-insensitively.
func ParseAction(s string) (Action, bool) {
	for _, a := range Actions {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, true
		}
	}
	return "", false
}

// transition is the outcome of applying an action in a status.
// noop marks same-state actions; ok=false marks illegal ones.
type transition struct {
	to   DeviceStatus
	ok   bool
	noop bool
}

func to(s DeviceStatus) transition { return transition{to: s, ok: true} }

var (
	noop    = transition{ok: true, noop: true}
	illegal = transition{}
)

var transitions = map[DeviceStatus]map[Action]transition{
	StatusRegistered: {
		ActionActivate: to(StatusActive), ActionDeactivate: illegal, ActionDisable: to(StatusDisabled),
		ActionStartMaintenance: to(StatusMaintenance), ActionEndMaintenance: illegal, ActionDecommission: to(StatusDecommissioned),
	},
	StatusActive: {
		ActionActivate: noop, ActionDeactivate: to(StatusInactive), ActionDisable: to(StatusDisabled),
		ActionStartMaintenance: to(StatusMaintenance), ActionEndMaintenance: illegal, ActionDecommission: to(StatusDecommissioned),
	},
	StatusInactive: {
		ActionActivate: to(StatusActive), ActionDeactivate: noop, ActionDisable: to(StatusDisabled),
		ActionStartMaintenance: to(StatusMaintenance), ActionEndMaintenance: illegal, ActionDecommission: to(StatusDecommissioned),
	},
	StatusDisabled: {
		ActionActivate: to(StatusActive), ActionDeactivate: to(StatusInactive), ActionDisable: noop,
		ActionStartMaintenance: to(StatusMaintenance), ActionEndMaintenance: illegal, ActionDecommission: to(StatusDecommissioned),
	},
	StatusMaintenance: {
		ActionActivate: to(StatusActive), ActionDeactivate: to(StatusInactive), ActionDisable: to(StatusDisabled),
		ActionStartMaintenance: noop, ActionEndMaintenance: to(StatusActive), ActionDecommission: to(StatusDecommissioned),
	},
	StatusDecommissioned: {
		ActionActivate: illegal, ActionDeactivate: illegal, ActionDisable: illegal,
		ActionStartMaintenance: illegal, ActionEndMaintenance: illegal, ActionDecommission: noop,
	},
}

// DefaultDeviceType is used when a registration event carries no type.
const DefaultDeviceType = "Unknown"

// Device is the registry entry for one physical device. Devices are never
// deleted; Decommissioned is terminal.
type Device struct {
	ID             DeviceID          `json:"id"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	Status         DeviceStatus      `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastSeenAt     *time.Time        `json:"lastSeenAt,omitempty"`
	LastModifiedAt *time.Time        `json:"lastModifiedAt,omitempty"`
	Location       string            `json:"location,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
}

// RegisterDevice creates a device in StatusRegistered and raises DeviceRegistered.
func RegisterDevice(id DeviceID, name, deviceType string, now time.Time) (Device, []Event, error) {
	if id == "" {
		return Device{}, nil, violationf(RuleDeviceAttribute, "device ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return Device{}, nil, violationf(RuleDeviceAttribute, "device name cannot be empty")
	}
	if strings.TrimSpace(deviceType) == "" {
		return Device{}, nil, violationf(RuleDeviceAttribute, "device type cannot be empty")
	}
	d := Device{
		ID:         id,
		Name:       name,
		Type:       deviceType,
		Status:     StatusRegistered,
		CreatedAt:  now.UTC(),
		Properties: map[string]string{},
	}
	return d, []Event{DeviceRegistered{DeviceID: id, Name: name, Type: deviceType, At: now.UTC()}}, nil
}

// Apply performs action and returns the updated device. Same-state actions
// return the device unchanged with no events. Illegal actions return a
// *Violation with RuleStatusTransition.
func (d Device) Apply(action Action, now time.Time) (Device, []Event, error) {
	row, ok := transitions[d.Status]
	if !ok {
		return d, nil, violationf(RuleStatusTransition, "device %s has unknown status %s", d.ID, d.Status)
	}
	tr, ok := row[action]
	if !ok {
		return d, nil, violationf(RuleStatusTransition, "unknown action %q", action)
	}
	if !tr.ok {
		return d, nil, violationf(RuleStatusTransition, "cannot %s device %s in status %s", action, d.ID, d.Status)
	}
	if tr.noop {
		return d, nil, nil
	}
	from := d.Status
	d = d.clone()
	d.Status = tr.to
	d.touch(now)
	return d, []Event{DeviceStatusChanged{DeviceID: d.ID, From: from, To: tr.to, Action: action, At: now.UTC()}}, nil
}

// Activate moves the device to Active from any status but Decommissioned.
func (d Device) Activate(now time.Time) (Device, []Event, error) {
	return d.Apply(ActionActivate, now)
}

// Deactivate moves an Active, Disabled or Maintenance device to Inactive.
// A Registered device cannot be deactivated before it was ever activated.
func (d Device) Deactivate(now time.Time) (Device, []Event, error) {
	return d.Apply(ActionDeactivate, now)
}

// Disable moves the device to Disabled from any status but Decommissioned.
func (d Device) Disable(now time.Time) (Device, []Event, error) {
	return d.Apply(ActionDisable, now)
}

// StartMaintenance moves the device to Maintenance. Telemetry is still
// accepted while in maintenance.
func (d Device) StartMaintenance(now time.Time) (Device, []Event, error) {
	return d.Apply(ActionStartMaintenance, now)
}

// EndMaintenance returns a Maintenance device to Active; from any other
// status it is illegal.
func (d Device) EndMaintenance(now time.Time) (Device, []Event, error) {
	return d.Apply(ActionEndMaintenance, now)
}

// Decommission retires the device. Decommissioned is terminal: every later
// action except Decommission itself is rejected.
func (d Device) Decommission(now time.Time) (Device, []Event, error) {
	return d.Apply(ActionDecommission, now)
}

// CanSendTelemetry is true only for Active and Maintenance devices.
func (d Device) CanSendTelemetry() bool {
	return d.Status == StatusActive || d.Status == StatusMaintenance
}

// RecordActivity sets LastSeenAt.
func (d Device) RecordActivity(now time.Time) Device {
	d = d.clone()
	at := now.UTC()
	d.LastSeenAt = &at
	return d
}

// Rename changes the display name.
func (d Device) Rename(name string, now time.Time) (Device, error) {
	if strings.TrimSpace(name) == "" {
		return d, violationf(RuleDeviceAttribute, "device name cannot be empty")
	}
	d = d.clone()
	d.Name = name
	d.touch(now)
	return d, nil
}

// UpdateLocation sets or clears (with "") the location.
func (d Device) UpdateLocation(location string, now time.Time) Device {
	d = d.clone()
	d.Location = location
	d.touch(now)
	return d
}

// SetProperty adds or replaces a descriptive property.
func (d Device) SetProperty(key, value string, now time.Time) (Device, error) {
	if strings.TrimSpace(key) == "" {
		return d, violationf(RuleDeviceAttribute, "property key cannot be empty")
	}
	d = d.clone()
	d.Properties[key] = value
	d.touch(now)
	return d, nil
}

// RemoveProperty deletes key if present.
func (d Device) RemoveProperty(key string, now time.Time) Device {
	if _, ok := d.Properties[key]; !ok {
		return d
	}
	d = d.clone()
	delete(d.Properties, key)
	d.touch(now)
	return d
}

func (d Device) clone() Device {
	d.Properties = maps.Clone(d.Properties)
	if d.Properties == nil {
		d.Properties = map[string]string{}
	}
	if d.LastSeenAt != nil {
		t := *d.LastSeenAt
		d.LastSeenAt = &t
	}
	if d.LastModifiedAt != nil {
		t := *d.LastModifiedAt
		d.LastModifiedAt = &t
	}
	return d
}

func (d *Device) touch(now time.Time) {
	at := now.UTC()
	d.LastModifiedAt = &at
}
