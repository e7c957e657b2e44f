// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package validation

import (
	"errors"
	"strings"
	"testing"
)

type alertMessage struct {
	DeviceID  string            `json:"deviceId" validate:"required,deviceid"`
	Severity  string            `json:"severity" validate:"omitempty,max=32"`
	Message   string            `json:"message" validate:"required,max=1000"`
	Timestamp string            `json:"timestamp" validate:"omitempty,rfc3339"`
	Metadata  map[string]string `json:"metadata" validate:"omitempty,max=50"`
	Priority  int               `json:"priority" validate:"gte=0,lte=10"`
	Kind      string            `json:"kind" validate:"omitempty,oneof=alert warning"`
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()
	v1 := GetValidator()
	v2 := GetValidator()
	if v1 == nil || v1 != v2 {
		t.Error("GetValidator should return one non-nil instance")
	}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	valid := alertMessage{
		DeviceID:  "plant:4.boiler-1",
		Message:   "Overheat",
		Timestamp: "2026-03-14T09:26:53.123Z",
	}

	tests := []struct {
		name    string
		mutate  func(m *alertMessage)
		field   string
		tag     string
		message string
	}{
		{name: "valid", mutate: func(*alertMessage) {}},
		{
			name:    "missing device id",
			mutate:  func(m *alertMessage) { m.DeviceID = "" },
			field:   "deviceId",
			tag:     "required",
			message: "deviceId is required",
		},
		{
			name:   "bad device id",
			mutate: func(m *alertMessage) { m.DeviceID = "dev 1" },
			field:  "deviceId",
			tag:    "deviceid",
		},
		{
			name:   "device id too long",
			mutate: func(m *alertMessage) { m.DeviceID = strings.Repeat("d", 129) },
			field:  "deviceId",
			tag:    "deviceid",
		},
		{
			name:    "bad timestamp",
			mutate:  func(m *alertMessage) { m.Timestamp = "14/03/2026" },
			field:   "timestamp",
			tag:     "rfc3339",
			message: "timestamp must be an RFC 3339 timestamp",
		},
		{
			name:    "message too long",
			mutate:  func(m *alertMessage) { m.Message = strings.Repeat("x", 1001) },
			field:   "message",
			tag:     "max",
			message: "message must be at most 1000 characters",
		},
		{
			name:    "priority out of range",
			mutate:  func(m *alertMessage) { m.Priority = 11 },
			field:   "priority",
			tag:     "lte",
			message: "priority must be less than or equal to 10",
		},
		{
			name:    "oneof",
			mutate:  func(m *alertMessage) { m.Kind = "page" },
			field:   "kind",
			tag:     "oneof",
			message: "kind must be one of: alert warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := valid
			tt.mutate(&m)

			err := ValidateStruct(&m)
			if tt.tag == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("errors = %v", errs)
			}
			if errs[0].Field() != tt.field || errs[0].Tag() != tt.tag {
				t.Errorf("field/tag = %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.field, tt.tag)
			}
			if tt.message != "" && errs[0].Error() != tt.message {
				t.Errorf("message = %q, want %q", errs[0].Error(), tt.message)
			}
		})
	}
}

func TestValidate_PlainError(t *testing.T) {
	t.Parallel()

	if err := Validate(&alertMessage{DeviceID: "dev-1", Message: "ok"}); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}
	err := Validate(&alertMessage{})
	var rve *RequestValidationError
	if !errors.As(err, &rve) || len(rve.Errors()) != 2 {
		t.Errorf("Validate(empty) = %v", err)
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := ValidateStruct(&alertMessage{DeviceID: "dev-1"}).ToAPIError()
	if single.Code != "VALIDATION_ERROR" || single.Message != "message is required" || single.Details["field"] != "message" {
		t.Errorf("single = %+v", single)
	}

	multi := ValidateStruct(&alertMessage{}).ToAPIError()
	if !strings.Contains(multi.Message, "deviceId is required") || !strings.Contains(multi.Message, "message is required") {
		t.Errorf("multi message = %q", multi.Message)
	}
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Errorf("multi details = %v", multi.Details)
	}

	empty := (&RequestValidationError{}).ToAPIError()
	if empty.Message != "Validation failed" {
		t.Errorf("empty = %+v", empty)
	}
}
