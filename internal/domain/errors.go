// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package domain

import (
	"errors"
	"fmt"
)

// Rule names the invariant a Violation breaks.
type Rule string

const (
	RuleDeviceID          Rule = "device_id"
	RuleTimestamp         Rule = "timestamp"
	RuleMeasurement       Rule = "measurement"
	RuleReading           Rule = "reading"
	RuleStatusTransition  Rule = "status_transition"
	RuleDeviceAttribute   Rule = "device_attribute"
	RuleAlertMessage      Rule = "alert_message"
	RuleAcknowledgment    Rule = "acknowledgment"
	RuleMetadataKey       Rule = "metadata_key"
	RuleValidationOutcome Rule = "validation_outcome"
)

// Violation is returned when a domain invariant is broken. It is never
// transient: redelivering the same input produces the same Violation.
type Violation struct {
	Rule    Rule
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("domain violation (%s): %s", v.Rule, v.Message)
}

func violationf(rule Rule, format string, args ...any) *Violation {
	return &Violation{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// IsViolation reports whether err wraps a *Violation.
func IsViolation(err error) bool {
	var v *Violation
	return errors.As(err, &v)
}

// ViolationRule returns the rule of the wrapped *Violation, or "" if err is not one.
func ViolationRule(err error) Rule {
	var v *Violation
	if errors.As(err, &v) {
		return v.Rule
	}
	return ""
}
