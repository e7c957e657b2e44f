// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

// Package validation validates decoded wire messages and API requests with a
// shared go-playground/validator instance.
//
// Features:
//   - Singleton validator instance (thread-safe, caches struct info)
//   - Custom validators for device IDs and RFC 3339 timestamps
//   - Error translation into the VALIDATION_ERROR APIError returned by the HTTP edge
//   - Field names taken from json tags so errors match the wire format
//
// Field names in messages come from the json tag, so a missing device ID on
//
//	type alertMessage struct {
//	    DeviceID string `json:"deviceId" validate:"required,deviceid"`
//	}
//
// is reported as "deviceId is required".
//
// Custom tags:
//   - deviceid: 1 to 128 characters of [A-Za-z0-9-._:]
//   - rfc3339: parses as an RFC 3339 timestamp (fractional seconds allowed)
//
// Example usage:
//
//	func decodeAlert(payload []byte) (alertMessage, error) {
//	    var msg alertMessage
//	    if err := json.Unmarshal(payload, &msg); err != nil {
//	        return msg, err
//	    }
//	    if verr := validation.ValidateStruct(&msg); verr != nil {
//	        return msg, verr
//	    }
//	    return msg, nil
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is one field that failed validation.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

func (e *ValidationError) Field() string { return e.field }

func (e *ValidationError) Tag() string { return e.tag }

// Param is the tag parameter, e.g. "100" for "max=100".
func (e *ValidationError) Param() string { return e.param }

func (e *ValidationError) Value() interface{} { return e.value }

func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects every field failure of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// APIError is the error body returned by the HTTP API.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToAPIError converts the failures into a VALIDATION_ERROR body.
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.errors) {
	case 0:
		return &APIError{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	case 1:
		err := ve.errors[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: err.message,
			Details: map[string]interface{}{
				"field": err.field,
				"tag":   err.tag,
			},
		}
	}

	fields := make([]map[string]interface{}, len(ve.errors))
	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
	}
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: ve.Error(),
		Details: map[string]interface{}{"fields": fields},
	}
}

// GetValidator returns the shared validator, creating it on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		// Registration only fails on an empty tag or nil func.
		_ = validate.RegisterValidation("deviceid", func(fl validator.FieldLevel) bool {
			_, err := domain.NewDeviceID(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.RFC3339Nano, fl.Field().String())
			return err == nil
		})
	})

	return validate
}

// ValidateStruct returns nil when s passes, else a *RequestValidationError.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

// Validate is ValidateStruct returning a plain error, for callers that only
// need pass or fail.
func Validate(s interface{}) error {
	if err := ValidateStruct(s); err != nil {
		return err
	}
	return nil
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"deviceid": "%s must be 1 to 128 characters of letters, digits, '-', '.', '_' or ':'",
	"rfc3339":  "%s must be an RFC 3339 timestamp",
	"uuid":     "%s must be a UUID",
	"dive":     "%s contains an invalid element",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind().String() == "string"
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
