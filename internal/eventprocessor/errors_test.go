// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	_, violation := domain.NewDeviceID("")

	tests := []struct {
		name         string
		err          error
		wantNil      bool
		wantRetry    bool
		wantCategory ErrorCategory
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "domain violation", err: violation, wantCategory: ErrorCategoryDomain},
		{
			name:         "violation inside stage error",
			err:          &pipeline.StageError{Kind: "telemetry.store", Step: 2, Err: violation},
			wantCategory: ErrorCategoryDomain,
		},
		{name: "deadline", err: fmt.Errorf("save: %w", context.DeadlineExceeded), wantRetry: true, wantCategory: ErrorCategoryTimeout},
		{name: "database", err: errors.New("duckdb: file locked"), wantRetry: true, wantCategory: ErrorCategoryDatabase},
		{name: "plain", err: errors.New("boom"), wantRetry: true, wantCategory: ErrorCategoryUnknown},
		{name: "already permanent", err: NewDecodeError(errors.New("bad json")), wantCategory: ErrorCategoryDecode},
		{
			name:         "already retryable",
			err:          &RetryableError{Message: "x", Category: ErrorCategoryCapacity},
			wantRetry:    true,
			wantCategory: ErrorCategoryCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Classify(nil) = %v", got)
				}
				return
			}
			if IsRetryableError(got) != tt.wantRetry {
				t.Errorf("IsRetryableError = %v, want %v", IsRetryableError(got), tt.wantRetry)
			}
			if IsPermanentError(got) == tt.wantRetry {
				t.Errorf("IsPermanentError = %v, want %v", IsPermanentError(got), !tt.wantRetry)
			}
			if c := CategoryOf(got); c != tt.wantCategory {
				t.Errorf("CategoryOf = %q, want %q", c, tt.wantCategory)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error does not wrap the original")
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	err := NewRetryableError("publish", errors.New("connection refused"))
	if err.Error() != "publish: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Category != ErrorCategoryConnection {
		t.Errorf("Category = %q, want connection", err.Category)
	}

	perm := NewPermanentError("bad input", nil)
	if perm.Error() != "bad input" || perm.Category != ErrorCategoryValidation {
		t.Errorf("permanent = %q/%q", perm.Error(), perm.Category)
	}
}
