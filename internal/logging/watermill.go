// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter implements watermill.LoggerAdapter on zerolog. Watermill
// info messages are chatty (one per subscriber start, per handler) so they are
// written at debug unless promoteInfo is set.
type WatermillAdapter struct {
	logger      zerolog.Logger
	promoteInfo bool
}

// NewWatermillAdapter wraps the global logger tagged with component=watermill.
func NewWatermillAdapter(promoteInfo bool) *WatermillAdapter {
	return &WatermillAdapter{logger: WithComponent("watermill"), promoteInfo: promoteInfo}
}

// NewWatermillAdapterWithLogger wraps logger as-is.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func NewWatermillAdapterWithLogger(logger zerolog.Logger, promoteInfo bool) *WatermillAdapter {
	return &WatermillAdapter{logger: logger, promoteInfo: promoteInfo}
}

func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	withFields(a.logger.Error().Err(err), fields).Msg(msg)
}

func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	if a.promoteInfo {
		withFields(a.logger.Info(), fields).Msg(msg)
		return
	}
	withFields(a.logger.Debug(), fields).Msg(msg)
}

func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	withFields(a.logger.Debug(), fields).Msg(msg)
}

func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	withFields(a.logger.Trace(), fields).Msg(msg)
}

func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{
		logger:      a.logger.With().Fields(map[string]interface{}(fields)).Logger(),
		promoteInfo: a.promoteInfo,
	}
}

func withFields(event *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	if len(fields) == 0 {
		return event
	}
	return event.Fields(map[string]interface{}(fields))
}
