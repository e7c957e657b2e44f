// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package eventprocessor

import (
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
	"github.com/tomtom215/iotpipeline/internal/pipeline"
)

// Metadata keys carried on inbound messages.
const (
	MetadataCorrelationID = "correlation_id"
	MetadataEnqueuedTime  = "enqueued_time"
	MetadataSource        = "source"
	MetadataPartition     = "partition"
	MetadataSequence      = "sequence"
)

// Envelope is the transport context a Decoder may use besides the payload.
type Envelope struct {
	// MessageID is the Nats-Msg-Id when set, else the Watermill UUID.
	MessageID string
	// EnqueuedAt is when the producer handed the message to the broker; zero
	// when the producer did not say.
	EnqueuedAt time.Time
	// ReceivedAt is when this process picked the message up.
	ReceivedAt time.Time
	// Partition and Sequence identify the message at its producer, when the
	// producer said. Used for logging only.
	Partition string
	Sequence  uint64
	Metadata  map[string]string
}

// Decoder turns a payload into the entry command of a flow. Any error it
// returns is treated as a malformed message.
type Decoder func(payload []byte, env Envelope) (pipeline.Command, error)

// NewIngestHandler returns a Watermill handler that decodes each message and
// runs its cascade to completion through dispatcher. The returned error is
// classified so the router middleware can settle the message.
//
// For every message the handler:
//  1. attaches the correlation ID (generated when absent) and message ID to
//     the context logger
//  2. builds an Envelope from the broker metadata
//  3. decodes the payload; a decode failure becomes a permanent DecodeError
//     and the message is dead-lettered without retry
//  4. dispatches the entry command and classifies the result
//
// A nil return acks the message. A permanent error is routed to the poison
// queue, and any other error is left to the retry middleware and, after that,
// to broker redelivery.
//
// Example:
//
//	router.AddConsumerHandler("telemetry", "iot.telemetry.>", sub,
//	    eventprocessor.NewIngestHandler("telemetry", telemetry.Decode, orch))
func NewIngestHandler(flow string, decode Decoder, dispatcher pipeline.Dispatcher) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		messageID, _ := DeduplicationKey(msg)

		ctx := msg.Context()
		correlationID := msg.Metadata.Get(MetadataCorrelationID)
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}
		ctx = logging.ContextWithCorrelationID(ctx, correlationID)
		ctx = logging.ContextWithMessageID(ctx, messageID)

		env := Envelope{
			MessageID:  messageID,
			ReceivedAt: time.Now().UTC(),
			Partition:  msg.Metadata.Get(MetadataPartition),
			Metadata:   msg.Metadata,
		}
		if raw := msg.Metadata.Get(MetadataSequence); raw != "" {
			env.Sequence, _ = strconv.ParseUint(raw, 10, 64)
		}
		if raw := msg.Metadata.Get(MetadataEnqueuedTime); raw != "" {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				env.EnqueuedAt = t.UTC()
			}
		}

		cmd, err := decode(msg.Payload, env)
		if err == nil && cmd == nil {
			err = pipeline.ErrNilCommand
		}
		if err != nil {
			metrics.RecordDecode(flow, false)
			metrics.RecordSettlement(flow, "dead_letter")
			logging.Ctx(ctx).Warn().Err(err).Str("flow", flow).Msg("Dropping malformed message")
			return NewDecodeError(err)
		}
		metrics.RecordDecode(flow, true)

		err = Classify(dispatcher.Dispatch(ctx, cmd))
		switch {
		case err == nil:
			metrics.RecordSettlement(flow, "ack")
			return nil
		case IsPermanentError(err):
			metrics.RecordSettlement(flow, "dead_letter")
			logging.Ctx(ctx).Error().Err(err).
				Str("flow", flow).
				Str("command", string(cmd.Kind())).
				Str("category", string(CategoryOf(err))).
				Msg("Cascade failed permanently")
		default:
			metrics.RecordSettlement(flow, "retry")
			logging.Ctx(ctx).Warn().Err(err).
				Str("flow", flow).
				Str("command", string(cmd.Kind())).
				Str("category", string(CategoryOf(err))).
				Msg("Cascade failed, message will be redelivered")
		}
		return err
	}
}
