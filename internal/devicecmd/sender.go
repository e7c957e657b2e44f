// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package devicecmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
	"github.com/tomtom215/iotpipeline/internal/metrics"
)

// Outcome is the result of one delivery attempt.
type Outcome int

const (
	Delivered Outcome = iota
	Failed
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	}
	return "Outcome(" + strconv.Itoa(int(o)) + ")"
}

// ErrRateLimited is returned when a device has exhausted its command budget.
var ErrRateLimited = errors.New("device command rate limit exceeded")

// Command is one cloud-to-device command.
type Command struct {
	DeviceID domain.DeviceID
	Name     string
	Payload  map[string]any
}

// Sender delivers commands. The error return is reserved for failures that
// are not a delivery outcome, such as an unencodable payload or a rate limit.
type Sender interface {
	Send(ctx context.Context, cmd Command) (Outcome, error)
}

// MsgPublisher is the subset of jetstream.JetStream used to publish.
type MsgPublisher interface {
	PublishMsg(ctx context.Context, msg *natsgo.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type Config struct {
	SubjectPrefix string
	Timeout       time.Duration
	MessageTTL    time.Duration
	// Commands per second per device; 0 disables limiting.
	RatePerSecond float64
	RateBurst     int
}

func DefaultConfig() Config {
	return Config{
		SubjectPrefix: "iot.commands",
		Timeout:       30 * time.Second,
		MessageTTL:    time.Hour,
		RatePerSecond: 1,
		RateBurst:     5,
	}
}

type wireCommand struct {
	Command   string         `json:"command"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// JetStreamSender publishes commands to per-device subjects.
type JetStreamSender struct {
	js      MsgPublisher
	cfg     Config
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *DeviceLimiter
	now     func() time.Time
}

// NewJetStreamSender creates a sender. breaker may be nil.
func NewJetStreamSender(js MsgPublisher, cfg Config, breaker *gobreaker.CircuitBreaker[interface{}]) *JetStreamSender {
	def := DefaultConfig()
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MessageTTL <= 0 {
		cfg.MessageTTL = def.MessageTTL
	}
	return &JetStreamSender{
		js:      js,
		cfg:     cfg,
		breaker: breaker,
		limiter: NewDeviceLimiter(cfg.RatePerSecond, cfg.RateBurst),
		now:     time.Now,
	}
}

// Subject returns the subject commands for id are published on.
func (s *JetStreamSender) Subject(id domain.DeviceID) string {
	return s.cfg.SubjectPrefix + "." + string(id)
}

// Send publishes cmd to the device's subject and reports how delivery went.
//
// Send proceeds as follows:
//  1. the per-device rate limiter is consulted; a denied command returns
//     Failed with ErrRateLimited and nothing is published
//  2. the command is encoded with a send timestamp, and the headers carry a
//     fresh Nats-Msg-Id plus command, timestamp and expiry values
//  3. the message is published through the circuit breaker, bounded by
//     Config.Timeout
//  4. the publish result is mapped to Delivered, TimedOut or Failed
//
// Delivery outcomes are returned with a nil error; only rate limiting, encode
// failures and cancellation of ctx by the caller produce an error.
//
// Example:
//
//	outcome, err := sender.Send(ctx, devicecmd.Command{
//	    DeviceID: "pump-7",
//	    Name:     "shutdown",
//	    Payload:  map[string]any{"reason": "critical alert"},
//	})
//	if err == nil && outcome != devicecmd.Delivered {
//	    // retry later or escalate
//	}
func (s *JetStreamSender) Send(ctx context.Context, cmd Command) (Outcome, error) {
	log := logging.Ctx(ctx).With().
		Str("device_id", cmd.DeviceID.String()).
		Str("command", cmd.Name).
		Logger()

	if !s.limiter.Allow(cmd.DeviceID) {
		metrics.RecordDeviceCommand("rate_limited", 0)
		return Failed, ErrRateLimited
	}

	sentAt := s.now().UTC()
	body, err := json.Marshal(wireCommand{Command: cmd.Name, Payload: cmd.Payload, Timestamp: sentAt})
	if err != nil {
		return Failed, fmt.Errorf("encode command %s: %w", cmd.Name, err)
	}

	msg := natsgo.NewMsg(s.Subject(cmd.DeviceID))
	msg.Data = body
	msg.Header.Set(natsgo.MsgIdHdr, uuid.NewString())
	msg.Header.Set("command", cmd.Name)
	msg.Header.Set("timestamp", sentAt.Format(time.RFC3339Nano))
	msg.Header.Set("expires", sentAt.Add(s.cfg.MessageTTL).Format(time.RFC3339Nano))

	log.Info().Msg("Sending device command")

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err = s.publish(sendCtx, msg)
	if err != nil && ctx.Err() != nil {
		// The caller gave up; that is not a delivery outcome.
		return Failed, ctx.Err()
	}
	outcome := classify(sendCtx, err)
	metrics.RecordDeviceCommand(outcome.String(), time.Since(start))

	switch outcome {
	case Delivered:
		log.Info().Msg("Device command delivered")
	case TimedOut:
		log.Warn().Dur("timeout", s.cfg.Timeout).Msg("Device command timed out")
	default:
		log.Error().Err(err).Msg("Device command delivery failed")
	}
	return outcome, nil
}

func (s *JetStreamSender) publish(ctx context.Context, msg *natsgo.Msg) error {
	if s.breaker == nil {
		_, err := s.js.PublishMsg(ctx, msg)
		return err
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.js.PublishMsg(ctx, msg)
	})
	return err
}

// Prune drops rate limiters for devices idle longer than idle.
func (s *JetStreamSender) Prune(idle time.Duration) int {
	return s.limiter.Prune(idle)
}

func classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return Delivered
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, natsgo.ErrTimeout),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return TimedOut
	default:
		return Failed
	}
}
