// Package agentfeed consumes action updates published by the agent backend
// on a Kafka topic and applies them to the action store.
package agentfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/primcare/dashboard/internal/domain/action"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Updater applies agent updates to actions.
type Updater interface {
	UpdateStatus(ctx context.Context, sessionID, patientID, actionID, status string) error
	AppendActivity(ctx context.Context, sessionID, patientID, actionID string, entry action.ActivityLogEntry) error
}

// Update is one message on the topic. Status and Entry are both optional but
// at least one must be set.
type Update struct {
	SessionID string                   `json:"session_id"`
	PatientID string                   `json:"patient_id"`
	ActionID  string                   `json:"action_id"`
	Status    string                   `json:"status,omitempty"`
	Entry     *action.ActivityLogEntry `json:"entry,omitempty"`
}

var ErrInvalidUpdate = errors.New("invalid agent update")

func (u Update) validate() error {
	if u.SessionID == "" || u.PatientID == "" || u.ActionID == "" {
		return fmt.Errorf("%w: session_id, patient_id and action_id are required", ErrInvalidUpdate)
	}
	if u.Status == "" && u.Entry == nil {
		return fmt.Errorf("%w: status or entry is required", ErrInvalidUpdate)
	}
	if u.Status != "" && !action.ValidStatus(u.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidUpdate, u.Status)
	}
	return nil
}

// NewReader returns a consumer-group reader for the agent update topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

type Consumer struct {
	reader  MessageReader
	updates Updater
	logger  zerolog.Logger
}

func NewConsumer(reader MessageReader, updates Updater, logger zerolog.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		updates: updates,
		logger:  logger.With().Str("component", "agentfeed").Logger(),
	}
}

// Close releases the reader. Run closes it on return as well.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Run reads until ctx is canceled. A message that cannot be applied is logged
// and committed; updates are not retried.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info().Msg("agent feed started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("agent feed stopped")
				return nil
			}
			return fmt.Errorf("fetch agent update: %w", err)
		}

		if err := c.Handle(ctx, msg); err != nil {
			c.logger.Warn().Err(err).
				Int("partition", msg.Partition).Int64("offset", msg.Offset).
				Str("key", string(msg.Key)).
				Msg("skip agent update")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit agent update: %w", err)
		}
	}
}

// Handle decodes one message and applies it: the status first, then the
// activity entry.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	var u Update
	if err := json.Unmarshal(msg.Value, &u); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if err := u.validate(); err != nil {
		return err
	}

	if u.Status != "" {
		if err := c.updates.UpdateStatus(ctx, u.SessionID, u.PatientID, u.ActionID, u.Status); err != nil {
			return fmt.Errorf("update status of %s: %w", u.ActionID, err)
		}
	}
	if u.Entry != nil {
		if err := c.updates.AppendActivity(ctx, u.SessionID, u.PatientID, u.ActionID, *u.Entry); err != nil {
			return fmt.Errorf("append activity to %s: %w", u.ActionID, err)
		}
	}

	c.logger.Debug().Str("session_id", u.SessionID).Str("patient_id", u.PatientID).
		Str("action_id", u.ActionID).Str("status", u.Status).
		Msg("agent update applied")
	return nil
}
