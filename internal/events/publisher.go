// Package events publishes job and content events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
	"github.com/jonesrussell/north-cloud/curator/internal/logger"
)

// DefaultStream is used when no stream name is configured.
const DefaultStream = "curator:events"

// EventType names an event.
type EventType string

const (
	JobStatusChanged EventType = "job.status_changed"
	ContentUpserted  EventType = "content.upserted"
)

// Event is the envelope stored in the stream's "event" field.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// JobStatusPayload describes a job after a status change.
type JobStatusPayload struct {
	JobID              string  `json:"job_id"`
	Name               string  `json:"name"`
	Type               string  `json:"type"`
	Status             string  `json:"status"`
	Attempt            int     `json:"attempt"`
	SourceID           *string `json:"source_id,omitempty"`
	ProgressPercentage float64 `json:"progress_percentage"`
	ItemsFound         int     `json:"items_found"`
	ItemsProcessed     int     `json:"items_processed"`
	ItemsSuccessful    int     `json:"items_successful"`
	ItemsFailed        int     `json:"items_failed"`
	ErrorSummary       *string `json:"error_summary,omitempty"`
}

// ContentUpsertedPayload describes a stored content item.
type ContentUpsertedPayload struct {
	ContentID    string   `json:"content_id"`
	SourceURL    string   `json:"source_url"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	SubjectTags  []string `json:"subject_tags"`
	QualityScore int      `json:"quality_score"`
	IsValuable   bool     `json:"is_valuable"`
	Inserted     bool     `json:"inserted"`
}

// Publisher writes events to a Redis stream. A nil *Publisher is a no-op.
type Publisher struct {
	client *redis.Client
	stream string
	log    logger.Logger
}

// NewPublisher creates a publisher. Returns nil if client is nil.
func NewPublisher(client *redis.Client, stream string, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{client: client, stream: stream, log: log}
}

// Publish sends an event to the stream, filling EventID and Timestamp when
// unset.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":  string(event.EventType),
			"event": string(payload),
		},
	})
	if publishErr := result.Err(); publishErr != nil {
		p.log.Error("Failed to publish event",
			logger.String("event_type", string(event.EventType)),
			logger.Error(publishErr),
		)
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	p.log.Debug("Published event",
		logger.String("event_type", string(event.EventType)),
		logger.String("stream_id", result.Val()),
	)
	return nil
}

// PublishJobStatus announces a job's current status.
func (p *Publisher) PublishJobStatus(ctx context.Context, job *domain.Job) error {
	if p == nil {
		return nil
	}
	return p.Publish(ctx, Event{
		EventType: JobStatusChanged,
		Payload: JobStatusPayload{
			JobID:              job.ID,
			Name:               job.Name,
			Type:               string(job.Type),
			Status:             string(job.Status),
			Attempt:            job.Attempt,
			SourceID:           job.SourceID,
			ProgressPercentage: job.ProgressPercentage,
			ItemsFound:         job.ItemsFound,
			ItemsProcessed:     job.ItemsProcessed,
			ItemsSuccessful:    job.ItemsSuccessful,
			ItemsFailed:        job.ItemsFailed,
			ErrorSummary:       job.ErrorSummary,
		},
	})
}

// PublishContentUpserted announces a stored content item.
func (p *Publisher) PublishContentUpserted(ctx context.Context, item *domain.ContentItem, inserted bool) error {
	if p == nil {
		return nil
	}
	tags := []string(item.SubjectTags)
	if tags == nil {
		tags = []string{}
	}
	return p.Publish(ctx, Event{
		EventType: ContentUpserted,
		Payload: ContentUpsertedPayload{
			ContentID:    item.ID,
			SourceURL:    item.SourceURL,
			Title:        item.Title,
			Category:     item.Category,
			SubjectTags:  tags,
			QualityScore: item.QualityScore,
			IsValuable:   item.IsValuable,
			Inserted:     inserted,
		},
	})
}
