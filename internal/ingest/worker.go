package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"dalal.st/pulse/internal/globaltime"
	"dalal.st/pulse/internal/news"
)

// Sink receives accepted articles. The db layer implements it.
type Sink interface {
	SaveArticles(ctx context.Context, articles []news.Article) (int, error)
}

// WorkerOptions configures the queue consumer.
type WorkerOptions struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Worker consumes article payloads from the queue and hands them to the
// sink. Offsets are committed manually: a message is committed only after the
// sink accepted it or the payload was parked on the dead letter topic.
type Worker struct {
	reader *kafka.Reader
	dlq    *kafka.Writer
	seen   *SeenCache
	sink   Sink
	logger zerolog.Logger
}

func NewWorker(opts WorkerOptions, sink Sink, logger zerolog.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        opts.Brokers,
		Topic:          opts.Topic,
		GroupID:        opts.GroupID,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits only
	})
	dlq := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     opts.Brokers,
		Topic:       opts.Topic + "_dlq",
		MaxAttempts: 3,
	})
	return &Worker{
		reader: reader,
		dlq:    dlq,
		seen:   NewSeenCache(defaultSeenCapacity, defaultSeenTTL),
		sink:   sink,
		logger: logger,
	}
}

func (w *Worker) Close() error {
	dlqErr := w.dlq.Close()
	if err := w.reader.Close(); err != nil {
		return err
	}
	return dlqErr
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().
		Str("topic", w.reader.Config().Topic).
		Str("group", w.reader.Config().GroupID).
		Msg("queue worker started")

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				w.logger.Info().Msg("queue worker stopping")
				return nil
			}
			w.logger.Error().Err(err).Msg("fetch message")
			continue
		}

		if err := w.processMessage(ctx, msg); err != nil {
			w.logger.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("message failed; parking on dead letter topic")
			if !w.parkMessage(ctx, msg, err) {
				// Not committed: the message is redelivered after restart.
				continue
			}
		}

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			w.logger.Error().Err(err).Msg("commit message")
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, msg kafka.Message) error {
	article, err := decodeQueuedArticle(msg.Value)
	if err != nil {
		return err
	}

	if w.seen.IsSeen(article.ID) {
		w.logger.Debug().Str("article_id", article.ID).Msg("duplicate queue payload")
		return nil
	}

	if _, err := w.sink.SaveArticles(ctx, []news.Article{article}); err != nil {
		return err
	}
	w.seen.MarkSeen(article.ID)
	w.logger.Info().
		Str("article_id", article.ID).
		Str("title", article.Title).
		Msg("article accepted from queue")
	return nil
}

// parkMessage writes a failed payload to the dead letter topic, retrying with
// exponential backoff. Reports whether the write went through.
func (w *Worker) parkMessage(ctx context.Context, msg kafka.Message, cause error) bool {
	parked := kafka.Message{
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(globaltime.UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range 5 {
		err := w.dlq.WriteMessages(ctx, parked)
		if err == nil {
			w.logger.Info().
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Int("attempt", attempt+1).
				Msg("message parked")
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		w.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("dead letter write failed; retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
	}

	w.logger.Error().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("dead letter write exhausted retries")
	return false
}

// decodeQueuedArticle parses a queue payload, assigning an id and publish
// time when the producer left them out.
func decodeQueuedArticle(payload []byte) (news.Article, error) {
	var article news.Article
	if err := json.Unmarshal(payload, &article); err != nil {
		return news.Article{}, fmt.Errorf("decode article payload: %w", err)
	}

	article.Title = strings.TrimSpace(article.Title)
	article.Content = strings.TrimSpace(article.Content)
	if article.Title == "" && article.Content == "" {
		return news.Article{}, errors.New("empty article payload")
	}

	if article.ID == "" {
		article.ID = "QUEUE_" + uuid.NewString()
	}
	if article.PublishedAt == nil {
		now := globaltime.UTC()
		article.PublishedAt = &now
	}
	return article, nil
}
