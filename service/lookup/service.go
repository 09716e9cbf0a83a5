// Package lookup resolves an Arweave transaction id into its payload,
// confirmation status and, once confirmed, its tags and block timestamp.
package lookup

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/arproxy/service/arweave"
	"github.com/brojonat/arproxy/service/metrics"
	"github.com/brojonat/arproxy/service/nats"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// utf8BOM is dropped from the front of a payload before it is parsed, as a
// UTF-8 text decoder would.
const utf8BOM = "\xEF\xBB\xBF"

// DefaultMinConfirmations is the confirmation threshold used when none is configured.
const DefaultMinConfirmations = 2

// Where a result came from, for metrics and events.
const (
	SourceGateway = "gateway"
	SourceCache   = "cache"
)

// Cache stores confirmed results. See package cache for implementations.
type Cache interface {
	Get(ctx context.Context, id string) ([]byte, bool, error)
	Set(ctx context.Context, id string, value []byte) error
}

// Publisher receives an event for every successful lookup.
type Publisher interface {
	PublishLookup(ctx context.Context, event *nats.LookupEvent) error
}

// Service performs transaction lookups against an Arweave gateway.
type Service struct {
	gateway          arweave.Gateway
	minConfirmations int64
	cache            Cache
	publisher        Publisher
	metrics          *metrics.Metrics
	logger           *slog.Logger
	tracer           trace.Tracer
}

// NewService creates a lookup service.
// The cache is optional - if nil, every lookup goes to the gateway.
// The publisher is optional - if nil, no lookup events are published.
// The metrics is optional - if nil, no lookup metrics are recorded.
func NewService(gateway arweave.Gateway, minConfirmations int64, cache Cache, publisher Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		gateway:          gateway,
		minConfirmations: minConfirmations,
		cache:            cache,
		publisher:        publisher,
		metrics:          m,
		logger:           logger,
		tracer:           otel.Tracer("github.com/brojonat/arproxy/service/lookup"),
	}
}

// IsConfirmed reports whether status counts as confirmed: the gateway answered
// 200, included a confirmation record, and the record has at least
// minConfirmations confirmations.
func IsConfirmed(status *arweave.TransactionStatus, minConfirmations int64) bool {
	return status != nil &&
		status.Code == 200 &&
		status.Confirmed != nil &&
		status.Confirmed.NumberOfConfirmations >= minConfirmations
}

// Lookup resolves id. Gateway calls are made one after another: data, status,
// and for confirmed transactions the transaction document and its block.
// Any failure aborts the lookup with an *OperationError; partial results are
// never returned.
func (s *Service) Lookup(ctx context.Context, id string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "lookup.Lookup", trace.WithAttributes(attribute.String("arweave.tx_id", id)))
	defer span.End()

	if cached, ok := s.fromCache(ctx, id); ok {
		span.SetAttributes(attribute.String("lookup.source", SourceCache))
		s.finish(ctx, cached, SourceCache)
		return cached, nil
	}

	result, err := s.fromGateway(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.metrics != nil {
			s.metrics.RecordLookup("error", SourceGateway)
		}
		return nil, err
	}

	if confirmed, ok := result.(*Confirmed); ok {
		s.toCache(ctx, confirmed)
	}

	span.SetAttributes(
		attribute.String("lookup.source", SourceGateway),
		attribute.String("lookup.status", string(result.Status())),
	)
	s.finish(ctx, result, SourceGateway)
	return result, nil
}

func (s *Service) fromGateway(ctx context.Context, id string) (Result, error) {
	raw, err := s.gateway.GetTransactionData(ctx, id)
	if err != nil {
		return nil, &OperationError{Op: OpGetTransactionData, Err: err}
	}

	var data json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimPrefix(raw, utf8BOM)), &data); err != nil {
		return nil, &OperationError{Op: OpParseTransactionData, Err: err}
	}

	status, err := s.gateway.GetTransactionStatus(ctx, id)
	if err != nil {
		return nil, &OperationError{Op: OpGetTransactionStatus, Err: err}
	}
	if status == nil {
		return nil, &OperationError{Op: OpGetTransactionStatus, Err: errNoStatus}
	}

	if !IsConfirmed(status, s.minConfirmations) {
		s.logger.DebugContext(ctx, "transaction not confirmed",
			"id", id,
			"status_code", status.Code,
			"has_confirmation", status.Confirmed != nil,
		)
		return &NotConfirmed{ID: id, Data: data}, nil
	}

	tx, err := s.gateway.GetTransaction(ctx, id)
	if err != nil {
		return nil, &OperationError{Op: OpGetTransaction, Err: err}
	}
	if tx == nil {
		return nil, &OperationError{Op: OpGetTransaction, Err: errNoTransaction}
	}

	tags, err := arweave.DecodeTags(tx.Tags)
	if err != nil {
		return nil, &OperationError{Op: OpDecodeTags, Err: err}
	}

	block, err := s.gateway.GetBlock(ctx, status.Confirmed.BlockIndepHash)
	if err != nil {
		return nil, &OperationError{Op: OpGetBlock, Err: err}
	}
	if block == nil {
		return nil, &OperationError{Op: OpGetBlock, Err: errNoBlock}
	}

	return &Confirmed{
		ID:        id,
		Data:      data,
		Timestamp: block.Timestamp,
		Tags:      tags,
	}, nil
}

// fromCache returns a previously confirmed result. Cache failures are
// logged and treated as a miss.
func (s *Service) fromCache(ctx context.Context, id string) (*Confirmed, bool) {
	if s.cache == nil {
		return nil, false
	}

	b, found, err := s.cache.Get(ctx, id)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "failed to read lookup cache", "id", id, "error", err)
		s.recordCache("error")
		return nil, false
	case !found:
		s.recordCache("miss")
		return nil, false
	}

	var confirmed Confirmed
	if err := json.Unmarshal(b, &confirmed); err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable cache entry", "id", id, "error", err)
		s.recordCache("error")
		return nil, false
	}

	s.recordCache("hit")
	return &confirmed, true
}

// toCache stores a confirmed result. Only confirmed results are cached: past
// the threshold a transaction's payload, tags and block no longer change.
func (s *Service) toCache(ctx context.Context, confirmed *Confirmed) {
	if s.cache == nil {
		return
	}

	b, err := json.Marshal(confirmed)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode lookup for cache", "id", confirmed.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, confirmed.ID, b); err != nil {
		s.logger.WarnContext(ctx, "failed to write lookup cache", "id", confirmed.ID, "error", err)
	}
}

func (s *Service) recordCache(result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheRequest(result)
	}
}

// finish logs, records and publishes a successful lookup.
func (s *Service) finish(ctx context.Context, result Result, source string) {
	s.logger.InfoContext(ctx, "transaction lookup",
		"id", result.TransactionID(),
		"status", result.Status(),
		"source", source,
	)

	if s.metrics != nil {
		label := "not_confirmed"
		if result.Status() == StatusConfirmed {
			label = "confirmed"
		}
		s.metrics.RecordLookup(label, source)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLookup(ctx, newLookupEvent(result, source)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish lookup event",
			"id", result.TransactionID(),
			"error", err,
		)
	}
}

func newLookupEvent(result Result, source string) *nats.LookupEvent {
	event := &nats.LookupEvent{
		ID:          result.TransactionID(),
		Status:      string(result.Status()),
		Source:      source,
		PublishedAt: time.Now().UTC(),
	}
	if confirmed, ok := result.(*Confirmed); ok {
		ts := confirmed.Timestamp
		event.Timestamp = &ts
		event.Tags = confirmed.Tags
	}
	return event
}
