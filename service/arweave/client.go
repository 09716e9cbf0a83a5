package arweave

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/arproxy/service/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/brojonat/arproxy/service/arweave"

// Client wraps a Gateway with logging, metrics and tracing.
// It implements Gateway itself so callers do not need to know it is there.
type Client struct {
	gateway Gateway
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewClient creates a new Arweave client around gateway.
// If metrics is nil, no metrics will be recorded. Spans go to the global
// tracer provider, which is a no-op unless tracing was configured.
func NewClient(gateway Gateway, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		gateway: gateway,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
	}
}

// GetTransactionData fetches the decoded transaction payload.
func (c *Client) GetTransactionData(ctx context.Context, id string) (string, error) {
	ctx, span := c.start(ctx, "GetTransactionData", attribute.String("arweave.tx_id", id))
	defer span.End()

	start := time.Now()
	data, err := c.gateway.GetTransactionData(ctx, id)
	c.observe(ctx, span, "GetTransactionData", start, err, "tx_id", id, "bytes", len(data))
	return data, err
}

// GetTransactionStatus fetches the confirmation status of a transaction.
func (c *Client) GetTransactionStatus(ctx context.Context, id string) (*TransactionStatus, error) {
	ctx, span := c.start(ctx, "GetTransactionStatus", attribute.String("arweave.tx_id", id))
	defer span.End()

	start := time.Now()
	status, err := c.gateway.GetTransactionStatus(ctx, id)
	if status != nil {
		span.SetAttributes(attribute.Int("arweave.status_code", status.Code))
		if status.Confirmed != nil {
			span.SetAttributes(attribute.Int64("arweave.confirmations", status.Confirmed.NumberOfConfirmations))
		}
	}
	c.observe(ctx, span, "GetTransactionStatus", start, err, "tx_id", id)
	return status, err
}

// GetTransaction fetches the full transaction document.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	ctx, span := c.start(ctx, "GetTransaction", attribute.String("arweave.tx_id", id))
	defer span.End()

	start := time.Now()
	tx, err := c.gateway.GetTransaction(ctx, id)
	c.observe(ctx, span, "GetTransaction", start, err, "tx_id", id)
	return tx, err
}

// GetBlock fetches a block by its independent hash.
func (c *Client) GetBlock(ctx context.Context, indepHash string) (*Block, error) {
	ctx, span := c.start(ctx, "GetBlock", attribute.String("arweave.block_indep_hash", indepHash))
	defer span.End()

	start := time.Now()
	block, err := c.gateway.GetBlock(ctx, indepHash)
	c.observe(ctx, span, "GetBlock", start, err, "block_indep_hash", indepHash)
	return block, err
}

func (c *Client) start(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "arweave."+method, trace.WithAttributes(attrs...))
}

// observe records the outcome of one gateway call.
func (c *Client) observe(ctx context.Context, span trace.Span, method string, start time.Time, err error, attrs ...any) {
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.ErrorContext(ctx, "arweave gateway call failed",
			append([]any{"method", method, "duration", duration, "error", err}, attrs...)...,
		)
	} else {
		c.logger.DebugContext(ctx, "arweave gateway call",
			append([]any{"method", method, "duration", duration}, attrs...)...,
		)
	}

	if c.metrics != nil {
		c.metrics.RecordGatewayCall(method, status, duration.Seconds())
	}
}
