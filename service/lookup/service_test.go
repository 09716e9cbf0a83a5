package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/arproxy/service/arweave"
	"github.com/brojonat/arproxy/service/cache"
	"github.com/brojonat/arproxy/service/metrics"
	"github.com/brojonat/arproxy/service/nats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// confirmedGateway returns a mock with the ABC123 transaction confirmed in block XYZ.
func confirmedGateway(confirmations int64) *arweave.MockGateway {
	gw := arweave.NewMockGateway()
	gw.SetData("ABC123", `{"msg":"hi"}`)
	gw.SetConfirmed("ABC123", "XYZ", confirmations)
	gw.SetTags("ABC123",
		arweave.NewTag("Content-Type", "text/plain"),
		arweave.NewTag("App", "demo"),
	)
	gw.SetBlock("XYZ", 1700000000)
	return gw
}

func TestLookup_Confirmed(t *testing.T) {
	gw := confirmedGateway(5)
	svc := NewService(gw, 2, nil, nil, nil, discardLogger())

	result, err := svc.Lookup(context.Background(), "ABC123")
	require.NoError(t, err)

	confirmed, ok := result.(*Confirmed)
	require.True(t, ok, "expected *Confirmed, got %T", result)
	assert.Equal(t, "ABC123", confirmed.ID)
	assert.JSONEq(t, `{"msg":"hi"}`, string(confirmed.Data))
	assert.Equal(t, int64(1700000000), confirmed.Timestamp)
	assert.Equal(t, map[string]string{"Content-Type": "text/plain", "App": "demo"}, confirmed.Tags)

	assert.Equal(t, []string{"GetTransactionData", "GetTransactionStatus", "GetTransaction", "GetBlock"}, gw.Calls())
}

func TestLookup_ConfirmedResponseBody(t *testing.T) {
	svc := NewService(confirmedGateway(5), 2, nil, nil, nil, discardLogger())

	result, err := svc.Lookup(context.Background(), "ABC123")
	require.NoError(t, err)

	b, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":"ABC123","data":{"msg":"hi"},"status":"CONFIRMED","timestamp":1700000000,"tags":{"App":"demo","Content-Type":"text/plain"}}`,
		string(b),
	)
}

func TestLookup_NotConfirmed(t *testing.T) {
	tests := []struct {
		name   string
		status *arweave.TransactionStatus
	}{
		{
			name:   "not found",
			status: &arweave.TransactionStatus{Code: 404},
		},
		{
			name:   "pending",
			status: &arweave.TransactionStatus{Code: 202},
		},
		{
			name:   "200 without confirmation record",
			status: &arweave.TransactionStatus{Code: 200},
		},
		{
			name: "below threshold",
			status: &arweave.TransactionStatus{Code: 200, Confirmed: &arweave.Confirmation{
				BlockIndepHash: "XYZ", NumberOfConfirmations: 1,
			}},
		},
		{
			name: "confirmation record on non-200",
			status: &arweave.TransactionStatus{Code: 500, Confirmed: &arweave.Confirmation{
				BlockIndepHash: "XYZ", NumberOfConfirmations: 50,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := confirmedGateway(0)
			gw.SetStatus("ABC123", tt.status)
			svc := NewService(gw, 2, nil, nil, nil, discardLogger())

			result, err := svc.Lookup(context.Background(), "ABC123")
			require.NoError(t, err)

			_, ok := result.(*NotConfirmed)
			require.True(t, ok, "expected *NotConfirmed, got %T", result)
			assert.Equal(t, StatusNotConfirmed, result.Status())

			// No tag or block lookups for unconfirmed transactions
			assert.Equal(t, []string{"GetTransactionData", "GetTransactionStatus"}, gw.Calls())

			b, err := json.Marshal(result)
			require.NoError(t, err)
			var fields map[string]any
			require.NoError(t, json.Unmarshal(b, &fields))
			assert.NotContains(t, fields, "timestamp")
			assert.NotContains(t, fields, "tags")
			assert.Equal(t, "NOT_CONFIRMED", fields["status"])
		})
	}
}

func TestLookup_NotConfirmedScenario(t *testing.T) {
	gw := arweave.NewMockGateway()
	gw.SetData("DEF456", `[1,2,3]`)
	gw.SetStatus("DEF456", &arweave.TransactionStatus{Code: 404})
	svc := NewService(gw, 2, nil, nil, nil, discardLogger())

	result, err := svc.Lookup(context.Background(), "DEF456")
	require.NoError(t, err)

	b, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"DEF456","data":[1,2,3],"status":"NOT_CONFIRMED"}`, string(b))
}

func TestLookup_Threshold(t *testing.T) {
	tests := []struct {
		confirmations int64
		minimum       int64
		want          Status
	}{
		{confirmations: 1, minimum: 2, want: StatusNotConfirmed},
		{confirmations: 2, minimum: 2, want: StatusConfirmed},
		{confirmations: 3, minimum: 2, want: StatusConfirmed},
		{confirmations: 9, minimum: 10, want: StatusNotConfirmed},
		{confirmations: 0, minimum: 0, want: StatusConfirmed},
	}

	for _, tt := range tests {
		svc := NewService(confirmedGateway(tt.confirmations), tt.minimum, nil, nil, nil, discardLogger())
		result, err := svc.Lookup(context.Background(), "ABC123")
		require.NoError(t, err)
		assert.Equal(t, tt.want, result.Status(), "confirmations=%d minimum=%d", tt.confirmations, tt.minimum)
	}
}

func TestIsConfirmed_NilStatus(t *testing.T) {
	assert.False(t, IsConfirmed(nil, 0))
}

func TestLookup_Idempotent(t *testing.T) {
	svc := NewService(confirmedGateway(5), 2, nil, nil, nil, discardLogger())
	ctx := context.Background()

	first, err := svc.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	second, err := svc.Lookup(ctx, "ABC123")
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestLookup_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(gw *arweave.MockGateway)
		wantOp  string
		wantMsg string
	}{
		{
			name:    "data fetch fails",
			setup:   func(gw *arweave.MockGateway) { gw.SetError("GetTransactionData", errors.New("boom")) },
			wantOp:  OpGetTransactionData,
			wantMsg: "boom",
		},
		{
			name:    "data is not JSON",
			setup:   func(gw *arweave.MockGateway) { gw.SetData("ABC123", "hello world") },
			wantOp:  OpParseTransactionData,
			wantMsg: "invalid character 'h' looking for beginning of value",
		},
		{
			name:    "data is empty",
			setup:   func(gw *arweave.MockGateway) { gw.SetData("ABC123", "") },
			wantOp:  OpParseTransactionData,
			wantMsg: "unexpected end of JSON input",
		},
		{
			name:    "status fetch fails",
			setup:   func(gw *arweave.MockGateway) { gw.SetError("GetTransactionStatus", errors.New("dial tcp: timeout")) },
			wantOp:  OpGetTransactionStatus,
			wantMsg: "dial tcp: timeout",
		},
		{
			name:    "status missing",
			setup:   func(gw *arweave.MockGateway) { gw.SetStatus("ABC123", nil) },
			wantOp:  OpGetTransactionStatus,
			wantMsg: "gateway returned no status",
		},
		{
			name:    "transaction fetch fails",
			setup:   func(gw *arweave.MockGateway) { gw.SetError("GetTransaction", errors.New("502 bad gateway")) },
			wantOp:  OpGetTransaction,
			wantMsg: "502 bad gateway",
		},
		{
			name: "tag cannot be decoded",
			setup: func(gw *arweave.MockGateway) {
				gw.SetTags("ABC123", arweave.Tag{Name: "***", Value: "dmFsdWU"})
			},
			wantOp:  OpDecodeTags,
			wantMsg: "decode tag name",
		},
		{
			name:    "block fetch fails",
			setup:   func(gw *arweave.MockGateway) { gw.SetError("GetBlock", errors.New("block not found")) },
			wantOp:  OpGetBlock,
			wantMsg: "block not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := confirmedGateway(5)
			tt.setup(gw)
			svc := NewService(gw, 2, nil, nil, nil, discardLogger())

			result, err := svc.Lookup(context.Background(), "ABC123")
			require.Error(t, err)
			assert.Nil(t, result)

			var opErr *OperationError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, tt.wantOp, opErr.Op)
			assert.Equal(t, tt.wantOp, FailedOp(err))
			assert.Contains(t, FailureMessage(err), tt.wantMsg)
		})
	}
}

func TestLookup_DataErrorMessageIsUnchanged(t *testing.T) {
	gw := confirmedGateway(5)
	gw.SetError("GetTransactionData", errors.New("boom"))
	svc := NewService(gw, 2, nil, nil, nil, discardLogger())

	_, err := svc.Lookup(context.Background(), "ABC123")
	require.Error(t, err)
	assert.Equal(t, "boom", FailureMessage(err))
	assert.Equal(t, []string{"GetTransactionData"}, gw.Calls())
}

func TestLookup_CacheServesConfirmed(t *testing.T) {
	ctx := context.Background()
	gw := confirmedGateway(5)
	c := cache.NewMemory(time.Minute)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	svc := NewService(gw, 2, c, nil, m, discardLogger())

	first, err := svc.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	assert.Len(t, gw.Calls(), 4)
	assert.Equal(t, 1, c.Len())

	gw.Reset()
	second, err := svc.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	assert.Empty(t, gw.Calls(), "cache hit must not reach the gateway")

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))

	count, err := testutil.GatherAndCount(reg, "transaction_cache_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count) // one miss series, one hit series
}

func TestLookup_CacheSkipsNotConfirmed(t *testing.T) {
	ctx := context.Background()
	gw := confirmedGateway(1)
	c := cache.NewMemory(time.Minute)
	svc := NewService(gw, 2, c, nil, nil, discardLogger())

	_, err := svc.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	// Once the transaction crosses the threshold the next lookup sees it.
	gw.SetConfirmed("ABC123", "XYZ", 2)
	result, err := svc.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status())
	assert.Equal(t, 1, c.Len())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache unavailable")
}

func (failingCache) Set(context.Context, string, []byte) error {
	return errors.New("cache unavailable")
}

func TestLookup_CacheFailureDoesNotFailLookup(t *testing.T) {
	svc := NewService(confirmedGateway(5), 2, failingCache{}, nil, nil, discardLogger())

	result, err := svc.Lookup(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status())
}

func TestLookup_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	gw := confirmedGateway(5)
	gw.SetData("DEF456", `{}`)
	publisher := nats.NewMockPublisher()
	svc := NewService(gw, 2, nil, publisher, nil, discardLogger())

	_, err := svc.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, "DEF456")
	require.NoError(t, err)

	events := publisher.GetPublishedEvents()
	require.Len(t, events, 2)

	assert.Equal(t, "ABC123", events[0].ID)
	assert.Equal(t, "CONFIRMED", events[0].Status)
	assert.Equal(t, SourceGateway, events[0].Source)
	require.NotNil(t, events[0].Timestamp)
	assert.Equal(t, int64(1700000000), *events[0].Timestamp)
	assert.Equal(t, "demo", events[0].Tags["App"])
	assert.Equal(t, "arweave.lookups.confirmed", events[0].Subject())

	assert.Equal(t, "DEF456", events[1].ID)
	assert.Equal(t, "NOT_CONFIRMED", events[1].Status)
	assert.Nil(t, events[1].Timestamp)
	assert.Nil(t, events[1].Tags)
}

func TestLookup_PublishFailureDoesNotFailLookup(t *testing.T) {
	publisher := nats.NewMockPublisher()
	publisher.SetPublishError(errors.New("nats down"))
	svc := NewService(confirmedGateway(5), 2, nil, publisher, nil, discardLogger())

	_, err := svc.Lookup(context.Background(), "ABC123")
	require.NoError(t, err)
}

func TestLookup_NoEventOnFailure(t *testing.T) {
	gw := confirmedGateway(5)
	gw.SetError("GetBlock", errors.New("block not found"))
	publisher := nats.NewMockPublisher()
	svc := NewService(gw, 2, nil, publisher, nil, discardLogger())

	_, err := svc.Lookup(context.Background(), "ABC123")
	require.Error(t, err)
	assert.Equal(t, 0, publisher.GetPublishedEventCount())
}

func TestLookup_PayloadWithByteOrderMark(t *testing.T) {
	gw := arweave.NewMockGateway()
	gw.SetData("BOM1", "\xEF\xBB\xBF{\"msg\":\"hi\"}")
	gw.SetStatus("BOM1", &arweave.TransactionStatus{Code: 202})
	svc := NewService(gw, 2, nil, nil, nil, discardLogger())

	result, err := svc.Lookup(context.Background(), "BOM1")
	require.NoError(t, err)

	b, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"BOM1","data":{"msg":"hi"},"status":"NOT_CONFIRMED"}`, string(b))
}

func TestLookup_ByteOrderMarkOnlyIsStillInvalid(t *testing.T) {
	gw := arweave.NewMockGateway()
	gw.SetData("BOM2", "\xEF\xBB\xBF")
	svc := NewService(gw, 2, nil, nil, nil, discardLogger())

	_, err := svc.Lookup(context.Background(), "BOM2")
	require.Error(t, err)
	assert.Equal(t, OpParseTransactionData, FailedOp(err))
}
