package arweave

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway is an in-memory Gateway for testing.
// It's behavior-focused: tests set what each transaction and block looks like
// and which calls fail. Calls are recorded in order.
type MockGateway struct {
	mu sync.Mutex

	data     map[string]string
	statuses map[string]*TransactionStatus
	txs      map[string]*Transaction
	blocks   map[string]*Block
	errs     map[string]error
	panics   map[string]any

	calls []string
}

// NewMockGateway creates an empty mock gateway. Unknown transactions report
// status 404, have no data and no tags; unknown blocks fail.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		data:     make(map[string]string),
		statuses: make(map[string]*TransactionStatus),
		txs:      make(map[string]*Transaction),
		blocks:   make(map[string]*Block),
		errs:     make(map[string]error),
		panics:   make(map[string]any),
	}
}

// SetData sets the decoded payload returned for id.
func (m *MockGateway) SetData(id, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
}

// SetStatus sets the status response for id.
func (m *MockGateway) SetStatus(id string, status *TransactionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
}

// SetConfirmed is shorthand for a 200 status with the given confirmation record.
func (m *MockGateway) SetConfirmed(id, blockIndepHash string, confirmations int64) {
	m.SetStatus(id, &TransactionStatus{
		Code: 200,
		Confirmed: &Confirmation{
			BlockIndepHash:        blockIndepHash,
			NumberOfConfirmations: confirmations,
		},
	})
}

// SetTags sets the tags of id, in order. Use NewTag to build them from plain text.
func (m *MockGateway) SetTags(id string, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[id] = &Transaction{ID: id, Tags: tags}
}

// SetBlock registers a block by independent hash.
func (m *MockGateway) SetBlock(indepHash string, timestamp int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[indepHash] = &Block{IndepHash: indepHash, Timestamp: timestamp}
}

// SetError makes the named method ("GetTransactionData", "GetTransactionStatus",
// "GetTransaction" or "GetBlock") fail with err.
func (m *MockGateway) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

// SetPanic makes the named method panic with v.
func (m *MockGateway) SetPanic(method string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[method] = v
}

// Calls returns the methods called so far, in order.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Reset forgets recorded calls.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockGateway) enter(method string) error {
	m.mu.Lock()
	m.calls = append(m.calls, method)
	p, shouldPanic := m.panics[method]
	err := m.errs[method]
	m.mu.Unlock()

	if shouldPanic {
		panic(p)
	}
	return err
}

func (m *MockGateway) GetTransactionData(ctx context.Context, id string) (string, error) {
	if err := m.enter("GetTransactionData"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[id]
	if !ok {
		return "", fmt.Errorf("arweave: GET /tx/%s/data: unexpected status 404", id)
	}
	return data, nil
}

func (m *MockGateway) GetTransactionStatus(ctx context.Context, id string) (*TransactionStatus, error) {
	if err := m.enter("GetTransactionStatus"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[id]
	if !ok {
		return &TransactionStatus{Code: 404}, nil
	}
	return status, nil
}

func (m *MockGateway) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if err := m.enter("GetTransaction"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return &Transaction{ID: id}, nil
	}
	return tx, nil
}

func (m *MockGateway) GetBlock(ctx context.Context, indepHash string) (*Block, error) {
	if err := m.enter("GetBlock"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	block, ok := m.blocks[indepHash]
	if !ok {
		return nil, fmt.Errorf("arweave: GET /block/hash/%s: unexpected status 404", indepHash)
	}
	return block, nil
}
