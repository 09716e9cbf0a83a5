package lookup

import (
	"encoding/json"
)

// Status is the confirmation state reported to callers.
type Status string

const (
	StatusConfirmed    Status = "CONFIRMED"
	StatusNotConfirmed Status = "NOT_CONFIRMED"
)

// Result is the outcome of a successful lookup: either *Confirmed or *NotConfirmed.
// Only a confirmed result carries a timestamp and tags.
type Result interface {
	TransactionID() string
	Status() Status
	isResult()
}

// Confirmed is a transaction with at least the required number of confirmations.
type Confirmed struct {
	ID        string
	Data      json.RawMessage
	Timestamp int64
	Tags      map[string]string
}

func (c *Confirmed) TransactionID() string { return c.ID }
func (c *Confirmed) Status() Status         { return StatusConfirmed }
func (*Confirmed) isResult()                {}

// NotConfirmed is a transaction that is pending, unknown to the gateway's
// status endpoint, or below the confirmation threshold.
type NotConfirmed struct {
	ID   string
	Data json.RawMessage
}

func (n *NotConfirmed) TransactionID() string { return n.ID }
func (n *NotConfirmed) Status() Status         { return StatusNotConfirmed }
func (*NotConfirmed) isResult()                {}

// confirmedJSON is the wire form of Confirmed. It is also what the cache stores.
type confirmedJSON struct {
	ID        string            `json:"id"`
	Data      json.RawMessage   `json:"data"`
	Status    Status            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Tags      map[string]string `json:"tags"`
}

type notConfirmedJSON struct {
	ID     string          `json:"id"`
	Data   json.RawMessage `json:"data"`
	Status Status          `json:"status"`
}

func (c *Confirmed) MarshalJSON() ([]byte, error) {
	tags := c.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return json.Marshal(confirmedJSON{
		ID:        c.ID,
		Data:      orNull(c.Data),
		Status:    StatusConfirmed,
		Timestamp: c.Timestamp,
		Tags:      tags,
	})
}

func (c *Confirmed) UnmarshalJSON(b []byte) error {
	var v confirmedJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = Confirmed{ID: v.ID, Data: v.Data, Timestamp: v.Timestamp, Tags: v.Tags}
	return nil
}

func (n *NotConfirmed) MarshalJSON() ([]byte, error) {
	return json.Marshal(notConfirmedJSON{
		ID:     n.ID,
		Data:   orNull(n.Data),
		Status: StatusNotConfirmed,
	})
}

// orNull keeps an empty payload encodable.
func orNull(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return data
}
