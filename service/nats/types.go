package nats

import (
	"time"
)

// LookupEvent describes one successful transaction lookup.
// It is published to the subject "arweave.lookups.{status}" in JetStream,
// where status is "confirmed" or "not_confirmed".
type LookupEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"` // CONFIRMED or NOT_CONFIRMED

	// Set only for confirmed transactions
	Timestamp *int64            `json:"timestamp,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`

	// Source is "gateway" when the lookup reached Arweave, "cache" otherwise
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the subject the event is published to.
func (e *LookupEvent) Subject() string {
	if e.Status == "CONFIRMED" {
		return SubjectPrefix + "confirmed"
	}
	return SubjectPrefix + "not_confirmed"
}
