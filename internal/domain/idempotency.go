package domain

import "time"

// IdempotencyRecord pins a client-supplied request key to the outcome of
// one unsafe operation. At most one record exists per (key, resource
// type); expired records are purged and the key becomes reusable.
// ResourceID stays nil until the guarded operation completes.
type IdempotencyRecord struct {
	Key          string
	ResourceType string
	ResourceID   *string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the record's TTL window has elapsed.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
