package models

import "time"

// User represents one conversing user, keyed by a stable identity
// (the WhatsApp phone number). Created lazily on first inbound message.
type User struct {
	ID           string     `json:"id"`
	Identity     string     `json:"identity"`
	CreatedAt    time.Time  `json:"created_at"`
	LastRequest  *time.Time `json:"last_request,omitempty"`
	RequestCount int64      `json:"request_count"`
}

// TryOnSession represents one try-on job attempt: a person image, a garment
// image and, once the job finishes, a result image. A session with a nil
// CompletedAt is the identity's active session; there is at most one.
type TryOnSession struct {
	ID           string     `json:"id"`
	Identity     string     `json:"identity"`
	PersonImage  string     `json:"person_image"`
	GarmentImage *string    `json:"garment_image,omitempty"`
	ResultImage  *string    `json:"result_image,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Active reports whether the session is still open.
func (s *TryOnSession) Active() bool {
	return s.CompletedAt == nil
}

// AwaitingGarment reports whether the session has a person image but no
// garment image yet.
func (s *TryOnSession) AwaitingGarment() bool {
	return s.Active() && s.GarmentImage == nil
}

// QuotaEntry is the per-identity counter backing the rate limiter.
type QuotaEntry struct {
	Identity  string    `json:"identity"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry's window has elapsed at the given instant.
func (e *QuotaEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// LimitStatus is the read-only quota view returned by the limits endpoint.
type LimitStatus struct {
	Identity       string     `json:"phone_number"`
	Used           int        `json:"daily_requests_used"`
	Remaining      int        `json:"daily_requests_remaining"`
	ResetInSeconds int64      `json:"reset_in_seconds"`
	LifetimeTotal  int64      `json:"total_requests_all_time"`
	LastRequest    *time.Time `json:"last_request"`
}
