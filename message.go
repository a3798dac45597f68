package maru

import "time"

// DeliveryStatus tracks a message through the optimistic send lifecycle.
type DeliveryStatus int

const (
	StatusPending   DeliveryStatus = iota // optimistic insert, awaiting the server
	StatusConfirmed                       // acknowledged by the server
	StatusFailed                          // send rejected; kept visible, never removed
)

// String returns the lowercase name of the status.
func (s DeliveryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Place is the structured recommendation payload an assistant message may
// carry. The core surfaces it verbatim; bookmarking is the collaborating
// UI's concern.
type Place struct {
	Name string
	URL  string
}

// Message is one entry in a session's ledger. IDs are client-generated for
// optimistic entries and replaced by server-assigned IDs once confirmed,
// when the server returns one. Body may carry the backend's inline-HTML
// subset (<br>, <strong>); rendering is the view layer's concern.
type Message struct {
	ID        string
	Role      Role
	Body      string
	Image     string // data URI, optional
	Place     *Place // assistant recommendation, optional
	Status    DeliveryStatus
	CreatedAt time.Time
}
