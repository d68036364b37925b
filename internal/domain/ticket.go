package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusEscalated  TicketStatus = "ESCALATED"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusEscalated, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Rateable reports whether a ticket in this status may receive a rating.
func (s TicketStatus) Rateable() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// ParseTicketStatus normalises s and validates it.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	status := TicketStatus(strings.ToUpper(strings.TrimSpace(s)))
	return status, status.Valid()
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// ParseTicketPriority normalises s; empty input defaults to LOW.
func ParseTicketPriority(s string) (TicketPriority, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TicketPriorityLow, true
	}
	p := TicketPriority(strings.ToUpper(s))
	return p, p.Valid()
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           int64
	Subject      string
	Description  string
	Priority     TicketPriority
	Status       TicketStatus
	Rating       *int
	Feedback     *string
	CreatedBy    int64
	AssignedTo   *int64
	CreatedAt    time.Time
	CreatorName  string
	AssigneeName *string
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// Comment is a free-text note on a ticket.
type Comment struct {
	ID         int64
	TicketID   int64
	UserID     int64
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// Attachment references a stored file belonging to a ticket. StorageKey is an
// opaque identifier; FileName is the sanitised name shown on download.
type Attachment struct {
	ID          int64
	TicketID    int64
	FileName    string
	StorageKey  string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}
