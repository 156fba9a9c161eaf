package messages

import "time"

// Message is either a direct message to one user or a broadcast to everyone
// with access to a venue. Exactly one of RecipientID and VenueID is set.
type Message struct {
	ID          int64      `json:"id"`
	SenderID    int64      `json:"senderId"`
	RecipientID *int64     `json:"recipientId"`
	VenueID     *int64     `json:"venueId"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"readAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Broadcast reports whether the message targets a venue.
func (m Message) Broadcast() bool {
	return m.VenueID != nil
}

func (m Message) clone() Message {
	if m.RecipientID != nil {
		id := *m.RecipientID
		m.RecipientID = &id
	}
	if m.VenueID != nil {
		id := *m.VenueID
		m.VenueID = &id
	}
	if m.ReadAt != nil {
		t := *m.ReadAt
		m.ReadAt = &t
	}
	return m
}

// Filter narrows message listings. Zero fields do not filter.
type Filter struct {
	SenderID    int64
	RecipientID int64
	VenueID     int64
	// BroadcastsOnly keeps venue broadcasts and drops direct messages.
	BroadcastsOnly bool
}

func (f Filter) match(m Message) bool {
	if f.SenderID != 0 && m.SenderID != f.SenderID {
		return false
	}
	if f.RecipientID != 0 && (m.RecipientID == nil || *m.RecipientID != f.RecipientID) {
		return false
	}
	if f.VenueID != 0 && (m.VenueID == nil || *m.VenueID != f.VenueID) {
		return false
	}
	if f.BroadcastsOnly && !m.Broadcast() {
		return false
	}
	return true
}

// Box selects which side of the conversation a listing shows.
type Box string

const (
	BoxInbox Box = "inbox"
	BoxSent  Box = "sent"
	BoxAll   Box = "all"
)

// SendMessageRequest is the payload for sending a message.
type SendMessageRequest struct {
	RecipientID *int64 `json:"recipientId" validate:"omitempty,gt=0"`
	VenueID     *int64 `json:"venueId" validate:"omitempty,gt=0"`
	Body        string `json:"body" validate:"required,max=5000"`
}
