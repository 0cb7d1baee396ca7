// Package domain defines the core business entities for the studio API.
// These models are independent of external services and represent the
// canonical data structures used throughout the application. JSON tags on
// persisted types match the existing database schema and must not change.
package domain

import "encoding/json"

// ============================================================
// Identity / Session
// ============================================================

// Principal is a verified identity attached to a session.
type Principal struct {
	UserID      string `json:"userId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Anonymous   bool   `json:"anonymous"`
}

// SessionState is the composite state exposed to handlers: the current
// principal (if any) plus the three derived flags.
type SessionState struct {
	User      *Principal `json:"user"`
	IsAdmin   bool       `json:"isAdmin"`
	IsBanned  bool       `json:"isBanned"`
	BanMarked bool       `json:"banMarked"`
	Resolving bool       `json:"resolving"`
}

// ============================================================
// User profiles
// ============================================================

// DeviceInfo is the browser fingerprint captured at profile setup.
type DeviceInfo struct {
	OS        string `json:"os"`
	Browser   string `json:"browser"`
	UserAgent string `json:"userAgent"`
}

// Geolocation is an optional coordinate pair captured at profile setup.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UserProfile is the record stored at Users/{uid}. Status is stored
// duck-typed in the live data ("active", true, or false) and stays raw;
// use IsBannedStatus / IsActiveStatus instead of inspecting it inline.
type UserProfile struct {
	Name        string          `json:"name"`
	Bio         string          `json:"bio,omitempty"`
	Number      string          `json:"number,omitempty"`
	DateOfBirth string          `json:"dateOfBirth,omitempty"`
	Address     string          `json:"address,omitempty"`
	Country     string          `json:"country,omitempty"`
	Email       string          `json:"email,omitempty"`
	PicBase64   string          `json:"picBase64,omitempty"`
	LastChange  int64           `json:"lastChange"`
	DeviceInfo  *DeviceInfo     `json:"deviceInfo,omitempty"`
	Geolocation *Geolocation    `json:"geolocation,omitempty"`
	Status      json.RawMessage `json:"status,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
}

// IsBannedStatus reports whether a stored status value encodes a ban.
// Only the literal boolean false does; every other value (absent,
// "active", true, the string "false") does not. The inverted polarity
// is part of the stored schema and must not be "fixed" here.
func IsBannedStatus(raw json.RawMessage) bool {
	return string(raw) == "false"
}

// IsActiveStatus reports whether a stored status value encodes an
// active account: "active", the string "true", or the boolean true.
func IsActiveStatus(raw json.RawMessage) bool {
	switch string(raw) {
	case `"active"`, `"true"`, "true":
		return true
	}
	return false
}

// ============================================================
// Conversations
// ============================================================

// Sender identifies which side of a conversation authored a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// MessageType distinguishes plain text from structured intake payloads.
type MessageType string

const (
	MessageText MessageType = "text"
	MessageForm MessageType = "form_submission"
)

// Message is a single conversation entry. Content is a string for text
// messages and an object for form submissions, so it stays raw here and
// is decoded where needed.
type Message struct {
	ID        string          `json:"id"`
	Sender    Sender          `json:"sender"`
	Type      MessageType     `json:"type"`
	Content   json.RawMessage `json:"content"`
	Timestamp int64           `json:"timestamp"`
}

// Conversation is the record stored at Build_Chat/{uid}/{chatId}, with
// its keyed message map normalized into a sorted slice.
type Conversation struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Date           string    `json:"date,omitempty"`
	Time           string    `json:"time,omitempty"`
	LastUpdated    int64     `json:"lastUpdated"`
	UserPhoto      string    `json:"userPhoto,omitempty"`
	Messages       []Message `json:"messages"`
	IntakeComplete bool      `json:"intakeComplete"`
}

// ConversationSummary is a list row: enough to render an index without
// the full message history.
type ConversationSummary struct {
	ID          string `json:"id"`
	OwnerID     string `json:"ownerId"`
	OwnerEmail  string `json:"ownerEmail,omitempty"`
	Title       string `json:"title"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	LastUpdated int64  `json:"lastUpdated"`
	UserPhoto   string `json:"userPhoto,omitempty"`
}

// ============================================================
// Support tickets
// ============================================================

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// Ticket is the record stored at Kinbo_SupportCenter/tickets/{id}.
type Ticket struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	UserEmail string            `json:"userEmail"`
	Topic     string            `json:"topic"`
	FormData  map[string]string `json:"formData"`
	Status    TicketStatus      `json:"status"`
	CreatedAt int64             `json:"createdAt"`
}
