package model

import "time"

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// RecipientEntry is one ledger row: one recipient on one channel.
type RecipientEntry struct {
	ID          int64          `json:"id"              db:"id"`
	MessageID   int64          `json:"message_id"      db:"message_id"`
	RecipientID int64          `json:"recipient_id"    db:"recipient_id"`
	Name        string         `json:"name"            db:"name"`
	Contact     string         `json:"contact"         db:"contact"`
	Channel     Channel        `json:"channel"         db:"channel"`
	Status      DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	Simulated   bool           `json:"simulated"       db:"simulated"`
	SentAt      *time.Time     `json:"sent_at"         db:"sent_at"`
	Error       string         `json:"error,omitempty" db:"error"`
}

// Recipient is one resolved audience member.
type Recipient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ContactFor returns the address used on ch, or "" when the recipient has none.
func (r Recipient) ContactFor(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	}
	return ""
}

// DeliveryAttempt is the append-only record of one dispatch.
type DeliveryAttempt struct {
	ID          int64     `json:"id"`
	MessageID   int64     `json:"message_id"`
	EntryID     int64     `json:"entry_id"`
	Channel     Channel   `json:"channel"`
	Delivered   bool      `json:"delivered"`
	Simulated   bool      `json:"simulated"`
	Error       string    `json:"error,omitempty"`
	Segments    int       `json:"segments"`
	AttemptedAt time.Time `json:"attempted_at"`
}
