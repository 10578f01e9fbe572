package model

import (
	"strings"
	"time"
)

// MessageStatus is the lifecycle state of a message.
type MessageStatus string

const (
	MessageStatusDraft     MessageStatus = "draft"
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Action is what the author asked for when submitting a message.
type Action string

const (
	ActionSend     Action = "send"
	ActionSchedule Action = "schedule"
	ActionDraft    Action = "draft"
)

const DefaultMessageType = "general"

type Message struct {
	ID              int64         `json:"id"               db:"id"`
	Type            string        `json:"message_type"     db:"message_type"`
	Title           string        `json:"title"            db:"title"`
	Content         string        `json:"content"          db:"content"`
	Channels        []Channel     `json:"delivery_channels" db:"channels"`
	Status          MessageStatus `json:"status"           db:"status"`
	ScheduledAt     *time.Time    `json:"scheduled_at"     db:"scheduled_at"`
	SentAt          *time.Time    `json:"sent_at"          db:"sent_at"`
	TotalRecipients int           `json:"total_recipients" db:"total_recipients"`
	TotalSent       int           `json:"total_sent"       db:"total_sent"`
	TotalFailed     int           `json:"total_failed"     db:"total_failed"`
	CreatedAt       time.Time     `json:"created_at"       db:"created_at"`
}

// JoinChannels is the storage form of a channel set ("email,sms").
func JoinChannels(chs []Channel) string {
	parts := make([]string, 0, len(chs))
	for _, c := range chs {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

func SplitChannels(s string) []Channel {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	chs := make([]Channel, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chs = append(chs, Channel(p))
		}
	}
	return chs
}

// MessageFilter controls List queries.
type MessageFilter struct {
	Statuses []MessageStatus // IN (...)
	Type     *string
	From     *time.Time
	To       *time.Time
	Limit    int  // default 50
	Offset   int  // for pagination
	Desc     bool // order by created_at
}

// DeliveryStats summarizes the ledger of one message.
type DeliveryStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}
