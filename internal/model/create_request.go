package model

import (
	"strings"
	"time"

	"github.com/nimasrn/church-messaging/internal/apperr"
)

const opCreateMessage = "create message"

// CreateMessageRequest is the input of message creation after decoding.
type CreateMessageRequest struct {
	Type          string
	Title         string
	Content       string
	Channels      []Channel
	Audience      AudienceSpec
	Action        Action
	ScheduledAt   *time.Time
	Recurrence    Recurrence
	RecurrenceEnd *time.Time
}

// ParseRecurrenceEnd reads the end of a series as RFC3339 or as a bare
// YYYY-MM-DD date. A date covers the whole UTC day, so an occurrence on that
// date still runs. The last instant is kept to microseconds to survive
// postgres timestamp precision.
func ParseRecurrenceEnd(s string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	day, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	end := day.Add(24*time.Hour - time.Microsecond)
	return &end, nil
}

// Validate rejects the request before anything is persisted.
func (p *CreateMessageRequest) Validate() error {
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
	if p.Type = strings.TrimSpace(p.Type); p.Type == "" {
		p.Type = DefaultMessageType
	}

	if p.Title == "" {
		return apperr.Validation(opCreateMessage, "title is required")
	}
	if p.Content == "" {
		return apperr.Validation(opCreateMessage, "content is required")
	}
	if len(p.Channels) == 0 {
		return apperr.Validation(opCreateMessage, "delivery_channels is required")
	}

	seen := make(map[Channel]bool, len(p.Channels))
	uniq := p.Channels[:0]
	for _, c := range p.Channels {
		if !c.Valid() {
			return apperr.Validation(opCreateMessage, "unsupported delivery channel %q", c)
		}
		if !seen[c] {
			seen[c] = true
			uniq = append(uniq, c)
		}
	}
	p.Channels = uniq

	if p.Audience == nil {
		return apperr.Validation(opCreateMessage, "audience is required")
	}

	if p.Recurrence == "" {
		p.Recurrence = RecurrenceNone
	}
	if !p.Recurrence.Valid() {
		return apperr.Validation(opCreateMessage, "unsupported recurrence %q", p.Recurrence)
	}

	switch p.Action {
	case ActionSend, ActionDraft:
		if p.Recurrence != RecurrenceNone {
			return apperr.Validation(opCreateMessage, "recurrence requires action %q", ActionSchedule)
		}
	case ActionSchedule:
		if p.ScheduledAt == nil || p.ScheduledAt.IsZero() {
			return apperr.Validation(opCreateMessage, "scheduled_at is required to schedule a message")
		}
		if p.RecurrenceEnd != nil && p.RecurrenceEnd.Before(*p.ScheduledAt) {
			return apperr.Validation(opCreateMessage, "recurrence_end is before scheduled_at")
		}
	default:
		return apperr.Validation(opCreateMessage, "unsupported action %q", p.Action)
	}
	return nil
}
