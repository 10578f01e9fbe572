package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimasrn/church-messaging/internal/apperr"
)

func TestParseAudience(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		spec, err := ParseAudience("ALL", "", nil)
		require.NoError(t, err)
		assert.Equal(t, AllMembers{}, spec)
	})

	t.Run("group requires value", func(t *testing.T) {
		_, err := ParseAudience("group", " ", nil)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("custom group id", func(t *testing.T) {
		spec, err := ParseAudience("custom_group", "42", nil)
		require.NoError(t, err)
		assert.Equal(t, CustomGroupAudience{GroupID: 42}, spec)

		_, err = ParseAudience("custom_group", "youth", nil)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("individual requires ids", func(t *testing.T) {
		_, err := ParseAudience("individual", "", nil)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))

		spec, err := ParseAudience("individual", "", []int64{3, 4})
		require.NoError(t, err)
		assert.Equal(t, IndividualAudience{MemberIDs: []int64{3, 4}}, spec)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseAudience("visitors", "", nil)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestCreateMessageRequest_Validate(t *testing.T) {
	valid := func() CreateMessageRequest {
		return CreateMessageRequest{
			Title:    "Sunday service",
			Content:  "<p>See you at 10am</p>",
			Channels: []Channel{ChannelEmail},
			Audience: AllMembers{},
			Action:   ActionSend,
		}
	}

	t.Run("defaults", func(t *testing.T) {
		p := valid()
		p.Channels = []Channel{ChannelEmail, ChannelSMS, ChannelEmail}
		require.NoError(t, p.Validate())
		assert.Equal(t, DefaultMessageType, p.Type)
		assert.Equal(t, RecurrenceNone, p.Recurrence)
		assert.Equal(t, []Channel{ChannelEmail, ChannelSMS}, p.Channels)
	})

	cases := map[string]func(p *CreateMessageRequest){
		"missing title":         func(p *CreateMessageRequest) { p.Title = "  " },
		"missing content":       func(p *CreateMessageRequest) { p.Content = "" },
		"missing channels":      func(p *CreateMessageRequest) { p.Channels = nil },
		"unknown channel":       func(p *CreateMessageRequest) { p.Channels = []Channel{"fax"} },
		"unknown action":        func(p *CreateMessageRequest) { p.Action = "publish" },
		"schedule without time": func(p *CreateMessageRequest) { p.Action = ActionSchedule },
		"recurring send":        func(p *CreateMessageRequest) { p.Recurrence = RecurrenceDaily },
		"bad recurrence":        func(p *CreateMessageRequest) { p.Recurrence = "hourly" },
		"end before start": func(p *CreateMessageRequest) {
			at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
			end := at.AddDate(0, 0, -1)
			p.Action, p.ScheduledAt, p.Recurrence, p.RecurrenceEnd = ActionSchedule, &at, RecurrenceWeekly, &end
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid()
			mutate(&p)
			err := p.Validate()
			assert.True(t, apperr.IsKind(err, apperr.KindValidation), "got %v", err)
		})
	}

	t.Run("end date on the start day", func(t *testing.T) {
		p := valid()
		at := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
		end, err := ParseRecurrenceEnd("2024-01-03")
		require.NoError(t, err)
		p.Action, p.ScheduledAt, p.Recurrence, p.RecurrenceEnd = ActionSchedule, &at, RecurrenceDaily, end
		assert.NoError(t, p.Validate())
	})
}

func TestParseRecurrenceEnd(t *testing.T) {
	end, err := ParseRecurrenceEnd("2024-01-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 3, 23, 59, 59, 999999000, time.UTC), *end)
	assert.True(t, end.Before(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))

	end, err = ParseRecurrenceEnd("2024-01-03T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), end.UTC())

	_, err = ParseRecurrenceEnd("03/01/2024")
	assert.Error(t, err)
}

func TestChannelsRoundTrip(t *testing.T) {
	assert.Equal(t, "email,sms", JoinChannels([]Channel{ChannelEmail, ChannelSMS}))
	assert.Equal(t, []Channel{ChannelEmail, ChannelSMS}, SplitChannels("email, sms"))
	assert.Nil(t, SplitChannels(""))
}

func TestRecipient_ContactFor(t *testing.T) {
	r := Member{ID: 1, FirstName: "Ruth", Email: "ruth@example.org"}.Recipient()
	assert.Equal(t, "Ruth", r.Name)
	assert.Equal(t, "ruth@example.org", r.ContactFor(ChannelEmail))
	assert.Equal(t, "", r.ContactFor(ChannelSMS))
}
