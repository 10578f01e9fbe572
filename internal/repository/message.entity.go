package repository

import (
	"time"

	"github.com/nimasrn/church-messaging/internal/model"
)

type MessageEntity struct {
	ID              int64      `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	Type            string     `db:"message_type"     gorm:"column:message_type;not null;default:general"`
	Title           string     `db:"title"            gorm:"column:title;not null"`
	Content         string     `db:"content"          gorm:"column:content;not null"`
	Channels        string     `db:"channels"         gorm:"column:channels;not null"`
	Status          string     `db:"status"           gorm:"column:status;not null;index"`
	ScheduledAt     *time.Time `db:"scheduled_at"     gorm:"column:scheduled_at"`
	SentAt          *time.Time `db:"sent_at"          gorm:"column:sent_at"`
	TotalRecipients int        `db:"total_recipients" gorm:"column:total_recipients;not null;default:0"`
	TotalSent       int        `db:"total_sent"       gorm:"column:total_sent;not null;default:0"`
	TotalFailed     int        `db:"total_failed"     gorm:"column:total_failed;not null;default:0"`
	CreatedAt       time.Time  `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `db:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:              m.ID,
		Type:            m.Type,
		Title:           m.Title,
		Content:         m.Content,
		Channels:        model.JoinChannels(m.Channels),
		Status:          string(m.Status),
		ScheduledAt:     utcPtr(m.ScheduledAt),
		SentAt:          utcPtr(m.SentAt),
		TotalRecipients: m.TotalRecipients,
		TotalSent:       m.TotalSent,
		TotalFailed:     m.TotalFailed,
		CreatedAt:       m.CreatedAt,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:              e.ID,
		Type:            e.Type,
		Title:           e.Title,
		Content:         e.Content,
		Channels:        model.SplitChannels(e.Channels),
		Status:          model.MessageStatus(e.Status),
		ScheduledAt:     e.ScheduledAt,
		SentAt:          e.SentAt,
		TotalRecipients: e.TotalRecipients,
		TotalSent:       e.TotalSent,
		TotalFailed:     e.TotalFailed,
		CreatedAt:       e.CreatedAt,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
