package repository

import (
	"time"

	"github.com/nimasrn/church-messaging/internal/model"
)

// RecipientEntity is one ledger row.
type RecipientEntity struct {
	ID             int64      `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	MessageID      int64      `db:"message_id"      gorm:"column:message_id;not null;index:idx_recipients_message_status,priority:1"`
	RecipientID    int64      `db:"recipient_id"    gorm:"column:recipient_id;not null"`
	Name           string     `db:"name"            gorm:"column:name;not null"`
	Contact        string     `db:"contact"         gorm:"column:contact;not null"`
	Channel        string     `db:"channel"         gorm:"column:channel;not null"`
	DeliveryStatus string     `db:"delivery_status" gorm:"column:delivery_status;not null;default:pending;index:idx_recipients_message_status,priority:2"`
	Simulated      bool       `db:"simulated"       gorm:"column:simulated;not null;default:false"`
	SentAt         *time.Time `db:"sent_at"         gorm:"column:sent_at"`
	Error          *string    `db:"error"           gorm:"column:error"`
}

func (RecipientEntity) TableName() string {
	return "message_recipients"
}

func toRecipientModel(e *RecipientEntity) *model.RecipientEntry {
	if e == nil {
		return nil
	}
	m := &model.RecipientEntry{
		ID:          e.ID,
		MessageID:   e.MessageID,
		RecipientID: e.RecipientID,
		Name:        e.Name,
		Contact:     e.Contact,
		Channel:     model.Channel(e.Channel),
		Status:      model.DeliveryStatus(e.DeliveryStatus),
		Simulated:   e.Simulated,
		SentAt:      e.SentAt,
	}
	if e.Error != nil {
		m.Error = *e.Error
	}
	return m
}

func toRecipientModels(entities []*RecipientEntity) []*model.RecipientEntry {
	models := make([]*model.RecipientEntry, len(entities))
	for i, e := range entities {
		models[i] = toRecipientModel(e)
	}
	return models
}

// DeliveryAttemptEntity is the append-only history of dispatch attempts.
type DeliveryAttemptEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	MessageID   int64     `db:"message_id"   gorm:"column:message_id;not null;index"`
	EntryID     int64     `db:"entry_id"     gorm:"column:entry_id;not null;index"`
	Channel     string    `db:"channel"      gorm:"column:channel;not null"`
	Delivered   bool      `db:"delivered"    gorm:"column:delivered;not null"`
	Simulated   bool      `db:"simulated"    gorm:"column:simulated;not null;default:false"`
	Error       *string   `db:"error"        gorm:"column:error"`
	Segments    int       `db:"segments"     gorm:"column:segments;not null;default:0"`
	AttemptedAt time.Time `db:"attempted_at" gorm:"column:attempted_at;not null"`
}

func (DeliveryAttemptEntity) TableName() string {
	return "delivery_attempts"
}

func toDeliveryAttemptEntity(m *model.DeliveryAttempt) *DeliveryAttemptEntity {
	if m == nil {
		return nil
	}
	return &DeliveryAttemptEntity{
		ID:          m.ID,
		MessageID:   m.MessageID,
		EntryID:     m.EntryID,
		Channel:     string(m.Channel),
		Delivered:   m.Delivered,
		Simulated:   m.Simulated,
		Error:       nullableString(m.Error),
		Segments:    m.Segments,
		AttemptedAt: m.AttemptedAt.UTC(),
	}
}

func toDeliveryAttemptModel(e *DeliveryAttemptEntity) *model.DeliveryAttempt {
	if e == nil {
		return nil
	}
	m := &model.DeliveryAttempt{
		ID:          e.ID,
		MessageID:   e.MessageID,
		EntryID:     e.EntryID,
		Channel:     model.Channel(e.Channel),
		Delivered:   e.Delivered,
		Simulated:   e.Simulated,
		Segments:    e.Segments,
		AttemptedAt: e.AttemptedAt,
	}
	if e.Error != nil {
		m.Error = *e.Error
	}
	return m
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
