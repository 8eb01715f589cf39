package loginlog

import (
	"time"

	"music_backend/internal/common"
	"music_backend/internal/shared"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginLog is one recorded login attempt.
type LoginLog struct {
	ID        uuid.UUID  `gorm:"type:char(36);primaryKey"`
	UserID    *uuid.UUID `gorm:"type:char(36);index"`
	Email     string     `gorm:"type:varchar(255);index"`
	Method    string     `gorm:"type:varchar(20);not null"`
	Success   bool       `gorm:"not null"`
	Reason    string     `gorm:"type:varchar(50);not null"`
	IP        string     `gorm:"type:varchar(45)"`
	UserAgent string     `gorm:"type:varchar(255)"`
	CreatedAt time.Time  `gorm:"not null;index"`
}

func (LoginLog) TableName() string {
	return "login_logs"
}

func (l *LoginLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// FromAttempt builds the row for an attempt, truncating client-supplied strings to their columns.
func FromAttempt(a shared.LoginAttempt) *LoginLog {
	return &LoginLog{
		UserID:    a.UserID,
		Email:     common.TruncateUTF8(a.Email, 255),
		Method:    a.Method,
		Success:   a.Success,
		Reason:    a.Reason,
		IP:        common.TruncateUTF8(a.IP, 45),
		UserAgent: common.TruncateUTF8(a.UserAgent, 255),
		CreatedAt: a.OccurredAt.UTC(),
	}
}

// Response is the API representation of a login log.
type Response struct {
	ID        uuid.UUID `json:"id"`
	Method    string    `json:"method"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

func ToResponse(l *LoginLog) Response {
	return Response{
		ID:        l.ID,
		Method:    l.Method,
		Success:   l.Success,
		Reason:    l.Reason,
		IP:        l.IP,
		UserAgent: l.UserAgent,
		CreatedAt: l.CreatedAt,
	}
}

// Document is the Elasticsearch source of a login log.
type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email"`
	Method    string    `json:"method"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func ToDocument(l *LoginLog) Document {
	doc := Document{
		ID:        l.ID.String(),
		Email:     l.Email,
		Method:    l.Method,
		Success:   l.Success,
		Reason:    l.Reason,
		IP:        l.IP,
		UserAgent: l.UserAgent,
		CreatedAt: l.CreatedAt,
	}
	if l.UserID != nil {
		doc.UserID = l.UserID.String()
	}
	return doc
}

// LoginEvent is the message published to the login events queue.
type LoginEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email"`
	Method     string    `json:"method"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason"`
	IP         string    `json:"ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventTypeSucceeded = "user.login.succeeded"
	EventTypeFailed    = "user.login.failed"
)

func ToEvent(l *LoginLog) LoginEvent {
	evt := LoginEvent{
		EventID:    l.ID.String(),
		Type:       EventTypeFailed,
		Email:      l.Email,
		Method:     l.Method,
		Success:    l.Success,
		Reason:     l.Reason,
		IP:         l.IP,
		OccurredAt: l.CreatedAt,
	}
	if l.Success {
		evt.Type = EventTypeSucceeded
	}
	if l.UserID != nil {
		evt.UserID = l.UserID.String()
	}
	return evt
}
