package dto

import (
	"time"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// EmailResponse is a mailbox entry with the sender's display name.
type EmailResponse struct {
	ID         string    `json:"id"`
	ToUserID   string    `json:"toUserId"`
	FromUserID string    `json:"fromUserId"`
	FromName   string    `json:"fromName"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
}

// NewEmailResponses maps a mailbox.
func NewEmailResponses(emails []domain.Email, name func(id string) string) []EmailResponse {
	out := make([]EmailResponse, 0, len(emails))
	for _, e := range emails {
		out = append(out, EmailResponse{
			ID:         e.ID,
			ToUserID:   e.ToUserID,
			FromUserID: e.FromUserID,
			FromName:   name(e.FromUserID),
			Subject:    e.Subject,
			Body:       e.Body,
			Timestamp:  e.Timestamp,
			IsRead:     e.IsRead,
		})
	}
	return out
}
