package domain

import "time"

// Email is an in-app notification. Only IsRead changes after creation.
type Email struct {
	ID         string    `json:"id"`
	ToUserID   string    `json:"toUserId"`
	FromUserID string    `json:"fromUserId"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
}

// RecordID returns the email id.
func (e Email) RecordID() string { return e.ID }
