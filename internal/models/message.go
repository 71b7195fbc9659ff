package models

import "time"

// Message is an internal note between admins. Broadcasts are stored as one row per recipient.
type Message struct {
	ID            string     `db:"id" json:"id"`
	SenderID      string     `db:"sender_id" json:"sender_id"`
	SenderName    string     `db:"sender_name" json:"sender_name,omitempty"`
	RecipientID   string     `db:"recipient_id" json:"recipient_id"`
	RecipientName string     `db:"recipient_name" json:"recipient_name,omitempty"`
	Subject       string     `db:"subject" json:"subject"`
	Body          string     `db:"body" json:"body"`
	ReadAt        *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// MessageBox selects the inbox or the sent folder.
type MessageBox string

const (
	BoxInbox MessageBox = "inbox"
	BoxSent  MessageBox = "sent"
)

// MessageFilter captures listing options for one admin's mailbox.
type MessageFilter struct {
	AdminID    string
	Box        MessageBox
	UnreadOnly bool
	Page       int
	PageSize   int
}
