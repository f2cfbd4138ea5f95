package model

import "time"

// Attachment is one item attached to a letter.
type Attachment struct {
	ItemID int
	Amount int
}

// Letter is one piece of mail. Attachments are capped by configuration when
// the letter is composed; storage does not re-validate.
type Letter struct {
	ID           int
	SenderID     int
	SenderName   string
	ReceiverID   int
	ReceiverName string
	Type         int
	Expiry       time.Time
	Text         string
	Attachments  []Attachment
}
