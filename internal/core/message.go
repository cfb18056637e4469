package core

import "time"

// Message is one chat entry in the shared school channel. Immutable once
// created; the store assigns ID and Timestamp on append. Ordering key is
// Timestamp, not ID: the push subscription may deliver out of timestamp
// order.
type Message struct {
	ID         string
	SchoolID   string
	SchoolName string
	Content    string
	Timestamp  time.Time
}
