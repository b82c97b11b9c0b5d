package types

import "time"

// RegisteredUser is a tag that was enrolled while registration mode was on.
// JSON names match what the dashboard has always consumed.
type RegisteredUser struct {
	ID          int64     `json:"id"`
	TagID       string    `json:"uid"`
	DisplayName string    `json:"name"`
	CreatedAt   time.Time `json:"created_date"`
}

// AccessEvent is one journal row.
type AccessEvent struct {
	ID        int64     `json:"id"`
	TagID     string    `json:"uid"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}
