package session

import "time"

// Session is the sandbox login of one dashboard user.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DateCreated time.Time `json:"date_created"`
}
