package storage

import (
	"fmt"
	"time"
)

// User is a chat user of the bot.
type User struct {
	// ID is the chat id assigned by the messenger.
	ID int64
	// Token is the hh.ru bearer token. Empty until the user sends one.
	Token     string
	FirstName string
	LastName  string
	Email     string
	// AwaitingToken is owned by the front-end. The scheduler never changes it.
	AwaitingToken bool
}

// HasToken reports whether the user has authorized the bot.
func (u *User) HasToken() bool {
	return u.Token != ""
}

// Resume mirrors an hh.ru resume together with the subscription state.
type Resume struct {
	ID     string
	UserID int64
	Title  string
	Status string
	Access string
	// NextPublishAt is the earliest moment hh.ru accepts another publish.
	NextPublishAt time.Time
	IsActive      bool
	// Until is the absolute end of the subscription.
	Until time.Time
}

// Activate starts a subscription of the given length from now.
func (r *Resume) Activate(now time.Time, period time.Duration) {
	r.IsActive = true
	r.Until = now.Add(period).UTC()
}

// Deactivate stops the subscription. Until is kept for history.
func (r *Resume) Deactivate() {
	r.IsActive = false
}

// Expired reports whether the subscription ended before now. An active
// resume without an end date counts as expired.
func (r *Resume) Expired(now time.Time) bool {
	if r.Until.IsZero() {
		return r.IsActive
	}
	return r.Until.Before(now)
}

func (r *Resume) validate() error {
	if r.IsActive && r.Until.IsZero() {
		return fmt.Errorf("resume %s: %w", r.ID, ErrUntilRequired)
	}
	return nil
}

// ActiveFilter narrows ListActiveResumes.
type ActiveFilter struct {
	// UserID scopes the listing to one user when non-zero.
	UserID int64
	// DueBy keeps resumes that may be published by that moment or whose
	// subscription ends by then. Zero disables the filter.
	DueBy time.Time
}
