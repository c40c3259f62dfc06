package models

import "time"

// CalendarLink is the OAuth credential material for a user's calendar.
// A stored refresh token is what makes a calendar "linked".
type CalendarLink struct {
	RefreshToken string    `json:"refresh_token"`
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

func (l *CalendarLink) IsExpired() bool {
	return !l.Expiry.IsZero() && time.Now().After(l.Expiry)
}
