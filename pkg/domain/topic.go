package domain

import "time"

// Topic is a user-defined interest query evaluated against feed items
type Topic struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	CaseSensitive   bool      `json:"caseSensitive"`
	NotifyEmail     bool      `json:"notifyEmail"`
	NotifyExtension bool      `json:"notifyExtension"`
	AddedAt         time.Time `json:"addedAt"` // registration time, keeps listing order across restarts
}
