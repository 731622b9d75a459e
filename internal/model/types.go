package model

import "time"

// Post represents a subset of X post fields used by the bot.
type Post struct {
	ID         string
	Text       string
	AuthorID   string
	AuthorName string // screen name, without the leading @
	Language   string
	CreatedAt  time.Time
}
