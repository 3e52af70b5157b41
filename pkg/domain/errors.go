package domain

import "errors"

var (
	// ErrInvalidFeed returned when a feed can't be fetched or parsed at registration time
	ErrInvalidFeed = errors.New("invalid feed")
	// ErrDuplicateTopic returned when an equivalent topic already exists
	ErrDuplicateTopic = errors.New("duplicate topic")
	// ErrEmptyQuery returned for a topic without a query
	ErrEmptyQuery = errors.New("empty topic query")
	// ErrUnreachable returned when a feed request fails or gets a non-success status
	ErrUnreachable = errors.New("feed unreachable")
	// ErrParseEmpty returned when a response body is not a feed document
	ErrParseEmpty = errors.New("no feed content")
)
