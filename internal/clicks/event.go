// Package clicks carries clicks counted by the redirect cache to the link store.
package clicks

import "time"

// TopicFlushed is the topic FlushedEvent is published on.
const TopicFlushed = "link.clicks.flushed"

// FlushedEvent reports clicks a cache entry counted that the store has not seen.
type FlushedEvent struct {
	ShortID   string    `json:"shortId"`
	Clicks    int64     `json:"clicks"`
	FlushedAt time.Time `json:"flushedAt"`
}
