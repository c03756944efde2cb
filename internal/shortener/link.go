package shortener

import "time"

// Link is a shortened URL together with its click bookkeeping.
type Link struct {
	ID          int64
	Owner       string // empty for anonymous links
	OriginalURL string
	ShortID     string
	CreatedAt   time.Time
	ClickCount  int64
	VisitorIPs  []string
}

// UniqueVisitors returns the number of distinct addresses that followed the link.
func (l *Link) UniqueVisitors() int {
	return len(l.VisitorIPs)
}
