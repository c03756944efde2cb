package handlers

import "time"

// CreateLinkRequest is the request body for shortening a URL.
type CreateLinkRequest struct {
	Body struct {
		OriginalURL   string `doc:"The URL to shorten"                    example:"https://example.com/very/long/path" json:"original_url"              required:"false"`
		CustomShortID string `doc:"Optional alias of 1 to 6 letters or digits" example:"promo"                           json:"custom_short_id,omitempty"`
	}
}

// CreateLinkResponse is the response for a successfully created link.
type CreateLinkResponse struct {
	Status   int
	Location string `doc:"The short URL" header:"Location"`
	Body     struct {
		ShortenedURL string `doc:"The full short URL" example:"http://localhost:8888/aZ3k9Q"      json:"shortened_url"`
		ShortID      string `doc:"The short id"       example:"aZ3k9Q"                             json:"short_id"`
		OriginalURL  string `doc:"The original URL"   example:"https://example.com/very/long/path" json:"original_url"`
	}
}

// ShortIDRequest addresses a link by its short id.
type ShortIDRequest struct {
	ShortID string `doc:"The short id" example:"aZ3k9Q" maxLength:"64" path:"short_id"`
}

// RedirectResponse sends the client on to the original URL.
type RedirectResponse struct {
	Status       int
	Location     string `header:"Location"`
	CacheControl string `header:"Cache-Control"`
}

// LinkStats is the public view of a link's clicks.
type LinkStats struct {
	ShortID            string    `json:"short_id"`
	OriginalURL        string    `json:"original_url"`
	CreatedAt          time.Time `json:"created_at"`
	ClickCount         int64     `json:"click_count"`
	UniqueVisitorCount int       `json:"unique_visitor_count"`
	VisitorIPs         []string  `json:"visitor_ips"`
}

// StatsResponse is the response for link statistics.
type StatsResponse struct {
	Body LinkStats
}

// ListLinksRequest pages through the caller's links.
type ListLinksRequest struct {
	Limit int `default:"50" doc:"Maximum number of links" maximum:"200" minimum:"1" query:"limit"`
}

// LinkSummary is one entry of a link listing.
type LinkSummary struct {
	ShortID      string    `json:"short_id"`
	ShortenedURL string    `json:"shortened_url"`
	OriginalURL  string    `json:"original_url"`
	CreatedAt    time.Time `json:"created_at"`
	ClickCount   int64     `json:"click_count"`
}

// ListLinksResponse lists the caller's links, newest first.
type ListLinksResponse struct {
	Body struct {
		Links []LinkSummary `json:"links"`
	}
}

// CredentialsRequest carries a login and password.
type CredentialsRequest struct {
	Body struct {
		Login    string `doc:"Login name" example:"alice"  json:"login"`
		Password string `doc:"Password"   example:"s3cret-pw" json:"password"`
	}
}

// SignupResponse confirms a new account.
type SignupResponse struct {
	Status int
	Body   struct {
		Login string `json:"login"`
	}
}

// SigninResponse returns a session token, also set as a cookie.
type SigninResponse struct {
	SetCookie string `header:"Set-Cookie"`
	Body      struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
}

// LogoutResponse clears the session cookie.
type LogoutResponse struct {
	SetCookie string `header:"Set-Cookie"`
}
