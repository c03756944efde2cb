package container

import (
	"fmt"
	"time"
)

// Options configures both binaries. humacli maps every field to a flag and
// to a SERVICE_* environment variable.
type Options struct {
	Port           int    `default:"8888"                 help:"Port to listen on"                                      short:"p"`
	BaseURL        string `default:""                     help:"Public base URL of short links (default http://localhost:<port>)"`
	DatabaseURL    string `default:"sqlite:shortlink.db"  help:"Database URL: postgres://, sqlite:, file:, libsql:// or memory://" short:"d"`
	AutoMigrate    bool   `default:"true"                 help:"Apply Postgres migrations on start"`
	RedisAddr      string `default:""                     help:"Redis address; empty keeps cache, limits and events in process" short:"r"`
	CacheTTL       int    `default:"3600"                 help:"Redirect cache TTL in seconds"`
	CreationLimit  int64  `default:"10"                   help:"Links a principal may create per UTC day"`
	RedirectLimit  int64  `default:"100"                  help:"Redirects a client may follow per UTC day"`
	JWTSecret      string `default:""                     help:"HMAC secret for session tokens; empty generates one per process"`
	TokenTTL       int    `default:"86400"                help:"Session token lifetime in seconds"`
	SecureCookie   bool   `default:"false"                help:"Mark the session cookie Secure"`
	TrustedProxies string `default:""                    help:"Comma-separated proxy addresses or CIDRs whose X-Forwarded-For and X-Real-IP are believed"`
	ThrottleRPS    int    `default:"20"                   help:"Per-client burst throttle in requests per second (0 disables)"`
	ThrottleBurst  int    `default:"40"                   help:"Per-client burst size"`
	ConsumerGroup  string `default:"shortlink-clicks"     help:"Redis streams consumer group for click events"`
	LogFormat      string `default:"console"              help:"Log format: console or json"`
	LogLevel       string `default:"info"                 help:"Log level: debug, info, warn or error"`
}

// PublicBaseURL returns the prefix of shortened URLs.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

func (o *Options) cacheTTL() time.Duration {
	return time.Duration(o.CacheTTL) * time.Second
}

func (o *Options) tokenTTL() time.Duration {
	return time.Duration(o.TokenTTL) * time.Second
}

func (o *Options) usesRedis() bool {
	return o.RedisAddr != ""
}
