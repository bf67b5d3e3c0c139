package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "webmail"
	tableFormat = `Webmail is configured via the environment, optionally seeded from a .env
file in the working directory. The following environment variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// Session store types.
const (
	FileStore   = "file"
	SQLiteStore = "sqlite"
	MemoryStore = "memory"
)

// Root wraps all other configurations.
type Root struct {
	LogLevel string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	API      API
	Session  Session
	Sync     Sync
	Web      Web
	Lua      Lua
	Site     Site
}

// API contains the locations of the remote functions the client talks to.
type API struct {
	AuthURL     string        `required:"true" default:"http://localhost:8080/mail-auth" desc:"Login, registration and domain endpoint"`
	MailURL     string        `required:"true" default:"http://localhost:8080/mail-api" desc:"Mailbox listing and flag endpoint"`
	SendURL     string        `required:"true" default:"http://localhost:8080/mail-send" desc:"Message send endpoint"`
	UploadURL   string        `required:"true" default:"http://localhost:8080/mail-upload" desc:"Attachment upload endpoint"`
	AdminURL    string        `required:"true" default:"http://localhost:8080/mail-admin" desc:"Admin stats and roster endpoint"`
	VisitorsURL string        `required:"true" default:"http://localhost:8080/visitors" desc:"Visitor counter endpoint"`
	VideosURL   string        `required:"true" default:"http://localhost:8080/youtube-videos" desc:"Video listing endpoint"`
	ContactURL  string        `required:"true" default:"http://localhost:8080/contact" desc:"Contact form endpoint"`
	Timeout     time.Duration `required:"true" default:"30s" desc:"Timeout for each remote request"`
}

// Session contains the durable session storage configuration.
type Session struct {
	Store string `required:"true" default:"file" desc:"file, sqlite, or memory"`
	Path  string `required:"true" default:".webmail" desc:"Directory holding the session store"`
	Key   string `required:"true" default:"mail_user" desc:"Storage key for the signed-in identity"`
}

// Sync contains mailbox synchronization behavior.
type Sync struct {
	Mailbox   string `required:"true" default:"Inbox" desc:"Mailbox selected at startup"`
	Reconcile bool   `required:"true" default:"false" desc:"Re-fetch mailbox when a flag update fails?"`
}

// Web contains the local HTTP server configuration.
type Web struct {
	Addr           string `required:"true" default:"127.0.0.1:9000" desc:"Local web server host:port"`
	UIDir          string `required:"true" default:"ui" desc:"Static UI directory"`
	MonitorHistory int    `required:"true" default:"30" desc:"Monitor remembered updates"`
}

// Lua contains the Lua extension host configuration.
type Lua struct {
	Path string `required:"true" default:"webmail.lua" desc:"Lua script path"`
}

// Site contains the public site feed configuration.
type Site struct {
	ChannelHandle string `required:"true" default:"@nargizamuz" desc:"Video channel handle"`
	MaxVideos     int    `required:"true" default:"12" desc:"Videos requested per listing"`
}

// Process loads and parses configuration from the environment.  Variables found in a .env
// file are applied first, without overriding the real environment.  A missing .env is fine, an
// unreadable or malformed one is an error.
func Process() (*Root, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c := &Root{}
	err := envconfig.Process(prefix, c)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}
