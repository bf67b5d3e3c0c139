package model

// JSONCredentialsV1 is posted to the local API to log in or register.
type JSONCredentialsV1 struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// JSONSessionV1 describes the local session state.
type JSONSessionV1 struct {
	SignedIn   bool        `json:"signed_in"`
	User       *JSONUserV1 `json:"user,omitempty"`
	Mailbox    string      `json:"mailbox"`
	MailDomain string      `json:"mail_domain"`
}

// JSONMessageViewV1 is a selected message with its body rendered for display.
type JSONMessageViewV1 struct {
	*JSONEmailV1
	HTML string `json:"html"`
}

// JSONStarV1 reports the local starred state after a toggle.
type JSONStarV1 struct {
	ID        ID   `json:"id"`
	IsStarred bool `json:"is_starred"`
}

// JSONRosterV1 combines the admin roster and its statistics.
type JSONRosterV1 struct {
	Stats *JSONStatsV1       `json:"stats"`
	Users []*JSONAdminUserV1 `json:"users"`
}

// JSONStatusV1 describes the running daemon.
type JSONStatusV1 struct {
	Version   string            `json:"version"`
	BuildDate string            `json:"build-date"`
	Listener  string            `json:"web-listener"`
	Metrics   map[string]string `json:"metrics"`
}

// JSONMonitorEventV1 carries a single state change over the monitor socket.
type JSONMonitorEventV1 struct {
	// Event variant: `mailbox-loaded`, `message-updated`, `message-sent`, `session-changed`,
	// `notice`.
	Variant string `json:"variant"`
	Mailbox string `json:"mailbox,omitempty"`
	ID      ID     `json:"id,omitempty"`
	Count   int    `json:"count,omitempty"`
	Unread  int    `json:"unread,omitempty"`
	Read    bool   `json:"is_read,omitempty"`
	Starred bool   `json:"is_starred,omitempty"`
	Level   string `json:"level,omitempty"`
	Text    string `json:"text,omitempty"`
	Email   string `json:"email,omitempty"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
}
