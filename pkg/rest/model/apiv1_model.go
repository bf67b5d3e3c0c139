// Package model defines the JSON documents exchanged with the remote mail functions and the
// local webmail API.
package model

// Actions understood by the remote functions.
const (
	ActionLogin           = "login"
	ActionRegister        = "register"
	ActionGetDomain       = "get_domain"
	ActionToggleStar      = "toggle_star"
	ActionMarkRead        = "mark_read"
	ActionStats           = "stats"
	ActionUsers           = "users"
	ActionToggleActive    = "toggle_active"
	ActionUpdateStorage   = "update_storage"
	DefaultStorageLimit   = 1024
	DefaultMailDomain     = "mail.local"
	HeaderUserID          = "X-User-Id"
	DefaultUploadMIMEType = "application/octet-stream"
)

// JSONErrorV1 is the body returned by every remote function on failure.
type JSONErrorV1 struct {
	Error string `json:"error"`
}

// JSONUserV1 is the identity returned by a successful login or registration.
type JSONUserV1 struct {
	UserID   ID     `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// JSONLoginRequestV1 authenticates an existing account.
type JSONLoginRequestV1 struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// JSONRegisterRequestV1 creates a new account.
type JSONRegisterRequestV1 struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// JSONDomainV1 holds the mail domain new accounts are created under.
type JSONDomainV1 struct {
	Domain string `json:"domain"`
}

// JSONEmailV1 is a single message in a mailbox listing.
type JSONEmailV1 struct {
	ID              ID        `json:"id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	IsRead          bool      `json:"is_read"`
	IsStarred       bool      `json:"is_starred"`
	ReceivedAt      Timestamp `json:"received_at"`
	AttachmentCount int       `json:"attachment_count"`
}

// JSONMailboxV1 is the listing of one mailbox.
type JSONMailboxV1 struct {
	Emails  []*JSONEmailV1 `json:"emails"`
	Mailbox string         `json:"mailbox"`
}

// JSONFlagActionV1 mutates the flags of a single message.
type JSONFlagActionV1 struct {
	Action  string `json:"action"`
	EmailID ID     `json:"email_id"`
}

// JSONUploadFileV1 is one base64 encoded file submitted for upload.
type JSONUploadFileV1 struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	MIMEType string `json:"mime_type"`
}

// JSONUploadRequestV1 is a batch of files to upload.
type JSONUploadRequestV1 struct {
	Files []*JSONUploadFileV1 `json:"files"`
}

// JSONAttachmentRefV1 references a file persisted by the upload function.
type JSONAttachmentRefV1 struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mime_type"`
}

// JSONUploadResponseV1 lists the persisted attachment references, in request order.
type JSONUploadResponseV1 struct {
	Files []*JSONAttachmentRefV1 `json:"files"`
}

// JSONSendRequestV1 submits a message for delivery.  Attachments is always encoded as a
// list, never null.
type JSONSendRequestV1 struct {
	To          string                 `json:"to"`
	Subject     string                 `json:"subject"`
	Body        string                 `json:"body"`
	Attachments []*JSONAttachmentRefV1 `json:"attachments"`
}

// JSONSendResponseV1 reports the outcome of a send.
type JSONSendResponseV1 struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSONActivityV1 counts messages created on a single day.
type JSONActivityV1 struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// JSONStatsV1 holds aggregate statistics for the admin panel.
type JSONStatsV1 struct {
	TotalUsers     int64            `json:"total_users"`
	ActiveUsers    int64            `json:"active_users"`
	TotalEmails    int64            `json:"total_emails"`
	TotalStorageMB float64          `json:"total_storage_mb"`
	EmailActivity  []JSONActivityV1 `json:"email_activity"`
}

// JSONAdminUserV1 is one registered account as seen by an administrator.
type JSONAdminUserV1 struct {
	ID             ID        `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	CreatedAt      Timestamp `json:"created_at"`
	IsActive       bool      `json:"is_active"`
	StorageUsedMB  float64   `json:"storage_used_mb"`
	StorageLimitMB float64   `json:"storage_limit_mb"`
	SentCount      int64     `json:"sent_count"`
	ReceivedCount  int64     `json:"received_count"`
}

// JSONAdminUsersV1 is the full roster.
type JSONAdminUsersV1 struct {
	Users []*JSONAdminUserV1 `json:"users"`
}

// JSONAdminActionV1 mutates a single account.
type JSONAdminActionV1 struct {
	Action         string `json:"action"`
	UserID         ID     `json:"user_id"`
	StorageLimitMB int    `json:"storage_limit_mb,omitempty"`
}

// JSONActiveStateV1 is returned after toggling an account.
type JSONActiveStateV1 struct {
	IsActive bool `json:"is_active"`
}

// JSONVisitorsV1 holds visitor counts for the public site.
type JSONVisitorsV1 struct {
	Total   int64 `json:"total"`
	Last24h int64 `json:"last24h"`
}

// JSONVideoV1 is one entry of the channel upload feed.
type JSONVideoV1 struct {
	VideoID     string    `json:"videoId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	PublishedAt Timestamp `json:"publishedAt"`
}

// JSONVideosV1 is the channel upload feed.
type JSONVideosV1 struct {
	Videos        []*JSONVideoV1 `json:"videos"`
	ChannelHandle string         `json:"channelHandle"`
}

// JSONContactV1 is a message submitted through the public contact form.
type JSONContactV1 struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}
