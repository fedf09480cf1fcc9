package lark

import "encoding/json"

// envelope is the common response wrapper used by every Lark API endpoint.
// A code of 0 means success; anything else carries an upstream error message.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// MessageInput describes an outgoing chat message.
type MessageInput struct {
	ReceiveID     string // chat_id, user_id, email, ... depending on ReceiveIDType
	ReceiveIDType string // defaults to "chat_id"
	MsgType       string // defaults to "text"
	Content       string // plain text for "text", raw JSON content otherwise
}

// Message is the created message as returned by the IM API.
type Message struct {
	MessageID string `json:"message_id"`
	ChatID    string `json:"chat_id,omitempty"`
	MsgType   string `json:"msg_type,omitempty"`
}

// ChatSummary describes one chat the bot has access to.
type ChatSummary struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// ChatPage is one page of the chat list.
type ChatPage struct {
	Items     []ChatSummary `json:"items"`
	PageToken string        `json:"page_token,omitempty"`
	HasMore   bool          `json:"has_more"`
}

// Member identifies one member of a chat.
type Member struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name,omitempty"`
}

// MemberPage is one page of a chat's member list.
type MemberPage struct {
	Items     []Member `json:"items"`
	PageToken string   `json:"page_token,omitempty"`
	HasMore   bool     `json:"has_more"`
}

// EventInput describes a calendar event to create. Start and End are
// timestamps in the format the calendar API expects (Unix seconds or
// RFC 3339, passed through verbatim).
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       string
	End         string
	Attendees   []string // user IDs
}

// Event is the created calendar event.
type Event struct {
	EventID string `json:"event_id"`
	Summary string `json:"summary,omitempty"`
}

// UploadInput describes a file to upload to the IM file store.
type UploadInput struct {
	FileName   string
	FileType   string // defaults to "stream"
	ParentType string // defaults to "im"
	ParentNode string
	Content    []byte
}

// FileRef is the reference returned for an uploaded file.
type FileRef struct {
	FileKey string `json:"file_key"`
}

// User is the profile subset returned by the contact API.
type User struct {
	UserID string `json:"user_id"`
	OpenID string `json:"open_id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

// DocInput describes a document to create. Content, when non-empty, is
// inserted into the document after creation.
type DocInput struct {
	Title       string
	FolderToken string
	Content     string
}

// Document is the created document.
type Document struct {
	DocumentID string `json:"document_id"`
	RevisionID int64  `json:"revision_id,omitempty"`
	Title      string `json:"title,omitempty"`
}
