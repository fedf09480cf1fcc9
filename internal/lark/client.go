package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/larkmcp/larkmcp/internal/logging"
)

// DefaultBaseURL is the public Lark Open Platform API base.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// DefaultRequestTimeout bounds every outbound API call. A call exceeding it
// is abandoned and reported as a TransportError; other in-flight calls are
// unaffected.
const DefaultRequestTimeout = 30 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is the shared transport for all API calls. If nil, a
	// client with DefaultRequestTimeout is used. The same client should be
	// shared with the TokenCache to reuse the connection pool.
	HTTPClient *http.Client

	// Tokens supplies bearer tokens. Required.
	Tokens *TokenCache

	// Logger receives per-call logs. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client performs single request/response exchanges against the Lark API.
// Each method acquires a token from the cache, issues exactly one HTTPS call
// and decodes the response envelope. No call is retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
	logger     *slog.Logger

	// onOperation, when set, is invoked after every issued API call so the
	// instrumentation layer can record it without this package depending
	// on it.
	onOperation func(op string, err error, duration time.Duration)
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("lark: token cache is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		logger:     logger,
	}, nil
}

// Tokens returns the token cache backing this client.
func (c *Client) Tokens() *TokenCache { return c.tokens }

// SetOperationObserver registers a callback invoked after every issued API
// call. Must be called before the client is shared between goroutines.
func (c *Client) SetOperationObserver(fn func(op string, err error, duration time.Duration)) {
	c.onOperation = fn
}

// SendMessage sends a message to a chat or user and returns the created
// message.
func (c *Client) SendMessage(ctx context.Context, in MessageInput) (*Message, error) {
	msgType := in.MsgType
	if msgType == "" {
		msgType = "text"
	}
	receiveIDType := in.ReceiveIDType
	if receiveIDType == "" {
		receiveIDType = "chat_id"
	}

	// The IM API expects content as a JSON string; plain text is wrapped
	// into the text message shape.
	content := in.Content
	if msgType == "text" {
		wrapped, err := json.Marshal(map[string]string{"text": in.Content})
		if err != nil {
			return nil, &TransportError{Op: "send_message", Err: err}
		}
		content = string(wrapped)
	}

	body := map[string]string{
		"receive_id": in.ReceiveID,
		"msg_type":   msgType,
		"content":    content,
	}
	query := url.Values{"receive_id_type": {receiveIDType}}

	var msg Message
	if err := c.call(ctx, "send_message", TokenKindTenant, http.MethodPost, "/im/v1/messages", query, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListChats returns one page of the chats the bot has access to.
func (c *Client) ListChats(ctx context.Context, pageSize int, pageToken string) (*ChatPage, error) {
	query := url.Values{}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}

	var page ChatPage
	if err := c.call(ctx, "get_chat_list", TokenKindTenant, http.MethodGet, "/im/v1/chats", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListChatMembers returns one page of a chat's members.
func (c *Client) ListChatMembers(ctx context.Context, chatID string, pageSize int, pageToken string) (*MemberPage, error) {
	query := url.Values{}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}

	var page MemberPage
	path := "/im/v1/chats/" + url.PathEscape(chatID) + "/members"
	if err := c.call(ctx, "get_chat_members", TokenKindTenant, http.MethodGet, path, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateCalendarEvent creates an event on the primary calendar. It uses the
// user token when a user credential is configured and the tenant token
// otherwise.
func (c *Client) CreateCalendarEvent(ctx context.Context, in EventInput) (*Event, error) {
	kind := TokenKindTenant
	if c.tokens.HasUserCredential() {
		kind = TokenKindUser
	}

	body := map[string]any{
		"summary":    in.Summary,
		"start_time": map[string]string{"timestamp": in.Start},
		"end_time":   map[string]string{"timestamp": in.End},
	}
	if in.Description != "" {
		body["description"] = in.Description
	}
	if in.Location != "" {
		body["location"] = map[string]string{"name": in.Location}
	}
	if len(in.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(in.Attendees))
		for _, id := range in.Attendees {
			attendees = append(attendees, map[string]string{"type": "user", "user_id": id})
		}
		body["attendees"] = attendees
	}

	var data struct {
		Event Event `json:"event"`
	}
	if err := c.call(ctx, "create_calendar_event", kind, http.MethodPost, "/calendar/v4/calendars/primary/events", nil, body, &data); err != nil {
		return nil, err
	}
	return &data.Event, nil
}

// UploadFile uploads file bytes to the IM file store and returns its
// reference key.
func (c *Client) UploadFile(ctx context.Context, in UploadInput) (*FileRef, error) {
	fileType := in.FileType
	if fileType == "" {
		fileType = "stream"
	}
	parentType := in.ParentType
	if parentType == "" {
		parentType = "im"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"file_type":   fileType,
		"file_name":   in.FileName,
		"parent_type": parentType,
	}
	if in.ParentNode != "" {
		fields["parent_node"] = in.ParentNode
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, &TransportError{Op: "upload_file", Err: err}
		}
	}
	part, err := w.CreateFormFile("file", in.FileName)
	if err != nil {
		return nil, &TransportError{Op: "upload_file", Err: err}
	}
	if _, err := part.Write(in.Content); err != nil {
		return nil, &TransportError{Op: "upload_file", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &TransportError{Op: "upload_file", Err: err}
	}

	var ref FileRef
	if err := c.do(ctx, "upload_file", TokenKindTenant, http.MethodPost, "/im/v1/files", nil, &buf, w.FormDataContentType(), &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetUserInfo fetches a user's profile by user id.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (*User, error) {
	var data struct {
		User User `json:"user"`
	}
	path := "/contact/v3/users/" + url.PathEscape(userID)
	if err := c.call(ctx, "get_user_info", TokenKindTenant, http.MethodGet, path, nil, nil, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

// CreateDocument creates a document and, when initial content is supplied,
// inserts it with a follow-up block update. The content insert is best
// effort: a failure there does not undo or fail the creation.
func (c *Client) CreateDocument(ctx context.Context, in DocInput) (*Document, error) {
	body := map[string]string{"title": in.Title}
	if in.FolderToken != "" {
		body["folder_token"] = in.FolderToken
	}

	var data struct {
		Document Document `json:"document"`
	}
	if err := c.call(ctx, "create_doc", TokenKindUser, http.MethodPost, "/docx/v1/documents", nil, body, &data); err != nil {
		return nil, err
	}

	if in.Content != "" {
		if err := c.appendDocumentContent(ctx, data.Document.DocumentID, in.Content); err != nil {
			c.logger.Warn("document created but content insert failed",
				logging.Operation("create_doc"),
				logging.Err(err))
		}
	}
	return &data.Document, nil
}

// appendDocumentContent inserts text at the start of a document.
func (c *Client) appendDocumentContent(ctx context.Context, documentID, content string) error {
	body := map[string]any{
		"requests": []map[string]any{{
			"insert_text": map[string]any{
				"location": map[string]string{"zone_id": "0"},
				"elements": []map[string]any{{
					"text_run": map[string]string{"content": content},
				}},
			},
		}},
	}
	path := "/docx/v1/documents/" + url.PathEscape(documentID) + "/blocks/batch_update"
	return c.call(ctx, "create_doc", TokenKindUser, http.MethodPatch, path, nil, body, nil)
}

// call issues one JSON API call with a bearer token of the given kind and
// decodes the envelope's data field into out (which may be nil).
func (c *Client) call(ctx context.Context, op string, kind TokenKind, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: err}
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json; charset=utf-8"
	}
	return c.do(ctx, op, kind, method, path, query, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, op string, kind TokenKind, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	token, err := c.tokens.Token(ctx, kind)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := c.transportError(op, err)
		c.observe(op, terr, time.Since(start))
		return terr
	}
	defer resp.Body.Close()

	c.logger.Debug("lark api call",
		logging.Operation(op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	err = c.decodeResponse(op, kind, resp, out)
	c.observe(op, err, time.Since(start))
	return err
}

func (c *Client) observe(op string, err error, duration time.Duration) {
	if c.onOperation != nil {
		c.onOperation(op, err, duration)
	}
}

func (c *Client) decodeResponse(op string, kind TokenKind, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The body may still carry an envelope with a useful message.
		var env envelope
		msg := http.StatusText(resp.StatusCode)
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env); decodeErr == nil && env.Msg != "" {
			msg = c.tokens.sanitize(env.Msg)
		}
		if tokenRejected(env.Code) {
			c.tokens.Invalidate(kind)
		}
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Code: env.Code, Msg: msg}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Msg: "malformed response body"}
	}
	if env.Code != 0 {
		if tokenRejected(env.Code) {
			c.tokens.Invalidate(kind)
		}
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Code: env.Code, Msg: c.tokens.sanitize(env.Msg)}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Msg: "malformed response payload"}
		}
	}
	return nil
}

// tokenRejected reports whether an envelope code means the bearer token was
// not accepted, so the cached copy must be dropped even though its computed
// expiry has not passed.
func tokenRejected(code int) bool {
	switch code {
	case 99991661, 99991663, 99991664, 99991668:
		return true
	}
	return false
}

func (c *Client) transportError(op string, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if !timeout && errors.As(err, &netErr) {
		timeout = netErr.Timeout()
	}
	// url.Error repeats the full URL including query parameters; keep the
	// underlying cause only.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return &TransportError{Op: op, Timeout: timeout, Err: err}
}
