package lark_tools

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/larkmcp/larkmcp/internal/lark"
	"github.com/larkmcp/larkmcp/internal/tools/common"
)

// argSpec describes one tool argument for MCP schema registration. The
// handlers re-validate at dispatch time so direct Dispatch callers get the
// same checks as MCP clients.
type argSpec struct {
	name        string
	description string
	number      bool
	required    bool
}

// descriptor is one entry of the tool table: everything needed to register
// and execute a tool.
type descriptor struct {
	name        string
	description string
	args        []argSpec
	run         func(ctx context.Context, client *lark.Client, args map[string]any) (any, error)
}

// mcpTool builds the MCP tool definition from the descriptor.
func (d descriptor) mcpTool() mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(d.description)}
	for _, arg := range d.args {
		var propOpts []mcp.PropertyOption
		if arg.required {
			propOpts = append(propOpts, mcp.Required())
		}
		propOpts = append(propOpts, mcp.Description(arg.description))
		if arg.number {
			opts = append(opts, mcp.WithNumber(arg.name, propOpts...))
		} else {
			opts = append(opts, mcp.WithString(arg.name, propOpts...))
		}
	}
	return mcp.NewTool(d.name, opts...)
}

// descriptors is the fixed tool table. Order is the registration order.
var descriptors = []descriptor{
	{
		name:        "send_message",
		description: "Send a message to a Lark chat or user",
		args: []argSpec{
			{name: "receive_id", description: "Recipient ID, interpreted per receive_id_type", required: true},
			{name: "content", description: "Message content; plain text for msg_type 'text', raw JSON otherwise", required: true},
			{name: "msg_type", description: "Message type (default: 'text')"},
			{name: "receive_id_type", description: "ID type: 'chat_id', 'open_id', 'user_id', 'email' (default: 'chat_id')"},
		},
		run: runSendMessage,
	},
	{
		name:        "get_chat_list",
		description: "List the chats the bot has access to",
		args: []argSpec{
			{name: "page_size", description: "Page size (default: server side)", number: true},
			{name: "page_token", description: "Continuation token from a previous page"},
		},
		run: runGetChatList,
	},
	{
		name:        "get_chat_members",
		description: "List the members of a chat",
		args: []argSpec{
			{name: "chat_id", description: "Chat ID", required: true},
			{name: "page_size", description: "Page size (default: server side)", number: true},
			{name: "page_token", description: "Continuation token from a previous page"},
		},
		run: runGetChatMembers,
	},
	{
		name:        "create_calendar_event",
		description: "Create an event on the primary calendar",
		args: []argSpec{
			{name: "summary", description: "Event title", required: true},
			{name: "start_time", description: "Start time as a Unix timestamp string", required: true},
			{name: "end_time", description: "End time as a Unix timestamp string", required: true},
			{name: "description", description: "Event description"},
			{name: "location", description: "Event location name"},
			{name: "attendees", description: "Comma-separated list of attendee user IDs"},
		},
		run: runCreateCalendarEvent,
	},
	{
		name:        "upload_file",
		description: "Upload a file to the Lark file store",
		args: []argSpec{
			{name: "file_name", description: "File name including extension", required: true},
			{name: "file_content", description: "File content, base64 encoded", required: true},
			{name: "parent_node", description: "Target node the file is attached to", required: true},
			{name: "file_type", description: "File type (default: 'stream')"},
			{name: "parent_type", description: "Parent type (default: 'im')"},
		},
		run: runUploadFile,
	},
	{
		name:        "get_user_info",
		description: "Fetch a user's profile by user ID",
		args: []argSpec{
			{name: "user_id", description: "User ID", required: true},
		},
		run: runGetUserInfo,
	},
	{
		name:        "create_doc",
		description: "Create a document, optionally with initial content",
		args: []argSpec{
			{name: "title", description: "Document title", required: true},
			{name: "folder_token", description: "Folder to create the document in", required: true},
			{name: "content", description: "Initial text content inserted after creation"},
		},
		run: runCreateDoc,
	},
}

// toolIndex maps tool names to their descriptor for Dispatch lookup.
var toolIndex = func() map[string]descriptor {
	index := make(map[string]descriptor, len(descriptors))
	for _, d := range descriptors {
		index[d.name] = d
	}
	return index
}()

func runSendMessage(ctx context.Context, client *lark.Client, args map[string]any) (any, error) {
	const tool = "send_message"

	receiveID, err := common.RequireString(tool, args, "receive_id")
	if err != nil {
		return nil, err
	}
	content, err := common.RequireString(tool, args, "content")
	if err != nil {
		return nil, err
	}
	msgType, err := common.OptionalString(tool, args, "msg_type", "text")
	if err != nil {
		return nil, err
	}
	receiveIDType, err := common.OptionalString(tool, args, "receive_id_type", "chat_id")
	if err != nil {
		return nil, err
	}

	msg, err := client.SendMessage(ctx, lark.MessageInput{
		ReceiveID:     receiveID,
		ReceiveIDType: receiveIDType,
		MsgType:       msgType,
		Content:       content,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"message_id": msg.MessageID}, nil
}

func runGetChatList(ctx context.Context, client *lark.Client, args map[string]any) (any, error) {
	const tool = "get_chat_list"

	pageSize, err := common.OptionalInt(tool, args, "page_size", 0)
	if err != nil {
		return nil, err
	}
	pageToken, err := common.OptionalString(tool, args, "page_token", "")
	if err != nil {
		return nil, err
	}

	page, err := client.ListChats(ctx, pageSize, pageToken)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"chats":      page.Items,
		"page_token": page.PageToken,
		"has_more":   page.HasMore,
	}, nil
}

func runGetChatMembers(ctx context.Context, client *lark.Client, args map[string]any) (any, error) {
	const tool = "get_chat_members"

	chatID, err := common.RequireString(tool, args, "chat_id")
	if err != nil {
		return nil, err
	}
	pageSize, err := common.OptionalInt(tool, args, "page_size", 0)
	if err != nil {
		return nil, err
	}
	pageToken, err := common.OptionalString(tool, args, "page_token", "")
	if err != nil {
		return nil, err
	}

	page, err := client.ListChatMembers(ctx, chatID, pageSize, pageToken)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"members":    page.Items,
		"page_token": page.PageToken,
		"has_more":   page.HasMore,
	}, nil
}

func runCreateCalendarEvent(ctx context.Context, client *lark.Client, args map[string]any) (any, error) {
	const tool = "create_calendar_event"

	summary, err := common.RequireString(tool, args, "summary")
	if err != nil {
		return nil, err
	}
	start, err := common.RequireString(tool, args, "start_time")
	if err != nil {
		return nil, err
	}
	end, err := common.RequireString(tool, args, "end_time")
	if err != nil {
		return nil, err
	}
	description, err := common.OptionalString(tool, args, "description", "")
	if err != nil {
		return nil, err
	}
	location, err := common.OptionalString(tool, args, "location", "")
	if err != nil {
		return nil, err
	}
	attendees, err := attendeeList(tool, args)
	if err != nil {
		return nil, err
	}

	event, err := client.CreateCalendarEvent(ctx, lark.EventInput{
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       start,
		End:         end,
		Attendees:   attendees,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"event_id": event.EventID}, nil
}

// attendeeList accepts attendees either as a comma-separated string or as an
// array of strings.
func attendeeList(tool string, args map[string]any) ([]string, error) {
	if s, ok := args["attendees"].(string); ok {
		if s == "" {
			return nil, nil
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	return common.OptionalStringSlice(tool, args, "attendees")
}

func runUploadFile(ctx context.Context, client *lark.Client, args map[string]any) (any, error) {
	const tool = "upload_file"

	fileName, err := common.RequireString(tool, args, "file_name")
	if err != nil {
		return nil, err
	}
	encoded, err := common.RequireString(tool, args, "file_content")
	if err != nil {
		return nil, err
	}
	parentNode, err := common.RequireString(tool, args, "parent_node")
	if err != nil {
		return nil, err
	}
	fileType, err := common.OptionalString(tool, args, "file_type", "")
	if err != nil {
		return nil, err
	}
	parentType, err := common.OptionalString(tool, args, "parent_type", "")
	if err != nil {
		return nil, err
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &lark.ValidationError{Tool: tool, Argument: "file_content", Reason: "must be valid base64"}
	}

	ref, err := client.UploadFile(ctx, lark.UploadInput{
		FileName:   fileName,
		FileType:   fileType,
		ParentType: parentType,
		ParentNode: parentNode,
		Content:    content,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"file_key": ref.FileKey}, nil
}

func runGetUserInfo(ctx context.Context, client *lark.Client, args map[string]any) (any, error) {
	const tool = "get_user_info"

	userID, err := common.RequireString(tool, args, "user_id")
	if err != nil {
		return nil, err
	}

	user, err := client.GetUserInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": user}, nil
}

func runCreateDoc(ctx context.Context, client *lark.Client, args map[string]any) (any, error) {
	const tool = "create_doc"

	title, err := common.RequireString(tool, args, "title")
	if err != nil {
		return nil, err
	}
	folderToken, err := common.RequireString(tool, args, "folder_token")
	if err != nil {
		return nil, err
	}
	content, err := common.OptionalString(tool, args, "content", "")
	if err != nil {
		return nil, err
	}

	doc, err := client.CreateDocument(ctx, lark.DocInput{
		Title:       title,
		FolderToken: folderToken,
		Content:     content,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"doc_id": doc.DocumentID}, nil
}
