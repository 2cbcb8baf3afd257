package transport

import "context"

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

// Message is an inbound text message, normalized away from the platform types.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

// ChatTarget identifies the destination of an outbound send.
type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Notification is a single outbound delivery.
//
// TagUserID, when non-zero, asks the delivery pipeline to render a platform
// mention of that user in front of Text. Mention is a pre-rendered prefix (used by the
// fixed schedule for its broadcast convention) and is sent verbatim.
type Notification struct {
	Target    ChatTarget
	Text      string
	TagUserID int64
	Mention   string
	Options   *SendOptions
}

// BotCommand is a single command menu entry registered at startup.
type BotCommand struct {
	Command     string
	Description string
}

// Adapter abstracts the chat platform.
//
// SendText must silently skip destinations that are not text-capable chats
// (wrong chat kind is not an error, the send is simply dropped).
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error

	// RegisterCommands publishes the bot command menu. Called once at startup.
	RegisterCommands(ctx context.Context, cmds []BotCommand) error
}
