// Package telegram implements transport.Adapter over telebot long-polling.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	bot       *tele.Bot
	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the poll loop. Logged periodically to avoid per-update spam.
	droppedUpdates uint64

	// kindMu guards the chat-kind cache used to skip non-text destinations
	// without a platform round trip on every send.
	kindMu sync.Mutex
	kinds  map[int64]tele.ChatType
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b, kinds: map[int64]tele.ChatType{}}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.runWG.Add(2)
	a.runMu.Unlock()

	go func() {
		defer a.runWG.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Any("count", n))
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
					a.log.Warn("incoming updates dropped (channel full)", logx.Any("count", n))
				}
			}
		}
	}()

	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.rememberKind(m.Chat)
		up := transport.Update{
			Kind: transport.UpdateMessage,
			Message: &transport.Message{
				ID:           m.ID,
				ChatID:       m.Chat.ID,
				FromID:       m.Sender.ID,
				FromUsername: m.Sender.Username,
				Text:         m.Text,
				IsGroup:      m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
			},
		}
		select {
		case out <- up:
		default:
			atomic.AddUint64(&a.droppedUpdates, 1)
		}
		return nil
	})

	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop()
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	running := a.running
	a.running = false
	a.runMu.Unlock()
	if !running {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendText posts to the chat. Destinations that are not text-capable chats
// are skipped silently: the send succeeds as a no-op.
func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	if !a.textCapable(to.ChatID) {
		a.log.Debug("skipping non-text destination", logx.Int64("chat", to.ChatID))
		return nil
	}
	sendOpt := &tele.SendOptions{}
	if opt != nil {
		sendOpt.ParseMode = opt.ParseMode
		sendOpt.DisableWebPagePreview = opt.DisablePreview
	}

	type result struct{ err error }
	ch := make(chan result, 1)
	go func() {
		_, err := a.bot.Send(tele.ChatID(to.ChatID), text, sendOpt)
		ch <- result{err: err}
	}()
	select {
	case r := <-ch:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterCommands publishes the command menu once at startup.
func (a *Adapter) RegisterCommands(ctx context.Context, cmds []transport.BotCommand) error {
	_ = ctx
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, tele.Command{Text: c.Command, Description: c.Description})
	}
	if err := a.bot.SetCommands(out); err != nil {
		return err
	}
	a.log.Info("commands registered", logx.Int("count", len(out)))
	return nil
}

func (a *Adapter) rememberKind(chat *tele.Chat) {
	if chat == nil {
		return
	}
	a.kindMu.Lock()
	a.kinds[chat.ID] = chat.Type
	a.kindMu.Unlock()
}

// textCapable reports whether the destination accepts plain text posts. Kinds
// never seen before are resolved via the platform and cached.
func (a *Adapter) textCapable(chatID int64) bool {
	a.kindMu.Lock()
	kind, ok := a.kinds[chatID]
	a.kindMu.Unlock()
	if !ok {
		chat, err := a.bot.ChatByID(chatID)
		if err != nil || chat == nil {
			// Unknown chats are left to Send to fail loudly.
			return true
		}
		kind = chat.Type
		a.rememberKind(chat)
	}
	switch kind {
	case tele.ChatPrivate, tele.ChatGroup, tele.ChatSuperGroup, tele.ChatChannel:
		return true
	default:
		return false
	}
}
