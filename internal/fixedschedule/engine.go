// Package fixedschedule runs the static minute-of-hour broadcast table.
//
// The engine owns its own cron runner so a failure here cannot disturb the
// per-user alert scheduler, and vice versa.
package fixedschedule

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

// Notifier is the delivery capability the engine fires into.
type Notifier interface {
	Notify(ctx context.Context, n transport.Notification) error
}

// DefaultMessages is the built-in minute -> message table.
var DefaultMessages = map[int]string{
	59: "搶紅包",
	5:  "打蝦群",
	11: "打送禮",
	18: "打寶藏",
	26: "埋嚟考試啦",
	40: "大挪移靠晒你",
	50: "娛樂幣你唔係唔要呀?",
}

// Config controls the engine. Mention, when set, is prepended to every
// broadcast (the platform's everyone-style convention); empty means no tag.
type Config struct {
	ChannelID int64
	Mention   string
	Messages  map[int]string
}

// Engine is stateless beyond its configuration: once per minute, at second 0
// in the configured timezone, it looks the current minute up in the table and
// broadcasts the mapped message to the fixed destination.
type Engine struct {
	log      logx.Logger
	notifier Notifier
	cron     *cron.Cron
	loc      *time.Location
	now      func() time.Time

	mu        sync.RWMutex
	channelID int64
	mention   string
	table     map[int]string
}

func New(cfg Config, notifier Notifier, loc *time.Location, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	table := cfg.Messages
	if table == nil {
		table = DefaultMessages
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Engine{
		log:       log,
		notifier:  notifier,
		cron:      cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		loc:       loc,
		now:       time.Now,
		channelID: cfg.ChannelID,
		mention:   cfg.Mention,
		table:     table,
	}
}

func (e *Engine) Start() error {
	if _, err := e.cron.AddFunc("0 * * * * *", e.tick); err != nil {
		return err
	}
	e.cron.Start()
	e.log.Info("fixed schedule started",
		logx.Int64("channel", e.channelID),
		logx.Int("entries", len(e.table)),
		logx.String("tz", e.loc.String()))
	return nil
}

func (e *Engine) Stop(ctx context.Context) {
	stopped := e.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	e.log.Info("fixed schedule stopped")
}

// Apply swaps the reloadable subset (table and mention) at runtime.
func (e *Engine) Apply(messages map[int]string, mention string) {
	e.mu.Lock()
	if messages != nil {
		e.table = messages
	}
	e.mention = mention
	e.mu.Unlock()
}

func (e *Engine) tick() {
	minute := e.now().In(e.loc).Minute()

	e.mu.RLock()
	msg, ok := e.table[minute]
	channelID := e.channelID
	mention := e.mention
	e.mu.RUnlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n := transport.Notification{
		Target:  transport.ChatTarget{ChatID: channelID},
		Text:    msg,
		Mention: mention,
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Error("fixed broadcast failed", logx.Int("minute", minute), logx.Err(err))
	}
}
