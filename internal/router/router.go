// Package router dispatches incoming chat commands to the alert service and
// writes the replies. It owns no alert state; everything it touches goes
// through the service surface.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"alertbot/internal/alert"
	"alertbot/internal/storage"
	"alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

// AlertPort is the slice of the alert service the router needs.
type AlertPort interface {
	AddOneShot(ownerID, channelID, originID int64, offsetMin int, message string) (alert.Alert, error)
	AddHourly(ownerID, channelID, originID int64, minute int, message string) (alert.Alert, error)
	List(ownerID int64) []alert.Alert
	Remove(ownerID, id int64) (alert.Alert, error)
	Clear(ownerID int64) int
	MaxPerUser() int
	Location() *time.Location
}

const replyTimeout = 10 * time.Second

type Router struct {
	adapter transport.Adapter
	alerts  AlertPort
	audit   storage.Store // may be nil
	log     logx.Logger

	updates chan transport.Update
}

func New(adapter transport.Adapter, alerts AlertPort, audit storage.Store, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter: adapter,
		alerts:  alerts,
		audit:   audit,
		log:     log,
		updates: make(chan transport.Update, 64),
	}
}

// Commands is the menu registered with the platform at startup.
func Commands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "alert", Description: "Manage your alerts (in memory)"},
		{Command: "help", Description: "Show usage"},
	}
}

// Run starts the adapter and consumes updates until ctx is done.
func (r *Router) Run(ctx context.Context) error {
	if err := r.adapter.Start(ctx, r.updates); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case up := <-r.updates:
				if up.Kind == transport.UpdateMessage && up.Message != nil {
					r.handleMessage(ctx, up.Message)
				}
			}
		}
	}()
	return nil
}

// request tracks whether a reply has been issued so the generic apology never
// double-responds.
type request struct {
	msg     *transport.Message
	replied bool
}

func (r *Router) handleMessage(ctx context.Context, m *transport.Message) {
	req := &request{msg: m}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in command handler",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())),
				logx.Int64("from", m.FromID))
			if !req.replied {
				r.reply(ctx, req, "Unexpected error. Try again later.")
			}
		}
	}()

	cmd, args := splitCommand(m.Text)
	switch cmd {
	case "alert":
		r.handleAlert(ctx, req, args)
	case "help", "start":
		r.reply(ctx, req, usageText)
	}
}

const usageText = "Alert commands:\n" +
	"/alert add <minutes> <message> — one-shot alert after N minutes (tags you)\n" +
	"/alert hourly <minute> <message> — every hour at a minute 0-59 (tags you)\n" +
	"/alert list — list your alerts\n" +
	"/alert remove <id> — remove one alert by ID\n" +
	"/alert clear — remove all your alerts"

func (r *Router) handleAlert(ctx context.Context, req *request, args []string) {
	if len(args) == 0 {
		r.reply(ctx, req, usageText)
		return
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "add":
		r.handleAdd(ctx, req, rest, false)
	case "hourly":
		r.handleAdd(ctx, req, rest, true)
	case "list":
		r.handleList(ctx, req)
	case "remove":
		r.handleRemove(ctx, req, rest)
	case "clear":
		r.handleClear(ctx, req)
	default:
		r.reply(ctx, req, usageText)
	}
}

func (r *Router) handleAdd(ctx context.Context, req *request, args []string, hourly bool) {
	if len(args) < 2 {
		r.reply(ctx, req, usageText)
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		r.reply(ctx, req, usageText)
		return
	}
	message := strings.TrimSpace(strings.Join(args[1:], " "))
	m := req.msg

	var a alert.Alert
	if hourly {
		a, err = r.alerts.AddHourly(m.FromID, m.ChatID, m.ChatID, n, message)
	} else {
		a, err = r.alerts.AddOneShot(m.FromID, m.ChatID, m.ChatID, n, message)
	}
	switch {
	case errors.Is(err, alert.ErrQuotaExceeded):
		r.appendAudit(m, "alert.add", "", false, err)
		r.reply(ctx, req, fmt.Sprintf("❌ You already have %d alerts. Use /alert list or /alert clear.", r.alerts.MaxPerUser()))
		return
	case err != nil:
		r.appendAudit(m, "alert.add", "", false, err)
		r.reply(ctx, req, "❌ "+err.Error())
		return
	}
	r.appendAudit(m, "alert.add", fmt.Sprintf("#%d", a.ID), true, nil)
	r.reply(ctx, req, fmt.Sprintf("✅ Added alert #%d — %s (TZ: %s) here.\nIt will tag you and say: %s",
		a.ID, a.Schedule.Describe(r.alerts.Location()), r.alerts.Location(), a.Message))
}

func (r *Router) handleList(ctx context.Context, req *request) {
	mine := r.alerts.List(req.msg.FromID)
	if len(mine) == 0 {
		r.reply(ctx, req, "You have no alerts. Use /alert add <minutes> <message> or /alert hourly <minute> <message>.")
		return
	}
	loc := r.alerts.Location()
	lines := make([]string, 0, len(mine))
	for _, a := range mine {
		lines = append(lines, fmt.Sprintf("#%d • %s • chat %d • %s", a.ID, a.Schedule.Describe(loc), a.ChannelID, a.Message))
	}
	r.reply(ctx, req, strings.Join(lines, "\n"))
}

func (r *Router) handleRemove(ctx context.Context, req *request, args []string) {
	if len(args) != 1 {
		r.reply(ctx, req, usageText)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		r.reply(ctx, req, usageText)
		return
	}
	m := req.msg
	if _, err := r.alerts.Remove(m.FromID, id); err != nil {
		// Not-found and not-owned are indistinguishable on purpose.
		r.appendAudit(m, "alert.remove", fmt.Sprintf("#%d", id), false, err)
		r.reply(ctx, req, fmt.Sprintf("❌ Alert #%d not found (or not yours).", id))
		return
	}
	r.appendAudit(m, "alert.remove", fmt.Sprintf("#%d", id), true, nil)
	r.reply(ctx, req, fmt.Sprintf("🗑️ Removed alert #%d.", id))
}

func (r *Router) handleClear(ctx context.Context, req *request) {
	m := req.msg
	n := r.alerts.Clear(m.FromID)
	if n == 0 {
		r.reply(ctx, req, "You have no alerts to clear.")
		return
	}
	r.appendAudit(m, "alert.clear", strconv.Itoa(n), true, nil)
	r.reply(ctx, req, fmt.Sprintf("🧹 Cleared %d alert(s).", n))
}

func (r *Router) reply(ctx context.Context, req *request, text string) {
	req.replied = true
	cctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	to := transport.ChatTarget{ChatID: req.msg.ChatID}
	if err := r.adapter.SendText(cctx, to, text, nil); err != nil {
		r.log.Error("reply failed", logx.Int64("chat", req.msg.ChatID), logx.Err(err))
	}
}

func (r *Router) appendAudit(m *transport.Message, action, target string, ok bool, err error) {
	if r.audit == nil {
		return
	}
	e := storage.AuditEntry{ActorID: m.FromID, ChatID: m.ChatID, Action: action, Target: target, OK: ok}
	if err != nil {
		e.Error = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if aerr := r.audit.AppendAudit(ctx, e); aerr != nil {
		r.log.Debug("audit append failed", logx.Err(aerr))
	}
}

// splitCommand turns "/alert@SomeBot add 5 hi" into ("alert", ["add","5","hi"]).
// Non-command text returns an empty command.
func splitCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}
