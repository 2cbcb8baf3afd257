package router

import (
	"context"
	"strings"
	"testing"
	"time"

	"alertbot/internal/alert"
	"alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

type fakeAdapter struct {
	sent []string
}

func (a *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error                           { return nil }
func (a *fakeAdapter) RegisterCommands(context.Context, []transport.BotCommand) error {
	return nil
}

func (a *fakeAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) error {
	a.sent = append(a.sent, text)
	return nil
}

func newTestRouter(t *testing.T) (*Router, *fakeAdapter) {
	t.Helper()
	store := alert.NewStore()
	reg := alert.NewRegistry(logx.Nop())
	sched := alert.NewScheduler(store, reg, nopNotifier{}, time.UTC, logx.Nop())
	svc := alert.NewService(alert.Config{}, store, sched, logx.Nop())
	ad := &fakeAdapter{}
	return New(ad, svc, nil, logx.Nop()), ad
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, transport.Notification) error { return nil }

func msg(text string) *transport.Message {
	return &transport.Message{ID: 1, ChatID: 1000, FromID: 7, Text: text}
}

func (a *fakeAdapter) lastReply(t *testing.T) string {
	t.Helper()
	if len(a.sent) == 0 {
		t.Fatal("no reply sent")
	}
	return a.sent[len(a.sent)-1]
}

func TestAddHourlyConfirmsWithID(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert hourly 5 drink water"))
	reply := ad.lastReply(t)
	if !strings.Contains(reply, "#1") || !strings.Contains(reply, ":05") {
		t.Fatalf("confirmation missing id or schedule: %q", reply)
	}
	if !strings.Contains(reply, "drink water") {
		t.Fatalf("confirmation missing message: %q", reply)
	}
}

func TestAddOneShotConfirms(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert add 30 stand up"))
	reply := ad.lastReply(t)
	if !strings.Contains(reply, "#1") || !strings.Contains(reply, "at ") {
		t.Fatalf("confirmation missing fire-time descriptor: %q", reply)
	}
}

func TestListEmptyState(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert list"))
	if !strings.Contains(ad.lastReply(t), "no alerts") {
		t.Fatalf("expected empty-state message, got %q", ad.lastReply(t))
	}
}

func TestListShowsOnlyCallersAlerts(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert hourly 5 mine"))
	other := msg("/alert hourly 6 theirs")
	other.FromID = 8
	r.handleMessage(context.Background(), other)

	r.handleMessage(context.Background(), msg("/alert list"))
	reply := ad.lastReply(t)
	if !strings.Contains(reply, "mine") || strings.Contains(reply, "theirs") {
		t.Fatalf("list leaked another owner's alert: %q", reply)
	}
}

func TestRemoveNotFoundAndNotOwnedLookIdentical(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert hourly 5 mine"))

	foreign := msg("/alert remove 1")
	foreign.FromID = 8
	r.handleMessage(context.Background(), foreign)
	notOwned := ad.lastReply(t)

	r.handleMessage(context.Background(), msg("/alert remove 999"))
	missing := ad.lastReply(t)

	notOwned = strings.Replace(notOwned, "#1", "#N", 1)
	missing = strings.Replace(missing, "#999", "#N", 1)
	if notOwned != missing {
		t.Fatalf("replies differ, existence leaks: %q vs %q", notOwned, missing)
	}
}

func TestRemoveRoundTrip(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert add 10 bye"))
	r.handleMessage(context.Background(), msg("/alert remove 1"))
	if !strings.Contains(ad.lastReply(t), "Removed alert #1") {
		t.Fatalf("unexpected reply: %q", ad.lastReply(t))
	}
	r.handleMessage(context.Background(), msg("/alert list"))
	if !strings.Contains(ad.lastReply(t), "no alerts") {
		t.Fatal("alert still listed after remove")
	}
}

func TestClearReportsCount(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert hourly 5 a"))
	r.handleMessage(context.Background(), msg("/alert hourly 6 b"))
	r.handleMessage(context.Background(), msg("/alert clear"))
	if !strings.Contains(ad.lastReply(t), "Cleared 2") {
		t.Fatalf("unexpected clear reply: %q", ad.lastReply(t))
	}
	r.handleMessage(context.Background(), msg("/alert clear"))
	if !strings.Contains(ad.lastReply(t), "no alerts to clear") {
		t.Fatalf("unexpected empty clear reply: %q", ad.lastReply(t))
	}
}

func TestQuotaRejectionMessage(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	for i := 0; i < alert.DefaultMaxPerUser; i++ {
		r.handleMessage(context.Background(), msg("/alert hourly 5 spam"))
	}
	r.handleMessage(context.Background(), msg("/alert hourly 5 over"))
	if !strings.Contains(ad.lastReply(t), "already have 10 alerts") {
		t.Fatalf("unexpected quota reply: %q", ad.lastReply(t))
	}
}

func TestUnknownSubcommandShowsUsage(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("/alert frobnicate"))
	if !strings.Contains(ad.lastReply(t), "/alert add") {
		t.Fatalf("expected usage text, got %q", ad.lastReply(t))
	}
}

func TestNonCommandTextIgnored(t *testing.T) {
	t.Parallel()
	r, ad := newTestRouter(t)

	r.handleMessage(context.Background(), msg("hello there"))
	if len(ad.sent) != 0 {
		t.Fatalf("plain text should not trigger replies: %v", ad.sent)
	}
}

func TestSplitCommandStripsBotSuffix(t *testing.T) {
	t.Parallel()
	cmd, args := splitCommand("/alert@SomeBot add 5 hi")
	if cmd != "alert" {
		t.Fatalf("cmd = %q", cmd)
	}
	if len(args) != 3 || args[0] != "add" {
		t.Fatalf("args = %v", args)
	}
}
