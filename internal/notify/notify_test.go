package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSender records every delivered title and optionally fails.
type fakeSender struct {
	name string
	err  error

	mu     sync.Mutex
	titles []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.titles = append(f.titles, title)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.titles)
}

func TestNotifierFiltersEvents(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, []string{EventBuy, EventSell}, testLogger())

	if err := n.Notify(context.Background(), EventPool, "t", "m"); err != nil {
		t.Fatalf("filtered event returned error: %v", err)
	}
	if sender.count() != 0 {
		t.Fatal("filtered event reached the sender")
	}

	if err := n.Notify(context.Background(), EventBuy, "t", "m"); err != nil {
		t.Fatalf("allowed event: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("allowed event delivered %d times, want 1", sender.count())
	}

	// NotifyAll bypasses the filter.
	if err := n.NotifyAll(context.Background(), "t", "m"); err != nil {
		t.Fatalf("NotifyAll: %v", err)
	}
	if sender.count() != 2 {
		t.Fatalf("NotifyAll delivered %d times total, want 2", sender.count())
	}
}

func TestNotifierEmptyEventListAllowsEverything(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	for _, ev := range []string{EventBuy, EventSell, EventPool, EventSystem, "anything"} {
		if err := n.Notify(context.Background(), ev, "t", "m"); err != nil {
			t.Fatalf("event %q: %v", ev, err)
		}
	}
	if sender.count() != 5 {
		t.Fatalf("delivered %d times, want 5", sender.count())
	}
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil {
		t.Fatal("expected a combined error")
	}
	if !strings.Contains(err.Error(), "bad: boom") {
		t.Errorf("error does not name the failing sender: %v", err)
	}
	if good.count() != 1 {
		t.Error("failure of one sender blocked delivery to the other")
	}
}

func TestTelegramSenderPostsMessage(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := &TelegramSender{
		token:   "123:abc",
		chatID:  "42",
		apiBase: srv.URL,
		client:  srv.Client(),
	}
	if err := sender.Send(context.Background(), "Title", "line one\nline two"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "42" {
		t.Errorf("chat_id = %v", gotBody["chat_id"])
	}
	if gotBody["text"] != "*Title*\nline one\nline two" {
		t.Errorf("text = %q", gotBody["text"])
	}
	if gotBody["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %v", gotBody["parse_mode"])
	}
	if gotBody["disable_web_page_preview"] != true {
		t.Error("web page preview not disabled")
	}
}

func TestTelegramSenderSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	sender := &TelegramSender{token: "t", chatID: "c", apiBase: srv.URL, client: srv.Client()}
	err := sender.Send(context.Background(), "Title", "msg")
	if err == nil {
		t.Fatal("expected an error for status 400")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error lacks status and body: %v", err)
	}
}

func buyFixture() (domain.TradeEvent, domain.Receipt, domain.Holding) {
	ev := domain.TradeEvent{
		Venue:     domain.VenuePumpFun,
		Mint:      "BCzDWCiDpuKxJwQbAph1Q61noNRPBM8f2EiZLqxApump",
		PostPrice: 0.000000028,
		IsBuy:     true,
		SolChange: 0.42,
	}
	receipt := domain.Receipt{Signature: "5uHc4signature", Channel: domain.ChannelRelay}
	bought := domain.HoldingFromRaw(ev.Mint, 35_000_000_000, 6) // 35000 tokens
	return ev, receipt, bought
}

func TestBuyBody(t *testing.T) {
	ev, receipt, bought := buyFixture()
	body := buyBody(ev, receipt, bought, 0)

	for _, frag := range []string{
		"🪙 Mint: " + ev.Mint,
		"🚀 Protocol: PumpFun",
		"💵 Spent: 0.000980 SOL", // 0.000000028 * 35000
		"💎 Price: 0.000000028000 SOL/token",
		"📊 Amount: 35000.000000 tokens",
		"🔗 Tx: 5uHc4signature",
	} {
		if !strings.Contains(body, frag) {
			t.Errorf("buy body missing %q:\n%s", frag, body)
		}
	}
	if strings.Contains(body, "$") {
		t.Errorf("USD valuation present without a spot price:\n%s", body)
	}

	priced := buyBody(ev, receipt, bought, 200)
	if want := "💵 Spent: 0.000980 SOL (≈$0.20)"; !strings.Contains(priced, want) {
		t.Errorf("buy body missing %q:\n%s", want, priced)
	}
}

func TestSellBody(t *testing.T) {
	ev, _, _ := buyFixture()
	ev.Venue = domain.VenuePumpSwap
	result := domain.SellResult{
		Mint:      ev.Mint,
		Reason:    domain.SellReasonTakeProfit,
		Signature: "3sellSig",
		Success:   true,
	}

	body := sellBody(ev, result)
	for _, frag := range []string{
		"💧 Protocol: PumpSwap",
		"📝 Reason: take_profit",
		"🔗 Tx: 3sellSig",
	} {
		if !strings.Contains(body, frag) {
			t.Errorf("sell body missing %q:\n%s", frag, body)
		}
	}
	if strings.Contains(body, "fallback") {
		t.Error("fallback line present without UsedFallback")
	}

	result.UsedFallback = true
	if !strings.Contains(sellBody(ev, result), "aggregator fallback") {
		t.Error("fallback line missing when UsedFallback is set")
	}
}

func TestSellFailureBody(t *testing.T) {
	result := domain.SellResult{
		Mint:     "SomeMint",
		Reason:   domain.SellReasonStopLoss,
		Attempts: 2,
		Err:      errors.New("no route"),
	}
	body := sellFailureBody(result)
	for _, frag := range []string{"SomeMint", "stop_loss", "Attempts: 2", "no route"} {
		if !strings.Contains(body, frag) {
			t.Errorf("failure body missing %q:\n%s", frag, body)
		}
	}
}

func TestVenueBadge(t *testing.T) {
	tests := []struct {
		venue domain.Venue
		emoji string
		label string
	}{
		{domain.VenuePumpFun, "🚀", "PumpFun"},
		{domain.VenuePumpSwap, "💧", "PumpSwap"},
		{domain.VenueUnknown, "🔗", "unknown"},
	}
	for _, tt := range tests {
		emoji, label := venueBadge(tt.venue)
		if emoji != tt.emoji || label != tt.label {
			t.Errorf("venueBadge(%s) = %s %s, want %s %s", tt.venue, emoji, label, tt.emoji, tt.label)
		}
	}
}

func TestTradeAlerterRoutesThroughFilter(t *testing.T) {
	sender := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{sender}, []string{EventSell}, testLogger())
	alerter := NewTradeAlerter(n, nil, testLogger())

	ev, receipt, bought := buyFixture()
	alerter.BuyExecuted(context.Background(), ev, receipt, bought)
	if sender.count() != 0 {
		t.Fatal("buy event should have been filtered out")
	}

	alerter.SellExecuted(context.Background(), ev, domain.SellResult{
		Mint: ev.Mint, Reason: domain.SellReasonManual, Signature: "sig", Success: true,
	})
	if sender.count() != 1 {
		t.Fatalf("sell event delivered %d times, want 1", sender.count())
	}
	sender.mu.Lock()
	title := sender.titles[0]
	sender.mu.Unlock()
	if title != "🔴 SELL ORDER EXECUTED" {
		t.Errorf("title = %q", title)
	}

	// Failures still notify, under a distinct title.
	alerter.SellExecuted(context.Background(), ev, domain.SellResult{
		Mint: ev.Mint, Reason: domain.SellReasonManual, Err: errors.New("boom"),
	})
	sender.mu.Lock()
	last := sender.titles[len(sender.titles)-1]
	sender.mu.Unlock()
	if last != "⚠️ SELL FAILED" {
		t.Errorf("failure title = %q", last)
	}
}
