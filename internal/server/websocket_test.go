package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"timekeep/internal/model"
)

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
}

func issueToken(t *testing.T, deps Deps, user model.User) string {
	t.Helper()
	token, err := deps.Tokens.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if event["type"] != wantType {
		t.Fatalf("expected %q event, got %+v", wantType, event)
	}
	return event
}

func TestUpgradeRejectsUnknownToken(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestDeps()))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "bogus"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 before any message exchange, got %+v", resp)
	}
}

func TestTokenUsableExactlyOnce(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	token := issueToken(t, deps, model.User{ID: "u1", Username: "alice"})

	conn := dial(t, srv, token)
	defer conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	if err == nil {
		t.Fatalf("expected second upgrade with the same token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on token replay, got %+v", resp)
	}
}

// Full protocol walk: add a timer, list it as active, stop it, see it move to
// the historical list with a fixed duration.
func TestTimerLifecycleOverWebSocket(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	conn := dial(t, srv, issueToken(t, deps, model.User{ID: "u1", Username: "alice"}))
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "add_timer", "description": "write spec"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	added := readEvent(t, conn, "add_timer")
	if added["description"] != "write spec" {
		t.Fatalf("unexpected add_timer event: %+v", added)
	}
	timerID, ok := added["id"].(string)
	if !ok || timerID == "" {
		t.Fatalf("expected timer id in add_timer event: %+v", added)
	}

	if err := conn.WriteJSON(map[string]any{"type": "all_timers"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	active := readEvent(t, conn, "active_timers")
	activeTimers, _ := active["activeTimers"].([]any)
	if len(activeTimers) != 1 {
		t.Fatalf("expected one active timer, got %+v", active)
	}
	entry := activeTimers[0].(map[string]any)
	if entry["id"] != timerID || entry["isActive"] != true {
		t.Fatalf("unexpected active timer entry: %+v", entry)
	}
	if progress, ok := entry["progress"].(float64); ok && progress < 0 {
		t.Fatalf("expected non-negative progress, got %v", progress)
	}
	old := readEvent(t, conn, "old_timers")
	if oldTimers, _ := old["oldTimers"].([]any); len(oldTimers) != 0 {
		t.Fatalf("expected no old timers yet, got %+v", old)
	}

	if err := conn.WriteJSON(map[string]any{"type": "stop_timer", "id": timerID}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	stopped := readEvent(t, conn, "stop_timer")
	if stopped["id"] != timerID {
		t.Fatalf("unexpected stop_timer event: %+v", stopped)
	}

	if err := conn.WriteJSON(map[string]any{"type": "all_timers"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	active = readEvent(t, conn, "active_timers")
	if activeTimers, _ := active["activeTimers"].([]any); len(activeTimers) != 0 {
		t.Fatalf("expected no active timers after stop, got %+v", active)
	}
	old = readEvent(t, conn, "old_timers")
	oldTimers, _ := old["oldTimers"].([]any)
	if len(oldTimers) != 1 {
		t.Fatalf("expected one old timer, got %+v", old)
	}
	entry = oldTimers[0].(map[string]any)
	if entry["id"] != timerID || entry["isActive"] != false {
		t.Fatalf("unexpected old timer entry: %+v", entry)
	}
	// duration is omitted from the JSON when the timer stopped within the
	// same millisecond it started, so read it tolerantly.
	duration, _ := entry["duration"].(float64)
	end, _ := entry["end"].(float64)
	start, _ := entry["start"].(float64)
	if start == 0 || end == 0 {
		t.Fatalf("expected start and end on a stopped timer: %+v", entry)
	}
	if duration != end-start {
		t.Fatalf("expected duration %v to equal end-start %v", duration, end-start)
	}
}

func TestStopUnknownTimerEmitsErrorAndKeepsConnection(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	conn := dial(t, srv, issueToken(t, deps, model.User{ID: "u1", Username: "alice"}))
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "stop_timer", "id": "no-such-timer"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readEvent(t, conn, "error")

	// The connection survived the bad message.
	if err := conn.WriteJSON(map[string]any{"type": "active_timers"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readEvent(t, conn, "active_timers")
}

func TestMalformedAndUnknownMessagesIgnored(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	conn := dial(t, srv, issueToken(t, deps, model.User{ID: "u1", Username: "alice"}))
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "time_travel"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	// Both frames were dropped without closing the connection or producing
	// events; the next request is answered first.
	if err := conn.WriteJSON(map[string]any{"type": "active_timers"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readEvent(t, conn, "active_timers")
}

func TestTwoTabsStayConsistent(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()

	user := model.User{ID: "u1", Username: "alice"}
	tab1 := dial(t, srv, issueToken(t, deps, user))
	defer tab1.Close()
	tab2 := dial(t, srv, issueToken(t, deps, user))
	defer tab2.Close()

	// A round-trip per tab guarantees both are registered before the
	// broadcast below.
	for _, tab := range []*websocket.Conn{tab1, tab2} {
		if err := tab.WriteJSON(map[string]any{"type": "active_timers"}); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
		readEvent(t, tab, "active_timers")
	}

	if err := tab1.WriteJSON(map[string]any{"type": "add_timer", "description": "shared"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	// The confirmation is fanned out to every connection of the user.
	added1 := readEvent(t, tab1, "add_timer")
	added2 := readEvent(t, tab2, "add_timer")
	if added1["id"] != added2["id"] {
		t.Fatalf("expected both tabs to see the same timer, got %+v and %+v", added1, added2)
	}

	// Independent polls project the same timer set.
	for _, tab := range []*websocket.Conn{tab1, tab2} {
		if err := tab.WriteJSON(map[string]any{"type": "active_timers"}); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
		event := readEvent(t, tab, "active_timers")
		activeTimers, _ := event["activeTimers"].([]any)
		if len(activeTimers) != 1 {
			t.Fatalf("expected one active timer, got %+v", event)
		}
		if activeTimers[0].(map[string]any)["id"] != added1["id"] {
			t.Fatalf("tabs disagree on timer id: %+v", event)
		}
	}
}

// End-to-end handoff: cookie login renders a page whose embedded token
// authorizes the WebSocket dial.
func TestCookieToTokenToConnectionHandoff(t *testing.T) {
	deps := newTestDeps()
	srv := httptest.NewServer(NewRouter(deps))
	defer srv.Close()
	client := noRedirectClient()

	resp := postForm(t, client, srv.URL+"/signup", url.Values{"username": {"alice"}, "password": {"s3cret"}})
	resp.Body.Close()
	session := sessionCookie(resp)
	if session == nil {
		t.Fatalf("expected session cookie")
	}

	token := fetchConnectionToken(t, client, srv.URL, session)
	conn := dial(t, srv, token)
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "all_timers"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readEvent(t, conn, "active_timers")
	readEvent(t, conn, "old_timers")
}
