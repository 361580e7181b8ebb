package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/garnizeh/fixit/internal/booking"
	"github.com/garnizeh/fixit/internal/catalog"
	"github.com/garnizeh/fixit/internal/jobrequest"
	"github.com/garnizeh/fixit/pkg/models"
)

func plumbingClassifier() generatorFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return "Here you go:\n```json\n" + plumbingAnswer + "\n```", nil
	}
}

func TestRoutes_OpenEndpoints(t *testing.T) {
	e := newTestEnv(t, nil)

	expectStatus(t, e.do(t, http.MethodGet, "/health", "", nil), http.StatusOK)
	w := e.do(t, http.MethodGet, "/version", "", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"version":"1.0.0"`) {
		t.Fatalf("unexpected version body: %s", w.Body.String())
	}
	w = e.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "fixit_") {
		t.Fatalf("metrics output lacks fixit series")
	}
}

func TestRoutes_RequireToken(t *testing.T) {
	e := newTestEnv(t, nil)
	for _, path := range []string{"/v1/users/me", "/v1/workers", "/v1/job-requests", "/v1/chat/unread/u1", "/v1/catalog/service-packages"} {
		w := e.do(t, http.MethodGet, path, "", nil)
		expectStatus(t, w, http.StatusUnauthorized)
	}
}

func TestRoutes_Users(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.addUser(t, "alice", models.UserCustomer)
	tok := tokenFor(t, alice)

	w := e.do(t, http.MethodGet, "/v1/users/me", tok, nil)
	expectStatus(t, w, http.StatusOK)
	me := decodeBody[models.User](t, w)
	if me.ID != "alice" || me.Email != "alice@example.com" {
		t.Fatalf("unexpected me: %+v", me)
	}
	if strings.Contains(w.Body.String(), "$2a$") {
		t.Fatalf("password hash exposed: %s", w.Body.String())
	}

	expectStatus(t, e.do(t, http.MethodGet, "/v1/users/alice", tok, nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/v1/users/ghost", tok, nil), http.StatusNotFound)

	e.mocks.GetUserErr = errors.New("disk on fire")
	w = e.do(t, http.MethodGet, "/v1/users/me", tok, nil)
	expectStatus(t, w, http.StatusInternalServerError)
	if strings.Contains(w.Body.String(), "disk on fire") {
		t.Fatalf("internal error leaked: %s", w.Body.String())
	}
}

func TestRoutes_Workers(t *testing.T) {
	e := newTestEnv(t, nil)
	bob := e.addWorker(t, "bob", models.CategoryPlumbing)
	e.addWorker(t, "carl", models.CategoryPainting)
	alice := e.addUser(t, "alice", models.UserCustomer)

	w := e.do(t, http.MethodGet, "/v1/workers?skill=Plumbing", tokenFor(t, alice), nil)
	expectStatus(t, w, http.StatusOK)
	list := decodeBody[[]models.Worker](t, w)
	if len(list) != 1 || list[0].ID != "bob" {
		t.Fatalf("unexpected skill filter result: %+v", list)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/workers?skill=Juggling", tokenFor(t, alice), nil), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodGet, "/v1/workers?online=maybe", tokenFor(t, alice), nil), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodGet, "/v1/workers/bob", tokenFor(t, alice), nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/v1/workers/ghost", tokenFor(t, alice), nil), http.StatusNotFound)

	// only the worker edits their own profile
	upd := map[string]any{"bio": "Twenty years of pipes", "isOnline": false}
	expectStatus(t, e.do(t, http.MethodPut, "/v1/workers/bob", tokenFor(t, alice), upd), http.StatusForbidden)
	w = e.do(t, http.MethodPut, "/v1/workers/bob", tokenFor(t, bob), upd)
	expectStatus(t, w, http.StatusOK)
	got := decodeBody[models.Worker](t, w)
	if got.Bio != "Twenty years of pipes" || got.IsOnline {
		t.Fatalf("update not applied: %+v", got)
	}

	// platform-managed fields stay out of reach of the worker
	pw := e.addUser(t, "pw", models.UserWorker)
	pending := &models.Worker{ID: "pw", Name: pw.Name, Skills: []models.JobCategory{models.CategoryPlumbing},
		ActivationStatus: models.ActivationPendingReview, WorkingHours: models.DefaultWorkingHours()}
	if err := e.mocks.CreateWorker(context.Background(), pending); err != nil {
		t.Fatalf("create worker: %v", err)
	}
	w = e.do(t, http.MethodPut, "/v1/workers/pw", tokenFor(t, pw),
		map[string]any{"activationStatus": "ACTIVE", "isOnline": true, "isVerified": true, "rating": 5})
	expectStatus(t, w, http.StatusForbidden)
	stored, err := e.mocks.GetWorker(context.Background(), "pw")
	if err != nil || stored.ActivationStatus != models.ActivationPendingReview || stored.Rating != 0 || stored.IsVerified || stored.IsOnline {
		t.Fatalf("managed fields changed: %+v, %v", stored, err)
	}

	w = e.do(t, http.MethodGet, "/v1/workers?online=true", tokenFor(t, alice), nil)
	expectStatus(t, w, http.StatusOK)
	for _, wk := range decodeBody[[]models.Worker](t, w) {
		if wk.ID == "bob" {
			t.Fatalf("offline worker listed with online=true")
		}
	}
}

func TestRoutes_ServiceRequestLifecycle(t *testing.T) {
	e := newTestEnv(t, plumbingClassifier())
	alice := e.addUser(t, "alice", models.UserCustomer)
	bob := e.addWorker(t, "bob", models.CategoryPlumbing)
	e.addWorker(t, "carl", models.CategoryPainting)
	aliceTok, bobTok := tokenFor(t, alice), tokenFor(t, bob)

	// workers cannot submit
	expectStatus(t, e.do(t, http.MethodPost, "/v1/service-requests", bobTok,
		map[string]string{"description": "Leaky pipe", "location": "Kitchen"}), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPost, "/v1/service-requests", aliceTok,
		map[string]string{"description": "Leaky pipe"}), http.StatusBadRequest)

	w := e.do(t, http.MethodPost, "/v1/service-requests", aliceTok,
		map[string]string{"description": "Leaky pipe under the sink", "location": "123 Main St"})
	expectStatus(t, w, http.StatusCreated)
	res := decodeBody[booking.Result](t, w)
	jr := res.JobRequest
	if jr == nil || jr.Status != models.StatusMatchesFound || jr.CustomerName != "User alice" {
		t.Fatalf("unexpected job request: %+v", jr)
	}
	if jr.ServiceAnalysis == nil || jr.ServiceAnalysis.JobType != models.CategoryPlumbing || jr.ServiceAnalysis.Urgency != models.UrgencyHigh {
		t.Fatalf("unexpected analysis: %+v", jr.ServiceAnalysis)
	}
	if len(res.Matches) != 1 || res.Matches[0].ID != "bob" {
		t.Fatalf("unexpected matches: %+v", res.Matches)
	}
	path := "/v1/job-requests/" + jr.ID

	// the worker sees it in their feed
	w = e.do(t, http.MethodGet, "/v1/workers/bob/feed", bobTok, nil)
	expectStatus(t, w, http.StatusOK)
	if feed := decodeBody[[]models.JobRequest](t, w); len(feed) != 1 || feed[0].ID != jr.ID {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/workers/bob/feed", aliceTok, nil), http.StatusForbidden)

	// booking
	expectStatus(t, e.do(t, http.MethodPost, path+"/book", bobTok, map[string]string{"workerId": "bob"}), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPost, path+"/book", aliceTok, map[string]string{"workerId": "ghost"}), http.StatusNotFound)
	w = e.do(t, http.MethodPost, path+"/book", aliceTok, map[string]string{"workerId": "bob"})
	expectStatus(t, w, http.StatusOK)
	if booked := decodeBody[models.JobRequest](t, w); booked.Status != models.StatusAwaitingWorker || booked.AssignedWorkerID != "bob" {
		t.Fatalf("unexpected booked request: %+v", booked)
	}
	expectStatus(t, e.do(t, http.MethodPost, path+"/book", aliceTok, map[string]string{"workerId": "bob"}), http.StatusConflict)

	// a customer cannot drive worker transitions
	expectStatus(t, e.do(t, http.MethodPut, path, aliceTok, map[string]string{"status": "Accepted"}), http.StatusForbidden)

	steps := []struct {
		body map[string]any
		want models.JobStatus
	}{
		{map[string]any{"status": "Accepted"}, models.StatusAccepted},
		{map[string]any{"status": "In Progress"}, models.StatusInProgress},
	}
	for _, s := range steps {
		w = e.do(t, http.MethodPut, path, bobTok, s.body)
		expectStatus(t, w, http.StatusOK)
		if got := decodeBody[models.JobRequest](t, w); got.Status != s.want {
			t.Fatalf("expected %q got %q", s.want, got.Status)
		}
	}

	// completing needs payment details
	expectStatus(t, e.do(t, http.MethodPut, path, bobTok, map[string]any{"status": "Completed"}), http.StatusBadRequest)
	w = e.do(t, http.MethodPut, path, bobTok, map[string]any{"status": "Completed", "paymentDetails": map[string]any{"amount": 180}})
	expectStatus(t, w, http.StatusOK)
	done := decodeBody[models.JobRequest](t, w)
	if done.Status != models.StatusCompleted || done.PaymentDetails == nil || done.PaymentDetails.PaidDate.IsZero() {
		t.Fatalf("unexpected completed request: %+v", done)
	}
	expectStatus(t, e.do(t, http.MethodPut, path, aliceTok, map[string]any{"status": "Cancelled"}), http.StatusConflict)

	w = e.do(t, http.MethodGet, "/v1/workers/bob/earnings?period=this_month", bobTok, nil)
	expectStatus(t, w, http.StatusOK)
	earn := decodeBody[jobrequest.Earnings](t, w)
	if earn.Total != 180 || len(earn.Jobs) != 1 || earn.Period != jobrequest.PeriodThisMonth {
		t.Fatalf("unexpected earnings: %+v", earn)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/workers/bob/earnings?period=decade", bobTok, nil), http.StatusBadRequest)
}

func TestRoutes_ServiceRequestWithoutClassifier(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.addUser(t, "alice", models.UserCustomer)
	e.addWorker(t, "hank", models.CategoryOther)

	w := e.do(t, http.MethodPost, "/v1/service-requests", tokenFor(t, alice),
		map[string]string{"description": "Something odd", "location": "Home"})
	expectStatus(t, w, http.StatusCreated)
	res := decodeBody[booking.Result](t, w)
	if res.JobRequest.ServiceAnalysis.JobType != models.CategoryOther ||
		res.JobRequest.ServiceAnalysis.PriceEstimate != models.PriceRequiresQuote {
		t.Fatalf("expected the default analysis, got %+v", res.JobRequest.ServiceAnalysis)
	}
	if len(res.Matches) != 1 || res.Matches[0].ID != "hank" {
		t.Fatalf("unexpected matches: %+v", res.Matches)
	}
}

func TestRoutes_JobRequests(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.addUser(t, "alice", models.UserCustomer)
	dora := e.addUser(t, "dora", models.UserCustomer)
	bob := e.addWorker(t, "bob", models.CategoryPlumbing)

	body := map[string]any{
		"customerName": "Alice",
		"description":  "Paint the fence",
		"location":     "Backyard",
		"serviceAnalysis": map[string]string{
			"jobType": "Painting", "urgency": "Low", "severity": "Minor",
		},
	}
	expectStatus(t, e.do(t, http.MethodPost, "/v1/job-requests", tokenFor(t, bob), body), http.StatusForbidden)
	w := e.do(t, http.MethodPost, "/v1/job-requests", tokenFor(t, alice), body)
	expectStatus(t, w, http.StatusCreated)
	jr := decodeBody[models.JobRequest](t, w)
	if jr.CustomerID != "alice" || jr.Status != models.StatusMatchesFound {
		t.Fatalf("unexpected job request: %+v", jr)
	}

	bad := map[string]any{
		"customerName": "Alice", "description": "x", "location": "y",
		"serviceAnalysis": map[string]string{"jobType": "Juggling", "urgency": "Low", "severity": "Minor"},
	}
	expectStatus(t, e.do(t, http.MethodPost, "/v1/job-requests", tokenFor(t, alice), bad), http.StatusBadRequest)

	// customers only see their own requests
	w = e.do(t, http.MethodGet, "/v1/job-requests", tokenFor(t, dora), nil)
	expectStatus(t, w, http.StatusOK)
	if list := decodeBody[[]models.JobRequest](t, w); len(list) != 0 {
		t.Fatalf("dora sees other requests: %+v", list)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/job-requests?customerId=alice", tokenFor(t, dora), nil), http.StatusForbidden)
	w = e.do(t, http.MethodGet, "/v1/job-requests?status=Matches%20Found", tokenFor(t, bob), nil)
	expectStatus(t, w, http.StatusOK)
	if list := decodeBody[[]models.JobRequest](t, w); len(list) != 1 {
		t.Fatalf("worker listing: %+v", list)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/job-requests?status=Bogus", tokenFor(t, bob), nil), http.StatusBadRequest)

	path := "/v1/job-requests/" + jr.ID
	expectStatus(t, e.do(t, http.MethodGet, path, tokenFor(t, bob), nil), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/v1/job-requests/nope", tokenFor(t, bob), nil), http.StatusNotFound)

	// edits
	expectStatus(t, e.do(t, http.MethodPut, path, tokenFor(t, dora), map[string]string{"location": "Front yard"}), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPut, path, tokenFor(t, alice), map[string]string{}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPut, path, tokenFor(t, alice),
		map[string]string{"status": "Cancelled", "location": "Front yard"}), http.StatusBadRequest)
	w = e.do(t, http.MethodPut, path, tokenFor(t, alice), map[string]string{"location": "Front yard"})
	expectStatus(t, w, http.StatusOK)
	if got := decodeBody[models.JobRequest](t, w); got.Location != "Front yard" {
		t.Fatalf("edit not applied: %+v", got)
	}

	// booking through a status update needs a real worker
	expectStatus(t, e.do(t, http.MethodPut, path, tokenFor(t, alice),
		map[string]string{"status": "Awaiting Worker", "assignedWorkerId": "ghost"}), http.StatusNotFound)
	w = e.do(t, http.MethodGet, path, tokenFor(t, alice), nil)
	if got := decodeBody[models.JobRequest](t, w); got.Status != models.StatusMatchesFound || got.AssignedWorkerID != "" {
		t.Fatalf("booking for an unknown worker was stored: %+v", got)
	}
	w = e.do(t, http.MethodPut, path, tokenFor(t, alice),
		map[string]string{"status": "Awaiting Worker", "assignedWorkerId": "bob"})
	expectStatus(t, w, http.StatusOK)
	if got := decodeBody[models.JobRequest](t, w); got.Status != models.StatusAwaitingWorker || got.AssignedWorkerID != "bob" {
		t.Fatalf("booking not applied: %+v", got)
	}

	// cancel
	expectStatus(t, e.do(t, http.MethodPut, path, tokenFor(t, dora), map[string]string{"status": "Cancelled"}), http.StatusForbidden)
	w = e.do(t, http.MethodPut, path, tokenFor(t, alice), map[string]string{"status": "Cancelled"})
	expectStatus(t, w, http.StatusOK)
	if got := decodeBody[models.JobRequest](t, w); got.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %q", got.Status)
	}
	expectStatus(t, e.do(t, http.MethodPut, path, tokenFor(t, alice), map[string]string{"location": "Garage"}), http.StatusConflict)
}

func TestRoutes_Chat(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.addUser(t, "alice", models.UserCustomer)
	bob := e.addWorker(t, "bob", models.CategoryPlumbing)
	eve := e.addUser(t, "eve", models.UserCustomer)
	aliceTok, bobTok, eveTok := tokenFor(t, alice), tokenFor(t, bob), tokenFor(t, eve)

	w := e.do(t, http.MethodPost, "/v1/chat/threads", aliceTok, map[string]string{"participantId": "bob"})
	expectStatus(t, w, http.StatusOK)
	thread := decodeBody[models.ChatThread](t, w)
	if !thread.HasParticipant("alice") || !thread.HasParticipant("bob") {
		t.Fatalf("unexpected thread: %+v", thread)
	}
	w = e.do(t, http.MethodPost, "/v1/chat/threads", bobTok, map[string]string{"participantId": "alice"})
	expectStatus(t, w, http.StatusOK)
	if again := decodeBody[models.ChatThread](t, w); again.ID != thread.ID {
		t.Fatalf("pair got a second thread: %s vs %s", again.ID, thread.ID)
	}

	send := func(tok, text string) *httptest.ResponseRecorder {
		return e.do(t, http.MethodPost, "/v1/chat/messages", tok, map[string]string{"threadId": thread.ID, "text": text})
	}
	expectStatus(t, send(aliceTok, "Hi Bob"), http.StatusCreated)
	expectStatus(t, send(aliceTok, "Are you free Monday?"), http.StatusCreated)
	expectStatus(t, send(aliceTok, "   "), http.StatusBadRequest)
	expectStatus(t, send(eveTok, "Let me in"), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPost, "/v1/chat/messages", bobTok,
		map[string]string{"threadId": thread.ID, "senderId": "alice", "text": "spoof"}), http.StatusForbidden)
	expectStatus(t, e.do(t, http.MethodPost, "/v1/chat/messages", aliceTok,
		map[string]string{"threadId": "nope", "text": "hello?"}), http.StatusBadRequest)

	w = e.do(t, http.MethodGet, "/v1/chat/unread/bob", bobTok, nil)
	expectStatus(t, w, http.StatusOK)
	if n := decodeBody[map[string]int64](t, w)["count"]; n != 2 {
		t.Fatalf("expected 2 unread, got %d", n)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/chat/unread/bob", aliceTok, nil), http.StatusForbidden)

	w = e.do(t, http.MethodGet, "/v1/chat/messages/"+thread.ID, bobTok, nil)
	expectStatus(t, w, http.StatusOK)
	msgs := decodeBody[[]models.ChatMessage](t, w)
	if len(msgs) != 2 || msgs[0].Text != "Hi Bob" || msgs[1].ReceiverID != "bob" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/chat/messages/"+thread.ID, eveTok, nil), http.StatusForbidden)

	w = e.do(t, http.MethodPost, "/v1/chat/mark-read", bobTok, map[string]string{"threadId": thread.ID})
	expectStatus(t, w, http.StatusOK)
	if res := decodeBody[map[string]bool](t, w); !res["success"] || !res["messagesUpdated"] {
		t.Fatalf("expected mark-read to change messages, got %s", w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/v1/chat/mark-read", bobTok, map[string]string{"threadId": thread.ID})
	if res := decodeBody[map[string]bool](t, w); !res["success"] || res["messagesUpdated"] {
		t.Fatalf("second mark-read should be a no-op, got %s", w.Body.String())
	}
	w = e.do(t, http.MethodGet, "/v1/chat/unread/bob", bobTok, nil)
	if n := decodeBody[map[string]int64](t, w)["count"]; n != 0 {
		t.Fatalf("expected 0 unread after mark-read, got %d", n)
	}

	w = e.do(t, http.MethodGet, "/v1/chat/threads/alice", aliceTok, nil)
	expectStatus(t, w, http.StatusOK)
	if threads := decodeBody[[]models.ChatThread](t, w); len(threads) != 1 || threads[0].ID != thread.ID {
		t.Fatalf("unexpected threads: %+v", threads)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/chat/threads/alice", bobTok, nil), http.StatusForbidden)

	e.mocks.CountUnreadErr = errors.New("boom")
	expectStatus(t, e.do(t, http.MethodGet, "/v1/chat/unread/bob", bobTok, nil), http.StatusInternalServerError)
}

func TestRoutes_Catalog(t *testing.T) {
	e := newTestEnv(t, nil)
	tok := tokenFor(t, e.addUser(t, "alice", models.UserCustomer))

	w := e.do(t, http.MethodGet, "/v1/catalog/service-packages", tok, nil)
	expectStatus(t, w, http.StatusOK)
	if pkgs := decodeBody[[]catalog.ServicePackage](t, w); len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(pkgs))
	}
	w = e.do(t, http.MethodGet, "/v1/catalog/subscription-plans?category=HVAC", tok, nil)
	expectStatus(t, w, http.StatusOK)
	plans := decodeBody[[]catalog.SubscriptionPlan](t, w)
	if len(plans) != 1 || plans[0].ID != "sub_hvac_monthly" {
		t.Fatalf("unexpected plans: %+v", plans)
	}
	w = e.do(t, http.MethodGet, "/v1/catalog/service-packages?category=Salon", tok, nil)
	expectStatus(t, w, http.StatusOK)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/catalog/service-packages?category=Nope", tok, nil), http.StatusBadRequest)
}

func TestRoutes_ChatStream(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.addUser(t, "alice", models.UserCustomer)
	bob := e.addWorker(t, "bob", models.CategoryPlumbing)

	srv := httptest.NewServer(e.handler)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/stream"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatalf("dial without token should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+tokenFor(t, alice), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for e.hub.Connected("alice") != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never registered alice")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := e.do(t, http.MethodPost, "/v1/chat/threads", tokenFor(t, bob), map[string]string{"participantId": "alice"})
	expectStatus(t, w, http.StatusOK)
	thread := decodeBody[models.ChatThread](t, w)
	expectStatus(t, e.do(t, http.MethodPost, "/v1/chat/messages", tokenFor(t, bob),
		map[string]string{"threadId": thread.ID, "text": "On my way"}), http.StatusCreated)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type    string             `json:"type"`
		Payload models.ChatMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "message.new" || ev.Payload.Text != "On my way" || ev.Payload.SenderID != "bob" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
