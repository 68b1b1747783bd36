package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/wingmanlabs/wingman/internal/anthropic"
	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/storage"
	"github.com/wingmanlabs/wingman/internal/turn"
	"github.com/wingmanlabs/wingman/internal/uploads"
)

type stubGateway struct {
	reply string
	err   error
}

func (g *stubGateway) Complete(ctx context.Context, req anthropic.Request) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func testServer(t *testing.T, gw turn.Gateway) (*httptest.Server, Deps) {
	t.Helper()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := profile.NewManager(db)
	ups, err := uploads.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("uploads store: %v", err)
	}

	deps := Deps{
		Store:      db,
		Profiles:   profiles,
		Turns:      turn.NewHandler(profiles, gw, ups, turn.NewStoreAuditor(db)),
		Uploads:    ups,
		AdminToken: "secret-token",
	}
	srv := httptest.NewServer(NewHandler(deps))
	t.Cleanup(srv.Close)
	return srv, deps
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "ok"})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestOnboardAndGetProfile(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "ok"})

	resp := postJSON(t, srv.URL+"/api/onboard", map[string]any{
		"name":          "Sam",
		"responseStyle": "bold",
		"startTrial":    true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("onboard status = %d", resp.StatusCode)
	}
	created := decode[struct {
		Profile       profile.Profile `json:"profile"`
		TrialDaysLeft int             `json:"trialDaysLeft"`
	}](t, resp)
	if created.Profile.UserID == "" {
		t.Fatal("onboard returned no user id")
	}
	if created.Profile.Name != "Sam" {
		t.Errorf("name = %q", created.Profile.Name)
	}
	if created.TrialDaysLeft != 3 {
		t.Errorf("trialDaysLeft = %d, want 3", created.TrialDaysLeft)
	}

	getResp, err := http.Get(srv.URL + "/api/profile/" + created.Profile.UserID)
	if err != nil {
		t.Fatal(err)
	}
	got := decode[struct {
		Profile profile.Profile `json:"profile"`
	}](t, getResp)
	if got.Profile.ResponseStyle != "bold" {
		t.Errorf("responseStyle = %q", got.Profile.ResponseStyle)
	}
}

func TestPatchProfileValidation(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "ok"})

	bad := postJSON(t, srv.URL+"/api/profile/settings", map[string]any{
		"userId":        "u1",
		"messageLength": 9,
	})
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range slider: status = %d, want 400", bad.StatusCode)
	}

	unknown := postJSON(t, srv.URL+"/api/profile/settings", map[string]any{
		"userId":      "u1",
		"deepAnswers": map[string]string{"favoriteColor": "blue"},
	})
	defer unknown.Body.Close()
	if unknown.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown deep answer key: status = %d, want 400", unknown.StatusCode)
	}

	missing := postJSON(t, srv.URL+"/api/profile/settings", map[string]any{"name": "x"})
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Errorf("missing userId: status = %d, want 400", missing.StatusCode)
	}
}

func TestMessageTurn(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "hey! tell me the vibe you're going for"})

	resp := postJSON(t, srv.URL+"/api/message", map[string]any{
		"userId":  "u1",
		"message": "",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	res := decode[turn.MessageResult](t, resp)
	if res.Reply == "" {
		t.Error("empty reply")
	}
	if res.Mode != "greeting" {
		t.Errorf("mode = %q", res.Mode)
	}
}

func TestMessageTurnRequiresUser(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "x"})

	resp := postJSON(t, srv.URL+"/api/message", map[string]any{"message": "hi"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestKeyboardSuggest(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: `{"suggestions": ["sounds fun honestly", "ok when and where", "you had me at food"]}`})

	resp := postJSON(t, srv.URL+"/api/keyboard/suggest", map[string]any{
		"userId":  "u1",
		"context": "wanna grab dinner this week",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	res := decode[turn.ImageResult](t, resp)
	if len(res.Suggestions) != 3 {
		t.Errorf("suggestions = %v", res.Suggestions)
	}
}

func TestKeyboardSuggestRequiresContext(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "x"})

	resp := postJSON(t, srv.URL+"/api/keyboard/suggest", map[string]any{"userId": "u1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileContents []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(fileContents); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestAnalyzeImage(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: `{"suggestions": ["lol no shot", "wait that's hilarious", "ok explain yourself"]}`})

	body, ct := multipartBody(t, map[string]string{
		"userId":     "u1",
		"contextWho": "my crush",
	}, "image", "shot.png", []byte("fake png"))

	resp, err := http.Post(srv.URL+"/api/keyboard/analyze-image", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	res := decode[turn.ImageResult](t, resp)
	if len(res.Suggestions) != 3 {
		t.Errorf("suggestions = %v", res.Suggestions)
	}
}

func TestAnalyzeImageRequiresImage(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "x"})

	body, ct := multipartBody(t, map[string]string{"userId": "u1"}, "", "", nil)
	resp, err := http.Post(srv.URL+"/api/keyboard/analyze-image", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "ok"})

	for i, entry := range []map[string]any{
		{"text": "help me reply to this", "isUser": true},
		{"text": "ok what did they say", "isUser": false},
	} {
		resp := postJSON(t, srv.URL+"/api/chat-history/u1", entry)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("append %d: status = %d", i, resp.StatusCode)
		}
	}

	getResp, err := http.Get(srv.URL + "/api/chat-history/u1")
	if err != nil {
		t.Fatal(err)
	}
	history := decode[struct {
		Messages []profile.ChatEntry `json:"messages"`
	}](t, getResp)
	if len(history.Messages) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history.Messages))
	}
	if !history.Messages[0].IsUser || history.Messages[1].IsUser {
		t.Error("history entry order or isUser flags wrong")
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/chat-history/u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()

	getResp2, err := http.Get(srv.URL + "/api/chat-history/u1")
	if err != nil {
		t.Fatal(err)
	}
	cleared := decode[struct {
		Messages []profile.ChatEntry `json:"messages"`
	}](t, getResp2)
	if len(cleared.Messages) != 0 {
		t.Errorf("history after clear = %d entries", len(cleared.Messages))
	}
}

func TestAdminAuth(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "ok"})

	resp, err := http.Get(srv.URL + "/admin/interactions")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/interactions", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer secret-token")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", authed.StatusCode)
	}
}

func TestInteractionsRecorded(t *testing.T) {
	srv, deps := testServer(t, &stubGateway{reply: "got it"})

	resp := postJSON(t, srv.URL+"/api/message", map[string]any{"userId": "u1", "message": "hey"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("message status = %d", resp.StatusCode)
	}

	interactions, err := deps.Store.ListInteractions(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(interactions) != 1 {
		t.Fatalf("interactions = %d, want 1", len(interactions))
	}
	if interactions[0].Kind != "message" {
		t.Errorf("kind = %q", interactions[0].Kind)
	}
}

func TestMessageWithImageBecomesAnalysis(t *testing.T) {
	commentary := "ok so they said they're omw. you're fine, just send: bet, see you soon"
	srv, deps := testServer(t, &stubGateway{reply: commentary})

	body, ct := multipartBody(t, map[string]string{
		"userId":  "u1",
		"message": "what do i say back",
	}, "image", "convo.jpg", []byte("fake jpeg"))

	resp, err := http.Post(srv.URL+"/api/message", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	res := decode[turn.ImageResult](t, resp)
	if res.Reply != commentary {
		t.Errorf("reply = %q", res.Reply)
	}

	// The typed message is bookkept like any other turn even though the
	// screenshot routed it into analysis.
	p, err := deps.Profiles.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.MessageCount != 1 {
		t.Errorf("message count = %d, want 1", p.MessageCount)
	}
	if len(p.Messages) != 1 || p.Messages[0] != "what do i say back" {
		t.Errorf("messages = %v, want the typed message", p.Messages)
	}
}

func TestAnalyzeImageRemovesUpload(t *testing.T) {
	srv, deps := testServer(t, &stubGateway{reply: `{"suggestions": ["lol what", "go on", "say more words"]}`})

	body, ct := multipartBody(t, map[string]string{
		"userId": "u1",
	}, "image", "shot.png", []byte("fake png"))

	resp, err := http.Post(srv.URL+"/api/keyboard/analyze-image", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	entries, err := os.ReadDir(deps.Uploads.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("uploads dir has %d files after the turn, want 0", len(entries))
	}
}

func TestBearerAuthRejectsWrongScheme(t *testing.T) {
	srv, _ := testServer(t, &stubGateway{reply: "ok"})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/interactions", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", "secret-token"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
