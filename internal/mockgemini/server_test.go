package mockgemini

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func post(t *testing.T, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("x-goog-api-key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

const promptBody = `{"contents":[{"role":"user","parts":[{"text":"Company name: Acme"}]}]}`

func TestServer_DefaultReply(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := post(t, ts.URL+"/v1beta/models/gemini-2.5-flash:generateContent", "k1", promptBody)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	var got struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Candidates) != 1 || got.Candidates[0].Content.Parts[0].Text != DefaultText {
		t.Fatalf("unexpected body: %#v", got)
	}

	calls := srv.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0] != (Call{Model: "gemini-2.5-flash", APIKey: "k1", Prompt: "Company name: Acme"}) {
		t.Fatalf("unexpected call: %#v", calls[0])
	}
}

func TestServer_ScriptedErrorsThenRepeatLast(t *testing.T) {
	srv := New()
	srv.Script("k1", Response{Status: http.StatusTooManyRequests, Text: "quota exceeded"}, Response{Text: "{}"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := ts.URL + "/v1beta/models/m:generateContent"
	resp := post(t, url, "k1", promptBody)
	var e struct {
		Error struct {
			Code   int    `json:"code"`
			Status string `json:"status"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests || e.Error.Status != "RESOURCE_EXHAUSTED" || e.Error.Code != 429 {
		t.Fatalf("unexpected error reply: %d %#v", resp.StatusCode, e)
	}

	for i := 0; i < 2; i++ {
		resp = post(t, url, "k1", promptBody)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: status=%d", i, resp.StatusCode)
		}
	}
	if got := srv.CallsFor("k1"); got != 3 {
		t.Fatalf("expected 3 calls for k1, got %d", got)
	}
}

func TestServer_RequiresKey(t *testing.T) {
	ts := httptest.NewServer(New().Handler())
	defer ts.Close()

	resp := post(t, ts.URL+"/v1beta/models/m:generateContent", "", promptBody)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp = post(t, ts.URL+"/v1beta/models/m:generateContent?key=qk", "", promptBody)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected query key to be accepted, got %d", resp.StatusCode)
	}
}

func TestServer_UnknownPath(t *testing.T) {
	ts := httptest.NewServer(New().Handler())
	defer ts.Close()

	resp := post(t, ts.URL+"/v1beta/models/m:countTokens", "k", promptBody)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
