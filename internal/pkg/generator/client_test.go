package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return &Client{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Model:      "test-model",
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotReq completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"generated text"}}]}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL)
	out, err := client.Generate(context.Background(), []Message{
		{Role: "system", Content: "you are a resume writer"},
		{Role: "user", Content: "write a resume"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "generated text" {
		t.Fatalf("Generate = %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestGenerate_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestGenerate_MissingKey(t *testing.T) {
	client := testClient("http://127.0.0.1:0")
	client.APIKey = ""
	if _, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
		wantErr bool
	}{
		{name: "plain object", content: `{"summary": "a"}`, wantKey: "summary"},
		{name: "json fence", content: "```json\n{\"summary\": \"a\"}\n```", wantKey: "summary"},
		{name: "bare fence", content: "```\n{\"summary\": \"a\"}\n```", wantKey: "summary"},
		{name: "surrounding prose", content: "Here you go:\n{\"summary\": \"a\"}\nHope this helps!", wantKey: "summary"},
		{name: "no json", content: "I could not generate a resume.", wantErr: true},
		{name: "broken json", content: `{"summary": `, wantErr: true},
	}

	for _, tt := range tests {
		out, err := ExtractJSON(tt.content)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if _, ok := out[tt.wantKey]; !ok {
			t.Fatalf("%s: key %q missing in %v", tt.name, tt.wantKey, out)
		}
	}
}
