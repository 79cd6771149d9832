package mattermost

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		ServerURL:  server.URL,
		BotToken:   "bot-token",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}
	return client
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(ClientConfig{BotToken: "bot-token"}); err == nil {
		t.Fatalf("expected missing server url error")
	}
	if _, err := NewClient(ClientConfig{ServerURL: "https://chat.example.com"}); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestPostAttachmentPayload(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload postRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotPayload); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestClient(t, handler)

	fields := []Field{{Title: "PR", Value: "Add retry budget", Short: false}}
	if err := client.PostAttachment(context.Background(), "town-square", "🆕 New pull request opened!", fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/api/v4/posts" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer bot-token" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
	if gotPayload.ChannelID != "town-square" {
		t.Fatalf("unexpected channel: %s", gotPayload.ChannelID)
	}
	if gotPayload.Props == nil || len(gotPayload.Props.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %#v", gotPayload.Props)
	}
	attachment := gotPayload.Props.Attachments[0]
	if attachment.Color != attachmentColor {
		t.Fatalf("unexpected color: %s", attachment.Color)
	}
	if attachment.AuthorName != authorLine {
		t.Fatalf("unexpected author line: %s", attachment.AuthorName)
	}
	if attachment.Title != "🆕 New pull request opened!" {
		t.Fatalf("unexpected title: %s", attachment.Title)
	}
	if len(attachment.Fields) != 1 || attachment.Fields[0].Value != "Add retry budget" {
		t.Fatalf("unexpected fields: %#v", attachment.Fields)
	}
}

func TestPostTextPayload(t *testing.T) {
	var gotPayload postRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestClient(t, handler)

	if err := client.PostText(context.Background(), "town-square", "done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPayload.Message != "done" {
		t.Fatalf("unexpected message: %q", gotPayload.Message)
	}
	if gotPayload.Props != nil {
		t.Fatalf("plain text posts carry no attachments")
	}
}

func TestPostSurfacesServerErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"message":"invalid token"}`)
	})
	client := newTestClient(t, handler)

	err := client.PostText(context.Background(), "town-square", "done")
	if err == nil {
		t.Fatalf("expected an error")
	}
}
