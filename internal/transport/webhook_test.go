package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/types"
)

func TestWebhookTransportSendText(t *testing.T) {
	var received outboundPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewWebhookTransport(server.URL, zerolog.Nop())
	if err := tr.SendText("5511999990000", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.To != "5511999990000" || received.Text != "hello" {
		t.Errorf("unexpected payload: %+v", received)
	}
}

func TestWebhookTransportSendMedia(t *testing.T) {
	var received outboundPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewWebhookTransport(server.URL, zerolog.Nop())
	content := types.Content{Media: &types.Media{
		Kind:    types.MediaImage,
		Ref:     "s3://bucket/photo.jpg",
		Caption: "the photo",
	}}
	if err := tr.SendContent("5511999990000", content); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.MediaKind != "image" || received.MediaRef != "s3://bucket/photo.jpg" {
		t.Errorf("unexpected payload: %+v", received)
	}
}

func TestWebhookTransportServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewWebhookTransport(server.URL, zerolog.Nop())
	if err := tr.SendText("5511999990000", "hello"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
