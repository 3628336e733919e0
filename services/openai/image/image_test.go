package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"multimodalchat/core"
)

func TestOpenAIImageService_Generate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"created":1,"data":[{"b64_json":"iVBORw0KGgo=","revised_prompt":"a red fox"}]}`))
	}))
	defer server.Close()

	svc := NewOpenAIImageService(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"}, core.NewNopLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	img, err := svc.Generate(context.Background(), "a fox")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if img.B64PNG != "iVBORw0KGgo=" || img.RevisedPrompt != "a red fox" {
		t.Errorf("unexpected image %+v", img)
	}
	if got["model"] != "dall-e-3" || got["response_format"] != "b64_json" || got["size"] != "1024x1024" {
		t.Errorf("unexpected request %v", got)
	}
}

func TestOpenAIImageService_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"created":1,"data":[]}`))
	}))
	defer server.Close()

	svc := NewOpenAIImageService(Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"}, core.NewNopLogger())
	svc.Init(context.Background())

	if _, err := svc.Generate(context.Background(), "a fox"); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestOpenAIImageService_EmptyPrompt(t *testing.T) {
	svc := NewOpenAIImageService(Config{APIKey: "sk-test"}, core.NewNopLogger())
	svc.Init(context.Background())

	if _, err := svc.Generate(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
