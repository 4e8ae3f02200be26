package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/voicememo/audio"
	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/transcription"
)

func TestTranscribe(t *testing.T) {
	var gotModel, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseMultipartForm(1 << 20)
		gotModel, gotLang = r.FormValue("model"), r.FormValue("language")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":     "hello world",
			"language": "en",
			"segments": []map[string]any{{"text": "hello world", "start": 0.0, "end": 1.2}},
		})
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL, Language: "en"})
	resp, err := p.Transcribe(context.Background(), transcription.Request{Audio: audio.NewBuffer(audio.DefaultFormat, 8000)})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotModel != "base" || gotLang != "en" {
		t.Errorf("form model=%q language=%q", gotModel, gotLang)
	}
	if resp.Text != "hello world" || len(resp.Segments) != 1 || resp.Segments[0].End != 1.2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTranscribeClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL}).Transcribe(context.Background(), transcription.Request{Audio: audio.NewBuffer(audio.DefaultFormat, 800)})
	if !apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Fatalf("unexpected error %v", err)
	}
	if apperrors.IsRetryable(err) {
		t.Error("4xx should not be retryable")
	}
}

func TestRegistered(t *testing.T) {
	p, err := transcription.Registry.Create(ProviderName, map[string]any{"model": "small"})
	if err != nil {
		t.Fatal(err)
	}
	if p.(*Provider).cfg.Model != "small" {
		t.Error("config not applied")
	}
}
