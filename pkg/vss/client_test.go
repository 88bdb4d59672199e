package vss

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nvr-orchestrator/dto"
	"nvr-orchestrator/pkg/apperror"
)

func writeClip(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClient_UploadVideo_Success(t *testing.T) {
	var receivedName, receivedContent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/manager/videos/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			t.Errorf("missing video part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		receivedName = header.Filename
		receivedContent = string(data)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"videoId":"v123"}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	videoID, err := client.UploadVideo(context.Background(), writeClip(t, "mp4-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if videoID != "v123" {
		t.Errorf("videoID = %q, want %q", videoID, "v123")
	}
	if receivedName != "clip.mp4" || receivedContent != "mp4-bytes" {
		t.Errorf("received %q with %q", receivedName, receivedContent)
	}
}

func TestClient_UploadVideo_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"unsupported codec"}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.UploadVideo(context.Background(), writeClip(t, "x"))
	if !errors.Is(err, apperror.ErrUploadRejected) {
		t.Fatalf("err = %v, want upload rejected", err)
	}

	var appErr *apperror.Error
	errors.As(err, &appErr)
	if appErr.Status != http.StatusUnprocessableEntity || appErr.Detail != `{"detail":"unsupported codec"}` {
		t.Errorf("status/body not carried verbatim: %+v", appErr)
	}
}

func TestClient_UploadVideo_TimeoutIsUpstreamUnavailable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Options{BaseURL: server.URL, UploadTimeout: 50 * time.Millisecond})

	_, err := client.UploadVideo(context.Background(), writeClip(t, "x"))
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
}

func TestClient_CreateSummary(t *testing.T) {
	var received dto.SummaryPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/manager/summary" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"summaryPipelineId":"p456"}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	id, err := client.CreateSummary(context.Background(), dto.SummaryPayload{
		VideoID:  "v123",
		Title:    "front-door_1000_1010",
		Sampling: dto.Sampling{ChunkDuration: 8, SamplingFrame: 3},
		Evam:     dto.Evam{EvamPipeline: "object_detection"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p456" {
		t.Errorf("id = %q, want p456", id)
	}
	if received.VideoID != "v123" || received.Sampling.ChunkDuration != 8 || received.Evam.EvamPipeline != "object_detection" {
		t.Errorf("unexpected payload: %+v", received)
	}
}

func TestClient_CreateSummary_NonSuccessIsSubmissionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"unknown video"}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.CreateSummary(context.Background(), dto.SummaryPayload{VideoID: "nope"})
	if !errors.Is(err, apperror.ErrSubmission) {
		t.Fatalf("err = %v, want submission error", err)
	}
}

func TestClient_SummaryResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manager/summary/done":
			w.Write([]byte(`{"summary":"a courier leaves a parcel"}`))
		case "/manager/summary/running":
			w.Write([]byte(`{"status":"processing"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	done, err := client.SummaryResult(context.Background(), "done")
	if err != nil || done.Summary != "a courier leaves a parcel" {
		t.Fatalf("done = %+v, err = %v", done, err)
	}

	running, err := client.SummaryResult(context.Background(), "running")
	if err != nil || running.Summary != "" {
		t.Fatalf("running = %+v, err = %v", running, err)
	}

	_, err = client.SummaryResult(context.Background(), "broken")
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
}

func TestClient_SearchEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/manager/videos/search-embeddings/v123" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"message":"Embeddings queued"}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	msg, err := client.SearchEmbeddings(context.Background(), "v123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Embeddings queued" {
		t.Errorf("message = %q", msg)
	}
}
