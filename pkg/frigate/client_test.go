package frigate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"nvr-orchestrator/dto"
	"nvr-orchestrator/pkg/apperror"
)

func TestClient_FetchClip_ValidationBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	cases := []dto.ClipRequest{
		{Camera: "front-door", StartTime: 1010, EndTime: 1000},
		{Camera: "front-door", StartTime: 1000, EndTime: 1000},
		{Camera: "front-door", StartTime: 1000, EndTime: 1300.5},
	}
	for _, req := range cases {
		_, err := client.FetchClip(context.Background(), req)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("FetchClip(%+v) err = %v, want validation error", req, err)
		}
	}

	if calls.Load() != 0 {
		t.Fatalf("expected no HTTP calls, got %d", calls.Load())
	}
}

func TestClient_FetchClip_MaxDurationAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/front-door/start/1000/end/1300/clip.mp4" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4-bytes"))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/api"})

	body, err := client.FetchClip(context.Background(), dto.ClipRequest{Camera: "front-door", StartTime: 1000, EndTime: 1300})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "mp4-bytes" {
		t.Errorf("body = %q, want %q", data, "mp4-bytes")
	}
}

func TestClient_FetchClip_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.FetchClip(context.Background(), dto.ClipRequest{Camera: "garage", StartTime: 1, EndTime: 2})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestClient_FetchClip_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("recording service down"))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.FetchClip(context.Background(), dto.ClipRequest{Camera: "garage", StartTime: 1, EndTime: 2})
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 to be carried, got %+v", appErr)
	}
}

func TestClient_FetchClip_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Options{BaseURL: url})

	_, err := client.FetchClip(context.Background(), dto.ClipRequest{Camera: "garage", StartTime: 1, EndTime: 2})
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
}

func TestClient_Cameras_Sorted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"cameras": map[string]any{"yard": map[string]any{}, "front-door": map[string]any{}},
		})
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	cameras, err := client.Cameras(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cameras) != 2 || cameras[0] != "front-door" || cameras[1] != "yard" {
		t.Fatalf("cameras = %v", cameras)
	}
}

func TestClient_Events(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("camera"); got != "front-door" {
			t.Errorf("camera query = %q", got)
		}
		w.Write([]byte(`[{"id":"e2","camera":"front-door","label":"person","start_time":1005,"end_time":1012,
			"data":{"description":"a person at the door","top_score":0.91}},
			{"id":"e1","camera":"front-door","label":"car","start_time":900,"end_time":null}]`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	events, err := client.Events(context.Background(), "front-door")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if !events[0].Ended() || events[0].Data.Description != "a person at the door" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Ended() {
		t.Errorf("event without end_time must not be ended")
	}
}

func TestClient_Export(t *testing.T) {
	var received dto.ExportRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/export/front-door/start/1000/end/1010.5" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"success":true,"message":"Starting export of recording.","export_id":"front-door_abc"}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	out, err := client.Export(context.Background(),
		dto.ClipRequest{Camera: "front-door", StartTime: 1000, EndTime: 1010.5},
		dto.ExportRequest{Playback: "realtime", Source: "recordings", Name: "porch"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ExportID != "front-door_abc" || !out.Success {
		t.Errorf("unexpected response: %+v", out)
	}
	if received.Name != "porch" || received.Playback != "realtime" {
		t.Errorf("unexpected payload: %+v", received)
	}
}

func TestClient_ExportDetails_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.ExportDetails(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
