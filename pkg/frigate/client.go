package frigate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

type Options struct {
	BaseURL string
	// Timeout bounds metadata calls (config, events, exports).
	Timeout time.Duration
	// ClipTimeout bounds a whole clip download, body included.
	ClipTimeout time.Duration
}

// Client talks to the footage source. It never retries.
type Client struct {
	baseURL string
	api     *http.Client
	media   *http.Client
}

// Stream is a clip body plus the headers worth forwarding. Callers must close Body.
type Stream struct {
	Body               io.ReadCloser
	ContentType        string
	ContentDisposition string
}

func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ClipTimeout == 0 {
		opts.ClipTimeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		api:     &http.Client{Timeout: opts.Timeout},
		media:   &http.Client{Timeout: opts.ClipTimeout},
	}
}

// FetchClip returns the mp4 for camera between start and end, unbuffered.
func (c *Client) FetchClip(ctx context.Context, req dto.ClipRequest) (io.ReadCloser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/start/%s/end/%s/clip.mp4", c.baseURL, url.PathEscape(req.Camera), req.Start(), req.End())
	zerolog.Ctx(ctx).Debug().Str("camera", req.Camera).Str("url", endpoint).Msg("fetching clip")

	resp, err := c.get(ctx, c.media, endpoint, "fetch clip", "Clip not found for specified time range")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) CameraClip(ctx context.Context, req dto.ClipRequest, download bool) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/clip/%s/%s", c.baseURL, url.PathEscape(req.Camera), req.Start(), req.End())
	if download {
		endpoint += "?download=1"
	}

	resp, err := c.get(ctx, c.media, endpoint, "camera clip", "No clip found for specified time range")
	if err != nil {
		return nil, err
	}
	return newStream(resp), nil
}

func (c *Client) EventClip(ctx context.Context, eventID string, download bool) (*Stream, error) {
	endpoint := fmt.Sprintf("%s/events/%s/clip.mp4", c.baseURL, url.PathEscape(eventID))
	if download {
		endpoint += "?download=1"
	}

	resp, err := c.get(ctx, c.media, endpoint, "event clip", "Clip not found for event ID: "+eventID)
	if err != nil {
		return nil, err
	}
	return newStream(resp), nil
}

// Cameras lists the camera names from the footage source config, sorted.
func (c *Client) Cameras(ctx context.Context) ([]string, error) {
	var cfg dto.CameraConfig
	if err := c.getJSON(ctx, c.baseURL+"/config", "list cameras", &cfg); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Cameras))
	for name := range cfg.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Events returns the camera's events, most recent first, as the footage source orders them.
func (c *Client) Events(ctx context.Context, camera string) ([]entities.Event, error) {
	endpoint := c.baseURL + "/events"
	if camera != "" {
		endpoint += "?camera=" + url.QueryEscape(camera)
	}

	var events []entities.Event
	if err := c.getJSON(ctx, endpoint, "list events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) Export(ctx context.Context, req dto.ClipRequest, payload dto.ExportRequest) (*dto.ExportResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/export/%s/start/%s/end/%s", c.baseURL, url.PathEscape(req.Camera), req.Start(), req.End())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(c.api, httpReq, "export clip", "Camera not found: "+req.Camera)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out dto.ExportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperror.Upstream("export clip", resp.StatusCode, "invalid export response", err)
	}

	zerolog.Ctx(ctx).Info().Str("camera", req.Camera).Str("export_id", out.ExportID).Msg("export requested")
	return &out, nil
}

func (c *Client) ExportDetails(ctx context.Context, exportID string) (*entities.Export, error) {
	var export entities.Export
	if err := c.getJSON(ctx, c.baseURL+"/exports/"+url.PathEscape(exportID), "export details", &export); err != nil {
		return nil, err
	}
	return &export, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, op string, out any) error {
	resp, err := c.get(ctx, c.api, endpoint, op, "Not found")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Upstream(op, resp.StatusCode, "invalid response body", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, client *http.Client, endpoint, op, notFound string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(client, req, op, notFound)
}

// do sends req and returns the response only for 2xx; the caller owns the body.
func (c *Client) do(client *http.Client, req *http.Request, op, notFound string) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperror.Upstream(op, 0, "Failed to connect to Frigate", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperror.NotFound(op, notFound)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, apperror.Upstream(op, resp.StatusCode, "Frigate error: "+string(body), nil)
}

func newStream(resp *http.Response) *Stream {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	disposition := resp.Header.Get("Content-Disposition")
	if disposition == "" {
		disposition = "inline"
	}
	return &Stream{
		Body:               resp.Body,
		ContentType:        contentType,
		ContentDisposition: disposition,
	}
}
