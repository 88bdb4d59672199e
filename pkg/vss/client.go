package vss

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/pkg/apperror"
)

type Options struct {
	BaseURL       string
	UploadTimeout time.Duration
	Timeout       time.Duration
}

// Client talks to the video summary and search backend.
type Client struct {
	baseURL string
	upload  *http.Client
	api     *http.Client
}

func NewClient(opts Options) *Client {
	if opts.UploadTimeout == 0 {
		opts.UploadTimeout = 30 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		upload:  &http.Client{Timeout: opts.UploadTimeout},
		api:     &http.Client{Timeout: opts.Timeout},
	}
}

// UploadVideo sends the file at path as the multipart "video" field and
// returns the video id assigned by the backend.
func (c *Client) UploadVideo(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staged video: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	defer pr.Close()
	writer := multipart.NewWriter(pw)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename="%s"`, filepath.Base(path)))
		header.Set("Content-Type", "video/mp4")
		part, err := writer.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/manager/videos/", pr)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("uploading video")
	resp, err := c.upload.Do(req)
	if err != nil {
		return "", apperror.Upstream("upload video", 0, "Failed to upload video", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zerolog.Ctx(ctx).Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("video upload rejected")
		return "", apperror.UploadRejected("upload video", resp.StatusCode, string(body))
	}

	var out dto.UploadResponse
	if err := json.Unmarshal(body, &out); err != nil || out.VideoID == "" {
		return "", apperror.UploadRejected("upload video", resp.StatusCode, "response carries no videoId: "+string(body))
	}

	zerolog.Ctx(ctx).Info().Str("video_id", out.VideoID).Msg("video uploaded")
	return out.VideoID, nil
}

func (c *Client) CreateSummary(ctx context.Context, payload dto.SummaryPayload) (string, error) {
	var out dto.SummaryCreateResponse
	status, body, err := c.postJSON(ctx, "/manager/summary", payload, "create summary")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", apperror.Submission("create summary", status, string(body))
	}
	if err := json.Unmarshal(body, &out); err != nil || out.SummaryPipelineID == "" {
		return "", apperror.Submission("create summary", status, "response carries no summaryPipelineId: "+string(body))
	}

	zerolog.Ctx(ctx).Info().Str("video_id", payload.VideoID).Str("pipeline_id", out.SummaryPipelineID).Msg("summary pipeline created")
	return out.SummaryPipelineID, nil
}

// SummaryResult reads the pipeline state. It has no side effects on the backend.
func (c *Client) SummaryResult(ctx context.Context, pipelineID string) (*dto.SummaryResultResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/manager/summary/"+url.PathEscape(pipelineID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, apperror.Upstream("summary result", 0, "Failed to get summary result", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Upstream("summary result", resp.StatusCode, string(body), nil)
	}

	var out dto.SummaryResultResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, apperror.Upstream("summary result", resp.StatusCode, "invalid summary response", err)
		}
	}
	return &out, nil
}

func (c *Client) SearchEmbeddings(ctx context.Context, videoID string) (string, error) {
	status, body, err := c.postJSON(ctx, "/manager/videos/search-embeddings/"+url.PathEscape(videoID), nil, "search embeddings")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", apperror.Submission("search embeddings", status, string(body))
	}

	out := dto.SearchEmbeddingResponse{Message: "No message in response."}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", apperror.Upstream("search embeddings", status, "invalid search-embeddings response", err)
	}

	zerolog.Ctx(ctx).Info().Str("video_id", videoID).Str("message", out.Message).Msg("embedding requested")
	return out.Message, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, op string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal %s payload: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return 0, nil, apperror.Upstream(op, 0, "Failed to reach summary service", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, nil
}
