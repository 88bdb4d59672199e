package dto

import (
	"fmt"
	"strconv"

	"nvr-orchestrator/constant"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

type ClipRequest struct {
	Camera    string  `json:"camera" form:"camera"`
	StartTime float64 `json:"start_time" form:"start_time"`
	EndTime   float64 `json:"end_time" form:"end_time"`
}

// Validate checks the time window before anything touches the network.
func (r ClipRequest) Validate() error {
	if r.Camera == "" {
		return apperror.Validation("clip request", "camera is required")
	}
	if r.EndTime <= r.StartTime {
		return apperror.Validation("clip request", "End time must be after start time")
	}
	if r.EndTime-r.StartTime > constant.MaxClipSeconds {
		return apperror.Validation("clip request", fmt.Sprintf("Clip duration cannot exceed %d seconds", constant.MaxClipSeconds))
	}
	return nil
}

func (r ClipRequest) Start() string {
	return FormatSeconds(r.StartTime)
}

func (r ClipRequest) End() string {
	return FormatSeconds(r.EndTime)
}

func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type ExportRequest struct {
	Playback  string `json:"playback"`
	Source    string `json:"source"`
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
}

type ExportResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ExportID string `json:"export_id,omitempty"`
}

type CameraConfig struct {
	Cameras map[string]any `json:"cameras"`
}

type Sampling struct {
	ChunkDuration int `json:"chunkDuration"`
	SamplingFrame int `json:"samplingFrame"`
}

type Evam struct {
	EvamPipeline string `json:"evamPipeline"`
}

type SummaryPayload struct {
	VideoID  string   `json:"videoId"`
	Title    string   `json:"title"`
	Sampling Sampling `json:"sampling"`
	Evam     Evam     `json:"evam"`
}

type UploadResponse struct {
	VideoID string `json:"videoId"`
}

type SummaryCreateResponse struct {
	SummaryPipelineID string `json:"summaryPipelineId"`
}

type SummaryResultResponse struct {
	Summary string `json:"summary,omitempty"`
}

type SearchEmbeddingResponse struct {
	Message string `json:"message"`
}

// FrigateEventMessage is the payload published on the frigate/events topic.
type FrigateEventMessage struct {
	Type   string          `json:"type"`
	Before *entities.Event `json:"before,omitempty"`
	After  *entities.Event `json:"after,omitempty"`
}

type RuleRequest struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Action string  `json:"action"`
	Camera *string `json:"camera"`
}
