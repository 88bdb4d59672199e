package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nvr-orchestrator/constant"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

type FootageSource interface {
	FetchClip(ctx context.Context, req dto.ClipRequest) (io.ReadCloser, error)
}

type AnalysisBackend interface {
	UploadVideo(ctx context.Context, path string) (string, error)
	CreateSummary(ctx context.Context, payload dto.SummaryPayload) (string, error)
	SummaryResult(ctx context.Context, pipelineID string) (*dto.SummaryResultResponse, error)
	SearchEmbeddings(ctx context.Context, videoID string) (string, error)
}

// Profile is the fixed processing profile sent with every summary request.
type Profile struct {
	Title         string
	ChunkDuration int
	SamplingFrame int
	EvamPipeline  string
}

type PipelineService interface {
	SummarizeClip(ctx context.Context, req dto.ClipRequest) (string, error)
	IndexClip(ctx context.Context, req dto.ClipRequest) (entities.SearchResult, error)
	Submit(ctx context.Context, videoID, title string) (string, error)
	GetResult(ctx context.Context, pipelineID string) (entities.JobResult, error)
}

type pipelineService struct {
	footage  FootageSource
	analysis AnalysisBackend
	stager   Stager
	profile  Profile
}

func NewPipelineService(footage FootageSource, analysis AnalysisBackend, stager Stager, profile Profile) PipelineService {
	if profile.ChunkDuration == 0 {
		profile.ChunkDuration = 8
	}
	if profile.SamplingFrame == 0 {
		profile.SamplingFrame = 3
	}
	if profile.EvamPipeline == "" {
		profile.EvamPipeline = "object_detection"
	}
	return &pipelineService{
		footage:  footage,
		analysis: analysis,
		stager:   stager,
		profile:  profile,
	}
}

func (s *pipelineService) SummarizeClip(ctx context.Context, req dto.ClipRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	zerolog.Ctx(ctx).Info().Str("camera", req.Camera).Float64("start_time", req.StartTime).Float64("end_time", req.EndTime).Msg("starting summarization")

	videoID, err := s.stageAndUpload(ctx, req)
	if err != nil {
		return "", err
	}

	title := s.profile.Title
	if title == "" {
		title = strings.Join([]string{req.Camera, req.Start(), req.End()}, "_")
	}
	return s.Submit(ctx, videoID, title)
}

func (s *pipelineService) IndexClip(ctx context.Context, req dto.ClipRequest) (entities.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return entities.SearchResult{}, err
	}
	zerolog.Ctx(ctx).Info().Str("camera", req.Camera).Float64("start_time", req.StartTime).Float64("end_time", req.EndTime).Msg("starting search embedding")

	videoID, err := s.stageAndUpload(ctx, req)
	if err != nil {
		return entities.SearchResult{}, err
	}

	message, err := s.analysis.SearchEmbeddings(ctx, videoID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("search embeddings failed")
		return entities.SearchResult{}, err
	}

	return entities.SearchResult{
		VideoID:   videoID,
		Message:   message,
		Camera:    req.Camera,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *pipelineService) Submit(ctx context.Context, videoID, title string) (string, error) {
	payload := dto.SummaryPayload{
		VideoID: videoID,
		Title:   title,
		Sampling: dto.Sampling{
			ChunkDuration: s.profile.ChunkDuration,
			SamplingFrame: s.profile.SamplingFrame,
		},
		Evam: dto.Evam{EvamPipeline: s.profile.EvamPipeline},
	}

	pipelineID, err := s.analysis.CreateSummary(ctx, payload)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("failed to create summary")
		return "", err
	}
	return pipelineID, nil
}

// GetResult is a pure read. A failed lookup is reported both as a failed
// result and as the returned error.
func (s *pipelineService) GetResult(ctx context.Context, pipelineID string) (entities.JobResult, error) {
	resp, err := s.analysis.SummaryResult(ctx, pipelineID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("pipeline_id", pipelineID).Msg("failed to retrieve summary")
		return entities.JobResult{
			ID:     pipelineID,
			Status: constant.JobStatusFailed,
			Reason: apperror.Detail(err),
		}, err
	}

	if strings.TrimSpace(resp.Summary) == "" {
		zerolog.Ctx(ctx).Debug().Str("pipeline_id", pipelineID).Msg("summary not ready yet")
		return entities.JobResult{
			ID:      pipelineID,
			Status:  constant.JobStatusPending,
			Message: constant.SummaryPendingMessage,
		}, nil
	}

	return entities.JobResult{
		ID:     pipelineID,
		Status: constant.JobStatusReady,
		Result: resp.Summary,
	}, nil
}

// stageAndUpload runs acquisition, staging and upload in order. The staged
// artifact is released on every path out of this function.
func (s *pipelineService) stageAndUpload(ctx context.Context, req dto.ClipRequest) (string, error) {
	stream, err := s.footage.FetchClip(ctx, req)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("camera", req.Camera).Msg("failed to get clip")
		return "", err
	}

	artifact, err := s.stager.Stage(ctx, stream)
	stream.Close()
	if err != nil {
		return "", err
	}
	defer s.stager.Release(ctx, artifact)

	videoID, err := s.analysis.UploadVideo(ctx, artifact.Path)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("camera", req.Camera).Msg("video upload failed")
		return "", err
	}
	return videoID, nil
}
