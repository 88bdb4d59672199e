package service

import (
	"context"

	"github.com/rs/zerolog"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/frigate"
)

// FootageClient is the subset of the footage source used for browsing and export.
type FootageClient interface {
	EventLister
	CameraClip(ctx context.Context, req dto.ClipRequest, download bool) (*frigate.Stream, error)
	EventClip(ctx context.Context, eventID string, download bool) (*frigate.Stream, error)
	Export(ctx context.Context, req dto.ClipRequest, payload dto.ExportRequest) (*dto.ExportResponse, error)
	ExportDetails(ctx context.Context, exportID string) (*entities.Export, error)
}

type FootageService interface {
	FootageClient
	ExportVideo(ctx context.Context, exportID string) (*ExportVideo, error)
}

type footageService struct {
	FootageClient
	exports ExportStore
}

func NewFootageService(client FootageClient, exports ExportStore) FootageService {
	return &footageService{
		FootageClient: client,
		exports:       exports,
	}
}

func (s *footageService) ExportVideo(ctx context.Context, exportID string) (*ExportVideo, error) {
	video, err := s.exports.Open(ctx, exportID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("export_id", exportID).Msg("export video unavailable")
		return nil, err
	}
	return video, nil
}
