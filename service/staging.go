package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nvr-orchestrator/entities"
	"nvr-orchestrator/pkg/apperror"
)

// stageChunkSize keeps memory flat regardless of clip length.
const stageChunkSize = 8 * 1024

type Stager interface {
	Stage(ctx context.Context, r io.Reader) (*entities.StagedArtifact, error)
	Release(ctx context.Context, artifact *entities.StagedArtifact)
}

type stager struct {
	dir string
}

func NewStager(dir string) (Stager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "nvr-staging")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &stager{dir: dir}, nil
}

// Stage writes r to a new uniquely named file. The file exists before the
// first byte is read and is removed again if the stream cannot be fully copied.
func (s *stager) Stage(ctx context.Context, r io.Reader) (artifact *entities.StagedArtifact, err error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+".mp4")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create staged artifact: %w", err)
	}

	defer func() {
		if err != nil {
			file.Close()
			if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				zerolog.Ctx(ctx).Error().Err(removeErr).Str("path", path).Msg("failed to remove partial artifact")
			}
		}
	}()

	size, err := copyChunks(ctx, file, r)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Int64("written", size).Msg("failed to stage clip")
		return nil, fmt.Errorf("stage clip: %w", err)
	}

	if err = file.Close(); err != nil {
		return nil, fmt.Errorf("close staged artifact: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("artifact_id", id).Int64("bytes", size).Msg("clip staged")
	return &entities.StagedArtifact{ID: id, Path: path, Size: size}, nil
}

func (s *stager) Release(ctx context.Context, artifact *entities.StagedArtifact) {
	if artifact == nil {
		return
	}
	if err := os.Remove(artifact.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", artifact.Path).Msg("failed to release staged artifact")
		return
	}
	zerolog.Ctx(ctx).Debug().Str("artifact_id", artifact.ID).Msg("staged artifact released")
}

// copyChunks reports source read failures as upstream errors; write failures
// are local and returned as they are.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, stageChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, readErr
			}
			return written, apperror.Upstream("fetch clip", 0, "clip stream interrupted", readErr)
		}
	}
}
