package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"strings"

	"chatmrpt-be/internal/dto"
	"chatmrpt-be/pkg/dataset"

	"github.com/google/uuid"
)

type IDatasetService interface {
	Upload(ctx context.Context, sessionId uuid.UUID, file *multipart.FileHeader) (*dto.UploadDatasetResponse, error)
	Status(ctx context.Context, sessionId uuid.UUID) (*dto.DatasetStatusResponse, error)
}

type datasetService struct {
	provider *dataset.Provider
	logger   *log.Logger
}

func NewDatasetService(provider *dataset.Provider, logger *log.Logger) IDatasetService {
	return &datasetService{provider: provider, logger: logger}
}

// Upload stores a CSV as the session's raw dataset. A re-upload replaces the
// raw file and any derived artifacts, since they no longer describe the data.
func (ds *datasetService) Upload(ctx context.Context, sessionId uuid.UUID, file *multipart.FileHeader) (*dto.UploadDatasetResponse, error) {
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".csv") {
		return nil, fmt.Errorf("only .csv files are supported")
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	path, err := ds.provider.PathFor(sessionId.String(), dataset.PhaseRaw)
	if err != nil {
		return nil, err
	}

	dst, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, err
	}
	if err := dst.Close(); err != nil {
		return nil, err
	}

	for _, phase := range []dataset.Phase{dataset.PhasePostTPR, dataset.PhasePostRisk} {
		stale, err := ds.provider.PathFor(sessionId.String(), phase)
		if err != nil {
			continue
		}
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			ds.logger.Printf("[DATASET] Failed to remove stale artifact %s: %v", stale, err)
		}
	}

	handle, err := ds.provider.Resolve(sessionId.String(), dataset.PhaseRaw)
	if err != nil {
		return nil, err
	}
	schema, err := ds.provider.Schema(handle)
	if err != nil {
		return nil, fmt.Errorf("uploaded file is not a readable CSV: %w", err)
	}

	ds.logger.Printf("[DATASET] Session %s uploaded %s (%d rows, %d columns)",
		sessionId, file.Filename, schema.Rows, len(schema.Columns))

	return &dto.UploadDatasetResponse{
		FileName: file.Filename,
		Rows:     schema.Rows,
		Columns:  schema.Columns,
	}, nil
}

// Status reports the most advanced artifact available for the session.
func (ds *datasetService) Status(ctx context.Context, sessionId uuid.UUID) (*dto.DatasetStatusResponse, error) {
	handle, err := ds.provider.Current(sessionId.String())
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, fmt.Errorf("no dataset uploaded for this session")
	}
	schema, err := ds.provider.Schema(handle)
	if err != nil {
		return nil, err
	}
	return &dto.DatasetStatusResponse{
		Phase:   string(handle.Phase),
		Rows:    schema.Rows,
		Columns: schema.Columns,
	}, nil
}
