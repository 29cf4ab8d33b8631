package main

import (
	"context"
	"io"

	"github.com/InkLayer/WatermarkStation/internal/lsb"
	"github.com/InkLayer/WatermarkStation/internal/model"
)

type TaskAPIService interface {
	Create(context.Context, *model.TaskCreateData) (*model.Task, error)
	Get(ctx context.Context, id string) (*model.Task, error)
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error)
	Delete(ctx context.Context, id string) error
	ExtractMessage(ctx context.Context, r io.Reader, maxLen int, includeAlpha bool) (lsb.Message, error)
	ReviveOrphans(ctx context.Context, limit int)
}
