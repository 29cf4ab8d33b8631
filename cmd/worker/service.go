package main

import (
	"context"

	"github.com/InkLayer/WatermarkStation/internal/model"
)

type TaskWorkerService interface {
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, res *model.Task) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Get(ctx context.Context, id string) (*model.Task, error)
}
