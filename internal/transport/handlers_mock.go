package transport

import (
	"context"
	"io"

	"github.com/InkLayer/WatermarkStation/internal/lsb"
	"github.com/InkLayer/WatermarkStation/internal/model"
	"github.com/gin-gonic/gin"
)

type mockTaskService struct {
	createFn     func(ctx context.Context, d *model.TaskCreateData) (*model.Task, error)
	deleteFn     func(ctx context.Context, id string) error
	getFn        func(ctx context.Context, id string) (*model.Task, error)
	loadResultFn func(ctx context.Context, id string) (io.ReadCloser, string, error)
	getListFn    func(ctx context.Context, req *model.ListRequest) ([]model.Task, error)
	extractFn    func(ctx context.Context, r io.Reader, maxLen int, includeAlpha bool) (lsb.Message, error)
}

func (m *mockTaskService) Create(ctx context.Context, d *model.TaskCreateData) (*model.Task, error) {
	return m.createFn(ctx, d)
}

func (m *mockTaskService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockTaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	return m.getFn(ctx, id)
}

func (m *mockTaskService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadResultFn(ctx, id)
}

func (m *mockTaskService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error) {
	return m.getListFn(ctx, req)
}

func (m *mockTaskService) ExtractMessage(ctx context.Context, r io.Reader, maxLen int, includeAlpha bool) (lsb.Message, error) {
	return m.extractFn(ctx, r, maxLen, includeAlpha)
}

func init() {
	gin.SetMode(gin.TestMode)
}
