package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/InkLayer/WatermarkStation/internal/imagecodec"
	"github.com/InkLayer/WatermarkStation/internal/metadata"
	"github.com/InkLayer/WatermarkStation/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWorker_initProcessor(t *testing.T) {
	ctx := context.Background()
	id := uuid.New().String()

	tests := []struct {
		name      string
		task      *model.Task
		getErr    error
		updateErr error
		wantErr   bool
	}{
		{
			name:    "already done",
			task:    &model.Task{Status: model.StatusDone},
			wantErr: false,
		},
		{
			name:    "in progress",
			task:    &model.Task{Status: model.StatusInProgress},
			wantErr: true,
		},
		{
			name:    "task not found",
			getErr:  model.ErrTaskNotFound,
			wantErr: true,
		},
		{
			name:    "revived task already carries a result",
			task:    &model.Task{Status: model.StatusCreated, ResultKey: "res/ready.png"},
			wantErr: false,
		},
		{
			name:      "update status error",
			task:      &model.Task{Status: model.StatusCreated},
			updateErr: errors.New("db down"),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWorkerService{
				getFn: func(ctx context.Context, _ string) (*model.Task, error) {
					return tt.task, tt.getErr
				},
				updateFn: func(ctx context.Context, _ string, _ model.Status) error {
					return tt.updateErr
				},
				saveResultFn: func(ctx context.Context, _ *model.Task) error {
					return nil
				},
				markFailedFn: func(ctx context.Context, _ string, _ string) error {
					return nil
				},
			}

			w := &Worker{
				service:      svc,
				storage:      &mockStorage{},
				resultPrefix: "res/",
			}

			err := w.initProcessor(ctx, id)

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestWorker_initProcessor_MarksFailed(t *testing.T) {
	ctx := context.Background()
	task := &model.Task{
		UID:       uuid.New(),
		Status:    model.StatusCreated,
		SourceKey: "source/base.png",
		Params:    model.Params{Message: "covert"},
	}

	var failMsg string
	svc := &mockWorkerService{
		getFn: func(ctx context.Context, _ string) (*model.Task, error) {
			return task, nil
		},
		updateFn: func(ctx context.Context, _ string, _ model.Status) error {
			return nil
		},
		markFailedFn: func(ctx context.Context, _ string, errMsg string) error {
			failMsg = errMsg
			return nil
		},
	}

	w := &Worker{
		service: svc,
		storage: &mockStorage{
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				return nil, "", errors.New("storage down")
			},
		},
		resultPrefix: "res/",
	}

	err := w.initProcessor(ctx, task.UID.String())
	require.Error(t, err)
	require.Contains(t, failMsg, "storage down")
}

func TestWorker_processTask_OK(t *testing.T) {
	ctx := context.Background()

	task := &model.Task{
		UID:       uuid.New(),
		Status:    model.StatusInProgress,
		SourceKey: "source/base.png",
		Params:    model.Params{Message: "covert", Format: "png"},
	}

	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader(validPNG())), model.PNG, nil
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.Contains(t, key, "res/")
			require.Equal(t, model.PNG, ct)
			return nil
		},
	}

	svc := &mockWorkerService{
		saveResultFn: func(ctx context.Context, task *model.Task) error {
			require.Equal(t, model.StatusDone, task.Status)
			require.NotEmpty(t, task.ResultKey)
			require.NotNil(t, task.Provenance)
			require.True(t, task.Provenance.Watermark.Applied)
			require.Equal(t, []string{metadata.TypeInvisible}, task.Provenance.Watermark.Types)
			require.NotEqual(t, task.Provenance.ContentHash.Original, task.Provenance.ContentHash.Watermarked)
			return nil
		},
		updateFn: func(ctx context.Context, _ string, _ model.Status) error {
			return nil
		},
		getFn: func(ctx context.Context, _ string) (*model.Task, error) {
			return task, nil
		},
	}

	w := &Worker{
		storage:      storage,
		service:      svc,
		resultPrefix: "res/",
	}

	require.NoError(t, w.processTask(ctx, task))
}

func TestWorker_processTask_LogoStage(t *testing.T) {
	ctx := context.Background()

	task := &model.Task{
		UID:       uuid.New(),
		Status:    model.StatusInProgress,
		SourceKey: "source/base.png",
		LogoKey:   "logo/l.png",
		MaskKey:   "mask/m.png",
		Params:    model.Params{Anchor: "bottom_right", Format: "jpeg"},
	}

	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			switch key {
			case "logo/l.png", "mask/m.png":
				return io.NopCloser(bytes.NewReader(tinyPNG())), model.PNG, nil
			default:
				return io.NopCloser(bytes.NewReader(validPNG())), model.PNG, nil
			}
		},
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.Contains(t, key, ".jpg")
			require.Equal(t, model.JPEG, ct)
			return nil
		},
	}

	svc := &mockWorkerService{
		saveResultFn: func(ctx context.Context, task *model.Task) error {
			require.NotNil(t, task.Provenance)
			require.Equal(t, []string{metadata.TypeLogo}, task.Provenance.Watermark.Types)
			return nil
		},
		updateFn: func(ctx context.Context, _ string, _ model.Status) error {
			return nil
		},
		getFn: func(ctx context.Context, _ string) (*model.Task, error) {
			return task, nil
		},
	}

	w := &Worker{
		storage:      storage,
		service:      svc,
		resultPrefix: "res/",
	}

	require.NoError(t, w.processTask(ctx, task))
}

func TestWorker_processTask_BaseImageError(t *testing.T) {
	w := &Worker{
		storage: &mockStorage{
			getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
				return nil, "", errors.New("storage down")
			},
		},
	}

	err := w.processTask(context.Background(), &model.Task{
		Params: model.Params{Message: "covert"},
	})
	require.Error(t, err)
}

func TestWorker_processTask_UnsupportedFormat(t *testing.T) {
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader([]byte("not-an-image"))), "", nil
		},
	}

	w := &Worker{storage: storage}

	err := w.processTask(context.Background(), &model.Task{
		Params: model.Params{Message: "covert"},
	})
	require.Error(t, err)
}

func TestWorker_processTask_MessageTooLong(t *testing.T) {
	storage := &mockStorage{
		getFn: func(ctx context.Context, key string) (io.ReadCloser, string, error) {
			return io.NopCloser(bytes.NewReader(tinyPNG())), model.PNG, nil
		},
	}

	w := &Worker{storage: storage, resultPrefix: "res/"}

	err := w.processTask(context.Background(), &model.Task{
		UID:       uuid.New(),
		SourceKey: "source/base.png",
		Params:    model.Params{Message: "this will never fit inside a four by four carrier"},
	})
	require.ErrorIs(t, err, model.ErrMessageTooLong)
}

func TestDecodeStored(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantFormat imagecodec.Format
		wantErr    bool
	}{
		{"valid png", validPNG(), imagecodec.PNG, false},
		{"valid jpeg", validJPEG(), imagecodec.JPEG, false},
		{"invalid data", []byte("xxx"), "", true},
		{"nil reader", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r io.ReadCloser
			if tt.data != nil {
				r = io.NopCloser(bytes.NewReader(tt.data))
			}

			buf, format, err := decodeStored(r)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantFormat, format)
			require.NoError(t, buf.Validate())
		})
	}
}

func validPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func validJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func tinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
