// Package worker contains methods for worker to init at start, and to process tasks
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/InkLayer/WatermarkStation/internal/imagecodec"
	"github.com/InkLayer/WatermarkStation/internal/layout"
	"github.com/InkLayer/WatermarkStation/internal/lsb"
	"github.com/InkLayer/WatermarkStation/internal/metadata"
	"github.com/InkLayer/WatermarkStation/internal/model"
	"github.com/InkLayer/WatermarkStation/internal/pipeline"
	"github.com/InkLayer/WatermarkStation/internal/pixbuf"
	"github.com/InkLayer/WatermarkStation/internal/service"
	"github.com/InkLayer/WatermarkStation/internal/textrender"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

// NoopPublisher - a stub, the worker never publishes to the queue itself
type NoopPublisher struct{}

func (NoopPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
	return nil
}

type TaskWorkerService interface {
	UpdateStatus(ctx context.Context, id string, newStat model.Status) error
	SaveResult(ctx context.Context, res *model.Task) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Get(ctx context.Context, id string) (*model.Task, error)
}

type Worker struct {
	storage      service.ImageStorage
	service      TaskWorkerService
	queue        <-chan kafkago.Message
	consumer     *wbfkafka.Consumer
	rasterizer   textrender.Rasterizer
	resultPrefix string
}

func NewWorkerInstance(strg service.ImageStorage, svc TaskWorkerService, q <-chan kafkago.Message, cons *wbfkafka.Consumer, rast textrender.Rasterizer, resPr string) *Worker {
	return &Worker{storage: strg, service: svc, queue: q, consumer: cons, rasterizer: rast, resultPrefix: resPr}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}
			id := string(msg.Key)
			if err := w.initProcessor(ctx, id); err != nil && !errors.Is(err, model.ErrTaskNotFound) {
				log.Printf("Task %s failed: %v", id, err)
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

func (w *Worker) initProcessor(ctx context.Context, id string) error {
	// fetch the task from DB
	task, err := w.service.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("Worker failed to fetch task info %q from DB: %w", id, err)
	}
	// status check
	switch task.Status {
	case model.StatusDone:
		return nil
	case model.StatusInProgress:
		return fmt.Errorf("already in progress")
	}

	// a revived task may already carry a result
	if strings.Contains(task.ResultKey, w.resultPrefix) {
		if err := w.service.UpdateStatus(ctx, id, model.StatusDone); err != nil {
			return fmt.Errorf("failed to update status of already-done task in DB: %w", err)
		}
		return nil
	}

	if err := w.service.UpdateStatus(ctx, id, model.StatusInProgress); err != nil {
		return fmt.Errorf("failed to update status of task %q to `in_progress` in DB: %w", id, err)
	}

	// run the watermarking itself
	if pErr := w.processTask(ctx, task); pErr != nil {
		if uErr := w.service.MarkFailed(ctx, id, pErr.Error()); uErr != nil {
			return fmt.Errorf("failed to set status of task %q to `failed` in DB: %w \nAFTER\n error while processing task: %w", id, uErr, pErr)
		}
		return fmt.Errorf("failed to process task %q: %w", id, pErr)
	}

	return nil
}

func (w *Worker) processTask(ctx context.Context, task *model.Task) error {
	// pull the inputs out of storage
	base, _, err := w.storage.Get(ctx, task.SourceKey)
	if err != nil {
		return fmt.Errorf("worker failed to fetch base-image from storage: %w", err)
	}

	pBase, _, err := decodeStored(base)
	if err != nil {
		return fmt.Errorf("worker failed to decode base-image: %w", err)
	}

	var pLogo *pixbuf.Buffer
	if task.LogoKey != "" {
		logo, _, err := w.storage.Get(ctx, task.LogoKey)
		if err != nil {
			return fmt.Errorf("worker failed to fetch logo-image from storage: %w", err)
		}
		if pLogo, _, err = decodeStored(logo); err != nil {
			return fmt.Errorf("worker failed to decode logo-image: %w", err)
		}
	}

	var pMask *pixbuf.Mask
	if task.MaskKey != "" {
		mask, _, err := w.storage.Get(ctx, task.MaskKey)
		if err != nil {
			return fmt.Errorf("worker failed to fetch mask-image from storage: %w", err)
		}
		mBuf, _, err := decodeStored(mask)
		if err != nil {
			return fmt.Errorf("worker failed to decode mask-image: %w", err)
		}
		pMask = pixbuf.MaskFromImage(mBuf.ToNRGBA())
	}

	// run the stages
	opts := buildPipelineOptions(task.Params, pLogo, pMask, w.rasterizer)

	results, err := pipeline.Run(ctx, []*pixbuf.Buffer{pBase}, opts)
	if err != nil {
		return fmt.Errorf("worker failed to run watermark stages: %w", err)
	}

	res := results[0]
	if res.Err != nil {
		if errors.Is(res.Err, lsb.ErrCapacityExceeded) {
			return fmt.Errorf("worker failed to embed message: %w", model.ErrMessageTooLong)
		}
		return fmt.Errorf("worker failed to apply watermarks: %w", res.Err)
	}
	log.Printf("Task %s stage timings: logo=%v text=%v hidden=%v total=%v",
		task.UID, res.Stats.Logo, res.Stats.Text, res.Stats.Hidden, res.Stats.Total)

	// encode the result in the requested format
	outFormat, err := imagecodec.ParseFormat(task.Params.Format)
	if err != nil {
		outFormat = imagecodec.PNG
	}

	var out bytes.Buffer
	if err := imagecodec.Encode(&out, res.Buffer, outFormat, imagecodec.DefaultQuality); err != nil {
		return fmt.Errorf("worker failed to encode result image: %w", err)
	}

	resCType := outFormat.ContentType()
	resKey := w.resultPrefix + task.UID.String() + outFormat.Ext()
	if err := w.storage.Put(ctx, resKey, int64(out.Len()), resCType, &out); err != nil {
		return fmt.Errorf("worker failed to put result image to storage: %w", err)
	}

	task.Status = model.StatusDone
	task.ResultKey = resKey
	prov := metadata.Build(res.PreHash, res.PostHash, res.Types)
	task.Provenance = &prov

	if err := w.service.SaveResult(ctx, task); err != nil {
		return fmt.Errorf("worker failed to save result to DB: %w", err)
	}
	return nil
}

// buildPipelineOptions maps normalized task params onto the stage options.
// Zero numeric values stay zero, the stages substitute their defaults.
func buildPipelineOptions(p model.Params, logo *pixbuf.Buffer, mask *pixbuf.Mask, rast textrender.Rasterizer) pipeline.Options {
	anchor := layout.Anchor(p.Anchor)
	opts := pipeline.Options{Rasterizer: rast}

	if logo != nil {
		opts.Logo = &pipeline.LogoOptions{
			Image:   logo,
			Mask:    mask,
			Anchor:  anchor,
			Scale:   p.Scale,
			Opacity: p.Opacity,
		}
	}

	if p.Text != "" {
		textOpts := &pipeline.TextOptions{
			Text:    p.Text,
			Anchor:  anchor,
			SizePt:  p.FontSize,
			Opacity: p.Opacity,
		}
		if p.Color != "" {
			if col, err := textrender.ParseHexColor(p.Color); err == nil {
				textOpts.Color = col
			}
		}
		opts.Text = textOpts
	}

	if p.Message != "" {
		opts.Hidden = &pipeline.HiddenOptions{
			Message:      p.Message,
			IncludeAlpha: p.IncludeAlpha,
		}
	}

	return opts
}

func decodeStored(r io.ReadCloser) (*pixbuf.Buffer, imagecodec.Format, error) {
	if r == nil {
		return nil, "", errors.New("nil-reader provided")
	}
	defer closeFileFlow(r)

	return imagecodec.Decode(r)
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}

	if err := res.Close(); err != nil {
		log.Println("Worker failed to close fileflow:", err)
	}
}
