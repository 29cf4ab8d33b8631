// Package service provides business-logic for the app
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/InkLayer/WatermarkStation/internal/imagecodec"
	"github.com/InkLayer/WatermarkStation/internal/lsb"
	"github.com/InkLayer/WatermarkStation/internal/model"
	"github.com/InkLayer/WatermarkStation/internal/mwlogger"
	"github.com/InkLayer/WatermarkStation/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type WatermarkService struct {
	repo          repository.TaskRepo
	publisher     TaskPublisher
	storage       ImageStorage
	srcKeyPrefix  string
	logoKeyPrefix string
	maskKeyPrefix string
}

func NewWatermarkService(rep repository.TaskRepo, pub TaskPublisher, strg ImageStorage) *WatermarkService {
	return &WatermarkService{
		repo:          rep,
		publisher:     pub,
		storage:       strg,
		srcKeyPrefix:  "source/",
		logoKeyPrefix: "logo/",
		maskKeyPrefix: "mask/",
	}
}

// TaskPublisher is the queue contract
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage is the object store contract
type ImageStorage interface {
	Delete(ctx context.Context, uid string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Queue publishing retry strategy - values may move to config/env later
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (c WatermarkService) Create(ctx context.Context, taskData *model.TaskCreateData) (*model.Task, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	newTask := &model.Task{}

	// validate uploads and normalize watermark params
	if err := validateNormalizeTaskInfo(taskData, newTask); err != nil {
		return nil, err
	}
	if newTask.ErrMsg != "" {
		logger.Warn().Msg(newTask.ErrMsg)
	}

	newTask.UID = uuid.New()

	// source goes to the storage first
	srcKey := c.srcKeyPrefix + newTask.UID.String() + model.GetImageFileExt[taskData.OrigContentType]

	if err := c.storage.Put(ctx, srcKey, taskData.OrigImgSize, taskData.OrigContentType, taskData.OrigImg); err != nil {
		logger.Error().Err(err).Msg("Failed to save src-image in Storage")
		return nil, model.ErrCommon500
	}
	newTask.SourceKey = srcKey

	// logo and mask follow when uploaded
	if taskData.LogoImg != nil {
		logoKey := c.logoKeyPrefix + newTask.UID.String() + model.GetImageFileExt[taskData.LogoContentType]

		if err := c.storage.Put(ctx, logoKey, taskData.LogoImgSize, taskData.LogoContentType, taskData.LogoImg); err != nil {
			logger.Error().Err(err).Msg("Failed to save logo-image in Storage")
			return nil, model.ErrCommon500
		}
		newTask.LogoKey = logoKey
	}
	if taskData.MaskImg != nil {
		maskKey := c.maskKeyPrefix + newTask.UID.String() + model.GetImageFileExt[taskData.MaskContentType]

		if err := c.storage.Put(ctx, maskKey, taskData.MaskImgSize, taskData.MaskContentType, taskData.MaskImg); err != nil {
			logger.Error().Err(err).Msg("Failed to save mask-image in Storage")
			return nil, model.ErrCommon500
		}
		newTask.MaskKey = maskKey
	}

	newTask.Status = model.StatusCreated
	now := time.Now().UTC()
	newTask.CreatedAt = &now

	if err := c.repo.Create(ctx, newTask); err != nil {
		logger.Error().Err(err).Msg("Failed to create task in DB")
		return nil, model.ErrCommon500
	}

	// hand the task over to the worker through the queue
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(newTask.UID.String()), nil); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish task %q to task-queue", newTask.UID))
		return nil, model.ErrCommon500
	}
	return newTask, nil
}

func (c WatermarkService) GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := c.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch tasks list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c WatermarkService) Get(ctx context.Context, id string) (*model.Task, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrTaskNotFound):
			return nil, model.ErrTaskNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch task %q from DB", id))
			return nil, model.ErrCommon500
		}
	}

	return res, nil
}

func (c WatermarkService) LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, "", model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrTaskNotFound):
			return nil, "", model.ErrTaskNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch task %q from DB", id))
			return nil, "", model.ErrCommon500
		}
	}
	if res.Status != model.StatusDone {
		return nil, "", model.ErrResultNotReady
	}

	data, cType, err := c.storage.Get(ctx, res.ResultKey)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-image %q from Storage", id))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

func (c WatermarkService) Delete(ctx context.Context, id string) error {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}

	res, err := c.repo.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), errors.Is(err, model.ErrTaskNotFound):
			return model.ErrTaskNotFound // 404
		default:
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch task %q from DB", id))
			return model.ErrCommon500
		}
	}

	if err := c.repo.Delete(ctx, id); err != nil {
		logger.Error().Err(err).Msg("Failed to delete task from DB")
		return model.ErrCommon500
	}

	// sweep every object the task left in the storage
	if err := c.storage.Delete(ctx, res.SourceKey); err != nil {
		logger.Error().Err(err).Msg("Failed to delete src-image from Storage")
		return model.ErrCommon500
	}
	if res.LogoKey != "" {
		if err := c.storage.Delete(ctx, res.LogoKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete logo-image from Storage")
			return model.ErrCommon500
		}
	}
	if res.MaskKey != "" {
		if err := c.storage.Delete(ctx, res.MaskKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete mask-image from Storage")
			return model.ErrCommon500
		}
	}
	if res.Status == model.StatusDone {
		if err := c.storage.Delete(ctx, res.ResultKey); err != nil {
			logger.Error().Err(err).Msg("Failed to delete result-image from Storage")
			return model.ErrCommon500
		}
	}

	return nil
}

func (c WatermarkService) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	if err := uuid.Validate(id); err != nil {
		return model.ErrIncorrectID
	}
	if !model.StatusMap[newStat] {
		return model.ErrIncorrectStatus
	}

	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.UpdateStatus(ctx, id, newStat); err != nil {
		switch {
		case errors.Is(err, model.ErrTaskNotFound):
			return model.ErrTaskNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to update task status in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

func (c WatermarkService) SaveResult(ctx context.Context, input *model.Task) error {
	logger := mwlogger.LoggerFromContext(ctx)
	t := time.Now().UTC()
	input.UpdatedAt = &t
	if err := c.repo.SaveResult(ctx, input); err != nil {
		switch {
		case errors.Is(err, model.ErrTaskNotFound):
			return model.ErrTaskNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to save result in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

func (c WatermarkService) MarkFailed(ctx context.Context, id string, errMsg string) error {
	logger := mwlogger.LoggerFromContext(ctx)

	if err := c.repo.MarkFailed(ctx, id, errMsg); err != nil {
		switch {
		case errors.Is(err, model.ErrTaskNotFound):
			return model.ErrTaskNotFound // 404
		default:
			logger.Error().Err(err).Msg("Failed to mark task failed in DB")
			return model.ErrCommon500 // 500
		}
	}

	return nil
}

// ExtractMessage decodes an uploaded carrier synchronously, without
// touching the DB or the storage. maxLen <= 0 falls back to the default
// read window.
func (c WatermarkService) ExtractMessage(ctx context.Context, r io.Reader, maxLen int, includeAlpha bool) (lsb.Message, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	buf, _, err := imagecodec.Decode(r)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to decode carrier for extraction")
		return lsb.Message{}, model.ErrEmptySource
	}

	if maxLen <= 0 {
		maxLen = defaultExtractWindow
	}

	var opts []lsb.Option
	if includeAlpha {
		opts = append(opts, lsb.WithAlpha())
	}

	msg, err := lsb.Extract(buf, maxLen, opts...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to extract message from carrier")
		return lsb.Message{}, model.ErrCommon500
	}
	return msg, nil
}

func (c WatermarkService) ReviveOrphans(ctx context.Context, limit int) {
	logger := mwlogger.LoggerFromContext(ctx)

	orphans, err := c.repo.FetchOrphans(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load orphans from DB")
		return
	}

	for _, v := range orphans {
		if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(v), nil); err != nil {
			logger.Error().Err(err).Msg("Failed to publish orphan to queue")
		}
	}
}
