// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"log"
	"strconv"

	"github.com/InkLayer/WatermarkStation/internal/lsb"
	"github.com/InkLayer/WatermarkStation/internal/model"
	"github.com/wb-go/wbf/ginext"
)

type TaskHandler struct {
	service TaskService
}

type TaskService interface {
	Create(ctx context.Context, newTask *model.TaskCreateData) (*model.Task, error)
	Delete(ctx context.Context, id string) error                              // removes the task from DB and minio
	Get(ctx context.Context, id string) (*model.Task, error)                  // task state incl. provenance
	LoadResult(ctx context.Context, id string) (io.ReadCloser, string, error) // download the result
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Task, error)
	ExtractMessage(ctx context.Context, r io.Reader, maxLen int, includeAlpha bool) (lsb.Message, error)
}

func NewTaskHandler(svc TaskService) *TaskHandler {
	return &TaskHandler{
		service: svc,
	}
}

func (h TaskHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

func (h TaskHandler) Create(ctx *ginext.Context) {
	params := parseWatermarkParams(ctx)

	// source image is mandatory
	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(imageFile)

	var newTaskRaw model.TaskCreateData
	newTaskRaw.Params = params
	newTaskRaw.OrigImg = imageFile
	newTaskRaw.OrigContentType = imageHeader.Header.Get("Content-Type")
	newTaskRaw.OrigImgSize = imageHeader.Size

	// logo and mask are optional
	logoFile, logoHeader, err := ctx.Request.FormFile("logo")
	if err == nil {
		defer closeFileFlow(logoFile)
		newTaskRaw.LogoImg = logoFile
		newTaskRaw.LogoContentType = logoHeader.Header.Get("Content-Type")
		newTaskRaw.LogoImgSize = logoHeader.Size
	}
	maskFile, maskHeader, err := ctx.Request.FormFile("mask")
	if err == nil {
		defer closeFileFlow(maskFile)
		newTaskRaw.MaskImg = maskFile
		newTaskRaw.MaskContentType = maskHeader.Header.Get("Content-Type")
		newTaskRaw.MaskImgSize = maskHeader.Size
	}

	res, err := h.service.Create(ctx.Request.Context(), &newTaskRaw)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(201, res)
}

func (h TaskHandler) GetAllTasks(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetList(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h TaskHandler) GetTask(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, err := h.service.Get(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, res)
}

func (h TaskHandler) LoadResult(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadResult(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(200)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		log.Printf("Failed to write response at byte %d for file id %q: %v", n, id, err)
	}
}

func (h TaskHandler) Delete(ctx *ginext.Context) {
	id := ctx.Param("id")
	if err := h.service.Delete(ctx.Request.Context(), id); err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.Status(204)
}

// Extract decodes a hidden message from an uploaded image synchronously,
// no task is created
func (h TaskHandler) Extract(ctx *ginext.Context) {
	imageFile, _, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(imageFile)

	maxLen, _ := strconv.Atoi(ctx.PostForm("max_length"))
	includeAlpha, _ := strconv.ParseBool(ctx.PostForm("include_alpha"))

	msg, err := h.service.ExtractMessage(ctx.Request.Context(), imageFile, maxLen, includeAlpha)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
		return
	}

	ctx.JSON(200, map[string]any{
		"message":    msg.Text,
		"lossy":      msg.Lossy,
		"terminated": msg.Terminated,
	})
}
