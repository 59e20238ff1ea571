package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tilepress/tilepress/internal/domain"
	"github.com/tilepress/tilepress/internal/ratelimit"
	"github.com/tilepress/tilepress/internal/service"
)

type BatchService interface {
	CreateJob(ctx context.Context, params service.CreateBatchParams) (*domain.BatchJob, error)
	GetByID(ctx context.Context, id string) (*domain.BatchJob, error)
	StartJob(ctx context.Context, id string) (*domain.BatchJob, error)
	Delete(ctx context.Context, id string) error
}

type BatchHandler struct {
	service BatchService
	limiter ratelimit.RateLimiter
}

func NewBatchHandler(service BatchService, limiter ratelimit.RateLimiter) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service, limiter: limiter}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService, limiter ratelimit.RateLimiter) error {
	h, err := NewBatchHandler(service, limiter)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/batches", h.CreateBatch)
	v1.Get("/batches/:id", h.GetBatch)
	v1.Post("/batches/:id/start", h.StartBatch)
	v1.Delete("/batches/:id", h.DeleteBatch)

	return nil
}

type batchJobResponse struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Status         string               `json:"status"`
	TotalFiles     int                  `json:"totalFiles"`
	ProcessedFiles int                  `json:"processedFiles"`
	FailedFiles    int                  `json:"failedFiles"`
	Settings       domain.StyleSettings `json:"settings"`
	ErrorMessage   *string              `json:"errorMessage,omitempty"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
	ProjectIDs     []string             `json:"projectIds"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

func (h *BatchHandler) CreateBatch(c *fiber.Ctx) error {
	if err := allowUpload(c, h.limiter); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form is required")
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return toHTTPError(fmt.Errorf("%w: at least one file is required", domain.ErrValidation))
	}

	files := make([]service.BatchFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		data, err := readMultipartFile(fh)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "failed to read uploaded file")
		}
		files = append(files, service.BatchFile{Name: fh.Filename, Data: data})
	}

	settings := domain.DefaultStyleSettings()
	if raw := strings.TrimSpace(c.FormValue("settings")); raw != "" {
		var req styleSettingsRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settings payload")
		}
		settings = req.apply(settings)
	}

	job, err := h.service.CreateJob(c.Context(), service.CreateBatchParams{
		Name:     strings.TrimSpace(c.FormValue("name")),
		Files:    files,
		Settings: settings,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toBatchJobResponse(job))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	job, err := h.service.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toBatchJobResponse(job))
}

func (h *BatchHandler) StartBatch(c *fiber.Ctx) error {
	job, err := h.service.StartJob(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(toBatchJobResponse(job))
}

func (h *BatchHandler) DeleteBatch(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func toBatchJobResponse(job *domain.BatchJob) batchJobResponse {
	if job == nil {
		return batchJobResponse{}
	}

	projectIDs := job.ProjectIDs
	if projectIDs == nil {
		projectIDs = []string{}
	}

	return batchJobResponse{
		ID:             job.ID,
		Name:           job.Name,
		Status:         job.Status.String(),
		TotalFiles:     job.TotalFiles,
		ProcessedFiles: job.ProcessedFiles,
		FailedFiles:    job.FailedFiles,
		Settings:       job.Settings,
		ErrorMessage:   job.ErrorMessage,
		CompletedAt:    job.CompletedAt,
		ProjectIDs:     projectIDs,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}
