package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tilepress/tilepress/internal/domain"
	"github.com/tilepress/tilepress/internal/ratelimit"
	"github.com/tilepress/tilepress/internal/repository"
	"github.com/tilepress/tilepress/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type ProjectService interface {
	Upload(ctx context.Context, params service.UploadParams) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Project, int64, error)
	Calibrate(ctx context.Context, id string, cal domain.Calibration) (*domain.Project, error)
	UpdateSettings(ctx context.Context, id string, settings domain.StyleSettings) (*domain.Project, error)
	GenerateDocument(ctx context.Context, id string) (*domain.Project, error)
	GetDocument(ctx context.Context, id string) (*domain.Project, error)
	Delete(ctx context.Context, id string) error
}

type ProjectHandler struct {
	service ProjectService
	limiter ratelimit.RateLimiter
}

func NewProjectHandler(service ProjectService, limiter ratelimit.RateLimiter) (*ProjectHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("project service is required")
	}
	return &ProjectHandler{service: service, limiter: limiter}, nil
}

func RegisterProjectRoutes(router fiber.Router, service ProjectService, limiter ratelimit.RateLimiter) error {
	h, err := NewProjectHandler(service, limiter)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/projects", h.UploadProject)
	v1.Get("/projects", h.ListProjects)
	v1.Get("/projects/:id", h.GetProject)
	v1.Put("/projects/:id/calibration", h.CalibrateProject)
	v1.Put("/projects/:id/settings", h.UpdateProjectSettings)
	v1.Post("/projects/:id/document", h.GenerateDocument)
	v1.Get("/projects/:id/document", h.DownloadDocument)
	v1.Delete("/projects/:id", h.DeleteProject)

	return nil
}

type calibrationRequest struct {
	Scale    float64 `json:"scale"`
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
	Rotation float64 `json:"rotation"`
}

// styleSettingsRequest carries optional overrides; anything omitted
// keeps its default.
type styleSettingsRequest struct {
	GridStyle               *string `json:"gridStyle"`
	UnitOfMeasurement       *string `json:"unitOfMeasurement"`
	PaperSize               *string `json:"paperSize"`
	GridOverlay             *bool   `json:"gridOverlay"`
	BackgroundColor         *string `json:"backgroundColor"`
	GridMarkerColor         *string `json:"gridMarkerColor"`
	GuideColor              *string `json:"guideColor"`
	OutlineColor            *string `json:"outlineColor"`
	AverageBackgroundColor  *bool   `json:"averageBackgroundColor"`
	GenerateBacksideNumbers *bool   `json:"generateBacksideNumbers"`
	OutlineStyle            *string `json:"outlineStyle"`
	OutlineThickness        *int    `json:"outlineThickness"`
}

func (req styleSettingsRequest) apply(base domain.StyleSettings) domain.StyleSettings {
	if req.GridStyle != nil {
		base.GridStyle = domain.GridStyle(*req.GridStyle)
	}
	if req.UnitOfMeasurement != nil {
		base.UnitOfMeasurement = domain.UnitOfMeasurement(*req.UnitOfMeasurement)
	}
	if req.PaperSize != nil {
		base.PaperSize = domain.PaperSize(*req.PaperSize)
	}
	if req.GridOverlay != nil {
		base.GridOverlay = *req.GridOverlay
	}
	if req.BackgroundColor != nil {
		base.BackgroundColor = *req.BackgroundColor
	}
	if req.GridMarkerColor != nil {
		base.GridMarkerColor = *req.GridMarkerColor
	}
	if req.GuideColor != nil {
		base.GuideColor = *req.GuideColor
	}
	if req.OutlineColor != nil {
		base.OutlineColor = *req.OutlineColor
	}
	if req.AverageBackgroundColor != nil {
		base.AverageBackgroundColor = *req.AverageBackgroundColor
	}
	if req.GenerateBacksideNumbers != nil {
		base.GenerateBacksideNumbers = *req.GenerateBacksideNumbers
	}
	if req.OutlineStyle != nil {
		base.OutlineStyle = domain.OutlineStyle(*req.OutlineStyle)
	}
	if req.OutlineThickness != nil {
		base.OutlineThickness = *req.OutlineThickness
	}
	return base
}

type projectResponse struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	ContentType   string               `json:"contentType"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	Calibration   calibrationRequest   `json:"calibration"`
	Settings      domain.StyleSettings `json:"settings"`
	Status        string               `json:"status"`
	ArtifactSize  int64                `json:"artifactSize"`
	BatchID       *string              `json:"batchId,omitempty"`
	BatchPosition *int                 `json:"batchPosition,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

type listProjectsResponse struct {
	Data []projectResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *ProjectHandler) UploadProject(c *fiber.Ctx) error {
	if err := h.allowUpload(c); err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	data, err := readMultipartFile(fileHeader)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to read uploaded file")
	}

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = fileHeader.Filename
	}

	project, err := h.service.Upload(c.Context(), service.UploadParams{
		Name:        name,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Data:        data,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toProjectResponse(project))
}

func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	project, err := h.service.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProjectResponse(project))
}

func (h *ProjectHandler) ListProjects(c *fiber.Ctx) error {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}
	if params.Page < 1 {
		return toHTTPError(fmt.Errorf("%w: page must be >= 1", domain.ErrValidation))
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return toHTTPError(fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize))
	}
	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseProjectStatusFromString(rawStatus)
		if err != nil {
			return toHTTPError(err)
		}
		params.Status = &status
	}
	if batchID := strings.TrimSpace(c.Query("batchId")); batchID != "" {
		params.BatchID = &batchID
	}

	projects, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]projectResponse, 0, len(projects))
	for i := range projects {
		responses = append(responses, toProjectResponse(&projects[i]))
	}
	return c.Status(fiber.StatusOK).JSON(listProjectsResponse{
		Data: responses,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func (h *ProjectHandler) CalibrateProject(c *fiber.Ctx) error {
	var req calibrationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	project, err := h.service.Calibrate(c.Context(), strings.TrimSpace(c.Params("id")), domain.Calibration{
		Scale:    req.Scale,
		OffsetX:  req.OffsetX,
		OffsetY:  req.OffsetY,
		Rotation: req.Rotation,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProjectResponse(project))
}

func (h *ProjectHandler) UpdateProjectSettings(c *fiber.Ctx) error {
	var req styleSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	project, err := h.service.UpdateSettings(c.Context(), strings.TrimSpace(c.Params("id")), req.apply(domain.DefaultStyleSettings()))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProjectResponse(project))
}

func (h *ProjectHandler) GenerateDocument(c *fiber.Ctx) error {
	project, err := h.service.GenerateDocument(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toProjectResponse(project))
}

func (h *ProjectHandler) DownloadDocument(c *fiber.Ctx) error {
	project, err := h.service.GetDocument(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", project.Name+".pdf"))
	return c.Status(fiber.StatusOK).Send(project.Artifact)
}

func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProjectHandler) allowUpload(c *fiber.Ctx) error {
	return allowUpload(c, h.limiter)
}

// allowUpload throttles uploads per client IP. A limiter error fails
// open: uploads are not blocked by a redis outage.
func allowUpload(c *fiber.Ctx, limiter ratelimit.RateLimiter) error {
	if limiter == nil {
		return nil
	}
	allowed, err := limiter.Allow(c.Context(), c.IP())
	if err != nil {
		return nil
	}
	if !allowed {
		return fiber.NewError(fiber.StatusTooManyRequests, "upload rate limit exceeded")
	}
	return nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func toProjectResponse(p *domain.Project) projectResponse {
	if p == nil {
		return projectResponse{}
	}

	return projectResponse{
		ID:          p.ID,
		Name:        p.Name,
		ContentType: p.ContentType,
		Width:       p.Width,
		Height:      p.Height,
		Calibration: calibrationRequest{
			Scale:    p.Calibration.Scale,
			OffsetX:  p.Calibration.OffsetX,
			OffsetY:  p.Calibration.OffsetY,
			Rotation: p.Calibration.Rotation,
		},
		Settings:      p.Settings,
		Status:        p.Status.String(),
		ArtifactSize:  p.ArtifactSize,
		BatchID:       p.BatchID,
		BatchPosition: p.BatchPosition,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPrecondition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProcessing):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
