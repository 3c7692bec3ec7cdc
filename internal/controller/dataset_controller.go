package controller

import (
	"chatmrpt-be/internal/pkg/serverutils"
	"chatmrpt-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDatasetController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type datasetController struct {
	service service.IDatasetService
}

func NewDatasetController(service service.IDatasetService) IDatasetController {
	return &datasetController{service: service}
}

func (c *datasetController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/dataset/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/upload", c.Upload)
	h.Get("/status", c.Status)
}

func (c *datasetController) Upload(ctx *fiber.Ctx) error {
	sessionId, err := sessionIdFromLocals(ctx)
	if err != nil {
		return err
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "CSV file is required (multipart field 'file')"))
	}

	res, err := c.service.Upload(ctx.Context(), sessionId, file)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success upload dataset", res))
}

func (c *datasetController) Status(ctx *fiber.Ctx) error {
	sessionId, err := sessionIdFromLocals(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Status(ctx.Context(), sessionId)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Dataset status", res))
}
