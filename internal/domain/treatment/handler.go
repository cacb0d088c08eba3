package treatment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/treatment-logs", auth.RequireRole(auth.RoleEmployee))
	g.POST("", h.Append)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)

	api.GET("/consulted-services/:id/treatment-logs", h.ListByService, auth.RequireRole(auth.RoleEmployee))
	api.GET("/customers/:id/treatment-logs", h.ListByCustomer, auth.RequireRole(auth.RoleEmployee))
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) Append(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	log, err := h.svc.AppendLog(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, log)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	log, err := h.svc.UpdateLog(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, log)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLog(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByService(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	logs, err := h.svc.ListByService(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []*TreatmentLog{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": logs})
}

func (h *Handler) ListByCustomer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByCustomer(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
