package scheduling

import (
	"net/http"
	"strconv"
	"time"

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
	g := api.Group("/appointments", auth.RequireRole(auth.RoleEmployee))
	g.POST("", h.Book)
	g.GET("/availability", h.CheckAvailability)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/check-in", h.CheckIn)
	g.POST("/:id/check-out", h.CheckOut)

	api.GET("/customers/:id/appointments", h.ListByCustomer, auth.RequireRole(auth.RoleEmployee))
	api.GET("/clinics/:id/appointments", h.ListByClinicDay, auth.RequireRole(auth.RoleEmployee))
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// CheckAvailability answers ?dentistId=&start=RFC3339&duration=&excludeId=.
func (h *Handler) CheckAvailability(c echo.Context) error {
	dentistID, err := uuid.Parse(c.QueryParam("dentistId"))
	if err != nil {
		return apperr.Validation("invalid dentistId")
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return apperr.Validation("start must be RFC3339")
	}
	duration, err := strconv.Atoi(c.QueryParam("duration"))
	if err != nil {
		return apperr.Validation("duration must be an integer")
	}
	var exclude *uuid.UUID
	if raw := c.QueryParam("excludeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Validation("invalid excludeId")
		}
		exclude = &id
	}

	overlaps, err := h.svc.CheckDentistAvailability(c.Request().Context(), dentistID, start, duration, exclude)
	if err != nil {
		return err
	}
	if overlaps == nil {
		overlaps = []*Appointment{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"available":   len(overlaps) == 0,
		"overlapping": overlaps,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
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
	a, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	walkIn, _ := strconv.ParseBool(c.QueryParam("walkIn"))
	a, err := h.svc.CheckIn(c.Request().Context(), id, walkIn)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CheckOut(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.CheckOut(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
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

// ListByClinicDay takes ?date=YYYY-MM-DD, defaulting to today.
func (h *Handler) ListByClinicDay(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	day, err := h.svc.ParseDay(c.QueryParam("date"))
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByClinicDay(c.Request().Context(), id, day, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
