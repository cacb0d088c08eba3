package directory

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
	read := api.Group("", auth.RequireRole(auth.RoleEmployee))
	read.GET("/customers/:id", h.GetCustomer)
	read.GET("/customers/:id/source", h.GetCustomerSource)
	read.GET("/employees/:id", h.GetEmployee)
	read.GET("/clinics/:id", h.GetClinic)
	read.GET("/clinics/:id/employees", h.ListClinicEmployees)
	read.GET("/catalog", h.ListCatalog)
	read.GET("/catalog/:id", h.GetCatalogItem)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/employees/:id/invite", h.InviteEmployee)
	admin.PUT("/employees/:id/enabled", h.SetEmployeeEnabled)
	admin.PUT("/employees/:id/password", h.SetEmployeePassword)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) GetCustomer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	cust, err := h.svc.GetCustomer(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cust)
}

func (h *Handler) GetCustomerSource(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	src, err := h.svc.GetCustomerSource(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if src == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, src)
}

func (h *Handler) GetEmployee(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	emp, err := h.svc.GetEmployee(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, emp)
}

func (h *Handler) GetClinic(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	cl, err := h.svc.GetClinic(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cl)
}

func (h *Handler) ListClinicEmployees(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListClinicEmployees(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetCatalogItem(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	item, err := h.svc.GetCatalogItem(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListCatalog(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCatalog(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) InviteEmployee(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	inv, err := h.svc.InviteEmployee(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) SetEmployeeEnabled(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req SetEnabledRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.SetEmployeeEnabled(c.Request().Context(), id, req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetEmployeePassword(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req SetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.SetEmployeePassword(c.Request().Context(), id, req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
