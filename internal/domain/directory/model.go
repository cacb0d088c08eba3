package directory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/platform/auth"
)

type CustomerType string

const (
	CustomerTypeLead     CustomerType = "lead"
	CustomerTypeCustomer CustomerType = "customer"
)

// Customer is owned by the directory. SourceCustomerID names the customer
// who referred this one; it is a lookup reference, not ownership.
type Customer struct {
	ID               uuid.UUID    `json:"id"`
	Code             string       `json:"customerCode"`
	FullName         string       `json:"fullName"`
	Phone            *string      `json:"phone,omitempty"`
	Type             CustomerType `json:"type"`
	ClinicID         *uuid.UUID   `json:"clinicId,omitempty"`
	SourceCustomerID *uuid.UUID   `json:"sourceCustomerId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

type Employee struct {
	ID       uuid.UUID  `json:"id"`
	FullName string     `json:"fullName"`
	Email    string     `json:"email"`
	Role     auth.Role  `json:"role"`
	ClinicID *uuid.UUID `json:"clinicId,omitempty"`
}

type Clinic struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"clinicCode"`
	Name string    `json:"name"`
}

// CatalogItem is a billable dental service.
type CatalogItem struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Price    decimal.Decimal `json:"price"`
	MinPrice decimal.Decimal `json:"minPrice"`
	FollowUp bool            `json:"requiresFollowUp"`
}

var perToothUnits = map[string]bool{
	"tooth":     true,
	"per tooth": true,
	"răng":      true,
}

// IsPerTooth reports whether the item is billed per tooth, in which case a
// consulted line must list tooth positions.
func (c *CatalogItem) IsPerTooth() bool {
	return perToothUnits[strings.ToLower(strings.TrimSpace(c.Unit))]
}

// Reference is the compact id/name/code triple other modules embed in
// responses.
type Reference struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code,omitempty"`
}
