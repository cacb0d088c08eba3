// Package directorytest provides an in-memory directory for tests of the
// workflow packages.
package directorytest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/domain/directory"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/internal/platform/auth"
	"github.com/clinicops/clinic/pkg/pagination"
)

type Memory struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]*directory.Customer
	employees map[uuid.UUID]*directory.Employee
	clinics   map[uuid.UUID]*directory.Clinic
	catalog   map[uuid.UUID]*directory.CatalogItem
}

var _ directory.Repository = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		customers: make(map[uuid.UUID]*directory.Customer),
		employees: make(map[uuid.UUID]*directory.Employee),
		clinics:   make(map[uuid.UUID]*directory.Clinic),
		catalog:   make(map[uuid.UUID]*directory.CatalogItem),
	}
}

func (m *Memory) AddClinic(code string) *directory.Clinic {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &directory.Clinic{ID: uuid.New(), Code: code, Name: "Clinic " + code}
	m.clinics[c.ID] = c
	return c
}

func (m *Memory) AddCustomer(name string, clinicID uuid.UUID) *directory.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &directory.Customer{ID: uuid.New(), FullName: name, Type: directory.CustomerTypeCustomer}
	if clinicID != uuid.Nil {
		c.ClinicID = &clinicID
	}
	m.customers[c.ID] = c
	return c
}

func (m *Memory) AddEmployee(name, email string, role auth.Role, clinicID uuid.UUID) *directory.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &directory.Employee{ID: uuid.New(), FullName: name, Email: email, Role: role}
	if clinicID != uuid.Nil {
		e.ClinicID = &clinicID
	}
	m.employees[e.ID] = e
	return e
}

// AddService registers a catalog item with the given list and minimum price.
func (m *Memory) AddService(name, unit string, price, minPrice int64) *directory.CatalogItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &directory.CatalogItem{
		ID:       uuid.New(),
		Name:     name,
		Unit:     unit,
		Price:    decimal.NewFromInt(price),
		MinPrice: decimal.NewFromInt(minPrice),
	}
	m.catalog[c.ID] = c
	return c
}

func (m *Memory) FindCustomerByID(_ context.Context, id uuid.UUID) (*directory.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, apperr.NotFound("customer")
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) FindEmployeeByID(_ context.Context, id uuid.UUID) (*directory.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, apperr.NotFound("employee")
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) FindClinicByID(_ context.Context, id uuid.UUID) (*directory.Clinic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clinics[id]
	if !ok {
		return nil, apperr.NotFound("clinic")
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) FindServiceByID(_ context.Context, id uuid.UUID) (*directory.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.catalog[id]
	if !ok {
		return nil, apperr.NotFound("dental service")
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ListCatalog(_ context.Context, limit, offset int) ([]*directory.CatalogItem, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*directory.CatalogItem
	for _, c := range m.catalog {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return pagination.Window(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}

func (m *Memory) ListEmployeesByClinic(_ context.Context, clinicID uuid.UUID, limit, offset int) ([]*directory.Employee, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*directory.Employee
	for _, e := range m.employees {
		if e.ClinicID != nil && *e.ClinicID == clinicID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FullName < all[j].FullName })
	return pagination.Window(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}
