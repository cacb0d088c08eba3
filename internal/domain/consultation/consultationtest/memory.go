// Package consultationtest provides an in-memory consulted-service ledger for
// tests of consultation and the packages that project onto it.
package consultationtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicops/clinic/internal/domain/consultation"
	"github.com/clinicops/clinic/internal/platform/apperr"
	"github.com/clinicops/clinic/pkg/pagination"
)

type Memory struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*consultation.ConsultedService
	// Locked records every id passed to LockByIDs, in call order.
	Locked []uuid.UUID
}

var _ consultation.Repository = (*Memory)(nil)

func New() *Memory {
	return &Memory{rows: make(map[uuid.UUID]*consultation.ConsultedService)}
}

func clone(s *consultation.ConsultedService) *consultation.ConsultedService {
	cp := *s
	cp.ToothPositions = append([]string{}, s.ToothPositions...)
	return &cp
}

// Seed stores s as is. FinalPrice and Debt are derived when left zero.
func (m *Memory) Seed(s *consultation.ConsultedService) *consultation.ConsultedService {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.FinalPrice.IsZero() {
		s.FinalPrice = s.PreferentialPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
	}
	if s.Debt.IsZero() {
		s.Debt = s.FinalPrice.Sub(s.AmountPaid)
	}
	if s.TreatmentStatus == "" {
		s.TreatmentStatus = consultation.TreatmentNotStarted
	}
	m.rows[s.ID] = clone(s)
	return s
}

func (m *Memory) Create(_ context.Context, s *consultation.ConsultedService) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.rows[s.ID] = clone(s)
	return nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*consultation.ConsultedService, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("consulted service")
	}
	return clone(s), nil
}

func (m *Memory) Update(_ context.Context, s *consultation.ConsultedService) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[s.ID]
	if !ok {
		return apperr.NotFound("consulted service")
	}
	s.AmountPaid = cur.AmountPaid
	s.TreatmentStatus = cur.TreatmentStatus
	s.Debt = s.FinalPrice.Sub(s.AmountPaid)
	s.UpdatedAt = time.Now()
	m.rows[s.ID] = clone(s)
	return nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return apperr.NotFound("consulted service")
	}
	delete(m.rows, id)
	return nil
}

func (m *Memory) byCustomer(customerID uuid.UUID, keep func(*consultation.ConsultedService) bool) []*consultation.ConsultedService {
	var out []*consultation.ConsultedService
	for _, s := range m.rows {
		if s.CustomerID == customerID && keep(s) {
			out = append(out, clone(s))
		}
	}
	return out
}

func (m *Memory) ListByCustomer(_ context.Context, customerID uuid.UUID, limit, offset int) ([]*consultation.ConsultedService, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.byCustomer(customerID, func(*consultation.ConsultedService) bool { return true })
	sort.Slice(all, func(i, j int) bool { return all[i].ConsultationDate.After(all[j].ConsultationDate) })
	return pagination.Window(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}

func (m *Memory) ListUnpaidByCustomer(_ context.Context, customerID uuid.UUID) ([]*consultation.ConsultedService, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.byCustomer(customerID, func(s *consultation.ConsultedService) bool { return s.Debt.IsPositive() })
	sort.Slice(out, func(i, j int) bool { return out[i].ConsultationDate.Before(out[j].ConsultationDate) })
	return out, nil
}

func (m *Memory) LockByIDs(_ context.Context, ids []uuid.UUID) ([]*consultation.ConsultedService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locked = append(m.Locked, ids...)
	var out []*consultation.ConsultedService
	for _, id := range ids {
		if s, ok := m.rows[id]; ok {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *Memory) SetAmountPaid(_ context.Context, id uuid.UUID, amountPaid decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return apperr.NotFound("consulted service")
	}
	s.AmountPaid = amountPaid
	s.Debt = s.FinalPrice.Sub(amountPaid)
	return nil
}

func (m *Memory) SetTreatmentStatus(_ context.Context, id uuid.UUID, status consultation.TreatmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return apperr.NotFound("consulted service")
	}
	s.TreatmentStatus = status
	return nil
}
