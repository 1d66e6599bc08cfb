package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/repository"
)

// MaintenanceService lets administrators manage system-wide maintenance
// periods.  Existing reservations inside a new period are left alone;
// the period only removes slots from future listings and bookings.
type MaintenanceService struct {
	store  repository.Store
	logger *zap.Logger
}

func NewMaintenanceService(store repository.Store, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{store: store, logger: logger}
}

// Create stores a new maintenance period.
func (s *MaintenanceService) Create(ctx context.Context, start, end time.Time, description string) (model.MaintenancePeriod, error) {
	if !end.After(start) {
		return model.MaintenancePeriod{}, invalidInput("end must be after start")
	}
	m := model.MaintenancePeriod{Start: start.UTC(), End: end.UTC(), Description: strings.TrimSpace(description)}
	if err := s.store.CreateMaintenance(ctx, &m); err != nil {
		return model.MaintenancePeriod{}, err
	}
	s.logger.Info("maintenance period created", zap.String("operation", "create_maintenance"), zap.Uint64("id", m.ID), zap.Time("start", m.Start), zap.Time("end", m.End))
	return m, nil
}

// List returns the periods overlapping [from, to).
func (s *MaintenanceService) List(ctx context.Context, from, to time.Time) ([]model.MaintenancePeriod, error) {
	if !to.After(from) {
		return nil, invalidInput("to must be after from")
	}
	return s.store.ListMaintenance(ctx, from, to)
}

// Delete removes a period.
func (s *MaintenanceService) Delete(ctx context.Context, id uint64) error {
	if err := s.store.DeleteMaintenance(ctx, id); err != nil {
		return storeErr(err, "maintenance period")
	}
	s.logger.Info("maintenance period deleted", zap.String("operation", "delete_maintenance"), zap.Uint64("id", id))
	return nil
}
