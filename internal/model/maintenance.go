package model

import "time"

// MaintenancePeriod is a system-wide window during which no machine in
// any room can be booked.  Administrators create and delete periods; the
// scheduler only reads them.
type MaintenancePeriod struct {
	ID          uint64    // maintenance_periods.id
	Start       time.Time // maintenance_periods.start_at
	End         time.Time // maintenance_periods.end_at
	Description string    // maintenance_periods.description
}
