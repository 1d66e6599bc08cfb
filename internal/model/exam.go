package model

import "time"

// Exam describes an exam that students enrol to.  Child exams (personal
// instances) reference their parent through ParentID; enrolment
// uniqueness is checked against both.
//
// Fields:
//  ID               – primary key identifier.
//  Name             – display name.
//  ParentID         – parent exam for instances (nullable).
//  DurationMinutes  – length of one sitting; defines the slot size.
//  RequiredSoftware – software that every booked machine must carry.
//  PeriodStart      – first instant at which the exam can be taken.
//  PeriodEnd        – last instant at which the exam can be taken.
type Exam struct {
	ID               uint64    // exams.id
	Name             string    // exams.name
	ParentID         *uint64   // exams.parent_id (nullable)
	DurationMinutes  int       // exams.duration_minutes
	RequiredSoftware []uint64  // exam_software.software_id
	PeriodStart      time.Time // exams.period_start
	PeriodEnd        time.Time // exams.period_end
}

// Duration returns the length of one sitting.
func (e Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// FamilyIDs returns the exam ID together with its parent ID when set.
func (e Exam) FamilyIDs() []uint64 {
	if e.ParentID != nil && *e.ParentID != e.ID {
		return []uint64{e.ID, *e.ParentID}
	}
	return []uint64{e.ID}
}

// ExaminationEventConfiguration is a fixed sitting of an exam that
// enrolled users can join instead of booking a machine reservation.
type ExaminationEventConfiguration struct {
	ID       uint64    // examination_events.id
	ExamID   uint64    // examination_events.exam_id
	Start    time.Time // examination_events.start_at
	End      time.Time // examination_events.end_at
	Capacity int       // examination_events.capacity
}
