package model

import "time"

// Room represents an examination room as stored in the `rooms` table
// together with its working-hours configuration.  A room either hosts
// local machines or, when ExternalOrgRef is set, mirrors a room owned by
// a partner institution whose machines are not known locally.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name.
//  Timezone        – IANA zone name; empty means the configured default.
//  DefaultHours    – weekly opening hours (rows of room_working_hours).
//  Exceptions      – date-scoped closures and extra openings.
//  OutOfService    – when true nothing in the room can be booked.
//  Active          – inactive rooms are hidden from slot searches.
//  ExternalOrgRef  – partner organisation reference (empty for local rooms).
//  ExternalRoomRef – partner room reference (empty for local rooms).
type Room struct {
	ID              uint64           // rooms.id
	Name            string           // rooms.name
	Timezone        string           // rooms.timezone
	DefaultHours    []WorkingHours   // room_working_hours
	Exceptions      []ExceptionHours // room_exception_hours
	OutOfService    bool             // rooms.out_of_service
	Active          bool             // rooms.active
	ExternalOrgRef  string           // rooms.external_org_ref
	ExternalRoomRef string           // rooms.external_room_ref
}

// IsExternal reports whether the room belongs to a partner institution.
func (r Room) IsExternal() bool { return r.ExternalOrgRef != "" }

// WorkingHours is one default opening window for a weekday.  Offsets are
// wall-clock minutes from local midnight so that daylight saving changes
// do not shift the opening time.  CloseMinute may be 1440 (midnight of
// the following day).
type WorkingHours struct {
	Weekday     time.Weekday // room_working_hours.weekday
	OpenMinute  int          // room_working_hours.open_minute
	CloseMinute int          // room_working_hours.close_minute
}

// ExceptionHours overrides the default hours for an absolute time range.
// OutOfService marks a closure; otherwise the range is an extra opening.
type ExceptionHours struct {
	Start        time.Time // room_exception_hours.start_at
	End          time.Time // room_exception_hours.end_at
	OutOfService bool      // room_exception_hours.out_of_service
}
