package domain

import "time"

type DeviceRole string

const (
	RoleIndoor  DeviceRole = "indoor"
	RoleOutdoor DeviceRole = "outdoor"
)

func (r DeviceRole) Valid() bool { return r == RoleIndoor || r == RoleOutdoor }

type EventKind string

const (
	KindAlarm  EventKind = "alarm"
	KindCancel EventKind = "cancel"
)

type ForwardOutcome string

const (
	OutcomeSuccess        ForwardOutcome = "success"
	OutcomePartialFailure ForwardOutcome = "partial_failure"
	OutcomeNoTargets      ForwardOutcome = "no_targets"
)

type Direction string

const (
	DirectionReceive Direction = "receive"
	DirectionForward Direction = "forward"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

type Station struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Address   string    `db:"address" json:"address"`
	Contact   string    `db:"contact" json:"contact"`
	Phone     string    `db:"phone" json:"phone"`
	Status    int16     `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Device struct {
	ID          int64      `db:"id" json:"id"`
	IMEI        string     `db:"imei" json:"imei"`
	Role        DeviceRole `db:"role" json:"role"`
	Name        string     `db:"name" json:"name"`
	StationID   *int64     `db:"station_id" json:"station_id"`
	StationName *string    `db:"station_name" json:"station_name,omitempty"`
	LastSeen    *time.Time `db:"last_seen" json:"last_seen"`
	BatteryMV   *float64   `db:"vbat_mv" json:"vbat_mv"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Online derives presence from last-contact recency. It is never persisted;
// a device that has never reported is offline, not an error.
func (d Device) Online(now time.Time, threshold time.Duration) bool {
	return d.LastSeen != nil && now.Sub(*d.LastSeen) < threshold
}

// LowBattery reports whether the last known voltage is below cutoffMV.
// Only meaningful for outdoor units; indoor units never report vbat.
func (d Device) LowBattery(cutoffMV float64) bool {
	return d.BatteryMV != nil && *d.BatteryMV < cutoffMV
}

// AlarmRecord is one row of the append-only alarm ledger: an alarm or cancel
// event from a bound indoor device, with the outdoor IMEIs the relay
// attempted and how the fan-out went.
type AlarmRecord struct {
	ID          int64          `db:"id" json:"id"`
	StationID   int64          `db:"station_id" json:"station_id"`
	StationName *string        `db:"station_name" json:"station_name,omitempty"`
	OriginIMEI  string         `db:"origin_imei" json:"origin_imei"`
	Kind        EventKind      `db:"kind" json:"kind"`
	Targets     []string       `db:"-" json:"targets"`
	Outcome     ForwardOutcome `db:"outcome" json:"outcome"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// CommLog is the raw communication audit trail: one row per accepted inbound
// message and one per forward attempt that reached the broker.
type CommLog struct {
	ID         int64       `db:"id" json:"id"`
	Direction  Direction   `db:"direction" json:"direction"`
	SourceRole DeviceRole  `db:"source_role" json:"source_role"`
	SourceIMEI string      `db:"source_imei" json:"source_imei"`
	TargetRole *DeviceRole `db:"target_role" json:"target_role"`
	TargetIMEI *string     `db:"target_imei" json:"target_imei"`
	Topic      string      `db:"topic" json:"topic"`
	Payload    string      `db:"payload" json:"payload"`
	StationID  *int64      `db:"station_id" json:"station_id"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	Status       int16     `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
