package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

// ResolveOutcome tags which branch of the identity upsert fired, so callers
// and tests can assert on auto-registration and role reconciliation.
type ResolveOutcome string

const (
	ResolveCreated       ResolveOutcome = "created"
	ResolveUnchanged     ResolveOutcome = "unchanged"
	ResolveRoleCorrected ResolveOutcome = "role_corrected"
)

// DeviceStore is the slice of the directory store the relay pipeline needs.
// *repository.DeviceRepo satisfies it.
type DeviceStore interface {
	GetByIMEI(ctx context.Context, imei string) (*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	CorrectRole(ctx context.Context, imei string, role domain.DeviceRole) error
	Touch(ctx context.Context, imei string, at time.Time, vbatMV *float64) error
	ListByStationRole(ctx context.Context, stationID int64, role domain.DeviceRole) ([]domain.Device, error)
}

// Registrar resolves telemetry identity against the directory store:
// auto-registers unknown IMEIs, corrects recorded roles that contradict the
// reporting channel, and stamps last contact. Resolution is atomic per IMEI.
type Registrar struct {
	devices DeviceStore
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRegistrar(devices DeviceStore, log zerolog.Logger) *Registrar {
	return &Registrar{
		devices: devices,
		log:     log,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockIMEI serializes concurrent messages from the same device. The lock set
// only ever holds one entry per distinct IMEI; fleet size keeps it small.
func (r *Registrar) lockIMEI(imei string) func() {
	r.mu.Lock()
	l, ok := r.locks[imei]
	if !ok {
		l = &sync.Mutex{}
		r.locks[imei] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Resolve performs the identity upsert and presence touch for one message.
// The returned device reflects the post-resolution record.
func (r *Registrar) Resolve(ctx context.Context, imei string, role domain.DeviceRole, vbatMV *float64) (*domain.Device, ResolveOutcome, error) {
	unlock := r.lockIMEI(imei)
	defer unlock()

	now := r.now()

	d, err := r.devices.GetByIMEI(ctx, imei)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		d = &domain.Device{
			IMEI:     imei,
			Role:     role,
			Name:     "auto-registered " + imei,
			LastSeen: &now,
		}
		if role == domain.RoleOutdoor {
			d.BatteryMV = vbatMV
		}
		if err := r.devices.Create(ctx, d); err != nil {
			return nil, "", fmt.Errorf("auto-register %s: %w", imei, err)
		}
		r.log.Info().Str("imei", imei).Str("role", string(role)).Msg("device auto-registered")
		return d, ResolveCreated, nil
	case err != nil:
		return nil, "", fmt.Errorf("resolve %s: %w", imei, err)
	}

	outcome := ResolveUnchanged
	if d.Role != role {
		// The physical unit reports on the other role's channel now; the
		// recorded role follows the channel and the binding is dropped.
		if err := r.devices.CorrectRole(ctx, imei, role); err != nil {
			return nil, "", fmt.Errorf("correct role of %s: %w", imei, err)
		}
		r.log.Warn().Str("imei", imei).
			Str("recorded", string(d.Role)).Str("reported", string(role)).
			Msg("device role corrected, binding cleared")
		d.Role = role
		d.StationID = nil
		d.StationName = nil
		outcome = ResolveRoleCorrected
	}

	// A failed presence touch must not block relay computation.
	var vbat *float64
	if role == domain.RoleOutdoor {
		vbat = vbatMV
	}
	if err := r.devices.Touch(ctx, imei, now, vbat); err != nil {
		r.log.Error().Err(err).Str("imei", imei).Msg("presence touch failed")
	} else {
		d.LastSeen = &now
		if vbat != nil {
			d.BatteryMV = vbat
		}
	}
	return d, outcome, nil
}
