// Package relay implements the station-scoped alarm relay: it resolves
// device identity, derives the peer target set from the current binding
// snapshot, fans the payload out to every peer, and appends the alarm
// ledger.
package relay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/snsy/gas-station-monitor/internal/domain"
	"github.com/snsy/gas-station-monitor/internal/ingest"
)

// Publisher sends one payload to one transport topic. Fire-and-forget: the
// relay never retries a failed publish.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type LedgerStore interface {
	Insert(ctx context.Context, rec *domain.AlarmRecord) error
}

type AuditStore interface {
	Insert(ctx context.Context, l *domain.CommLog) error
}

// Topics holds the outbound (device-subscribe) prefixes per role.
type Topics struct {
	IndoorSub  string
	OutdoorSub string
}

func (t Topics) For(role domain.DeviceRole, imei string) string {
	if role == domain.RoleIndoor {
		return t.IndoorSub + imei
	}
	return t.OutdoorSub + imei
}

type Engine struct {
	registrar *Registrar
	devices   DeviceStore
	ledger    LedgerStore
	audit     AuditStore
	pub       Publisher
	topics    Topics
	log       zerolog.Logger
}

func NewEngine(reg *Registrar, devices DeviceStore, ledger LedgerStore, audit AuditStore, pub Publisher, topics Topics, log zerolog.Logger) *Engine {
	return &Engine{
		registrar: reg,
		devices:   devices,
		ledger:    ledger,
		audit:     audit,
		pub:       pub,
		topics:    topics,
		log:       log,
	}
}

// Handle processes one decoded telemetry event end to end. An error return
// means this message failed; the ingestion loop logs it and keeps running.
func (e *Engine) Handle(ctx context.Context, ev *ingest.Event) error {
	d, outcome, err := e.registrar.Resolve(ctx, ev.IMEI, ev.Role, ev.BatteryMV)
	if err != nil {
		return err
	}
	e.log.Debug().Str("imei", ev.IMEI).Str("resolve", string(outcome)).Msg("telemetry accepted")

	if err := e.audit.Insert(ctx, &domain.CommLog{
		Direction:  domain.DirectionReceive,
		SourceRole: d.Role,
		SourceIMEI: d.IMEI,
		Topic:      ev.Topic,
		Payload:    string(ev.Raw),
		StationID:  d.StationID,
	}); err != nil {
		// Audit is best-effort on the hot path.
		e.log.Error().Err(err).Str("imei", d.IMEI).Msg("receive audit write failed")
	}

	// Unbound devices never trigger a forward nor a ledger row.
	if d.StationID == nil {
		e.log.Info().Str("imei", d.IMEI).Msg("device unbound, not forwarding")
		return nil
	}
	stationID := *d.StationID

	peerRole := domain.RoleOutdoor
	if d.Role == domain.RoleOutdoor {
		peerRole = domain.RoleIndoor
	}
	targets, err := e.devices.ListByStationRole(ctx, stationID, peerRole)
	if err != nil {
		return fmt.Errorf("target set for station %d: %w", stationID, err)
	}

	attempted, failed := e.fanOut(ctx, d, targets, ev.Raw)

	if ev.AlarmClass() && d.Role == domain.RoleIndoor {
		rec := &domain.AlarmRecord{
			StationID:  stationID,
			OriginIMEI: d.IMEI,
			Kind:       ev.Kind(),
			Targets:    attempted,
			Outcome:    forwardOutcome(len(attempted), len(failed)),
		}
		if err := e.ledger.Insert(ctx, rec); err != nil {
			return fmt.Errorf("alarm ledger write: %w", err)
		}
		e.log.Info().Int64("station_id", stationID).Str("kind", string(rec.Kind)).
			Strs("targets", attempted).Str("outcome", string(rec.Outcome)).
			Msg("alarm ledgered")
	}
	return nil
}

// fanOut publishes the payload to every target concurrently. Every member is
// attempted; one failed publish neither aborts nor reorders the rest, and
// nothing is retried. It returns the attempted IMEIs and the failed subset.
func (e *Engine) fanOut(ctx context.Context, origin *domain.Device, targets []domain.Device, payload []byte) (attempted, failed []string) {
	attempted = make([]string, 0, len(targets))
	for _, t := range targets {
		attempted = append(attempted, t.IMEI)
	}
	sort.Strings(attempted)
	if len(targets) == 0 {
		e.log.Info().Str("imei", origin.IMEI).Msg("no peers bound, nothing to forward")
		return attempted, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, t := range targets {
		wg.Add(1)
		go func(t domain.Device) {
			defer wg.Done()
			topic := e.topics.For(t.Role, t.IMEI)
			if err := e.pub.Publish(topic, payload); err != nil {
				e.log.Error().Err(err).Str("topic", topic).Msg("forward publish failed")
				mu.Lock()
				failed = append(failed, t.IMEI)
				mu.Unlock()
				return
			}
			role := t.Role
			imei := t.IMEI
			if err := e.audit.Insert(ctx, &domain.CommLog{
				Direction:  domain.DirectionForward,
				SourceRole: origin.Role,
				SourceIMEI: origin.IMEI,
				TargetRole: &role,
				TargetIMEI: &imei,
				Topic:      topic,
				Payload:    string(payload),
				StationID:  origin.StationID,
			}); err != nil {
				e.log.Error().Err(err).Str("imei", imei).Msg("forward audit write failed")
			}
		}(t)
	}
	wg.Wait()
	return attempted, failed
}

func forwardOutcome(attempted, failed int) domain.ForwardOutcome {
	switch {
	case attempted == 0:
		return domain.OutcomeNoTargets
	case failed > 0:
		return domain.OutcomePartialFailure
	default:
		return domain.OutcomeSuccess
	}
}
