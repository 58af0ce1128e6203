package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snsy/gas-station-monitor/internal/domain"
	"github.com/snsy/gas-station-monitor/internal/ingest"
)

// fakeDevices is an in-memory DeviceStore.
type fakeDevices struct {
	mu     sync.Mutex
	byIMEI map[string]*domain.Device
	nextID int64

	touchErr error
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{byIMEI: make(map[string]*domain.Device)}
}

func (f *fakeDevices) GetByIMEI(_ context.Context, imei string) (*domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byIMEI[imei]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", imei, domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDevices) Create(_ context.Context, d *domain.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byIMEI[d.IMEI]; ok {
		return fmt.Errorf("imei %s: %w", d.IMEI, domain.ErrConflict)
	}
	f.nextID++
	d.ID = f.nextID
	cp := *d
	f.byIMEI[d.IMEI] = &cp
	return nil
}

func (f *fakeDevices) CorrectRole(_ context.Context, imei string, role domain.DeviceRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.byIMEI[imei]
	d.Role = role
	d.StationID = nil
	return nil
}

func (f *fakeDevices) Touch(_ context.Context, imei string, at time.Time, vbatMV *float64) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.byIMEI[imei]
	d.LastSeen = &at
	if vbatMV != nil {
		d.BatteryMV = vbatMV
	}
	return nil
}

func (f *fakeDevices) ListByStationRole(_ context.Context, stationID int64, role domain.DeviceRole) ([]domain.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Device{}
	for _, d := range f.byIMEI {
		if d.StationID != nil && *d.StationID == stationID && d.Role == role {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDevices) add(imei string, role domain.DeviceRole, stationID *int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.byIMEI[imei] = &domain.Device{ID: f.nextID, IMEI: imei, Role: role, StationID: stationID}
}

type fakeLedger struct {
	mu   sync.Mutex
	recs []domain.AlarmRecord
}

func (f *fakeLedger) Insert(_ context.Context, rec *domain.AlarmRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = int64(len(f.recs) + 1)
	rec.CreatedAt = time.Now()
	f.recs = append(f.recs, *rec)
	return nil
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []domain.CommLog
}

func (f *fakeAudit) Insert(_ context.Context, l *domain.CommLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeAudit) byDirection(dir domain.Direction) []domain.CommLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.CommLog{}
	for _, l := range f.logs {
		if l.Direction == dir {
			out = append(out, l)
		}
	}
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][]byte
	failAll   bool
	failTopic map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][]byte), failTopic: make(map[string]bool)}
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failTopic[topic] {
		return errors.New("broker unreachable")
	}
	f.published[topic] = payload
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.published))
	for k := range f.published {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var testTopics = Topics{IndoorSub: "/AIR8000/SUB/", OutdoorSub: "/780EHV/SUB/"}

func newTestEngine(devices *fakeDevices) (*Engine, *fakeLedger, *fakeAudit, *fakePublisher) {
	ledger := &fakeLedger{}
	audit := &fakeAudit{}
	pub := newFakePublisher()
	reg := NewRegistrar(devices, zerolog.Nop())
	eng := NewEngine(reg, devices, ledger, audit, pub, testTopics, zerolog.Nop())
	return eng, ledger, audit, pub
}

func alarmEvent(imei string, flag bool) *ingest.Event {
	f := flag
	return &ingest.Event{
		IMEI:      imei,
		Role:      domain.RoleIndoor,
		Topic:     "/AIR8000/PUB/" + imei,
		Raw:       []byte(`{"bj":1}`),
		AlarmFlag: &f,
	}
}

func statusEvent(imei string, mv float64) *ingest.Event {
	v := mv
	return &ingest.Event{
		IMEI:      imei,
		Role:      domain.RoleOutdoor,
		Topic:     "/780EHV/PUB/" + imei,
		Raw:       []byte(`{"vbat":` + fmt.Sprint(mv) + `}`),
		BatteryMV: &v,
	}
}

func TestHandle_IndoorAlarmFansOutToAllOutdoor(t *testing.T) {
	devices := newFakeDevices()
	station := int64(1)
	devices.add("IND1", domain.RoleIndoor, &station)
	devices.add("OUT1", domain.RoleOutdoor, &station)
	devices.add("OUT2", domain.RoleOutdoor, &station)

	eng, ledger, audit, pub := newTestEngine(devices)

	require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", true)))

	assert.Equal(t, []string{"/780EHV/SUB/OUT1", "/780EHV/SUB/OUT2"}, pub.topics())

	require.Len(t, ledger.recs, 1)
	rec := ledger.recs[0]
	assert.Equal(t, station, rec.StationID)
	assert.Equal(t, "IND1", rec.OriginIMEI)
	assert.Equal(t, domain.KindAlarm, rec.Kind)
	assert.Equal(t, []string{"OUT1", "OUT2"}, rec.Targets)
	assert.Equal(t, domain.OutcomeSuccess, rec.Outcome)

	assert.Len(t, audit.byDirection(domain.DirectionReceive), 1)
	assert.Len(t, audit.byDirection(domain.DirectionForward), 2)
}

func TestHandle_CancelEventLedgeredAsCancel(t *testing.T) {
	devices := newFakeDevices()
	station := int64(1)
	devices.add("IND1", domain.RoleIndoor, &station)
	devices.add("OUT1", domain.RoleOutdoor, &station)

	eng, ledger, _, _ := newTestEngine(devices)

	require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", false)))
	require.Len(t, ledger.recs, 1)
	assert.Equal(t, domain.KindCancel, ledger.recs[0].Kind)
}

func TestHandle_UnboundDeviceNeverForwards(t *testing.T) {
	devices := newFakeDevices()
	devices.add("IND1", domain.RoleIndoor, nil)

	eng, ledger, audit, pub := newTestEngine(devices)

	require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", true)))

	assert.Empty(t, pub.topics())
	assert.Empty(t, ledger.recs)
	// The receive audit row still captures the orphaned message.
	assert.Len(t, audit.byDirection(domain.DirectionReceive), 1)
	assert.Empty(t, audit.byDirection(domain.DirectionForward))
}

func TestHandle_UnboundOutdoorStatusNoForwardNoLedger(t *testing.T) {
	devices := newFakeDevices()
	devices.add("OUT1", domain.RoleOutdoor, nil)

	eng, ledger, _, pub := newTestEngine(devices)

	require.NoError(t, eng.Handle(context.Background(), statusEvent("OUT1", 3100)))
	assert.Empty(t, pub.topics())
	assert.Empty(t, ledger.recs)

	// The status payload still updates the battery reading.
	d, err := devices.GetByIMEI(context.Background(), "OUT1")
	require.NoError(t, err)
	require.NotNil(t, d.BatteryMV)
	assert.InDelta(t, 3100, *d.BatteryMV, 0.001)
}

func TestHandle_OutdoorStatusForwardsToSingleIndoor(t *testing.T) {
	devices := newFakeDevices()
	station := int64(7)
	devices.add("IND1", domain.RoleIndoor, &station)
	devices.add("OUT1", domain.RoleOutdoor, &station)
	devices.add("OUT2", domain.RoleOutdoor, &station)

	eng, ledger, _, pub := newTestEngine(devices)

	require.NoError(t, eng.Handle(context.Background(), statusEvent("OUT1", 3400)))

	// Only the indoor peer, never the sibling outdoor units.
	assert.Equal(t, []string{"/AIR8000/SUB/IND1"}, pub.topics())
	// Status-class events never reach the ledger.
	assert.Empty(t, ledger.recs)
}

func TestHandle_BoundIndoorWithoutOutdoorLedgersNoTargets(t *testing.T) {
	devices := newFakeDevices()
	station := int64(3)
	devices.add("IND1", domain.RoleIndoor, &station)

	eng, ledger, _, pub := newTestEngine(devices)

	require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", true)))

	assert.Empty(t, pub.topics())
	require.Len(t, ledger.recs, 1)
	assert.Equal(t, domain.OutcomeNoTargets, ledger.recs[0].Outcome)
	assert.Empty(t, ledger.recs[0].Targets)
}

func TestHandle_PartialPublishFailureStillAttemptsAll(t *testing.T) {
	devices := newFakeDevices()
	station := int64(1)
	devices.add("IND1", domain.RoleIndoor, &station)
	devices.add("OUT1", domain.RoleOutdoor, &station)
	devices.add("OUT2", domain.RoleOutdoor, &station)

	eng, ledger, _, pub := newTestEngine(devices)
	pub.failTopic["/780EHV/SUB/OUT1"] = true

	require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", true)))

	// The surviving target was still reached.
	assert.Equal(t, []string{"/780EHV/SUB/OUT2"}, pub.topics())
	require.Len(t, ledger.recs, 1)
	assert.Equal(t, domain.OutcomePartialFailure, ledger.recs[0].Outcome)
	// The ledger records the attempted set, not the delivered set.
	assert.Equal(t, []string{"OUT1", "OUT2"}, ledger.recs[0].Targets)
}

func TestHandle_AllPublishesFailRecordedAsPartialFailure(t *testing.T) {
	devices := newFakeDevices()
	station := int64(1)
	devices.add("IND1", domain.RoleIndoor, &station)
	devices.add("OUT1", domain.RoleOutdoor, &station)

	eng, ledger, _, pub := newTestEngine(devices)
	pub.failAll = true

	require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", true)))
	require.Len(t, ledger.recs, 1)
	assert.Equal(t, domain.OutcomePartialFailure, ledger.recs[0].Outcome)
}

func TestHandle_RepeatedEventsAreNotDeduplicated(t *testing.T) {
	devices := newFakeDevices()
	station := int64(1)
	devices.add("IND1", domain.RoleIndoor, &station)
	devices.add("OUT1", domain.RoleOutdoor, &station)

	eng, ledger, _, _ := newTestEngine(devices)

	for i := 0; i < 3; i++ {
		require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", true)))
	}
	assert.Len(t, ledger.recs, 3)
}

func TestHandle_TouchFailureDoesNotBlockRelay(t *testing.T) {
	devices := newFakeDevices()
	station := int64(1)
	devices.add("IND1", domain.RoleIndoor, &station)
	devices.add("OUT1", domain.RoleOutdoor, &station)
	devices.touchErr = errors.New("storage hiccup")

	eng, ledger, _, pub := newTestEngine(devices)

	require.NoError(t, eng.Handle(context.Background(), alarmEvent("IND1", true)))
	assert.Equal(t, []string{"/780EHV/SUB/OUT1"}, pub.topics())
	assert.Len(t, ledger.recs, 1)
}
