package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

var dec = Decoder{
	IndoorPrefix:  "/AIR8000/PUB/",
	OutdoorPrefix: "/780EHV/PUB/",
}

func TestDecode_IndoorAlarm(t *testing.T) {
	ev, err := dec.Decode("/AIR8000/PUB/864793080106318", []byte(`{"bj":1}`))
	require.NoError(t, err)

	assert.Equal(t, "864793080106318", ev.IMEI)
	assert.Equal(t, domain.RoleIndoor, ev.Role)
	assert.True(t, ev.AlarmClass())
	assert.Equal(t, domain.KindAlarm, ev.Kind())
	assert.Nil(t, ev.BatteryMV)
}

func TestDecode_AlarmFlagAsString(t *testing.T) {
	ev, err := dec.Decode("/AIR8000/PUB/864793080106318", []byte(`{"bj":"1"}`))
	require.NoError(t, err)
	require.NotNil(t, ev.AlarmFlag)
	assert.True(t, *ev.AlarmFlag)

	ev, err = dec.Decode("/AIR8000/PUB/864793080106318", []byte(`{"bj":"0"}`))
	require.NoError(t, err)
	require.NotNil(t, ev.AlarmFlag)
	assert.False(t, *ev.AlarmFlag)
	assert.Equal(t, domain.KindCancel, ev.Kind())
}

func TestDecode_OutdoorStatus(t *testing.T) {
	ev, err := dec.Decode("/780EHV/PUB/866965083776697", []byte(`{"vbat":3250.5}`))
	require.NoError(t, err)

	assert.Equal(t, "866965083776697", ev.IMEI)
	assert.Equal(t, domain.RoleOutdoor, ev.Role)
	assert.False(t, ev.AlarmClass())
	require.NotNil(t, ev.BatteryMV)
	assert.InDelta(t, 3250.5, *ev.BatteryMV, 0.001)
}

func TestDecode_RawPreserved(t *testing.T) {
	raw := []byte(`{"bj":1,"extra":"kept"}`)
	ev, err := dec.Decode("/AIR8000/PUB/111", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, ev.Raw)
}

func TestDecode_UnknownNamespace(t *testing.T) {
	_, err := dec.Decode("/OTHER/PUB/111", []byte(`{}`))
	assert.Error(t, err)
}

func TestDecode_EmptyIMEI(t *testing.T) {
	_, err := dec.Decode("/AIR8000/PUB/", []byte(`{}`))
	assert.Error(t, err)
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := dec.Decode("/AIR8000/PUB/111", []byte(`not json`))
	assert.Error(t, err)

	_, err = dec.Decode("/AIR8000/PUB/111", []byte(`{"bj":"high"}`))
	assert.Error(t, err)
}

func TestDecode_NoKnownFields(t *testing.T) {
	ev, err := dec.Decode("/780EHV/PUB/222", []byte(`{"hb":1}`))
	require.NoError(t, err)
	assert.False(t, ev.AlarmClass())
	assert.Nil(t, ev.BatteryMV)
}
