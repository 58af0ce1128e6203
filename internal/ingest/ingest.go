// Package ingest turns raw transport messages into telemetry events. It is
// a pure decode-and-dispatch stage: no retries, no acknowledgment, and a
// malformed payload drops the single message without stopping the stream.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/snsy/gas-station-monitor/internal/domain"
)

// Event is a decoded telemetry message. AlarmFlag is set iff the payload
// carried the alarm-state field (alarm-class); BatteryMV iff it carried a
// voltage reading (status-class). Raw is forwarded to peers verbatim.
type Event struct {
	IMEI      string
	Role      domain.DeviceRole
	Topic     string
	Raw       []byte
	AlarmFlag *bool
	BatteryMV *float64
}

func (e Event) AlarmClass() bool { return e.AlarmFlag != nil }

func (e Event) Kind() domain.EventKind {
	if e.AlarmFlag != nil && *e.AlarmFlag {
		return domain.KindAlarm
	}
	return domain.KindCancel
}

// Decoder maps inbound topics to device roles via the per-role publish
// prefixes and decodes the JSON payload.
type Decoder struct {
	IndoorPrefix  string
	OutdoorPrefix string
}

// Decode parses one (topic, payload) pair. It returns an error when the
// topic is outside both namespaces, carries an empty IMEI, or the payload
// is not a JSON object with well-formed fields.
func (d Decoder) Decode(topic string, payload []byte) (*Event, error) {
	var role domain.DeviceRole
	var imei string
	switch {
	case strings.HasPrefix(topic, d.IndoorPrefix):
		role = domain.RoleIndoor
		imei = topic[len(d.IndoorPrefix):]
	case strings.HasPrefix(topic, d.OutdoorPrefix):
		role = domain.RoleOutdoor
		imei = topic[len(d.OutdoorPrefix):]
	default:
		return nil, fmt.Errorf("topic %q outside known namespaces", topic)
	}
	if imei == "" || strings.Contains(imei, "/") {
		return nil, fmt.Errorf("topic %q has no device imei", topic)
	}

	// Devices send bj as either a number or a numeric string.
	var fields struct {
		BJ   *flexNumber `json:"bj"`
		Vbat *flexNumber `json:"vbat"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", imei, err)
	}

	ev := &Event{IMEI: imei, Role: role, Topic: topic, Raw: payload}
	if fields.BJ != nil {
		flag := fields.BJ.value == 1
		ev.AlarmFlag = &flag
	}
	if fields.Vbat != nil {
		mv := fields.Vbat.value
		ev.BatteryMV = &mv
	}
	return ev, nil
}

// flexNumber accepts 1, 1.0 and "1".
type flexNumber struct {
	value float64
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) >= 2 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		n.value = v
		return nil
	}
	return json.Unmarshal(b, &n.value)
}
