package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeviceOnline(t *testing.T) {
	now := time.Now()
	threshold := 13 * time.Hour

	recent := now.Add(-time.Hour)
	stale := now.Add(-14 * time.Hour)

	assert.True(t, Device{LastSeen: &recent}.Online(now, threshold))
	assert.False(t, Device{LastSeen: &stale}.Online(now, threshold))

	// Never reported is offline, not an error.
	assert.False(t, Device{}.Online(now, threshold))
}

func TestDeviceLowBattery(t *testing.T) {
	low := 3100.0
	fine := 3600.0

	assert.True(t, Device{BatteryMV: &low}.LowBattery(3300))
	assert.False(t, Device{BatteryMV: &fine}.LowBattery(3300))
	assert.False(t, Device{}.LowBattery(3300))
}
