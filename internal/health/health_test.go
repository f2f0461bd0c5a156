package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_HealthyWithNoUpstreams(t *testing.T) {
	tracker := NewTracker()
	report := tracker.Snapshot(0)
	assert.Equal(t, StatusHealthy, report.Status)
}

func TestSnapshot_DegradedWhenOneUpstreamDown(t *testing.T) {
	tracker := NewTracker()
	now := time.Now()
	tracker.RecordSuccess("market", "closed", now)
	tracker.RecordFailure("dex", "open", errors.New("circuit open"), now)

	report := tracker.Snapshot(3)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, 3, report.SubscriberCount)
	assert.Equal(t, StatusDown, report.Upstreams["dex"].Status)
	assert.Equal(t, StatusHealthy, report.Upstreams["market"].Status)
}

func TestSnapshot_DownWhenAllUpstreamsDown(t *testing.T) {
	tracker := NewTracker()
	now := time.Now()
	tracker.RecordFailure("dex", "open", errors.New("circuit open"), now)
	tracker.RecordFailure("market", "open", errors.New("circuit open"), now)

	report := tracker.Snapshot(0)
	assert.Equal(t, StatusDown, report.Status)
}

func TestRecordTick_UpdatesLastTickAt(t *testing.T) {
	tracker := NewTracker()
	now := time.Now()
	tracker.RecordTick(now)

	report := tracker.Snapshot(0)
	assert.Equal(t, now, report.LastTickAt)
}
