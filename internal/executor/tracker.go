package executor

import (
	"sort"

	"github.com/netsweep/netsweep/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// DeviceProgress is the live state of one device within a running batch.
type DeviceProgress string

const (
	ProgressPending   DeviceProgress = "pending"
	ProgressRunning   DeviceProgress = "running"
	ProgressSucceeded DeviceProgress = "succeeded"
	ProgressFailed    DeviceProgress = "failed"
)

// Tracker records per-device execution state while a batch runs. Workers
// update it concurrently; observers may read it at any time. The tracker is
// advisory: results and statistics never derive from it.
type Tracker struct {
	states cmap.ConcurrentMap[string, DeviceProgress]
}

// NewTracker seeds a tracker with every device in the pending state.
func NewTracker(devices []models.Device) *Tracker {
	t := &Tracker{states: cmap.New[DeviceProgress]()}
	for _, device := range devices {
		t.states.Set(device.Key(), ProgressPending)
	}
	return t
}

// MarkRunning moves a device to the running state.
func (t *Tracker) MarkRunning(device models.Device) {
	t.states.Set(device.Key(), ProgressRunning)
}

// MarkCompleted records a device's final state.
func (t *Tracker) MarkCompleted(device models.Device, succeeded bool) {
	if succeeded {
		t.states.Set(device.Key(), ProgressSucceeded)
		return
	}
	t.states.Set(device.Key(), ProgressFailed)
}

// Running returns the number of devices currently executing.
func (t *Tracker) Running() int {
	count := 0
	for tuple := range t.states.IterBuffered() {
		if tuple.Val == ProgressRunning {
			count++
		}
	}
	return count
}

// FailedHosts returns the devices that finished with at least one failure,
// sorted for stable log output.
func (t *Tracker) FailedHosts() []string {
	hosts := make([]string, 0)
	for tuple := range t.states.IterBuffered() {
		if tuple.Val == ProgressFailed {
			hosts = append(hosts, tuple.Key)
		}
	}
	sort.Strings(hosts)
	return hosts
}

// States returns a point-in-time copy of every device's progress.
func (t *Tracker) States() map[string]DeviceProgress {
	return t.states.Items()
}
