// internal/device/health.go
package device

import (
	"github.com/tamzrod/ecdebug/internal/status"
)

// Observe folds the console pipeline state into the health tracker and
// reports whether health changed.
func (d *Device) Observe() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.console == nil:
		return d.tracker.Set(status.HealthDisabled)
	case d.suspended:
		return d.tracker.Set(status.HealthStale)
	}

	st := d.console.Stats()
	if st.Drains+st.Errors == 0 {
		return d.tracker.Set(status.HealthUnknown)
	}
	return d.tracker.Observe(st.LastError)
}

// Tick advances the seconds-in-error counter.
func (d *Device) Tick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracker.Tick()
}

// Health returns the current health code.
func (d *Device) Health() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracker.Health
}

// Status assembles a report. It queries the EC for port and uptime state.
func (d *Device) Status() status.Snapshot {
	s := status.Snapshot{
		Device:    d.id,
		Suspended: d.Suspended(),
		Features: status.Features{
			ConsoleLog: d.features.ConsoleReadV1,
			Uptime:     d.features.Uptime,
		},
		PanicInfoBytes:   len(d.panic),
		LastResumeResult: d.LastResumeResult(),
		SuspendTimeoutMs: d.SuspendTimeoutMs(),
	}

	if d.console != nil {
		st := d.console.Stats()
		s.Console = &status.Console{
			State:            st.State.String(),
			Buffered:         st.Buffered,
			Capacity:         st.Capacity,
			Appended:         st.Appended,
			Dropped:          st.Dropped,
			Drains:           st.Drains,
			Errors:           st.Errors,
			OverflowEpisodes: st.OverflowEpisodes,
		}
		if st.LastError != nil {
			s.LastError = st.LastError.Error()
		}
	}

	for _, p := range d.Ports() {
		s.Ports = append(s.Ports, status.Port{
			Index:    p.Index,
			State:    p.State,
			Enabled:  p.Enabled,
			Role:     p.Role,
			Polarity: p.Polarity,
		})
	}

	if info, err := d.UptimeInfo(); err == nil {
		s.Uptime = &status.Uptime{
			SinceBootMs:  info.TimeSinceECBootMs,
			APResets:     info.APResetsSinceECBoot,
			ECResetFlags: info.ECResetFlags,
		}
	}

	d.mu.Lock()
	d.tracker.Apply(&s)
	d.mu.Unlock()
	return s
}
