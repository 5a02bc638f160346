package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the body of GET /api/v1/metrics.
type SystemMetrics struct {
	Timestamp     time.Time        `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Studio        *StudioMetrics   `json:"studio,omitempty"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// StudioMetrics summarises the playlists of the served studio.
type StudioMetrics struct {
	ID        string `json:"id"`
	Playlists int    `json:"playlists"`

	// OnAir is the active playlist, if any; Rehearsal reports its mode.
	OnAir     string `json:"on_air,omitempty"`
	Rehearsal bool   `json:"rehearsal,omitempty"`

	Error string `json:"error,omitempty"`
}

type RuntimeMetrics struct {
	Goroutines int     `json:"goroutines"`
	HeapMB     float64 `json:"heap_mb"`
	NumGC      uint32  `json:"num_gc"`
}

type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines: runtime.NumGoroutine(),
			HeapMB:     float64(mem.HeapAlloc) / (1 << 20),
			NumGC:      mem.NumGC,
		},
	}

	if s.studioID != "" {
		m.Studio = s.studioMetrics(r)
	}
	if s.hub != nil {
		m.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		m.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			WaitCount:       st.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, m)
}

// studioMetrics reports a lookup failure in the body rather than failing
// the whole request.
func (s *Server) studioMetrics(r *http.Request) *StudioMetrics {
	sm := &StudioMetrics{ID: s.studioID}
	pls, err := s.jobs.StudioPlaylists(r.Context(), s.studioID)
	if err != nil {
		sm.Error = err.Error()
		return sm
	}
	sm.Playlists = len(pls)
	for _, pl := range pls {
		if pl.ActivationID != "" {
			sm.OnAir = pl.ID
			sm.Rehearsal = pl.Rehearsal
			break
		}
	}
	return sm
}
