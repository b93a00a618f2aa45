package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemInfo reports process and host diagnostics for the operator
// dashboard. Host probes that fail degrade to an error string rather than
// failing the request.
func (h *Handler) systemInfo(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"service":        "origin-gateway",
		"version":        h.version,
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.hub != nil {
		body["websocket_clients"] = h.hub.ClientCount()
	}

	if info, err := host.Info(); err == nil {
		body["host"] = map[string]interface{}{
			"hostname":       info.Hostname,
			"os":             info.OS,
			"platform":       info.Platform,
			"uptime_seconds": info.Uptime,
		}
	} else {
		body["host"] = map[string]interface{}{"error": err.Error()}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		body["memory"] = map[string]interface{}{
			"total":        vm.Total,
			"available":    vm.Available,
			"used_percent": vm.UsedPercent,
		}
	} else {
		body["memory"] = map[string]interface{}{"error": err.Error()}
	}

	writeJSON(w, http.StatusOK, body)
}
