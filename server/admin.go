package server

import (
	"encoding/json"
	"net/http"
)

// HandleAdminConfig 出生区域配置的读取与热更新
// GET /admin/config   返回当前出生区域
// POST /admin/config  以 JSON 载荷更新部分字段，只影响之后接入的连接
func (a *App) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		MinX   *int `json:"minX,omitempty"`
		Width  *int `json:"width,omitempty"`
		MinY   *int `json:"minY,omitempty"`
		Height *int `json:"height,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		var cur SpawnBand
		if err := a.hub.Do(r.Context(), func() { cur = a.hub.spawn }); err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, cur)
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		var (
			next     SpawnBand
			applyErr error
		)
		err := a.hub.Do(r.Context(), func() {
			next = a.hub.spawn
			if body.MinX != nil {
				next.MinX = *body.MinX
			}
			if body.Width != nil {
				next.Width = *body.Width
			}
			if body.MinY != nil {
				next.MinY = *body.MinY
			}
			if body.Height != nil {
				next.Height = *body.Height
			}
			if applyErr = next.Validate(); applyErr == nil {
				a.hub.spawn = next
			}
		})
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		if applyErr != nil {
			http.Error(w, applyErr.Error(), http.StatusBadRequest)
			return
		}
		Log.Infow("spawn band updated", "minX", next.MinX, "width", next.Width, "minY", next.MinY, "height", next.Height)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "spawn": next})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出中继运行指标
// GET /metrics
func (a *App) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	m := a.hub.Metrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"online":  m.OnlineCount(),
		"metrics": m.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
