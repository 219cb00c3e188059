package v2

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/camruler/camruler/internal/logger"
)

// MemoryInfo summarizes host memory.
type MemoryInfo struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// HealthCheck handles GET /api/v2/health
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	response := map[string]any{
		"status":          "healthy",
		"version":         c.build.GetVersion(),
		"uptime":          uptime.String(),
		"uptime_seconds":  uptime.Seconds(),
		"timestamp":       time.Now().Format(time.RFC3339),
		"video_source":    c.settings.Video.Source,
		"sessions":        c.sessions.Count(),
		"live_frame_seq":  c.mailbox.Seq(),
		"websocket_peers": c.hub.Len(),
	}

	if f, err := c.mailbox.Latest(); err == nil {
		response["live_frame_age_seconds"] = time.Since(f.Captured).Seconds()
	}

	reqCtx := ctx.Request().Context()
	if vm, err := mem.VirtualMemoryWithContext(reqCtx); err == nil {
		response["memory"] = MemoryInfo{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		c.log.Debug("memory stats unavailable", logger.Error(err))
	}
	if up, err := host.UptimeWithContext(reqCtx); err == nil {
		response["host_uptime_seconds"] = up
	}

	return ctx.JSON(http.StatusOK, response)
}
