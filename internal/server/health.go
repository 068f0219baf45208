package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"
)

// healthHandler reports service state and host load.
func (s *Server) healthHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	serverHealth := map[string]string{}
	var mu sync.Mutex
	set := func(key, value string) {
		mu.Lock()
		serverHealth[key] = value
		mu.Unlock()
	}

	// Each check is best effort; a failing one only leaves its key out.
	g, grpCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if pct, err := cpu.PercentWithContext(grpCtx, 0, false); err == nil && len(pct) > 0 {
			set("cpu_load", fmt.Sprintf("%.1f%%", pct[0]))
		}
		return nil
	})
	g.Go(func() error {
		if v, err := mem.VirtualMemoryWithContext(grpCtx); err == nil {
			set("ram_usage", fmt.Sprintf("%.1f%%", v.UsedPercent))
		}
		return nil
	})
	g.Go(func() error {
		if d, err := disk.UsageWithContext(grpCtx, "/"); err == nil {
			set("disk_usage", fmt.Sprintf("%.1f%%", d.UsedPercent))
		}
		return nil
	})
	g.Go(func() error {
		if h, err := host.InfoWithContext(grpCtx); err == nil {
			set("host_os", fmt.Sprintf("%s %s", h.Platform, h.PlatformVersion))
		}
		return nil
	})

	_ = g.Wait()

	status := "up"
	if !s.gen.Configured() {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":               status,
		"ai_configured":        s.gen.Configured(),
		"active_conversations": s.conversations.Len(),
		"live_sockets":         s.hub.Len(),
		"uptime":               time.Since(s.startedAt).Round(time.Second).String(),
		"goroutines":           runtime.NumGoroutine(),
		"server_health":        serverHealth,
	})
}
