//go:build statsview

package main

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const statsviewAddr = "localhost:18066"

// launchStatsview serves the runtime stats dashboard in the background.
func launchStatsview() {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(statsviewAddr))
		mgr := statsview.New()
		mgr.Start()
	}()
	slog.Info("Serving runtime stats", "url", "http://"+statsviewAddr+"/debug/statsview")
}
