//go:build !statsview

package main

// launchStatsview is a no-op without the statsview build tag.
func launchStatsview() {}
