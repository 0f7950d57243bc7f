package controller

import (
	"time"

	"github.com/google/uuid"
)

type uptimeTracker struct {
	start time.Time
	runID uuid.UUID
}

type uptimeInfo struct {
	Uptime time.Duration
	RunID  uuid.UUID
}

func newUptimeTracker() *uptimeTracker {
	return &uptimeTracker{start: time.Now(), runID: uuid.New()}
}

func (u *uptimeTracker) info() uptimeInfo {
	return uptimeInfo{Uptime: time.Since(u.start), RunID: u.runID}
}
