package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"watertank/internal/microservices/http-api/dto"
	"watertank/internal/simulation"
	"watertank/internal/tank"
)

const (
	defaultWait = 5 * time.Second
	maxWait     = 30 * time.Second
)

// SnapshotSource is the read side of the state channel plus its change signal
type SnapshotSource interface {
	Latest() tank.State
	Version() uint64
	Changed() <-chan struct{}
}

// MirrorLoader reads back what the snapshot mirror stored
type MirrorLoader interface {
	Load(ctx context.Context) (simulation.MirroredSnapshot, bool, error)
}

type TankHandler struct {
	state  SnapshotSource
	mirror MirrorLoader // nil when no mirror is configured
}

func NewTankHandler(state SnapshotSource, mirror MirrorLoader) *TankHandler {
	return &TankHandler{state: state, mirror: mirror}
}

func (h *TankHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Get)
	rg.GET("/mirror", h.GetMirror)
}

// Get returns the latest snapshot. With ?after=N it waits (up to ?wait, default 5s)
// for a snapshot newer than version N.
func (h *TankHandler) Get(c *gin.Context) {
	var q dto.WaitQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if q.After != nil {
		wait := q.Wait
		if wait <= 0 {
			wait = defaultWait
		}
		wait = min(wait, maxWait)
		if !h.waitForVersion(c.Request.Context(), *q.After, wait) && c.Request.Context().Err() != nil {
			return // client went away
		}
	}

	// version read first: the snapshot is at least that new
	version := h.state.Version()
	c.JSON(http.StatusOK, dto.TankFromState(h.state.Latest(), version))
}

// waitForVersion blocks until Version() > after; false on timeout or cancel
func (h *TankHandler) waitForVersion(ctx context.Context, after uint64, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		changed := h.state.Changed()
		if h.state.Version() > after {
			return true
		}
		select {
		case <-changed:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (h *TankHandler) GetMirror(c *gin.Context) {
	if h.mirror == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot mirror is disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	snap, ok, err := h.mirror.Load(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot mirrored yet"})
		return
	}
	c.JSON(http.StatusOK, dto.MirrorFromSnapshot(snap))
}
