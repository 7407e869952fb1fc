package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watertank/internal/microservices/http-api/dto"
	"watertank/internal/microservices/http-api/handler"
	"watertank/internal/simulation"
	"watertank/internal/tank"
)

type stubMirror struct {
	snap simulation.MirroredSnapshot
	ok   bool
	err  error
}

func (m stubMirror) Load(context.Context) (simulation.MirroredSnapshot, bool, error) {
	return m.snap, m.ok, m.err
}

func newRouter(state handler.SnapshotSource, mirror handler.MirrorLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", handler.Health)
	handler.NewTankHandler(state, mirror).RegisterRoutes(r.Group("/api/tank"))
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(newRouter(simulation.NewStateChannel(tank.Default()), nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTankHandler_Get(t *testing.T) {
	state := simulation.NewStateChannel(tank.Default())
	rec := get(newRouter(state, nil), "/api/tank")
	require.Equal(t, http.StatusOK, rec.Code)

	var body dto.TankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(0), body.Version)
	assert.Equal(t, tank.Default(), body.State)
	assert.Equal(t, 0.5, body.Fill)
	assert.Equal(t, 2000.0, body.Capacity)
	assert.Equal(t, uint16(32768), body.Wire.TankLevel)
	assert.Equal(t, uint16(32768), body.Wire.TankInflow)
}

func TestTankHandler_LongPollWakesOnPublish(t *testing.T) {
	state := simulation.NewStateChannel(tank.Default())
	r := newRouter(state, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		next := tank.Default()
		next.Level = 1500
		state.Publish(next)
	}()

	start := time.Now()
	rec := get(r, "/api/tank?after=0&wait=5s")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, time.Since(start), 4*time.Second)

	var body dto.TankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.Version)
	assert.Equal(t, 1500.0, body.State.Level)
}

func TestTankHandler_LongPollTimesOut(t *testing.T) {
	state := simulation.NewStateChannel(tank.Default())
	rec := get(newRouter(state, nil), "/api/tank?after=0&wait=30ms")
	require.Equal(t, http.StatusOK, rec.Code)

	var body dto.TankResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(0), body.Version)
}

func TestTankHandler_BadQuery(t *testing.T) {
	r := newRouter(simulation.NewStateChannel(tank.Default()), nil)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/tank?after=minus").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/tank?after=1&wait=later").Code)
}

func TestTankHandler_Mirror(t *testing.T) {
	state := simulation.NewStateChannel(tank.Default())
	snap := simulation.MirroredSnapshot{State: tank.Default(), Tick: 9, UpdatedAt: time.Unix(100, 0).UTC()}

	tests := []struct {
		name   string
		mirror handler.MirrorLoader
		code   int
	}{
		{"disabled", nil, http.StatusNotFound},
		{"empty", stubMirror{}, http.StatusNotFound},
		{"redis error", stubMirror{err: errors.New("connection refused")}, http.StatusBadGateway},
		{"stored", stubMirror{snap: snap, ok: true}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newRouter(state, tt.mirror), "/api/tank/mirror")
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := get(newRouter(state, stubMirror{snap: snap, ok: true}), "/api/tank/mirror")
	var body dto.MirrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(9), body.Tick)
	assert.True(t, snap.UpdatedAt.Equal(body.UpdatedAt))
}
