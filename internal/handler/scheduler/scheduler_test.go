package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-mail-forwarder-go/internal/config"
	"reg-mail-forwarder-go/internal/model"
	schedulerSvc "reg-mail-forwarder-go/internal/service/scheduler"
)

type busyTrigger struct{}

func (busyTrigger) Trigger(context.Context, config.RunRequest) (*model.RunSummary, error) {
	return nil, model.ErrRunInProgress
}

func setupRouter(cron string) (*gin.Engine, *schedulerSvc.Scheduler) {
	gin.SetMode(gin.TestMode)
	s := schedulerSvc.New(&config.SchedulerConfig{Cron: cron}, busyTrigger{})

	r := gin.New()
	r.POST("/start", Start(s))
	r.POST("/stop", Stop(s))
	r.POST("/run-once", RunOnce(s))
	r.GET("/status", Status(s))
	return r, s
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestStartStop(t *testing.T) {
	r, s := setupRouter("0 0 18 * * *")
	defer s.Stop()

	w := do(r, http.MethodPost, "/start")
	require.Equal(t, http.StatusOK, w.Code)
	var started StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, "running", started.Status)
	assert.Equal(t, "0 0 18 * * *", started.Schedule)
	assert.False(t, started.NextRun.IsZero())

	w = do(r, http.MethodPost, "/start")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/stop")
	require.Equal(t, http.StatusOK, w.Code)
	var stopped StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stopped))
	assert.Equal(t, "stopped", stopped.Status)

	w = do(r, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "stopped", status.Status)
}

func TestStartInvalidSchedule(t *testing.T) {
	r, _ := setupRouter("whenever")

	w := do(r, http.MethodPost, "/start")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunOnceBusy(t *testing.T) {
	r, _ := setupRouter("0 0 18 * * *")

	w := do(r, http.MethodPost, "/run-once")
	assert.Equal(t, http.StatusConflict, w.Code)
}
