package scheduler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	schedulerSvc "reg-mail-forwarder-go/internal/service/scheduler"
)

// Start enables the daily forwarding run. Starting an active schedule is a conflict.
func Start(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Start(); err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, schedulerSvc.ErrAlreadyRunning) {
				code = http.StatusConflict
			}
			c.JSON(code, ErrorResponse{
				Error:   "scheduler_error",
				Message: err.Error(),
				Code:    code,
			})
			return
		}

		c.JSON(http.StatusOK, StateResponse{
			Status:   "running",
			Schedule: s.Schedule(),
			NextRun:  s.GetNextRun(),
		})
	}
}

// Stop disables the daily run and cancels a scheduled run in progress
func Stop(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Stop(); err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "scheduler_error",
				Message: err.Error(),
				Code:    http.StatusInternalServerError,
			})
			return
		}

		c.JSON(http.StatusOK, StateResponse{
			Status:   "stopped",
			Schedule: s.Schedule(),
		})
	}
}
