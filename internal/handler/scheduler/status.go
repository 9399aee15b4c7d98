package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	schedulerSvc "reg-mail-forwarder-go/internal/service/scheduler"
)

// Status returns the current scheduler status
func Status(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := "stopped"
		if s.IsRunning() {
			state = "running"
		}

		c.JSON(http.StatusOK, StatusResponse{
			Status:   state,
			Schedule: s.Schedule(),
			NextRun:  s.GetNextRun(),
			LastRun:  s.GetLastRun(),
		})
	}
}
