package scheduler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reg-mail-forwarder-go/internal/model"
	schedulerSvc "reg-mail-forwarder-go/internal/service/scheduler"
)

// RunOnce runs today's forwarding once with the configured defaults
func RunOnce(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := s.RunOnce(c.Request.Context())
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, model.ErrRunInProgress) {
				code = http.StatusConflict
			}
			c.JSON(code, ErrorResponse{
				Error:   "scheduler_error",
				Message: err.Error(),
				Code:    code,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Forwarding run completed successfully",
			"summary": summary,
		})
	}
}
