package scheduler

import "time"

// StatusResponse describes the scheduler state
type StatusResponse struct {
	Status   string    `json:"status"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	LastRun  time.Time `json:"last_run"`
}

// StateResponse is returned after the schedule is started or stopped
type StateResponse struct {
	Status   string    `json:"status"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
