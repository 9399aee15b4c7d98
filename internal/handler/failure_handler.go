package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"reg-mail-forwarder-go/internal/model"
)

// GetFailures returns failure log entries with pagination. Only available
// with the database ledger; the file ledger's log is read on disk.
func (h *Handlers) GetFailures(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_available",
			Message: "Failure log is kept on disk by the file ledger",
			Code:    http.StatusNotFound,
		})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	offset := (page - 1) * limit

	scope := c.Query("scope")
	query := func() *gorm.DB {
		q := h.db.Model(&model.ForwardFailure{})
		if scope != "" {
			q = q.Where("scope = ?", scope)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to count failures",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	var failures []model.ForwardFailure
	if err := query().Order("created_at DESC").Offset(offset).Limit(limit).Find(&failures).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch failures",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	responses := make([]FailureResponse, 0, len(failures))
	for _, f := range failures {
		responses = append(responses, FailureResponse{
			ID:                 f.ID,
			Scope:              f.Scope,
			MessageUID:         f.MessageUID,
			RegistrationNumber: f.RegistrationNumber,
			Reason:             f.Reason,
			CreatedAt:          f.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"failures": responses,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}
