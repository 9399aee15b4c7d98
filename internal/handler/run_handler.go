package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reg-mail-forwarder-go/internal/config"
	"reg-mail-forwarder-go/internal/model"
)

// TriggerRun starts a forwarding run from the operator form and reports its outcome
func (h *Handlers) TriggerRun(c *gin.Context) {
	req := config.RunRequest{
		IMAPServer:   c.PostForm("imap_server"),
		SMTPServer:   c.PostForm("smtp_server"),
		MailDate:     c.PostForm("mail_date"),
		StaffNumber:  c.PostForm("staff_number"),
		SenderEmail:  c.PostForm("sender_email"),
		Password:     c.PostForm("password"),
		SenderFilter: c.PostForm("sender_filter"),
		CCEmail:      c.PostForm("cc_email"),
		Boilerplate:  c.PostForm("boilerplate"),
	}

	if port := strings.TrimSpace(c.PostForm("smtp_port")); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: fmt.Sprintf("Invalid smtp_port %q", port),
				Code:    http.StatusBadRequest,
			})
			return
		}
		req.SMTPPort = p
	}

	var err error
	if req.RecipientTablePath, err = h.saveUpload(c, "excel_file"); err != nil {
		h.uploadError(c, "excel_file", err)
		return
	}
	if req.AttachmentPath, err = h.saveUpload(c, "attachment_file"); err != nil {
		h.uploadError(c, "attachment_file", err)
		return
	}

	summary, err := h.runner.Trigger(c.Request.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		logrus.WithError(err).Errorf("Forwarding run failed with status %d", status)
		c.JSON(status, ErrorResponse{
			Error:   code,
			Message: err.Error(),
			Code:    status,
			Summary: summary,
		})
		return
	}

	c.JSON(http.StatusOK, RunResponse{
		Status: "success",
		Message: fmt.Sprintf("Forwarded %d of %d messages (%d already forwarded, %d failed)",
			summary.Forwarded, summary.Candidates, summary.AlreadyForwarded, summary.Failed),
		Summary: summary,
	})
}

// GetDefaults returns the form defaults for today's run
func (h *Handlers) GetDefaults(c *gin.Context) {
	d := h.runner.Defaults(time.Now())
	c.JSON(http.StatusOK, DefaultsResponse{
		IMAPServer:   d.IMAPServer,
		SMTPServer:   d.SMTPServer,
		SMTPPort:     d.SMTPPort,
		MailDate:     d.MailDate,
		StaffNumber:  d.StaffNumber,
		SenderEmail:  d.SenderEmail,
		SenderFilter: d.SenderFilter,
		CCEmail:      d.CCEmail,
	})
}

// saveUpload stores the named form file under the upload dir. It returns an
// empty path when the field was not sent.
func (h *Handlers) saveUpload(c *gin.Context, field string) (string, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", err
	}
	return h.store(c, file)
}

func (h *Handlers) store(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(h.uploadDir, uuid.NewString()+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	logrus.Infof("Saved upload %s to %s", file.Filename, dst)
	return dst, nil
}

func (h *Handlers) uploadError(c *gin.Context, field string, err error) {
	logrus.WithError(err).Errorf("Failed to store %s upload", field)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_upload",
		Message: fmt.Sprintf("Failed to store %s: %v", field, err),
		Code:    http.StatusBadRequest,
	})
}

// statusFor maps a run error to an HTTP status and error code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrConfig):
		return http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, model.ErrAuth):
		return http.StatusUnauthorized, "authentication_failed"
	case errors.Is(err, model.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, model.ErrNetwork), errors.Is(err, model.ErrFetch):
		return http.StatusBadGateway, "mail_server_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "run_cancelled"
	default:
		return http.StatusInternalServerError, "run_failed"
	}
}
