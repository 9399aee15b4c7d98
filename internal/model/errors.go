package model

import "errors"

// Run failure classes. Wrap with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrConfig is a malformed run configuration or recipient table. Fatal.
	ErrConfig = errors.New("configuration error")
	// ErrAuth is a mailbox or delivery login failure. Fatal.
	ErrAuth = errors.New("authentication failed")
	// ErrNetwork is a connectivity failure talking to a mail server. Fatal for the run.
	ErrNetwork = errors.New("network error")
	// ErrFetch means a message could not be retrieved from the mailbox. Fatal for the run.
	ErrFetch = errors.New("fetch failed")
	// ErrDelivery is a failed send. Recorded per message.
	ErrDelivery = errors.New("delivery failed")
	// ErrDecode means a text part could not be decoded. Recorded per message.
	ErrDecode = errors.New("decode failed")
	// ErrAttachmentMissing means the enrichment document could not be read.
	ErrAttachmentMissing = errors.New("attachment missing")
	// ErrRunInProgress is returned when a run is triggered while another is active.
	ErrRunInProgress = errors.New("a forwarding run is already in progress")
)
