package rawmsg

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"reg-mail-forwarder-go/internal/model"
)

// Part is a leaf MIME part of a fetched message
type Part struct {
	Header      message.Header
	MediaType   string
	Params      map[string]string
	Disposition string
	Filename    string
	Body        []byte

	// CharsetDecoded is set when Body was converted from the declared
	// charset to UTF-8.
	CharsetDecoded bool

	// DecodeErr is set when a body candidate could not be decoded to UTF-8
	// text or any part could not be transfer-decoded. Attachment payloads
	// are kept as sent and never checked for UTF-8.
	DecodeErr error
}

// IsAttachment reports whether the part carries attachment disposition
func (p *Part) IsAttachment() bool {
	return p.Disposition == "attachment" || (p.Disposition != "" && p.Filename != "")
}

// IsText reports whether the part is a body candidate of the given media type
func (p *Part) IsText(mediaType string) bool {
	return !p.IsAttachment() && p.MediaType == mediaType
}

// Text returns the decoded text of the part
func (p *Part) Text() (string, error) {
	if p.DecodeErr != nil {
		return "", p.DecodeErr
	}
	return string(p.Body), nil
}

// Message is a parsed, read-only view of a fetched message
type Message struct {
	Header mail.Header
	Parts  []*Part
}

// Subject returns the decoded subject, falling back to the raw header value
func (m *Message) Subject() string {
	subject, err := m.Header.Subject()
	if err != nil {
		return m.Header.Get("Subject")
	}
	return subject
}

// Body selects the part the identifiers are read from: the first plain-text
// part in document order, otherwise the first HTML part.
func (m *Message) Body() (*Part, bool) {
	var html *Part
	for _, p := range m.Parts {
		if p.IsText("text/plain") {
			return p, true
		}
		if html == nil && p.IsText("text/html") {
			html = p
		}
	}
	return html, html != nil
}

// Parse reads a raw RFC 5322 message into its header and ordered leaf parts.
// Undecodable payloads do not fail the parse; they are recorded on the part.
func Parse(raw []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !isRecoverable(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	msg := &Message{
		Header: mail.Header{Header: entity.Header},
	}
	if err := collect(entity, err, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func collect(e *message.Entity, entityErr error, msg *Message) error {
	mediaType, params, ctErr := e.Header.ContentType()
	if ctErr != nil || mediaType == "" {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := e.MultipartReader()
		if mr == nil {
			return nil
		}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil && !isRecoverable(err) {
				return fmt.Errorf("failed to read part: %w", err)
			}
			if err := collect(p, err, msg); err != nil {
				return err
			}
		}
	}

	part := &Part{
		Header:    contentHeader(e.Header),
		MediaType: mediaType,
		Params:    params,
	}
	if disp, dparams, err := e.Header.ContentDisposition(); err == nil {
		part.Disposition = strings.ToLower(disp)
		part.Filename = dparams["filename"]
	}
	if part.Filename == "" {
		part.Filename = params["name"]
	}

	isText := strings.HasPrefix(mediaType, "text/")
	if isText && entityErr == nil {
		switch strings.ToLower(params["charset"]) {
		case "", "utf-8", "utf8", "us-ascii":
		default:
			part.CharsetDecoded = true
		}
	}

	body, err := io.ReadAll(e.Body)
	part.Body = body
	switch {
	case err != nil:
		part.DecodeErr = fmt.Errorf("%w: %s part: %v", model.ErrDecode, mediaType, err)
	case isText && !part.IsAttachment() && !utf8.Valid(body):
		// Either the declared charset was honoured and the result is still
		// invalid, or the charset was unknown and the raw bytes are not UTF-8.
		part.DecodeErr = fmt.Errorf("%w: %s part is not valid UTF-8", model.ErrDecode, mediaType)
		if entityErr != nil {
			part.DecodeErr = fmt.Errorf("%w: %s part: %v", model.ErrDecode, mediaType, entityErr)
		}
	}

	msg.Parts = append(msg.Parts, part)
	return nil
}

// contentHeader keeps only the Content-* fields of a part header.
func contentHeader(h message.Header) message.Header {
	var out textproto.Header
	fields := h.Fields()
	for fields.Next() {
		if strings.HasPrefix(strings.ToLower(fields.Key()), "content-") {
			out.Add(fields.Key(), fields.Value())
		}
	}
	return message.Header{Header: out}
}
