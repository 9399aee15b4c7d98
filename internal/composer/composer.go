package composer

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reg-mail-forwarder-go/internal/model"
	"reg-mail-forwarder-go/internal/rawmsg"
)

// SubjectPrefix is prepended to the original subject of every forward.
const SubjectPrefix = "FWD: "

// Options controls the envelope and enrichment of a forwarded message
type Options struct {
	From           string
	To             string
	Cc             string
	Boilerplate    string
	AttachmentPath string
}

// Compose builds the forward of original. Attachments are carried over,
// text and HTML bodies optionally get the boilerplate notice prepended, and
// the enrichment document is attached when it can be read.
func Compose(original *rawmsg.Message, opts Options) (*model.OutboundMessage, error) {
	subject := SubjectPrefix + original.Subject()

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: opts.From}})
	h.SetAddressList("To", []*mail.Address{{Address: opts.To}})
	if opts.Cc != "" {
		h.SetAddressList("Cc", []*mail.Address{{Address: opts.Cc}})
	}
	h.SetSubject(subject)
	h.Set("Message-Id", messageID(opts.From))
	h.Set("MIME-Version", "1.0")
	h.SetContentType("multipart/mixed", nil)

	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	for _, p := range original.Parts {
		switch {
		case p.IsAttachment():
			if p.DecodeErr != nil {
				return nil, fmt.Errorf("attachment %q: %w", p.Filename, p.DecodeErr)
			}
			if err := writePart(w, attachmentHeader(p), p.Body); err != nil {
				return nil, err
			}
		case p.MediaType == "text/plain":
			text, err := p.Text()
			if err != nil {
				return nil, err
			}
			if opts.Boilerplate != "" {
				text = opts.Boilerplate + "\n\n" + text
			}
			if err := writePart(w, textHeader("text/plain"), []byte(text)); err != nil {
				return nil, err
			}
		case p.MediaType == "text/html":
			text, err := p.Text()
			if err != nil {
				return nil, err
			}
			if opts.Boilerplate != "" {
				text = HTMLParagraph(opts.Boilerplate) + text
			}
			if err := writePart(w, textHeader("text/html"), []byte(text)); err != nil {
				return nil, err
			}
		default:
			logrus.Debugf("Dropping inline %s part from forward", p.MediaType)
		}
	}

	if opts.AttachmentPath != "" {
		if err := attachFile(w, opts.AttachmentPath); err != nil {
			logrus.WithError(err).Warnf("Sending forward without enrichment attachment %s", opts.AttachmentPath)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return &model.OutboundMessage{
		From:    opts.From,
		To:      opts.To,
		Cc:      opts.Cc,
		Subject: subject,
		Raw:     buf.Bytes(),
	}, nil
}

// HTMLParagraph renders plain boilerplate text as an HTML paragraph,
// turning line breaks into <br>.
func HTMLParagraph(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>"
}

func attachFile(w *message.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrAttachmentMissing, err)
	}

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "application/octet-stream"
	}

	var h message.Header
	h.SetContentType(mediaType, map[string]string{"name": name})
	h.SetContentDisposition("attachment", map[string]string{"filename": name})
	h.Set("Content-Transfer-Encoding", "base64")
	return writePart(w, h, data)
}

func textHeader(mediaType string) message.Header {
	var h message.Header
	h.SetContentType(mediaType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "base64")
	return h
}

// attachmentHeader copies the part header. Text attachments whose charset was
// converted to UTF-8 on read are relabelled; payloads without a safe transfer
// encoding are re-encoded as base64.
func attachmentHeader(p *rawmsg.Part) message.Header {
	var out textproto.Header
	fields := p.Header.Fields()
	for fields.Next() {
		out.Add(fields.Key(), fields.Value())
	}
	h := message.Header{Header: out}

	if p.CharsetDecoded {
		params := make(map[string]string, len(p.Params)+1)
		for k, v := range p.Params {
			params[k] = v
		}
		params["charset"] = "utf-8"
		h.SetContentType(p.MediaType, params)
	}

	switch strings.ToLower(h.Get("Content-Transfer-Encoding")) {
	case "base64", "quoted-printable":
	default:
		h.Set("Content-Transfer-Encoding", "base64")
	}
	return h
}

func writePart(w *message.Writer, h message.Header, body []byte) error {
	pw, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create part: %w", err)
	}
	if _, err := io.Copy(pw, bytes.NewReader(body)); err != nil {
		pw.Close()
		return fmt.Errorf("failed to write part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close part: %w", err)
	}
	return nil
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
