package composer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-mail-forwarder-go/internal/model"
	"reg-mail-forwarder-go/internal/rawmsg"
)

func parse(t *testing.T, raw string) *rawmsg.Message {
	t.Helper()
	msg, err := rawmsg.Parse([]byte(strings.ReplaceAll(raw, "\n", "\r\n")))
	require.NoError(t, err)
	return msg
}

const plainOriginal = `From: aki@dmvic.com
To: insurance@example.com
Subject: Certificate KDA123A
Content-Type: text/plain; charset=utf-8

Vehicle Registration # : KDA123A`

const mixedOriginal = `From: aki@dmvic.com
Subject: Certificate KDA123A
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

Vehicle Registration # : KDA123A
--inner
Content-Type: text/html; charset=utf-8

<p>Vehicle Registration # : KDA123A</p>
--inner--
--outer
Content-Type: application/pdf; name="cert.pdf"
Content-Disposition: attachment; filename="cert.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer--
`

func TestComposePlainWithBoilerplate(t *testing.T) {
	out, err := Compose(parse(t, plainOriginal), Options{
		From:        "insurance@example.com",
		To:          "x@y.com",
		Boilerplate: "Please find your certificate below.",
	})
	require.NoError(t, err)

	assert.Equal(t, "FWD: Certificate KDA123A", out.Subject)
	assert.Equal(t, []string{"x@y.com"}, out.Recipients())

	sent, err := rawmsg.Parse(out.Raw)
	require.NoError(t, err)
	assert.Equal(t, "FWD: Certificate KDA123A", sent.Subject())
	assert.Contains(t, sent.Header.Get("To"), "x@y.com")
	assert.Contains(t, sent.Header.Get("From"), "insurance@example.com")
	assert.Empty(t, sent.Header.Get("Cc"))

	require.Len(t, sent.Parts, 1)
	text, err := sent.Parts[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "Please find your certificate below.\n\nVehicle Registration # : KDA123A", text)
}

func TestComposeWithoutBoilerplateKeepsText(t *testing.T) {
	out, err := Compose(parse(t, plainOriginal), Options{From: "insurance@example.com", To: "x@y.com"})
	require.NoError(t, err)

	sent, err := rawmsg.Parse(out.Raw)
	require.NoError(t, err)
	require.Len(t, sent.Parts, 1)
	text, err := sent.Parts[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "Vehicle Registration # : KDA123A", text)
}

func TestComposeMixedCarriesAttachments(t *testing.T) {
	out, err := Compose(parse(t, mixedOriginal), Options{
		From:        "insurance@example.com",
		To:          "x@y.com",
		Cc:          "fleet@example.com",
		Boilerplate: "Notice\nSecond line & more",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x@y.com", "fleet@example.com"}, out.Recipients())

	sent, err := rawmsg.Parse(out.Raw)
	require.NoError(t, err)
	assert.Contains(t, sent.Header.Get("Cc"), "fleet@example.com")

	require.Len(t, sent.Parts, 3)

	plain, err := sent.Parts[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "Notice\nSecond line & more\n\nVehicle Registration # : KDA123A", plain)

	htmlBody, err := sent.Parts[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "<p>Notice<br>Second line &amp; more</p><p>Vehicle Registration # : KDA123A</p>", htmlBody)

	attachment := sent.Parts[2]
	assert.True(t, attachment.IsAttachment())
	assert.Equal(t, "cert.pdf", attachment.Filename)
	assert.Equal(t, "application/pdf", attachment.MediaType)
	assert.Equal(t, "%PDF-1.4\n", string(attachment.Body))
}

func textAttachmentOriginal(contentType, payload string) string {
	return "From: aki@dmvic.com\r\nSubject: Fleet list\r\n" +
		"Content-Type: multipart/mixed; boundary=\"b\"\r\n\r\n" +
		"--b\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nVehicle Registration # : KDA123A\r\n" +
		"--b\r\nContent-Type: " + contentType + "\r\n" +
		"Content-Disposition: attachment; filename=\"fleet.csv\"\r\n" +
		"Content-Transfer-Encoding: 8bit\r\n\r\n" + payload + "\r\n" +
		"--b--\r\n"
}

func TestComposeKeepsNonUTF8TextAttachment(t *testing.T) {
	payload := "REG,OWNER\r\nKDA123A,Caf\xe9 Ltd"

	for _, contentType := range []string{"text/csv", "text/csv; charset=x-bogus"} {
		original, err := rawmsg.Parse([]byte(textAttachmentOriginal(contentType, payload)))
		require.NoError(t, err, contentType)

		out, err := Compose(original, Options{From: "insurance@example.com", To: "x@y.com"})
		require.NoError(t, err, contentType)

		sent, err := rawmsg.Parse(out.Raw)
		require.NoError(t, err, contentType)
		require.Len(t, sent.Parts, 2, contentType)

		attachment := sent.Parts[1]
		assert.True(t, attachment.IsAttachment(), contentType)
		assert.Equal(t, "fleet.csv", attachment.Filename, contentType)
		assert.Equal(t, []byte(payload), attachment.Body, contentType)
		assert.Equal(t, original.Parts[1].Params["charset"], attachment.Params["charset"], contentType)
		assert.Equal(t, "base64", attachment.Header.Get("Content-Transfer-Encoding"), contentType)
	}
}

func TestComposeRelabelsConvertedTextAttachment(t *testing.T) {
	original, err := rawmsg.Parse([]byte(textAttachmentOriginal("text/csv; charset=iso-8859-1", "Caf\xe9")))
	require.NoError(t, err)
	require.True(t, original.Parts[1].CharsetDecoded)

	out, err := Compose(original, Options{From: "insurance@example.com", To: "x@y.com"})
	require.NoError(t, err)

	sent, err := rawmsg.Parse(out.Raw)
	require.NoError(t, err)
	require.Len(t, sent.Parts, 2)
	assert.Equal(t, "utf-8", sent.Parts[1].Params["charset"])
	assert.Equal(t, "Caf\u00e9", string(sent.Parts[1].Body))
}

func TestComposeAttachesEnrichmentDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims-procedure.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-enrichment"), 0o644))

	out, err := Compose(parse(t, plainOriginal), Options{
		From:           "insurance@example.com",
		To:             "x@y.com",
		AttachmentPath: path,
	})
	require.NoError(t, err)

	sent, err := rawmsg.Parse(out.Raw)
	require.NoError(t, err)
	require.Len(t, sent.Parts, 2)

	doc := sent.Parts[1]
	assert.True(t, doc.IsAttachment())
	assert.Equal(t, "claims-procedure.pdf", doc.Filename)
	assert.Equal(t, "%PDF-enrichment", string(doc.Body))
}

func TestComposeMissingAttachmentStillSends(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	out, err := Compose(parse(t, plainOriginal), Options{
		From:           "insurance@example.com",
		To:             "x@y.com",
		AttachmentPath: filepath.Join(t.TempDir(), "absent.pdf"),
	})
	require.NoError(t, err)

	sent, err := rawmsg.Parse(out.Raw)
	require.NoError(t, err)
	require.Len(t, sent.Parts, 1)
	assert.False(t, sent.Parts[0].IsAttachment())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	err, ok := entry.Data[logrus.ErrorKey].(error)
	require.True(t, ok)
	assert.True(t, errors.Is(err, model.ErrAttachmentMissing))
}

func TestComposeDecodeFailure(t *testing.T) {
	raw := "From: aki@dmvic.com\r\nSubject: broken\r\nContent-Type: text/plain\r\n\r\n\xff\xfe\r\n"
	original, err := rawmsg.Parse([]byte(raw))
	require.NoError(t, err)

	_, err = Compose(original, Options{From: "insurance@example.com", To: "x@y.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDecode))
}

func TestHTMLParagraph(t *testing.T) {
	assert.Equal(t, "<p>a<br>b<br>c</p>", HTMLParagraph("a\r\nb\nc"))
	assert.Equal(t, "<p>&lt;b&gt;</p>", HTMLParagraph("<b>"))
}
