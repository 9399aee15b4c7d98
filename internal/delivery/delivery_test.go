package delivery

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-mail-forwarder-go/internal/model"
)

type received struct {
	from string
	to   []string
	data string
}

type backend struct {
	mu       sync.Mutex
	messages []received
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend *backend
	authed  bool
	current received
}

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != "ISDesk" || password != "secret" {
			return &smtp.SMTPError{Code: 535, EnhancedCode: smtp.EnhancedCode{5, 7, 8}, Message: "Invalid credentials"}
		}
		s.authed = true
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if !s.authed {
		return smtp.ErrAuthRequired
	}
	s.current.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *session) Reset() {
	s.current = received{}
}

func (s *session) Logout() error {
	return nil
}

func startServer(t *testing.T) (*backend, string, int) {
	t.Helper()

	be := &backend{}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return be, host, p
}

func runConfig(host string, port int, password string) *model.RunConfig {
	return &model.RunConfig{
		SMTPServer:      host,
		SMTPPort:        port,
		StaffCredential: "ISDesk",
		Password:        password,
	}
}

func testMessage() *model.OutboundMessage {
	return &model.OutboundMessage{
		From:    "insurance@example.com",
		To:      "x@y.com",
		Cc:      "fleet@example.com",
		Subject: "FWD: test",
		Raw:     []byte("Subject: FWD: test\r\n\r\nbody\r\n"),
	}
}

func TestSendDeliversToAllRecipients(t *testing.T) {
	be, host, port := startServer(t)
	c := &Client{}

	err := c.Send(context.Background(), runConfig(host, port, "secret"), testMessage())
	require.NoError(t, err)

	be.mu.Lock()
	defer be.mu.Unlock()
	require.Len(t, be.messages, 1)
	assert.Equal(t, "insurance@example.com", be.messages[0].from)
	assert.Equal(t, []string{"x@y.com", "fleet@example.com"}, be.messages[0].to)
	assert.Contains(t, be.messages[0].data, "body")
}

func TestSendRejectedCredentials(t *testing.T) {
	_, host, port := startServer(t)
	c := &Client{}

	err := c.Send(context.Background(), runConfig(host, port, "wrong"), testMessage())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAuth))
}

func TestSendUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(l.Addr().String())
	l.Close()
	p, _ := strconv.Atoi(port)

	err = (&Client{}).Send(context.Background(), runConfig(host, p, "secret"), testMessage())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDelivery))
}

func TestSendCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Client{}).Send(ctx, runConfig("127.0.0.1", 25, "secret"), testMessage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientUsesStartTLS(t *testing.T) {
	c := NewClient(0, false)
	assert.True(t, c.StartTLS)
}
