package mailbox

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
)

// Authenticator logs an IMAP client in
type Authenticator interface {
	Authenticate(c *client.Client) error
}

type loginAuthenticator struct {
	username string
	password string
}

// NewLoginAuthenticator authenticates with the IMAP LOGIN command
func NewLoginAuthenticator(username, password string) Authenticator {
	return &loginAuthenticator{username: username, password: password}
}

func (a *loginAuthenticator) Authenticate(c *client.Client) error {
	return c.Login(a.username, a.password)
}

type saslAuthenticator struct {
	client sasl.Client
}

// NewPlainAuthenticator authenticates with SASL PLAIN
func NewPlainAuthenticator(username, password string) Authenticator {
	return &saslAuthenticator{client: sasl.NewPlainClient("", username, password)}
}

func (a *saslAuthenticator) Authenticate(c *client.Client) error {
	return c.Authenticate(a.client)
}

func newAuthenticator(method, username, password string) (Authenticator, error) {
	switch strings.ToLower(method) {
	case "", "login":
		return NewLoginAuthenticator(username, password), nil
	case "plain":
		return NewPlainAuthenticator(username, password), nil
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", method)
	}
}
