package mailbox

import "errors"

var (
	// ErrAuthentication means the server rejected the credentials. It is
	// never retried.
	ErrAuthentication = errors.New("mailbox authentication failed")

	// ErrConnection covers dial, TLS, select and protocol failures.
	ErrConnection = errors.New("mailbox connection failed")
)
