package decoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestDecodePlainTextVerbatim(t *testing.T) {
	body := "Name: Jane Doe\r\nAmount: 25 <EUR>\r\nEmail: jane@example.org"
	raw := crlf(
		"From: Form <form@example.org>",
		"Subject: Welcome",
		"Message-ID: <m1@example.org>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	)

	msg, err := New(nil).Decode(7, raw)
	require.NoError(t, err)

	assert.Equal(t, uint32(7), msg.UID)
	assert.Equal(t, "m1@example.org", msg.MessageID)
	assert.Equal(t, "form@example.org", msg.Sender)
	assert.Equal(t, "Welcome", msg.Subject)
	assert.Equal(t, body, msg.Body)
}

func TestDecodeEncodedHeaders(t *testing.T) {
	raw := crlf(
		"From: =?utf-8?q?J=C3=BCrgen?= <juergen@example.org>",
		"Subject: =?utf-8?b?V2lsbGtvbW1lbiDDvGJlcmFsbA==?=",
		"Content-Type: text/plain",
		"",
		"hello",
	)

	msg, err := New(nil).Decode(1, raw)
	require.NoError(t, err)
	assert.Equal(t, "Willkommen überall", msg.Subject)
	assert.Equal(t, "juergen@example.org", msg.Sender)
}

func TestDecodeConcatenatesPartsInOrder(t *testing.T) {
	raw := crlf(
		"From: form@example.org",
		"Subject: Welcome",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Name: Jane Doe",
		"--outer",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Amount: 25</p>",
		"--outer",
		"Content-Type: image/png",
		"Content-Transfer-Encoding: base64",
		"",
		"iVBORw0KGgo=",
		"--outer--",
		"",
	)

	msg, err := New(nil).Decode(1, raw)
	require.NoError(t, err)
	assert.Equal(t, "Name: Jane DoeAmount: 25", msg.Body)
}

func TestDecodeNestedAlternative(t *testing.T) {
	raw := crlf(
		"From: form@example.org",
		"Subject: Welcome",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"one",
		"--inner",
		"Content-Type: text/plain",
		"",
		"two",
		"--inner--",
		"--outer",
		"Content-Type: text/plain",
		"",
		"three",
		"--outer--",
		"",
	)

	msg, err := New(nil).Decode(1, raw)
	require.NoError(t, err)
	assert.Equal(t, "onetwothree", msg.Body)
}

func TestDecodeQuotedPrintableAndCharset(t *testing.T) {
	raw := crlf(
		"From: form@example.org",
		"Subject: Welcome",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Name: J=FCrgen M=FCller",
	)

	msg, err := New(nil).Decode(1, raw)
	require.NoError(t, err)
	assert.Equal(t, "Name: Jürgen Müller", msg.Body)
}

func TestDecodeInvalidUTF8IsLossy(t *testing.T) {
	raw := append(crlf(
		"From: form@example.org",
		"Subject: Welcome",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Name: Jane ",
	), 0xff, 'D', 'o', 'e')

	msg, err := New(nil).Decode(1, raw)
	require.NoError(t, err)
	assert.Equal(t, "Name: Jane �Doe", msg.Body)
}

func TestDecodeUnknownCharsetDoesNotFail(t *testing.T) {
	raw := crlf(
		"From: form@example.org",
		"Subject: Welcome",
		"Content-Type: text/plain; charset=x-unheard-of",
		"",
		"Name: Jane Doe",
	)

	msg, err := New(nil).Decode(1, raw)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Jane Doe")
}

func TestDecodeMalformedHeader(t *testing.T) {
	raw := crlf(
		"this line is not a header",
		"",
		"body",
	)

	_, err := New(nil).Decode(1, raw)
	assert.ErrorIs(t, err, ErrDecode)
}
