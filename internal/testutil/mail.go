package testutil

import (
	"fmt"
	"strings"
)

// DonationRequest builds a plain text donation request as sent by the web
// form mailer.
func DonationRequest(messageID, subject, body string) string {
	lines := []string{
		"From: Donation Form <form@naturelife.example>",
		"To: naturelife@outlook.com",
		"Subject: " + subject,
		"Date: Wed, 11 May 2016 14:31:59 +0000",
		fmt.Sprintf("Message-ID: <%s>", messageID),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}
	return strings.Join(lines, "\r\n")
}
