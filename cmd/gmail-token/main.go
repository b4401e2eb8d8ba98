// Command gmail-token obtains the refresh token used by the gmail notifier
// transport.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

func main() {
	clientID := os.Getenv("GMAIL_CLIENT_ID")
	clientSecret := os.Getenv("GMAIL_CLIENT_SECRET")
	redirectURL := os.Getenv("GMAIL_REDIRECT_URL")

	if clientID == "" || clientSecret == "" {
		logrus.Fatal("Please set GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET environment variables")
	}
	if redirectURL == "" {
		redirectURL = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Go to the following link in your browser: %v\n", authURL)
	fmt.Println("\nAfter authorization, copy the 'code' parameter from the redirect URL.")

	var authCode string
	fmt.Print("\nEnter the authorization code: ")
	if _, err := fmt.Scan(&authCode); err != nil {
		logrus.Fatalf("Unable to read authorization code: %v", err)
	}

	tok, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		logrus.Fatalf("Unable to retrieve token from web: %v", err)
	}
	if tok.RefreshToken == "" {
		logrus.Fatal("No refresh token returned, revoke the app's access and try again")
	}

	fmt.Println("\nAdd the refresh token to your environment variables:")
	fmt.Printf("export GMAIL_REFRESH_TOKEN=\"%s\"\n", tok.RefreshToken)
}
