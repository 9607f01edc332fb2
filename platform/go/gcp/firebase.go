// Package gcp wires Google Cloud identity services. Firebase Auth is an
// optional token-verification backend selected through configuration;
// HS256 verification stays the default for self-hosted deployments.
package gcp

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewApp creates a Firebase App instance. An empty credentialsPath falls
// back to application-default credentials.
func NewApp(ctx context.Context, credentialsPath string) (*firebase.App, error) {
	if credentialsPath != "" {
		return firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	}
	return firebase.NewApp(ctx, nil)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth
// client for bearer-token verification.
func InitFirebaseAuth(ctx context.Context, credentialsPath string) (*firebaseauth.Client, error) {
	app, err := NewApp(ctx, credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return client, nil
}
