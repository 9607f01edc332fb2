package auth

import (
	"context"
	"fmt"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// FirebaseVerifier adapts a Firebase Auth client to the VerifyFunc
// contract. The Firebase UID becomes the principal's subject.
func FirebaseVerifier(client *firebaseauth.Client) VerifyFunc {
	if client == nil {
		panic("auth: firebase client is required")
	}

	return func(ctx context.Context, raw string) (Claims, error) {
		token, err := client.VerifyIDToken(ctx, raw)
		if err != nil {
			return Claims{}, fmt.Errorf("verify firebase token: %w", err)
		}

		email, _ := token.Claims["email"].(string)
		return Claims{Subject: token.UID, Email: email}, nil
	}
}
