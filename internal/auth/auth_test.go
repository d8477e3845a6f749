package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	token, err := MintToken("s3cret", "acct-1", time.Hour)
	if err != nil {
		t.Fatalf("MintToken = %v", err)
	}

	v := NewJWTVerifier("s3cret")
	got, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify = %v", err)
	}
	if got != "acct-1" {
		t.Fatalf("subject = %q, want acct-1", got)
	}
}

func TestJWTVerifier_Rejections(t *testing.T) {
	good, err := MintToken("s3cret", "acct-1", time.Hour)
	if err != nil {
		t.Fatalf("MintToken = %v", err)
	}
	expired, err := MintToken("s3cret", "acct-1", -time.Minute)
	if err != nil {
		t.Fatalf("MintToken = %v", err)
	}
	noSubject, err := MintToken("s3cret", "", time.Hour)
	if err != nil {
		t.Fatalf("MintToken = %v", err)
	}

	v := NewJWTVerifier("s3cret")
	tests := []struct {
		name       string
		verifier   *JWTVerifier
		credential string
	}{
		{"empty credential", v, ""},
		{"garbage credential", v, "not-a-token"},
		{"wrong secret", NewJWTVerifier("other"), good},
		{"expired token", v, expired},
		{"missing subject", v, noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verifier.Verify(context.Background(), tt.credential)
			if !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("Verify = %v, want ErrInvalidCredential", err)
			}
		})
	}
}

func TestJWTVerifier_NoSecretConfigured(t *testing.T) {
	v := NewJWTVerifier("")
	if _, err := v.Verify(context.Background(), "anything"); err == nil {
		t.Fatal("Verify with no secret succeeded")
	}
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(map[string]string{"tok-1": "acct-1"})

	got, err := v.Verify(context.Background(), "tok-1")
	if err != nil || got != "acct-1" {
		t.Fatalf("Verify = %q, %v", got, err)
	}
	if _, err := v.Verify(context.Background(), "tok-2"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Verify(unknown) = %v, want ErrInvalidCredential", err)
	}
}
