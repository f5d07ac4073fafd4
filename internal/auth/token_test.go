package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/formahub/auth-api/internal/user"
)

const testSigningSecret = "test-signing-secret-32-bytes-ok!"

func TestNewJWTServiceEmptySecret(t *testing.T) {
	if _, err := NewJWTService("", time.Hour); err == nil {
		t.Fatal("expected an error for an empty signing secret")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	svc, err := NewJWTService(testSigningSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}

	userID := uuid.New()
	token, err := svc.CreateToken(userID, user.RoleInstructor)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != userID.String() {
		t.Errorf("expected subject %s, got %s", userID, claims.UserID)
	}
	if claims.Role != user.RoleInstructor {
		t.Errorf("expected role %s, got %s", user.RoleInstructor, claims.Role)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Error("expected expiry after issuance")
	}
}

func TestJWTExpired(t *testing.T) {
	svc, err := NewJWTService(testSigningSecret, -time.Minute)
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}

	token, err := svc.CreateToken(uuid.New(), user.RoleLearner)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	_, err = svc.VerifyToken(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTTampered(t *testing.T) {
	svc, err := NewJWTService(testSigningSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}

	token, err := svc.CreateToken(uuid.New(), user.RoleLearner)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	// Flip a character in the signature segment
	tampered := token[:len(token)-2] + "xx"
	if _, err := svc.VerifyToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}

	if _, err := svc.VerifyToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	issuer, err := NewJWTService(testSigningSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}
	verifier, err := NewJWTService("a-different-secret-entirely-here", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}

	token, err := issuer.CreateToken(uuid.New(), user.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if _, err := verifier.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestNewPasetoServiceKeyLength(t *testing.T) {
	if _, err := NewPasetoService([]byte("too-short"), time.Hour); err == nil {
		t.Fatal("expected an error for a short symmetric key")
	}
}

func TestPasetoRoundTrip(t *testing.T) {
	svc, err := NewPasetoService([]byte(testSigningSecret), time.Hour)
	if err != nil {
		t.Fatalf("NewPasetoService failed: %v", err)
	}

	userID := uuid.New()
	token, err := svc.CreateToken(userID, user.RoleLearner)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if !strings.HasPrefix(token, "v4.local.") {
		t.Errorf("expected a v4.local token, got %q", token)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != userID.String() {
		t.Errorf("expected subject %s, got %s", userID, claims.UserID)
	}
	if claims.Role != user.RoleLearner {
		t.Errorf("expected role %s, got %s", user.RoleLearner, claims.Role)
	}
}

func TestPasetoExpired(t *testing.T) {
	svc, err := NewPasetoService([]byte(testSigningSecret), -time.Minute)
	if err != nil {
		t.Fatalf("NewPasetoService failed: %v", err)
	}

	token, err := svc.CreateToken(uuid.New(), user.RoleLearner)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestPasetoRejectsGarbage(t *testing.T) {
	svc, err := NewPasetoService([]byte(testSigningSecret), time.Hour)
	if err != nil {
		t.Fatalf("NewPasetoService failed: %v", err)
	}

	if _, err := svc.VerifyToken("v4.local.garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
