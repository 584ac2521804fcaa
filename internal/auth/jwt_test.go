package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test-api",
		TTL:      time.Hour,
	}
}

func TestGenerateAndValidate(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, "operator")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "operator" {
		t.Errorf("expected subject operator, got %q", claims.Subject)
	}
	if claims.ExpiresAt == nil {
		t.Errorf("expected expiry to be set")
	}
}

func TestValidateRejects(t *testing.T) {
	cfg := testConfig()

	sign := func(secret string, claims jwt.MapClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "operator",
			"iss": "test",
			"aud": "test-api",
			"exp": time.Now().Add(time.Minute).Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: sign("other", valid())},
		{name: "expired", token: func() string {
			c := valid()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return sign(string(cfg.Secret), c)
		}()},
		{name: "wrong issuer", token: func() string {
			c := valid()
			c["iss"] = "someone-else"
			return sign(string(cfg.Secret), c)
		}()},
		{name: "wrong audience", token: func() string {
			c := valid()
			c["aud"] = "other-api"
			return sign(string(cfg.Secret), c)
		}()},
		{name: "no subject", token: func() string {
			c := valid()
			delete(c, "sub")
			return sign(string(cfg.Secret), c)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(cfg, tt.token); err == nil {
				t.Fatalf("expected %s token to be rejected", tt.name)
			}
		})
	}
}

func TestDisabledWithoutSecret(t *testing.T) {
	cfg := &JWTConfig{}

	if _, err := GenerateToken(cfg, "operator"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if _, err := ValidateToken(cfg, "x"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if (*JWTConfig)(nil).Enabled() {
		t.Fatalf("nil config must be disabled")
	}
}

func TestGenerateRequiresSubject(t *testing.T) {
	if _, err := GenerateToken(testConfig(), ""); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}
