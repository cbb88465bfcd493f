package turn

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"
)

func TestCredentialsUsernameIsExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	username, _ := Credentials("secret", now)

	expiry, err := strconv.ParseInt(username, 10, 64)
	if err != nil {
		t.Fatalf("username %q is not a unix timestamp: %v", username, err)
	}
	if want := now.Unix() + int64(CredentialTTL/time.Second); expiry != want {
		t.Fatalf("expiry = %d, want %d", expiry, want)
	}
}

func TestCredentialsDeterministic(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	u1, c1 := Credentials("secret", now)
	u2, c2 := Credentials("secret", now)
	if u1 != u2 || c1 != c2 {
		t.Fatal("same secret and time must yield the same pair")
	}
	if _, err := base64.StdEncoding.DecodeString(c1); err != nil {
		t.Fatalf("credential is not base64: %v", err)
	}
}

func TestCredentialsDependOnSecret(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, c1 := Credentials("secret-a", now)
	_, c2 := Credentials("secret-b", now)
	if c1 == c2 {
		t.Fatal("different secrets must yield different credentials")
	}
}
