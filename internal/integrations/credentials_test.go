// In file: internal/integrations/credentials_test.go
package integrations

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewStaticProviderRejectsEmptyToken(t *testing.T) {
	if _, err := NewStaticProvider(""); err == nil {
		t.Fatal("expected an error for an empty token")
	}
}

func TestStaticProviderServesEveryUser(t *testing.T) {
	provider, err := NewStaticProvider("ntn_fixed")
	if err != nil {
		t.Fatalf("NewStaticProvider() error = %v", err)
	}

	for _, user := range []string{"alice", "bob", ""} {
		token, found, err := provider.ActiveCredential(context.Background(), user)
		if err != nil {
			t.Fatalf("ActiveCredential(%q) error = %v", user, err)
		}
		if !found || token != "ntn_fixed" {
			t.Errorf("ActiveCredential(%q) = (%q, %v)", user, token, found)
		}
	}
}

func TestRecordSerializationOmitsAccessToken(t *testing.T) {
	rec := Record{
		ID:            "int-1",
		UserID:        "alice",
		ServiceType:   ServiceNotion,
		WorkspaceName: "Acme",
		AccessToken:   "ntn_secret",
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	if strings.Contains(string(raw), "ntn_secret") {
		t.Fatalf("serialized record leaks the access token: %s", raw)
	}
}
