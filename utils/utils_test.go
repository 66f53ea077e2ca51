package utils

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func TestSanitizeKeepsUGCMarkup(t *testing.T) {
	input := `<script>alert(1)</script><p onclick="x()">hello <b>world</b></p>`
	got := Sanitize(input)
	if strings.Contains(got, "script") || strings.Contains(got, "onclick") {
		t.Errorf("Sanitize(%q) = %q, active content survived", input, got)
	}
	if !strings.Contains(got, "<p>hello <b>world</b></p>") {
		t.Errorf("Sanitize(%q) = %q, allowed markup lost", input, got)
	}
}

func TestStripTagsRemovesAllMarkup(t *testing.T) {
	got := StripTags(`My <b>bold</b> <a href="http://x">title</a>`)
	if got != "My bold title" {
		t.Errorf("StripTags = %q, want %q", got, "My bold title")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Name != "alice" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseToken(token + "x"); err == nil {
		t.Error("tampered token accepted")
	}
}

func TestSessionTokenRequiresIdentity(t *testing.T) {
	token, err := GenerateToken(0, "nobody", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Error("token without a user identity accepted")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken(42, "alice", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestTokenBlacklist(t *testing.T) {
	if IsTokenBlacklisted("never-seen") {
		t.Error("unknown token reported as revoked")
	}

	BlacklistToken("revoked-token", time.Now().Add(time.Hour))
	if !IsTokenBlacklisted("revoked-token") {
		t.Error("revoked token not reported")
	}

	// Entries past their expiry lapse on read.
	BlacklistToken("stale-token", time.Now().Add(10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	if IsTokenBlacklisted("stale-token") {
		t.Error("expired entry still reported as revoked")
	}
}
