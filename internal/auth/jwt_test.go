package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("gburdell3", RoleStudent, "rollcall", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "rollcall")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Username != "gburdell3" || claims.Role != RoleStudent {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := Parse(pair.AccessToken, "other-key", "rollcall"); err == nil {
		t.Error("wrong key accepted")
	}
	if _, err := Parse(pair.AccessToken, "secret", "someone-else"); err == nil {
		t.Error("issuer mismatch accepted")
	}
	if _, err := Parse(pair.AccessToken+"x", "secret", "rollcall"); err == nil {
		t.Error("tampered token accepted")
	}
}

func TestParseExpired(t *testing.T) {
	pair, err := Issue("gburdell3", RoleStudent, "rollcall", "secret", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "rollcall"); err == nil {
		t.Error("expired token accepted")
	}
}
