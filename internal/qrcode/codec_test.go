package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"credential-service/internal/models"
)

func testCodec() *Codec {
	return NewCodec("MASOMO", []byte("test-integrity-secret"), 365*24*time.Hour)
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	codec := testCodec()

	encoded, issued, err := codec.Issue("STU001", models.SubjectStudent, "school-1", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(encoded, "MASOMO:") {
		t.Fatalf("encoded credential missing namespace prefix: %q", encoded)
	}
	if issued.ID == "" {
		t.Fatal("issued credential has no id")
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.ID != issued.ID {
		t.Errorf("id mismatch: got %q want %q", decoded.ID, issued.ID)
	}
	if decoded.SubjectID != "STU001" {
		t.Errorf("subject id mismatch: got %q", decoded.SubjectID)
	}
	if decoded.SubjectType != models.SubjectStudent {
		t.Errorf("subject type mismatch: got %q", decoded.SubjectType)
	}
	if decoded.TenantID != "school-1" {
		t.Errorf("tenant id mismatch: got %q", decoded.TenantID)
	}
	if !decoded.ValidUntil.Equal(issued.ValidUntil) {
		t.Errorf("validity mismatch: got %v want %v", decoded.ValidUntil, issued.ValidUntil)
	}
	if !codec.TagMatches(decoded) {
		t.Error("decoded credential failed integrity check")
	}
}

func TestIssueUsesDefaultValidity(t *testing.T) {
	codec := testCodec()

	_, issued, err := codec.Issue("STU001", models.SubjectStudent, "school-1", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	expected := time.Now().Add(365 * 24 * time.Hour)
	diff := issued.ValidUntil.Sub(expected)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("validity %v not near one year from now", issued.ValidUntil)
	}
}

func TestIssueMintsFreshIDs(t *testing.T) {
	codec := testCodec()

	_, first, err := codec.Issue("STU001", models.SubjectStudent, "school-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, second, err := codec.Issue("STU001", models.SubjectStudent, "school-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if first.ID == second.ID {
		t.Error("re-issuing produced the same credential id")
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	codec := testCodec()

	cases := []struct {
		name        string
		subjectID   string
		subjectType models.SubjectType
		tenantID    string
	}{
		{"empty subject", "", models.SubjectStudent, "school-1"},
		{"empty tenant", "STU001", models.SubjectStudent, ""},
		{"unknown subject type", "STU001", models.SubjectType("ALIEN"), "school-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := codec.Issue(tc.subjectID, tc.subjectType, tc.tenantID, time.Hour); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDecodeRejectsForeignContent(t *testing.T) {
	codec := testCodec()

	cases := []struct {
		name    string
		encoded string
		want    error
	}{
		{"arbitrary text", "https://example.com/menu", ErrInvalidFormat},
		{"wrong namespace", "OTHERAPP:" + base64.StdEncoding.EncodeToString([]byte(`{}`)), ErrInvalidFormat},
		{"empty string", "", ErrInvalidFormat},
		{"bad base64", "MASOMO:!!!not-base64!!!", ErrMalformedPayload},
		{"bad json", "MASOMO:" + base64.StdEncoding.EncodeToString([]byte("not json")), ErrMalformedPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.Decode(tc.encoded)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	codec := testCodec()

	cases := []struct {
		name    string
		payload string
	}{
		{"no id", `{"userId":"STU001","userType":"STUDENT","schoolId":"school-1","validUntil":1756684800000,"hash":"ab"}`},
		{"no subject", `{"id":"c1","userType":"STUDENT","schoolId":"school-1","validUntil":1756684800000,"hash":"ab"}`},
		{"no tenant", `{"id":"c1","userId":"STU001","userType":"STUDENT","validUntil":1756684800000,"hash":"ab"}`},
		{"no expiry", `{"id":"c1","userId":"STU001","userType":"STUDENT","schoolId":"school-1","hash":"ab"}`},
		{"no hash", `{"id":"c1","userId":"STU001","userType":"STUDENT","schoolId":"school-1","validUntil":1756684800000}`},
		{"bad subject type", `{"id":"c1","userId":"STU001","userType":"ROBOT","schoolId":"school-1","validUntil":1756684800000,"hash":"ab"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := "MASOMO:" + base64.StdEncoding.EncodeToString([]byte(tc.payload))
			_, err := codec.Decode(encoded)
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("got %v, want ErrMissingField", err)
			}
		})
	}
}

func TestTagDetectsFieldTampering(t *testing.T) {
	codec := testCodec()

	_, issued, err := codec.Issue("STU001", models.SubjectStudent, "school-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mutations := []struct {
		name   string
		mutate func(c *models.QRCredential)
	}{
		{"subject id", func(c *models.QRCredential) { c.SubjectID = "STU002" }},
		{"subject type", func(c *models.QRCredential) { c.SubjectType = models.SubjectStaff }},
		{"tenant id", func(c *models.QRCredential) { c.TenantID = "school-2" }},
		{"validity", func(c *models.QRCredential) { c.ValidUntil = c.ValidUntil.Add(24 * time.Hour) }},
		{"credential id", func(c *models.QRCredential) { c.ID = "forged" }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			tampered := *issued
			m.mutate(&tampered)
			if codec.TagMatches(&tampered) {
				t.Error("tampered credential passed integrity check")
			}
		})
	}
}

func TestTagDiffersAcrossSecrets(t *testing.T) {
	a := NewCodec("MASOMO", []byte("secret-a"), time.Hour)
	b := NewCodec("MASOMO", []byte("secret-b"), time.Hour)

	encoded, _, err := a.Issue("STU001", models.SubjectStudent, "school-1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cred, err := b.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b.TagMatches(cred) {
		t.Error("credential signed with a different secret passed integrity check")
	}
}
