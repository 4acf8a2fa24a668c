package util

import (
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
)

func TestGeneratePemKeypair(t *testing.T) {
	pair := GeneratePemKeypair()

	if pair.Private == "" {
		t.Error("Expected non-empty private key")
	}
	if pair.Public == "" {
		t.Error("Expected non-empty public key")
	}

	block, _ := pem.Decode([]byte(pair.Private))
	if block == nil {
		t.Fatal("Private key is not valid PEM")
	}
	if block.Type != "RSA PRIVATE KEY" {
		t.Errorf("Expected block type 'RSA PRIVATE KEY', got '%s'", block.Type)
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		t.Errorf("Failed to parse generated private key: %v", err)
	}

	block, _ = pem.Decode([]byte(pair.Public))
	if block == nil {
		t.Fatal("Public key is not valid PEM")
	}
	if block.Type != "PUBLIC KEY" {
		t.Errorf("Expected block type 'PUBLIC KEY', got '%s'", block.Type)
	}
	if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
		t.Errorf("Failed to parse generated public key: %v", err)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{
			name: "actor URI",
			uri:  "https://ds9.lemmy.ml/u/sisko",
			want: "ds9.lemmy.ml",
		},
		{
			name: "domain only",
			uri:  "https://example.com",
			want: "example.com",
		},
		{
			name: "uppercase host is lowered",
			uri:  "https://Example.COM/c/main",
			want: "example.com",
		},
		{
			name: "host with port",
			uri:  "http://localhost:8536/u/alice",
			want: "localhost:8536",
		},
		{
			name:    "no host",
			uri:     "not-a-uri",
			wantErr: true,
		},
		{
			name:    "empty string",
			uri:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDomain(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractDomain(%q) failed: %v", tt.uri, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSameDomain(t *testing.T) {
	if !SameDomain("https://ds9.lemmy.ml/u/sisko", "https://ds9.lemmy.ml/post/1") {
		t.Error("Expected URIs on the same host to match")
	}
	if SameDomain("https://ds9.lemmy.ml/u/sisko", "https://enterprise.lemmy.ml/post/1") {
		t.Error("Expected URIs on different hosts not to match")
	}
	if SameDomain("not-a-uri", "https://ds9.lemmy.ml/post/1") {
		t.Error("Expected invalid URI not to match anything")
	}
	if SameDomain("https://ds9.lemmy.ml/u/sisko", "") {
		t.Error("Expected empty URI not to match anything")
	}
}

func TestSplitDomainList(t *testing.T) {
	got := SplitDomainList("Example.com, other.org ,, third.net")
	want := []string{"example.com", "other.org", "third.net"}

	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entry %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if out := SplitDomainList(""); len(out) != 0 {
		t.Errorf("Expected empty list for empty input, got %v", out)
	}
}

func TestPrettyPrint(t *testing.T) {
	out := PrettyPrint(map[string]int{"a": 1})
	if !strings.Contains(out, "\"a\": 1") {
		t.Errorf("Unexpected PrettyPrint output: %s", out)
	}
}

func TestGetNameAndVersion(t *testing.T) {
	out := GetNameAndVersion()
	if !strings.Contains(out, Name) || !strings.Contains(out, Version) {
		t.Errorf("Expected name and version in %q", out)
	}
}
