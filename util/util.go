package util

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/url"
	"strings"
)

const Version = "1.0"

type RsaKeyPair struct {
	Private string
	Public  string
}

func GetNameAndVersion() string {
	return fmt.Sprintf("%s / %s", Name, Version)
}

func PrettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", " ")
	return string(s)
}

func GeneratePemKeypair() *RsaKeyPair {
	bitSize := 2048

	key, err := rsa.GenerateKey(rand.Reader, bitSize)
	if err != nil {
		panic(err)
	}

	keyPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		},
	)

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		panic(err)
	}

	pubPEM := pem.EncodeToMemory(
		&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: pubBytes,
		},
	)

	return &RsaKeyPair{Private: string(keyPEM[:]), Public: string(pubPEM[:])}
}

// ExtractDomain extracts the host from an https URI
// Example: "https://mastodon.social/users/alice" -> "mastodon.social"
func ExtractDomain(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid URI: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URI has no host: %s", uri)
	}
	return strings.ToLower(parsed.Host), nil
}

// SameDomain reports whether two URIs share a network domain. Used to
// enforce that an actor only asserts authority over its own objects.
func SameDomain(a, b string) bool {
	da, err := ExtractDomain(a)
	if err != nil {
		return false
	}
	db, err := ExtractDomain(b)
	if err != nil {
		return false
	}
	return da == db
}
