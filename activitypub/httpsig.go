package activitypub

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"

	"code.superseriousbusiness.org/httpsig"
	"github.com/lattice-fed/lattice/domain"
)

// SignRequest signs an outgoing HTTP request with the given private key
// keyId format: "https://example.com/u/alice#main-key"
func SignRequest(req *http.Request, privateKey *rsa.PrivateKey, keyId string) error {
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		[]string{"(request-target)", "host", "date", "digest"},
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	return signer.SignRequest(privateKey, keyId, req, nil)
}

// VerifyRequest confirms the incoming request was signed by the claimed
// actor's current key. Pure gate: no state is mutated here. A failure may
// mean the remote rotated its key; the caller re-resolves the actor and
// retries exactly once before rejecting.
func VerifyRequest(req *http.Request, actor *domain.Actor) error {
	if req.Header.Get("Signature") == "" {
		return ErrMissingSignature
	}

	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSignature, err)
	}

	rsaPubKey, err := ParsePublicKey(actor.PublicKeyPem)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownKey, err)
	}

	if err := verifier.Verify(rsaPubKey, httpsig.RSA_SHA256); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}

	return nil
}

// ParsePrivateKey converts PEM string to *rsa.PrivateKey
func ParsePrivateKey(pemString string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return privateKey, nil
}

// ParsePublicKey converts PEM string to *rsa.PublicKey
func ParsePublicKey(pemString string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemString))
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block")
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPubKey, ok := pubKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}

	return rsaPubKey, nil
}
