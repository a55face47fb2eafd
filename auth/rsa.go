package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Object metadata keys for an evidence signature. S3 returns metadata keys in canonical header
// form so lookups are case insensitive.
const (
	SignedBy  = "signed-by"
	Signature = "signature"
)

var ErrNoSignature = errors.New("evidence is not signed")

// Sign returns the RSA PKCS#1 v1.5 signature of the SHA-256 digest of the evidence file, along
// with the signer ID derived from the key file name.
func Sign(file string, keyfile string) (string, []byte, error) {
	key, err := loadPrivateKey(keyfile)
	if err != nil {
		return "", nil, err
	} else if key == nil {
		return "", nil, fmt.Errorf("invalid RSA signing key")
	}

	hashed, err := digest(file)
	if err != nil {
		return "", nil, err
	}

	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed)
	if err != nil {
		return "", nil, err
	}

	return signer(keyfile), signature, nil
}

// Verify checks the signature of the evidence file against the public key <dir>/<signedBy>.pub.
func Verify(signedBy string, file string, signature []byte, dir string) error {
	pubkey, err := loadPublicKey(dir, signedBy)
	if err != nil {
		return err
	} else if pubkey == nil {
		return fmt.Errorf("%s: no RSA public key", signedBy)
	}

	hashed, err := digest(file)
	if err != nil {
		return err
	}

	if err := rsa.VerifyPKCS1v15(pubkey, crypto.SHA256, hashed, signature); err != nil {
		return fmt.Errorf("%s: invalid RSA signature (%w)", signedBy, err)
	}

	return nil
}

// AddSignature returns a copy of the metadata with the signer and base64 encoded signature
// added.
func AddSignature(metadata map[string]string, signedBy string, signature []byte) map[string]string {
	m := map[string]string{}
	for k, v := range metadata {
		m[k] = v
	}

	m[SignedBy] = signedBy
	m[Signature] = base64.StdEncoding.EncodeToString(signature)

	return m
}

// GetSignature extracts the signer and signature from object metadata.
func GetSignature(metadata map[string]string) (string, []byte, error) {
	var signedBy, encoded string

	for k, v := range metadata {
		switch strings.ToLower(k) {
		case SignedBy:
			signedBy = v
		case Signature:
			encoded = v
		}
	}

	if signedBy == "" || encoded == "" {
		return "", nil, ErrNoSignature
	}

	signature, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("invalid signature (%w)", err)
	}

	return signedBy, signature, nil
}

func digest(file string) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, err
	}

	return hash.Sum(nil), nil
}

func signer(keyfile string) string {
	base := filepath.Base(keyfile)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func loadPrivateKey(filepath string) (*rsa.PrivateKey, error) {
	bytes, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(bytes)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("%s is not a valid RSA private key", filepath)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid RSA private key", filepath)
	}

	pk, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s is not a valid RSA private key", filepath)
	}

	return pk, nil
}

func loadPublicKey(dir, id string) (*rsa.PublicKey, error) {
	if strings.ContainsAny(id, `/\`) || id == ".." {
		return nil, fmt.Errorf("%s: invalid signer ID", id)
	}

	file := filepath.Join(dir, id+".pub")
	bytes, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(bytes)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("%s is not a valid RSA public key", file)
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid RSA public key (%w)", file, err)
	}

	pubkey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%s is not a valid RSA public key", file)
	}

	return pubkey, nil
}
