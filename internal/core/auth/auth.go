// The auth package owns credential handling: bcrypt hashing of stored
// passwords and the process-scoped RSA key material used to decrypt the
// password fields of login and register requests.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("username/password combination not found")
	ErrMalformedPassword  = errors.New("unable to decrypt password field")
)

const rsaKeyBits = 2048

// HashPassword returns the bcrypt hash of password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// KeyPair wraps the RSA private key shared by all sessions. The public half
// is sent to clients in the welcome message; clients encrypt password fields
// with it so that credentials are never readable on the wire.
type KeyPair struct {
	private *rsa.PrivateKey
}

// GenerateKeyPair creates a fresh RSA keypair. Used when no key file is
// configured; a restart invalidates nothing since the key only protects
// in-flight login requests.
func GenerateKeyPair() (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	return &KeyPair{private: key}, nil
}

// LoadKeyPair reads a PEM-encoded PKCS#1 RSA private key from path.
func LoadKeyPair(path string) (*KeyPair, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &KeyPair{private: key}, nil
}

// PublicKeyDER returns the public key in PKIX DER form for the welcome message.
func (k *KeyPair) PublicKeyDER() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return der, nil
}

// DecryptPassword recovers the plaintext password from the ciphertext sent
// by a client. Any decryption failure is reported as ErrMalformedPassword;
// the underlying error is deliberately not propagated to avoid leaking
// padding oracle detail into logs that clients can influence.
func (k *KeyPair) DecryptPassword(ciphertext []byte) (string, error) {
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, k.private, ciphertext)
	if err != nil {
		return "", ErrMalformedPassword
	}
	return string(plaintext), nil
}

// EncryptPassword applies the client-side half of the password exchange.
// The server itself only needs this in tests and tooling.
func (k *KeyPair) EncryptPassword(password string) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, &k.private.PublicKey, []byte(password))
}
