package transport

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a server (or peer) curve25519 keypair, standing in for
// the ZMQ CURVE server keypair named in §4.1/§6.
type KeyPair struct {
	Public  *[32]byte
	Private *[32]byte
}

// GenerateKeyPair creates a fresh curve25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate curve keypair: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// Seal anonymously encrypts message for the server's public key, the
// idiomatic nacl/box stand-in for CURVE's server-keypair-only mode:
// loading and managing per-peer public keys is explicitly out of
// scope (§1), so peers encrypt to the server's known public key
// without needing a mutual handshake.
func Seal(message []byte, serverPublic *[32]byte) ([]byte, error) {
	sealed, err := box.SealAnonymous(nil, message, serverPublic, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("curve seal: %w", err)
	}
	return sealed, nil
}

// Open reverses Seal using the server's keypair.
func Open(sealed []byte, server KeyPair) ([]byte, error) {
	out, ok := box.OpenAnonymous(nil, sealed, server.Public, server.Private)
	if !ok {
		return nil, fmt.Errorf("curve: authentication failed")
	}
	return out, nil
}

// LoadKeyPair reads a hex-encoded public/private curve25519 keypair
// from the given files, as written by GenerateKeyPair's counterpart
// key-provisioning step. Each file holds a single 64-character hex
// line (32 bytes).
func LoadKeyPair(publicKeyFile, privateKeyFile string) (KeyPair, error) {
	pub, err := readKeyFile(publicKeyFile)
	if err != nil {
		return KeyPair{}, fmt.Errorf("load public key: %w", err)
	}
	priv, err := readKeyFile(privateKeyFile)
	if err != nil {
		return KeyPair{}, fmt.Errorf("load private key: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

func readKeyFile(path string) (*[32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%s: key must be 32 bytes, got %d", path, len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}
