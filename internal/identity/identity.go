package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidKeyFile = errors.New("invalid identity key file")

// Identity is a node's long-lived signing key.
type Identity struct {
	PrivateKey ed25519.PrivateKey
}

// NodeKey is the hex of the first 16 bytes of the public key.
func (id Identity) NodeKey() string {
	pub := id.PrivateKey.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub[:16])
}

// LoadOrCreate reads the hex-encoded seed at path, generating and saving a
// new one if the file does not exist.
func LoadOrCreate(path string) (Identity, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return parse(b)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Identity{}, fmt.Errorf("read identity: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Identity{}, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Identity{}, fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv.Seed())+"\n"), 0o600); err != nil {
		return Identity{}, fmt.Errorf("write identity: %w", err)
	}
	return Identity{PrivateKey: priv}, nil
}

func parse(b []byte) (Identity, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(string(b)))
	if err != nil || len(seed) != ed25519.SeedSize {
		return Identity{}, ErrInvalidKeyFile
	}
	return Identity{PrivateKey: ed25519.NewKeyFromSeed(seed)}, nil
}
