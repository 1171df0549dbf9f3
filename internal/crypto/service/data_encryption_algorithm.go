package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
)

const (
	// cipherTextVersion prefixes every value ciphertext.
	cipherTextVersion byte = 0x01

	subKeySize = 32
)

var (
	encryptionKeyInfo = []byte("docencrypt/v1/encryption-key")
	ivKeyInfo         = []byte("docencrypt/v1/iv-key")
)

// dataEncryptionAlgorithm encrypts values with sub-keys derived from one DEK.
//
// Ciphertext layout: version (1 byte) || nonce || sealed value. Deterministic mode derives the
// nonce as HMAC-SHA256(ivKey, plaintext) truncated to the nonce size; randomized mode draws it
// from crypto/rand.
type dataEncryptionAlgorithm struct {
	encryptionType cryptoDomain.EncryptionType
	aead           AEAD
	aad            []byte

	mu     sync.RWMutex
	ivKey  []byte
	closed bool
}

// NewDataEncryptionAlgorithm derives encryption and IV sub-keys from key with HKDF-SHA256 and
// binds them to alg and encryptionType.
func NewDataEncryptionAlgorithm(
	manager AEADManager,
	key []byte,
	alg cryptoDomain.Algorithm,
	encryptionType cryptoDomain.EncryptionType,
) (DataEncryptionAlgorithm, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	if err := alg.Validate(); err != nil {
		return nil, err
	}
	if err := encryptionType.Validate(); err != nil {
		return nil, err
	}

	encKey, err := deriveSubKey(key, alg, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(encKey)

	ivKey, err := deriveSubKey(key, alg, ivKeyInfo)
	if err != nil {
		return nil, err
	}

	aead, err := manager.CreateCipher(encKey, alg)
	if err != nil {
		cryptoDomain.Zero(ivKey)
		return nil, err
	}

	return &dataEncryptionAlgorithm{
		encryptionType: encryptionType,
		aead:           aead,
		aad:            append([]byte{cipherTextVersion}, string(alg)...),
		ivKey:          ivKey,
	}, nil
}

func deriveSubKey(key []byte, alg cryptoDomain.Algorithm, info []byte) ([]byte, error) {
	out := make([]byte, subKeySize)
	r := hkdf.New(sha256.New, key, []byte(alg), info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("failed to derive sub-key: %w", err)
	}
	return out, nil
}

// Encrypt encrypts plaintext according to the bound encryption type.
func (d *dataEncryptionAlgorithm) Encrypt(plaintext []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, cryptoDomain.ErrDekDisposed
	}

	var (
		nonce  []byte
		sealed []byte
		err    error
	)
	switch d.encryptionType {
	case cryptoDomain.Deterministic:
		mac := hmac.New(sha256.New, d.ivKey)
		mac.Write(plaintext)
		nonce = mac.Sum(nil)[:d.aead.NonceSize()]
		sealed, err = d.aead.Seal(nonce, plaintext, d.aad)
	default:
		sealed, nonce, err = d.aead.Encrypt(plaintext, d.aad)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt value: %w", err)
	}

	out := make([]byte, 0, 1+len(nonce)+len(sealed))
	out = append(out, cipherTextVersion)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt. Any malformed or tampered input yields ErrDecryptionFailed.
func (d *dataEncryptionAlgorithm) Decrypt(ciphertext []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, cryptoDomain.ErrDekDisposed
	}

	nonceSize := d.aead.NonceSize()
	if len(ciphertext) < 1+nonceSize || ciphertext[0] != cipherTextVersion {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	plaintext, err := d.aead.Decrypt(ciphertext[1+nonceSize:], ciphertext[1:1+nonceSize], d.aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// Close zeroes the IV key. It is safe to call more than once.
func (d *dataEncryptionAlgorithm) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	cryptoDomain.Zero(d.ivKey)
	d.ivKey = nil
	return nil
}
