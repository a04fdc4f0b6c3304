// Package crypto implements the hybrid request envelope of the
// liberal-arts-course enrollment system. The scheme mirrors the browser
// client bit-for-bit: a fresh 16-character AES key per request, the key
// and a SHA-1 digest of the payload encrypted under a fixed RSA public
// key, the payload itself AES-ECB encrypted with PKCS#7 padding. None of
// the algorithm choices are negotiable; they are dictated by the upstream.
package crypto

import (
	"crypto/aes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"time"
)

// keyAlphabet is the character set the upstream expects symmetric keys to
// be drawn from. Raw random bytes are rejected.
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// keyLength is the symmetric key length in bytes (AES-128).
const keyLength = 16

// defaultPublicKeyPEM is the upstream's fixed RSA public key.
const defaultPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQDStqM5gEIby9BywnfYHuyP/5sb
0bz6C28ZziHG6bwury/8Lu5a3nZ8YNDqDsnEQY8YBENXyOvtrIyKY0hI1d+xA8zH
HX0AofJ0vWiRAALGqV4RJNMlQrRvoWqPgvUIcHGdMRBdhpWXfcRmTg2WEY5LGfBT
JhX4lhdB8nGfpKrjsQIDAQAB
-----END PUBLIC KEY-----`

// ErrDecode indicates a response body could not be decoded or decrypted.
// Malformed or wrongly-keyed input never degrades to an empty string.
var ErrDecode = errors.New("cannot decode encrypted response")

// Envelope is the transient per-call encrypted request. Key is the raw
// symmetric key, kept only in memory long enough to decrypt the paired
// response.
type Envelope struct {
	Body      string // base64 AES ciphertext of the JSON payload
	AK        string // base64 RSA ciphertext of the symmetric key
	SK        string // base64 RSA ciphertext of the payload digest
	Timestamp int64  // epoch milliseconds
	Key       []byte
}

// Codec encrypts requests and decrypts responses for the upstream
// protocol.
type Codec struct {
	pub *rsa.PublicKey
}

// NewCodec creates a codec around a specific RSA public key. Production
// code uses Default; tests substitute their own keypair.
func NewCodec(pub *rsa.PublicKey) *Codec {
	return &Codec{pub: pub}
}

// Default returns a codec bound to the upstream's embedded public key.
func Default() *Codec {
	pub, err := ParsePublicKey(defaultPublicKeyPEM)
	if err != nil {
		// The embedded constant is part of the build; failing to parse it
		// is a programming error.
		panic(fmt.Sprintf("embedded public key invalid: %v", err))
	}
	return NewCodec(pub)
}

// ParsePublicKey parses a PEM-encoded RSA public key.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key: %T", key)
	}
	return pub, nil
}

// GenerateKey draws a fresh 16-byte symmetric key from the constrained
// alphabet. Keys are single-use and never reused across calls.
func GenerateKey() ([]byte, error) {
	raw := make([]byte, keyLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate symmetric key: %w", err)
	}
	key := make([]byte, keyLength)
	for i, b := range raw {
		key[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return key, nil
}

// Digest computes the content signature of a payload: the hex-encoded
// SHA-1 of the raw bytes. Equal inputs always produce equal digests.
func Digest(payload []byte) string {
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// EncryptRequest builds the encrypted envelope for a JSON payload.
func (c *Codec) EncryptRequest(payload []byte) (*Envelope, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	ak, err := rsa.EncryptPKCS1v15(rand.Reader, c.pub, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt symmetric key: %w", err)
	}
	sk, err := rsa.EncryptPKCS1v15(rand.Reader, c.pub, []byte(Digest(payload)))
	if err != nil {
		return nil, fmt.Errorf("encrypt payload digest: %w", err)
	}
	body, err := ecbEncrypt(key, pkcs7Pad(payload, aes.BlockSize))
	if err != nil {
		return nil, fmt.Errorf("encrypt payload: %w", err)
	}

	return &Envelope{
		Body:      base64.StdEncoding.EncodeToString(body),
		AK:        base64.StdEncoding.EncodeToString(ak),
		SK:        base64.StdEncoding.EncodeToString(sk),
		Timestamp: time.Now().UnixMilli(),
		Key:       key,
	}, nil
}

// DecryptResponse decodes and decrypts a response body with the envelope's
// symmetric key, returning the plaintext.
func (c *Codec) DecryptResponse(encoded string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	plain, err := ecbDecrypt(key, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return unpadded, nil
}

// ecbEncrypt encrypts padded plaintext block by block. ECB is what the
// upstream's browser client uses; the key being single-use keeps it from
// mattering much.
func ecbEncrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(plaintext)%block.BlockSize() != 0 {
		return nil, errors.New("plaintext is not block-aligned")
	}
	out := make([]byte, len(plaintext))
	for i := 0; i < len(plaintext); i += block.BlockSize() {
		block.Encrypt(out[i:], plaintext[i:])
	}
	return out, nil
}

func ecbDecrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, errors.New("ciphertext is not block-aligned")
	}
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(out[i:], ciphertext[i:])
	}
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
