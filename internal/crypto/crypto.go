package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/optable/silentot/internal/util"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

/*
Cipher suites for masking OT payloads.
*/

const (
	GCM = iota
	XORBlake2
	XORBlake3

	nonceSize = 12 //aesgcm NonceSize
)

var ErrUnknownCipherMode = fmt.Errorf("wrong cipher mode")

// Blake3 has XOF which is perfect for doing xor cipher.
func xorCipherWithBlake3(key []byte, ind uint8, src []byte) ([]byte, error) {
	hash := make([]byte, len(src))
	if err := getBlake3Hash(key, ind, hash); err != nil {
		return nil, err
	}
	util.Xor(hash, src)
	return hash, nil
}

func getBlake3Hash(key []byte, ind uint8, dst []byte) error {
	h := blake3.New()
	if _, err := h.Write(key); err != nil {
		return err
	}
	if _, err := h.Write([]byte{ind}); err != nil {
		return err
	}

	// convert to *digest to take a snapshot of the hashstate for XOF
	d := h.Digest()
	_, err := d.Read(dst)
	return err
}

// xorCipherWithBlake2 returns the result of H(key, ind) XOR src
// note that encrypt and decrypt in XOR cipher are the same.
func xorCipherWithBlake2(key []byte, ind uint8, src []byte) ([]byte, error) {
	hash := make([]byte, len(src))
	if err := getBlake2Hash(key, ind, hash); err != nil {
		return nil, err
	}
	util.Xor(hash, src)
	return hash, nil
}

// getBlake2Hash produces a hash digest of the key and index
func getBlake2Hash(key []byte, ind uint8, dst []byte) (err error) {
	d, err := blake2b.NewXOF(uint32(len(dst)), nil)
	if err != nil {
		return err
	}

	d.Write(key)
	d.Write([]byte{ind})
	d.Read(dst)

	return
}

// aes GCM block encryption decryption
func gcmEncrypt(key []byte, plaintext []byte) (ciphertext []byte, err error) {
	b, err := aes.NewCipher(key[:aes.BlockSize])
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(b)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	// encrypted cipher text is appended after nonce
	ciphertext = aesgcm.Seal(nonce, nonce, plaintext, nil)
	return
}

func gcmDecrypt(key []byte, ciphertext []byte) (plaintext []byte, err error) {
	b, err := aes.NewCipher(key[:aes.BlockSize])
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(b)
	if err != nil {
		return nil, err
	}

	nonceSize := aesgcm.NonceSize()
	nonce, enc := ciphertext[:nonceSize], ciphertext[nonceSize:]

	if plaintext, err = aesgcm.Open(nil, nonce, enc, nil); err != nil {
		return nil, err
	}
	return
}

func Encrypt(mode int, key []byte, ind uint8, plaintext []byte) ([]byte, error) {
	switch mode {
	case GCM:
		return gcmEncrypt(key, plaintext)
	case XORBlake2:
		return xorCipherWithBlake2(key, ind, plaintext)
	case XORBlake3:
		return xorCipherWithBlake3(key, ind, plaintext)
	}

	return nil, ErrUnknownCipherMode
}

func Decrypt(mode int, key []byte, ind uint8, ciphertext []byte) ([]byte, error) {
	switch mode {
	case GCM:
		return gcmDecrypt(key, ciphertext)
	case XORBlake2:
		return xorCipherWithBlake2(key, ind, ciphertext)
	case XORBlake3:
		return xorCipherWithBlake3(key, ind, ciphertext)
	}

	return nil, ErrUnknownCipherMode
}

// EncryptLen computes ciphertext length in bytes
func EncryptLen(mode int, msgLen int) int {
	switch mode {
	case GCM:
		return nonceSize + aes.BlockSize + msgLen
	case XORBlake2, XORBlake3:
		fallthrough
	default:
		return msgLen
	}
}
