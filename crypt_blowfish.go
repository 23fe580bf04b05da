package fsa

import (
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// checkBufSize is the size of the random buffer used for the password
// check token stored in the ArCh header (§4.8.2, §8-P10).
const checkBufSize = 4096

// blowfishKey derives a fixed-length key from the user's password.
// Blowfish accepts variable-length keys natively, but a stable size
// keeps key derivation independent of password length.
func blowfishKey(password string) []byte {
	sum := md5.Sum([]byte(password))
	return sum[:]
}

func newBlowfishCFB(password string, iv []byte, encrypt bool) (cipher.Stream, error) {
	block, err := blowfish.NewCipher(blowfishKey(password))
	if err != nil {
		return nil, err
	}
	if encrypt {
		return cipher.NewCFBEncrypter(block, iv), nil
	}
	return cipher.NewCFBDecrypter(block, iv), nil
}

// blowfishEncrypt encrypts data with a random IV prefixed to the
// output, the overlay described in §4.6 ("compressed bytes run through
// the symmetric cipher producing possibly-longer archive_size").
func blowfishEncrypt(password string, data []byte) ([]byte, error) {
	iv := make([]byte, blowfish.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	stream, err := newBlowfishCFB(password, iv, true)
	if err != nil {
		return nil, err
	}
	out := make([]byte, blowfish.BlockSize+len(data))
	copy(out, iv)
	stream.XORKeyStream(out[blowfish.BlockSize:], data)
	return out, nil
}

// blowfishDecrypt reverses blowfishEncrypt.
func blowfishDecrypt(password string, data []byte) ([]byte, error) {
	if len(data) < blowfish.BlockSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than IV", ErrCorrupt)
	}
	iv := data[:blowfish.BlockSize]
	stream, err := newBlowfishCFB(password, iv, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data)-blowfish.BlockSize)
	stream.XORKeyStream(out, data[blowfish.BlockSize:])
	return out, nil
}

// NewPasswordCheck builds the §4.8.2/§8-P10 password check token: a
// random CHECK_BUF, its MD5, and the encrypted CHECK_BUF to store in
// the ArCh header.
func NewPasswordCheck(password string) (encryptedCheckBuf []byte, checkMD5 [16]byte, err error) {
	buf := make([]byte, checkBufSize)
	if _, err = rand.Read(buf); err != nil {
		return nil, checkMD5, err
	}
	checkMD5 = md5.Sum(buf)
	encryptedCheckBuf, err = blowfishEncrypt(password, buf)
	return encryptedCheckBuf, checkMD5, err
}

// VerifyPasswordCheck re-derives the MD5 of the decrypted check buffer
// and compares it to the stored one (§8-P10). A restore with any
// password only proceeds if this succeeds.
func VerifyPasswordCheck(password string, encryptedCheckBuf []byte, storedMD5 [16]byte) error {
	buf, err := blowfishDecrypt(password, encryptedCheckBuf)
	if err != nil {
		return ErrPassword
	}
	if md5.Sum(buf) != storedMD5 {
		return ErrPassword
	}
	return nil
}
