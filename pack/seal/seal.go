/*
	Package seal encrypts and decrypts distributable archives.

	The container format is the classic `openssl enc` salted layout --
	ASCII magic "Salted__", 8 salt bytes, then AES-256-CBC ciphertext
	with PKCS#7 padding.  Key and IV come from PBKDF2-SHA512 over the
	password with the embedded salt.  Artifacts produced here decrypt
	with stock openssl, and vice versa:

		openssl enc -d -aes-256-cbc -md sha512 -pbkdf2 -iter 100000 \
			-in mod.merlon -out patches.tar.gz -pass file:baserom.z64

	The password is never typed in: it is the raw byte content of the
	base ROM asset.  Only a party holding the exact same ROM bytes can
	decrypt, which is the entire access-gating design.  The bytes are
	treated as key material -- read once, zeroed after derivation, and
	kept out of every error path.
*/
package seal

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"io"
	"io/ioutil"
	"os"

	. "github.com/warpfork/go-errcat"
	"golang.org/x/crypto/pbkdf2"

	"github.com/Wrymouth/merlon"
)

const (
	saltMagic = "Salted__"
	saltSize  = 8

	// KDF parameters.  Fixed: they are part of the artifact format.
	kdfIterations = 100000
	keySize       = 32 // AES-256
	ivSize        = aes.BlockSize
)

/*
	Seal encrypts srcPath into dstPath, deriving key material from the
	raw bytes of keyFile.  The salt is freshly randomized on every call,
	so sealing identical plaintext with an identical key still yields
	different ciphertext run-to-run.

	May return errors of category:

	  - `merlon.ErrEncrypt` -- for missing key material or any cipher or
	    I/O failure, naming dstPath
	  - `merlon.ErrCancelled` -- if the context is already cancelled
*/
func Seal(ctx context.Context, dstPath string, srcPath string, keyFile string) (err error) {
	defer RequireErrorHasCategory(&err, merlon.ErrorCategory(""))
	if ctx.Err() != nil {
		return Errorf(merlon.ErrCancelled, "cancelled")
	}
	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to encrypt to %s: salt generation: %s", dstPath, err)
	}
	block, err := cipherForKeyFile(keyFile, salt[:], dstPath)
	if err != nil {
		return err
	}

	plaintext, err := ioutil.ReadFile(srcPath)
	if err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to encrypt to %s: %s", dstPath, err)
	}
	padded := padPKCS7(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block.cipher, block.iv).CryptBlocks(ciphertext, padded)
	block.wipe()

	out, err := os.Create(dstPath)
	if err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to encrypt to %s: %s", dstPath, err)
	}
	defer out.Close()
	if _, err := out.Write([]byte(saltMagic)); err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to encrypt to %s: %s", dstPath, err)
	}
	if _, err := out.Write(salt[:]); err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to encrypt to %s: %s", dstPath, err)
	}
	if _, err := out.Write(ciphertext); err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to encrypt to %s: %s", dstPath, err)
	}
	if err := out.Close(); err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to encrypt to %s: %s", dstPath, err)
	}
	return nil
}

/*
	Unseal decrypts srcPath (a Seal/openssl-enc container) into dstPath
	using key material derived from the raw bytes of keyFile.

	May return errors of category:

	  - `merlon.ErrEncrypt` -- for missing key material, a malformed
	    container, or a padding check failure (wrong ROM bytes)
	  - `merlon.ErrCancelled` -- if the context is already cancelled
*/
func Unseal(ctx context.Context, dstPath string, srcPath string, keyFile string) (err error) {
	defer RequireErrorHasCategory(&err, merlon.ErrorCategory(""))
	if ctx.Err() != nil {
		return Errorf(merlon.ErrCancelled, "cancelled")
	}
	sealed, err := ioutil.ReadFile(srcPath)
	if err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to decrypt %s: %s", srcPath, err)
	}
	if len(sealed) < len(saltMagic)+saltSize || string(sealed[:len(saltMagic)]) != saltMagic {
		return Errorf(merlon.ErrEncrypt, "failed to decrypt %s: not a salted container", srcPath)
	}
	salt := sealed[len(saltMagic) : len(saltMagic)+saltSize]
	ciphertext := sealed[len(saltMagic)+saltSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return Errorf(merlon.ErrEncrypt, "failed to decrypt %s: truncated ciphertext", srcPath)
	}

	block, err := cipherForKeyFile(keyFile, salt, srcPath)
	if err != nil {
		return err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block.cipher, block.iv).CryptBlocks(plaintext, ciphertext)
	block.wipe()

	plaintext, err = unpadPKCS7(plaintext)
	if err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to decrypt %s: %s (wrong base ROM?)", srcPath, err)
	}
	if err := ioutil.WriteFile(dstPath, plaintext, 0644); err != nil {
		return Errorf(merlon.ErrEncrypt, "failed to decrypt %s: %s", srcPath, err)
	}
	return nil
}

// keyedCipher bundles a derived AES block cipher with its IV and the
// buffers that must be wiped once the cipher has been used.
type keyedCipher struct {
	cipher  cipher.Block
	iv      []byte
	derived []byte
}

func (k *keyedCipher) wipe() {
	for i := range k.derived {
		k.derived[i] = 0
	}
}

// cipherForKeyFile reads the designated key file and derives the AES
// key and IV.  The password bytes are zeroed before returning; error
// messages name paths, never content.
func cipherForKeyFile(keyFile string, salt []byte, artifactPath string) (*keyedCipher, error) {
	password, err := ioutil.ReadFile(keyFile)
	if err != nil {
		return nil, Errorf(merlon.ErrEncrypt, "cannot read key material %s (for %s): %s", keyFile, artifactPath, err)
	}
	derived := pbkdf2.Key(password, salt, kdfIterations, keySize+ivSize, sha512.New)
	for i := range password {
		password[i] = 0
	}
	block, err := aes.NewCipher(derived[:keySize])
	if err != nil {
		for i := range derived {
			derived[i] = 0
		}
		return nil, Errorf(merlon.ErrEncrypt, "cannot initialize cipher for %s: %s", artifactPath, err)
	}
	return &keyedCipher{cipher: block, iv: derived[keySize:], derived: derived}, nil
}

func padPKCS7(data []byte) []byte {
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func unpadPKCS7(data []byte) ([]byte, error) {
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, paddingError{}
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, paddingError{}
		}
	}
	return data[:len(data)-padLen], nil
}

type paddingError struct{}

func (paddingError) Error() string { return "padding check failed" }
