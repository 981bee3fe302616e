// Package pgp wraps OpenPGP encryption of report streams.
package pgp

import (
	"io"
	"os"

	"github.com/fkie-cad/malw/fileio"

	"github.com/targodan/go-errors"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"
)

// FileExtension is appended to the name of encrypted files.
const FileExtension = ".gpg"

var config = &packet.Config{
	DefaultCipher: packet.CipherAES256,
}

func readKeyRing(path string, read func(io.Reader) (openpgp.EntityList, error)) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileio.NewIOError("open", path, err)
	}
	defer f.Close()

	return read(f)
}

// ReadKeyRing reads an armored or binary key ring from path.
func ReadKeyRing(path string) (openpgp.EntityList, error) {
	ring, errArmored := readKeyRing(path, openpgp.ReadArmoredKeyRing)
	if errArmored == nil {
		return ring, nil
	}
	if errors.Is(errArmored, fileio.ErrIO) {
		return nil, errArmored
	}
	ring, errBinary := readKeyRing(path, openpgp.ReadKeyRing)
	if errBinary == nil {
		return ring, nil
	}
	return nil, errors.Newf("could not read key ring \"%s\", reason: %w", path, errors.NewMultiError(errArmored, errBinary))
}

// NewEncryptor encrypts everything written to the returned writer for the
// given recipients. Closing it does not close output.
func NewEncryptor(ring openpgp.EntityList, output io.Writer) (io.WriteCloser, error) {
	return openpgp.Encrypt(output, ring, nil, &openpgp.FileHints{IsBinary: true}, config)
}

// NewSymmetricEncryptor encrypts with a key derived from password.
func NewSymmetricEncryptor(password string, output io.Writer) (io.WriteCloser, error) {
	return openpgp.SymmetricallyEncrypt(output, []byte(password), &openpgp.FileHints{IsBinary: true}, config)
}

// NewDecryptor decrypts a message for one of the keys in ring. keyPassword
// unlocks an encrypted private key and may be empty.
func NewDecryptor(ring openpgp.EntityList, keyPassword string, input io.Reader) (io.Reader, error) {
	var prompt openpgp.PromptFunction
	if keyPassword != "" {
		tried := false
		prompt = func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
			if symmetric {
				return nil, errors.New("expected asymmetric encryption but message was symmetrically encrypted")
			}
			if tried {
				return nil, errors.New("key password is wrong")
			}
			tried = true
			for _, k := range keys {
				if k.PrivateKey != nil && k.PrivateKey.Encrypted {
					if err := k.PrivateKey.Decrypt([]byte(keyPassword)); err != nil {
						return nil, err
					}
				}
			}
			return nil, nil
		}
	}

	msg, err := openpgp.ReadMessage(input, ring, prompt, config)
	if err != nil {
		return nil, errors.Newf("could not decrypt message, reason: %w", err)
	}
	return msg.UnverifiedBody, nil
}

type emptyKeyring struct{}

func (emptyKeyring) KeysById(id uint64) []openpgp.Key {
	return nil
}

func (emptyKeyring) KeysByIdUsage(id uint64, requiredUsage byte) []openpgp.Key {
	return nil
}

func (emptyKeyring) DecryptionKeys() []openpgp.Key {
	return nil
}

// NewSymmetricDecryptor decrypts a message encrypted with password.
func NewSymmetricDecryptor(password string, input io.Reader) (io.Reader, error) {
	tried := false
	prompt := func(keys []openpgp.Key, symmetric bool) ([]byte, error) {
		if !symmetric {
			return nil, errors.New("expected symmetric encryption but message was asymmetrically encrypted")
		}
		// ReadMessage keeps prompting as long as the passphrase is wrong.
		if tried {
			return nil, errors.New("password is wrong")
		}
		tried = true
		return []byte(password), nil
	}

	msg, err := openpgp.ReadMessage(input, emptyKeyring{}, prompt, config)
	if err != nil {
		return nil, errors.Newf("could not decrypt message, reason: %w", err)
	}
	return msg.UnverifiedBody, nil
}
