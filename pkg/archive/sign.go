package archive

import (
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// SignatureExt is appended to an archive path to name its detached signature
const SignatureExt = ".asc"

var (
	// ErrNoSigningKey is returned when a key file holds no usable private key
	ErrNoSigningKey = errors.New("no usable private key")

	// ErrBadSignature is returned when a signature does not match
	ErrBadSignature = errors.New("signature verification failed")
)

// Sign writes an armored detached signature for path to path+".asc" using
// the first unencrypted private key in keyFile
func Sign(path, keyFile string) (string, error) {
	keyring, err := readKeyRing(keyFile)
	if err != nil {
		return "", err
	}
	var signer *openpgp.Entity
	for _, e := range keyring {
		if e.PrivateKey != nil && !e.PrivateKey.Encrypted {
			signer = e
			break
		}
	}
	if signer == nil {
		return "", fmt.Errorf("%w in %s", ErrNoSigningKey, keyFile)
	}

	//nolint:gosec // G304: path is the archive being signed
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	sigPath := path + SignatureExt
	out, err := os.Create(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to create signature: %w", err)
	}
	if err := openpgp.ArmoredDetachSign(out, signer, in, nil); err != nil {
		out.Close()
		os.Remove(sigPath)
		return "", fmt.Errorf("failed to sign %s: %w", path, err)
	}
	return sigPath, out.Close()
}

// Verify checks the detached signature sigPath of path against the public
// keys in keyFile and returns the signer's fingerprint
func Verify(path, sigPath, keyFile string) (string, error) {
	keyring, err := readKeyRing(keyFile)
	if err != nil {
		return "", err
	}

	//nolint:gosec // G304: path is the archive being verified
	signed, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer signed.Close()

	//nolint:gosec // G304: sigPath is the signature next to the archive
	sig, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature: %w", err)
	}
	defer sig.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, signed, sig, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint), nil
}

func readKeyRing(keyFile string) (openpgp.EntityList, error) {
	//nolint:gosec // G304: keyFile is user-provided
	f, err := os.Open(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, seekErr := f.Seek(0, 0); seekErr != nil {
			return nil, fmt.Errorf("failed to reset key file: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("no keys found in %s", keyFile)
	}
	return keyring, nil
}
