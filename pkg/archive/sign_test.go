package archive_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlite-burrito/burrito/pkg/archive"
)

// writeKeys generates a key pair and returns the private and public key files
func writeKeys(t *testing.T) (string, string) {
	t.Helper()
	entity, err := openpgp.NewEntity("burrito", "test", "release@example.com", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	require.NoError(t, err)

	dir := t.TempDir()
	write := func(name, blockType string, serialize func(io.Writer) error) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		defer f.Close()
		w, err := armor.Encode(f, blockType, nil)
		require.NoError(t, err)
		require.NoError(t, serialize(w))
		require.NoError(t, w.Close())
		return path
	}

	private := write("private.asc", openpgp.PrivateKeyType, func(w io.Writer) error {
		return entity.SerializePrivate(w, nil)
	})
	public := write("public.asc", openpgp.PublicKeyType, entity.Serialize)
	return private, public
}

func TestSignAndVerify(t *testing.T) {
	private, public := writeKeys(t)

	path := filepath.Join(t.TempDir(), "pkg.tar.xz")
	_, err := archive.Create(packageTree(t), path)
	require.NoError(t, err)

	sig, err := archive.Sign(path, private)
	require.NoError(t, err)
	assert.Equal(t, path+archive.SignatureExt, sig)

	fingerprint, err := archive.Verify(path, sig, public)
	require.NoError(t, err)
	assert.Len(t, fingerprint, 40)

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0644))
	_, err = archive.Verify(path, sig, public)
	assert.ErrorIs(t, err, archive.ErrBadSignature)
}

func TestSign_PublicKeyOnly(t *testing.T) {
	_, public := writeKeys(t)

	path := filepath.Join(t.TempDir(), "pkg.tar")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	_, err := archive.Sign(path, public)
	assert.ErrorIs(t, err, archive.ErrNoSigningKey)
}
