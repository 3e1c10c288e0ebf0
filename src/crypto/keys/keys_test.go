package keys

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/valproof/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if nKey.D.Cmp(key.D) != 0 || nKey.X.Cmp(key.X) != 0 || nKey.Y.Cmp(key.Y) != 0 {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := hex.EncodeToString(DumpPrivateKey(key))

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
		0477, 0466, 0444,
	}

	for _, fm := range shouldErr {
		os.WriteFile(badKeyPath, []byte(rawKey), fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || keyfile should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")

	shouldNotErr := []os.FileMode{
		0700, 0600, 0500, 0400,
	}

	for _, fm := range shouldNotErr {
		os.Remove(goodKeyPath)
		os.WriteFile(goodKeyPath, []byte(rawKey), fm)

		if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
			t.Fatalf("%o || keyfile should not return error. Got %v", fm, err)
		}
	}
}

func TestSignVerify(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	msgHash := crypto.SHA256([]byte("J'aime mieux forger mon ame que la meubler"))

	sig, err := Sign(privKey, msgHash)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(&privKey.PublicKey, msgHash, sig) {
		t.Fatalf("signature should verify")
	}

	otherHash := crypto.SHA256([]byte("something else"))
	if Verify(&privKey.PublicKey, otherHash, sig) {
		t.Fatalf("signature should not verify a different digest")
	}

	otherKey, _ := GenerateECDSAKey()
	if Verify(&otherKey.PublicKey, msgHash, sig) {
		t.Fatalf("signature should not verify with another key")
	}

	if Verify(&privKey.PublicKey, msgHash, []byte{0x30, 0x01, 0x02}) {
		t.Fatalf("garbage signature should not verify")
	}
}

func TestPublicKeyEncoding(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	pubBytes := FromPublicKey(&privKey.PublicKey)
	if len(pubBytes) != 65 {
		t.Fatalf("uncompressed key should be 65 bytes, not %d", len(pubBytes))
	}

	pub, err := ParsePublicKey(pubBytes)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(FromPublicKey(pub), pubBytes) {
		t.Fatalf("public keys do not match")
	}

	if _, err := ParsePublicKey([]byte{1, 2, 3}); err != ErrInvalidPublicKey {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}

	addr := Address(pubBytes)
	if len(addr) != 2+2*AddressLength {
		t.Fatalf("unexpected address %s", addr)
	}
}

func TestLoadOrCreateNodeKey(t *testing.T) {
	file := NewSimpleKeyfile(filepath.Join(t.TempDir(), "node_key"))

	key, created, err := LoadOrCreateNodeKey(file)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatalf("first call should create a key")
	}

	again, created, err := LoadOrCreateNodeKey(file)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatalf("second call should load the existing key")
	}

	id1, _ := PeerID(key)
	id2, _ := PeerID(again)
	if id1 != id2 {
		t.Fatalf("peer IDs differ: %s vs %s", id1, id2)
	}
}
