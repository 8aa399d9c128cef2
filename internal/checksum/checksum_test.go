package checksum

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.click")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	sum, err := File(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	const wantSHA512 = "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"
	const wantSHA3384 = "ec01498288516fc926459f58e2c6ad8df9b473cb0fc08c2596da7cf0e49be4b298d88cea927ac7f539f1edf228376d25"

	if sum.SHA512 != wantSHA512 {
		t.Errorf("unexpected sha512 %s", sum.SHA512)
	}
	if sum.SHA3384 != wantSHA3384 {
		t.Errorf("unexpected sha3-384 %s", sum.SHA3384)
	}
	if sum.Size != 3 {
		t.Errorf("unexpected size %d", sum.Size)
	}
}

func TestReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Reader(ctx, strings.NewReader("abc"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
