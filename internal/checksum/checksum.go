package checksum

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/sha3"
)

// Sum holds the digests recorded for an uploaded package.
type Sum struct {
	SHA512  string
	SHA3384 string
	Size    int64
}

// File hashes path in a single pass.
func File(ctx context.Context, path string) (*Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Reader(ctx, f)
}

func Reader(ctx context.Context, r io.Reader) (*Sum, error) {
	h512 := sha512.New()
	h3 := sha3.New384()

	n, err := io.Copy(io.MultiWriter(h512, h3), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return nil, err
	}

	return &Sum{
		SHA512:  hex.EncodeToString(h512.Sum(nil)),
		SHA3384: hex.EncodeToString(h3.Sum(nil)),
		Size:    n,
	}, nil
}

// ctxReader stops a long copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
