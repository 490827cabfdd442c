package encryption

import (
	"bytes"
	"fmt"
	"io"

	"tidy-go/internal/tidy"
)

// testHeader marks streams produced by TestEncryptor.
var testHeader = []byte("TIDYENC\x00")

// TestEncryptor is a deterministic, reversible stand-in for tests. It
// prefixes a fixed header and leaves the payload as is.
type TestEncryptor struct {
	setupCalled bool
}

var _ tidy.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(w io.Writer) (io.WriteCloser, error) {
	if _, err := w.Write(testHeader); err != nil {
		return nil, fmt.Errorf("writing test header: %w", err)
	}
	return nopWriteCloser{w}, nil
}

func (e *TestEncryptor) Unlock(passphrase string) (tidy.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ tidy.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader) (io.Reader, error) {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return nil, fmt.Errorf("invalid test encryption header")
	}
	return r, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
