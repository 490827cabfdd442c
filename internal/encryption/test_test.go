package encryption

import (
	"bytes"
	"io"
	"testing"
)

func TestTestEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()
	if err := e.Setup("any-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.setupCalled {
		t.Error("Setup() did not record that it was called")
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true")
	}
}

func TestTestEncryptor_EncryptDecrypt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewTestEncryptor()
			encrypted := encryptAll(t, e, tt.input)
			if !bytes.HasPrefix(encrypted, testHeader) {
				t.Error("encrypted output does not start with test header")
			}

			dc, err := e.Unlock("any-passphrase")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			r, err := dc.Decrypt(bytes.NewReader(encrypted))
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			got, _ := io.ReadAll(r)
			if !bytes.Equal(got, tt.input) {
				t.Errorf("round-trip failed: got %q, want %q", got, tt.input)
			}
		})
	}
}

func TestTestDecryptionContext_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "invalid header", input: []byte("NOT_VALID_HEADER_data")},
		{name: "truncated header", input: []byte("TI")},
		{name: "empty", input: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dc := &TestDecryptionContext{}
			if _, err := dc.Decrypt(bytes.NewReader(tt.input)); err == nil {
				t.Error("Decrypt() should return error")
			}
		})
	}
}
