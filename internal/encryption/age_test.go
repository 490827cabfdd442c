package encryption

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"tidy-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	cfg := config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "tidy.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "tidy.key"),
	}
	return NewAgeEncryptor(cfg)
}

func encryptAll(t *testing.T, e interface {
	Encrypt(io.Writer) (io.WriteCloser, error)
}, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := e.Encrypt(&buf)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestAgeEncryptor_IsConfigured_BeforeSetup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()

	t.Run("configures keys", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup("test-passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if !e.IsConfigured() {
			t.Error("IsConfigured() = false after Setup, want true")
		}
	})

	t.Run("refuses to replace existing keys", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup("test-passphrase"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if err := e.Setup("other"); err == nil {
			t.Error("second Setup() should fail")
		}
	})

	t.Run("rejects empty passphrase", func(t *testing.T) {
		t.Parallel()
		e := newTestAgeEncryptor(t)
		if err := e.Setup(""); err == nil {
			t.Error("Setup(\"\") should fail")
		}
	})
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 100000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passphrase := "test-passphrase"
			e := newTestAgeEncryptor(t)
			if err := e.Setup(passphrase); err != nil {
				t.Fatalf("Setup() error = %v", err)
			}

			encrypted := encryptAll(t, e, tt.input)
			if len(tt.input) > 0 && bytes.Contains(encrypted, tt.input) {
				t.Error("encrypted output contains the plaintext")
			}

			dc, err := e.Unlock(passphrase)
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			r, err := dc.Decrypt(bytes.NewReader(encrypted))
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			decrypted, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("reading plaintext: %v", err)
			}
			if !bytes.Equal(decrypted, tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", len(decrypted), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong-passphrase"); err == nil {
		t.Error("Unlock() with wrong passphrase should return error")
	}
}

func TestAgeEncryptor_EncryptBeforeSetup(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if _, err := e.Encrypt(io.Discard); err == nil {
		t.Error("Encrypt() before Setup should return error")
	}
}
