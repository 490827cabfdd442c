package tidy

import "io"

// Encryptor wraps backup archive streams in encryption.
// Encryption uses the public key only; decryption requires unlocking the
// private key with a passphrase.
type Encryptor interface {
	// Setup performs one-time key generation and protects the private key
	// with passphrase.
	Setup(passphrase string) error

	// Encrypt returns a writer that encrypts everything written to it into w.
	// Close must be called to flush the final block.
	Encrypt(w io.Writer) (io.WriteCloser, error)

	// Unlock decrypts the private key and returns a DecryptionContext for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of a recovery. The key is never written to disk.
type DecryptionContext interface {
	// Decrypt returns a reader yielding the plaintext of r.
	Decrypt(r io.Reader) (io.Reader, error)
}
