package pii

import "log/slog"

// Reader decrypts stored columns for display. It never fails: plaintext rows
// left over from backfills pass through, and ciphertext that cannot be opened
// is returned as stored.
type Reader struct {
	codec  Codec
	logger *slog.Logger
}

func NewReader(codec Codec, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{codec: codec, logger: logger.With("module", "pii")}
}

// Field decrypts an optional stored value.
func (r *Reader) Field(stored *string) *string {
	if stored == nil {
		return nil
	}
	out := r.String(*stored)
	return &out
}

// String decrypts a stored value.
func (r *Reader) String(stored string) string {
	if !IsCiphertext(stored) {
		return stored
	}
	plain, err := r.codec.Decrypt(stored)
	if err != nil {
		r.logger.Warn("pii field left undecrypted",
			"operation", "pii_decrypt",
			"outcome", "failure",
			"error", err,
		)
		return stored
	}
	return plain
}
