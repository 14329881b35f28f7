package satchel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/snappy"
)

// Snapshot envelope layout: 4-byte magic, version byte, flag byte, then an
// optional 32-byte key-derivation salt when the encrypted flag is set, then
// the payload (snappy-compressed JSON, encrypted as a whole when enabled).
var snapshotMagic = [4]byte{'S', 'S', 'N', 'P'}

const (
	snapshotVersion    = 1
	snapshotHeaderSize = 4 + 1 + 1

	snapshotFlagEncrypted = 1 << 0
)

// snapshotPayload is the decoded body of a snapshot: every collection's
// documents keyed by path and id.
type snapshotPayload struct {
	Version     int                            `json:"version"`
	CreatedAt   int64                          `json:"created_at"`
	Collections map[string]map[string]Document `json:"collections"`
}

// encodeSnapshot builds the snapshot envelope for a set of collections.
// A nil encryptor produces a plaintext (but still compressed) snapshot.
func encodeSnapshot(collections map[string]map[string]Document, enc *Encryptor) ([]byte, error) {
	payload := snapshotPayload{
		Version:     snapshotVersion,
		CreatedAt:   time.Now().UnixNano(),
		Collections: collections,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, newSnapshotError(SnapshotErrorTypeEncode, "snapshot encode failed", "", err)
	}

	body := snappy.Encode(nil, raw)

	var flags byte
	if enc != nil {
		flags |= snapshotFlagEncrypted
		body, err = enc.Encrypt(body)
		if err != nil {
			return nil, newSnapshotError(SnapshotErrorTypeEncode, "snapshot encrypt failed", "", err)
		}
	}

	out := make([]byte, 0, snapshotHeaderSize+EncryptionSaltSize+len(body))
	out = append(out, snapshotMagic[:]...)
	out = append(out, snapshotVersion, flags)
	if enc != nil {
		salt := enc.Salt()
		if len(salt) != EncryptionSaltSize {
			salt = make([]byte, EncryptionSaltSize)
		}
		out = append(out, salt...)
	}
	return append(out, body...), nil
}

// decodeSnapshot parses a snapshot envelope, decrypting with the given
// encryption settings when the encrypted flag is set.
func decodeSnapshot(data []byte, encCfg *EncryptionConfig) (*snapshotPayload, error) {
	if len(data) < snapshotHeaderSize {
		return nil, newSnapshotError(SnapshotErrorTypeDecode, "snapshot too short", "", nil)
	}
	if [4]byte(data[:4]) != snapshotMagic {
		return nil, newSnapshotError(SnapshotErrorTypeDecode, "bad snapshot magic", "", nil)
	}
	if data[4] != snapshotVersion {
		return nil, newSnapshotError(SnapshotErrorTypeDecode, "unsupported snapshot version", "", nil)
	}
	flags := data[5]
	body := data[snapshotHeaderSize:]

	if flags&snapshotFlagEncrypted != 0 {
		if len(body) < EncryptionSaltSize {
			return nil, newSnapshotError(SnapshotErrorTypeDecode, "snapshot missing salt", "", nil)
		}
		salt := body[:EncryptionSaltSize]
		body = body[EncryptionSaltSize:]

		enc, err := encryptorFor(encCfg, salt)
		if err != nil {
			return nil, newSnapshotError(SnapshotErrorTypeDecode, "snapshot decrypt failed", "", err)
		}
		body, err = enc.Decrypt(body)
		if err != nil {
			return nil, newSnapshotError(SnapshotErrorTypeDecode, "snapshot decrypt failed", "", err)
		}
	}

	raw, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, newSnapshotError(SnapshotErrorTypeDecode, "snapshot decompress failed", "", err)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, newSnapshotError(SnapshotErrorTypeDecode, "snapshot decode failed", "", err)
	}
	return &payload, nil
}

func encryptorFor(cfg *EncryptionConfig, salt []byte) (*Encryptor, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrSnapshotCorrupt
	}
	if len(cfg.Key) > 0 {
		return NewEncryptorWithKey(cfg.Key)
	}
	return NewEncryptorWithSalt(cfg.KeyPassword, salt)
}

// writeSnapshot encodes and stores a snapshot under key.
func writeSnapshot(ctx context.Context, backend SnapshotBackend, key string, collections map[string]map[string]Document, enc *Encryptor) error {
	data, err := encodeSnapshot(collections, enc)
	if err != nil {
		return err
	}
	if err := backend.Write(ctx, key, data); err != nil {
		return newSnapshotError(SnapshotErrorTypeBackend, "snapshot write failed", key, err)
	}
	return nil
}

// readSnapshot loads and decodes the snapshot under key.
func readSnapshot(ctx context.Context, backend SnapshotBackend, key string, encCfg *EncryptionConfig) (*snapshotPayload, error) {
	data, err := backend.Read(ctx, key)
	if err != nil {
		return nil, newSnapshotError(SnapshotErrorTypeBackend, "snapshot read failed", key, err)
	}
	return decodeSnapshot(data, encCfg)
}
