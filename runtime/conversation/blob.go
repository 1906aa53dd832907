package conversation

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

type (
	// IntegrityError reports a structurally invalid blob: bad magic,
	// unsupported version, reserved flags, length mismatch, or hash
	// mismatch. Callers must reset the conversation.
	IntegrityError struct {
		Reason string
	}

	// Codec encodes conversation state into versioned blobs and decodes
	// blobs back, applying version migrations and payload materialization
	// on the way in. Codecs are immutable and safe for concurrent use.
	Codec struct {
		version    uint16
		withHash   bool
		migrations *MigrationRegistry
		payloads   *PayloadRegistry
	}

	// CodecOptions configures NewCodec. The zero value yields a codec at
	// CurrentVersion with hashing enabled and no migrations.
	CodecOptions struct {
		// Version overrides the blob version written by Encode. Zero means
		// CurrentVersion.
		Version uint16

		// DisableHash leaves the integrity hash zeroed on encode.
		DisableHash bool

		// Migrations upgrades older blobs during decode.
		Migrations *MigrationRegistry

		// Payloads materializes polymorphic working-context payloads.
		Payloads *PayloadRegistry
	}
)

// Blob header layout, 44 bytes total, big-endian integers:
//
//	offset 0  size 4   magic "CVST"
//	offset 4  size 2   version
//	offset 6  size 2   flags (reserved, zero)
//	offset 8  size 32  SHA-256 over the compressed payload (optional, zero when absent)
//	offset 40 size 4   payload length
const (
	blobMagic  = "CVST"
	headerSize = 44

	// CurrentVersion is the blob version written by default.
	CurrentVersion uint16 = 1
)

// Error implements the error interface.
func (e *IntegrityError) Error() string { return "conversation: " + e.Reason }

// NewCodec constructs a blob codec.
func NewCodec(opts CodecOptions) *Codec {
	version := opts.Version
	if version == 0 {
		version = CurrentVersion
	}
	return &Codec{
		version:    version,
		withHash:   !opts.DisableHash,
		migrations: opts.Migrations,
		payloads:   opts.Payloads,
	}
}

// Encode serializes the state: JSON, gzip, then the 44-byte header.
func (c *Codec) Encode(s *State) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("conversation: encode state: %w", err)
	}
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("conversation: compress state: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("conversation: compress state: %w", err)
	}

	blob := make([]byte, headerSize+compressed.Len())
	copy(blob[0:4], blobMagic)
	binary.BigEndian.PutUint16(blob[4:6], c.version)
	// flags at [6:8] stay zero (reserved)
	if c.withHash {
		sum := sha256.Sum256(compressed.Bytes())
		copy(blob[8:40], sum[:])
	}
	binary.BigEndian.PutUint32(blob[40:44], uint32(compressed.Len()))
	copy(blob[headerSize:], compressed.Bytes())
	return blob, nil
}

// Decode validates the header, verifies integrity, decompresses, applies
// version migrations on the JSON tree, materializes the working-context
// payload, and returns the state.
func (c *Codec) Decode(blob []byte) (*State, error) {
	compressed, version, err := c.checkHeader(blob)
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	if version < c.version {
		migrations, err = c.migrations.chain(version, c.version)
		if err != nil {
			return nil, err
		}
	}

	payload, err := gunzip(compressed)
	if err != nil {
		return nil, &IntegrityError{Reason: fmt.Sprintf("payload decompression failed: %v", err)}
	}

	var tree map[string]any
	if err := json.Unmarshal(payload, &tree); err != nil {
		return nil, &IntegrityError{Reason: fmt.Sprintf("payload is not valid state JSON: %v", err)}
	}
	if tree, err = apply(migrations, tree); err != nil {
		return nil, err
	}

	migrated, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("conversation: re-encode migrated state: %w", err)
	}
	var state State
	if err := json.Unmarshal(migrated, &state); err != nil {
		return nil, &IntegrityError{Reason: fmt.Sprintf("migrated state does not decode: %v", err)}
	}
	if err := c.payloads.materialize(state.WorkingContext); err != nil {
		return nil, err
	}
	for i := range state.TurnHistory {
		if err := c.payloads.materialize(&state.TurnHistory[i]); err != nil {
			return nil, err
		}
	}
	if state.ProvidedParams == nil {
		state.ProvidedParams = make(map[string]any)
	}
	return &state, nil
}

// ToReadableJSON returns the pretty-printed state JSON of the blob for
// debugging. The blob is not mutated and migrations are not applied.
func (c *Codec) ToReadableJSON(blob []byte) (string, error) {
	compressed, _, err := c.checkHeader(blob)
	if err != nil {
		return "", err
	}
	payload, err := gunzip(compressed)
	if err != nil {
		return "", &IntegrityError{Reason: fmt.Sprintf("payload decompression failed: %v", err)}
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		return "", &IntegrityError{Reason: fmt.Sprintf("payload is not valid JSON: %v", err)}
	}
	return pretty.String(), nil
}

// checkHeader validates the fixed header and returns the compressed payload
// and the blob version.
func (c *Codec) checkHeader(blob []byte) ([]byte, uint16, error) {
	if len(blob) < headerSize {
		return nil, 0, &IntegrityError{Reason: fmt.Sprintf("blob is %d bytes, shorter than the %d-byte header", len(blob), headerSize)}
	}
	if string(blob[0:4]) != blobMagic {
		return nil, 0, &IntegrityError{Reason: "bad magic"}
	}
	version := binary.BigEndian.Uint16(blob[4:6])
	if version == 0 {
		return nil, 0, &IntegrityError{Reason: "blob version 0 is invalid"}
	}
	if version > c.version {
		return nil, 0, &IntegrityError{Reason: fmt.Sprintf("blob version %d is newer than supported %d", version, c.version)}
	}
	if flags := binary.BigEndian.Uint16(blob[6:8]); flags != 0 {
		return nil, 0, &IntegrityError{Reason: fmt.Sprintf("reserved flags %#x are set", flags)}
	}
	length := binary.BigEndian.Uint32(blob[40:44])
	compressed := blob[headerSize:]
	if uint32(len(compressed)) != length {
		return nil, 0, &IntegrityError{Reason: fmt.Sprintf("payload length %d does not match header %d", len(compressed), length)}
	}
	if hash := blob[8:40]; !isZero(hash) {
		sum := sha256.Sum256(compressed)
		if !bytes.Equal(hash, sum[:]) {
			return nil, 0, &IntegrityError{Reason: "payload hash mismatch"}
		}
	}
	return compressed, version, nil
}

func gunzip(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
