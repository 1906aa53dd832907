package conversation

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/plankit/runtime/plan"
)

func sampleState() *State {
	return &State{
		OriginalInstruction: "book a hotel in Lisbon",
		LatestUserMessage:   "two nights",
		PendingParams: []plan.PendingParam{
			{Name: "checkin", Prompt: "When do you arrive?"},
		},
		ProvidedParams: map[string]any{"city": "Lisbon", "nights": float64(2)},
		WorkingContext: &WorkingContext{
			ContextType:  "hotel_query",
			Version:      1,
			Payload:      map[string]any{"city": "Lisbon"},
			LastModified: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewCodec(CodecOptions{})
	blob, err := c.Encode(sampleState())
	require.NoError(t, err)

	got, err := c.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "book a hotel in Lisbon", got.OriginalInstruction)
	assert.Equal(t, "two nights", got.LatestUserMessage)
	require.Len(t, got.PendingParams, 1)
	assert.Equal(t, "checkin", got.PendingParams[0].Name)
	assert.Equal(t, "Lisbon", got.ProvidedParams["city"])
	require.NotNil(t, got.WorkingContext)
	assert.Equal(t, "hotel_query", got.WorkingContext.ContextType)
}

func TestBlobHeaderLayout(t *testing.T) {
	c := NewCodec(CodecOptions{})
	blob, err := c.Encode(Initial("hi"))
	require.NoError(t, err)

	require.Greater(t, len(blob), headerSize)
	assert.Equal(t, "CVST", string(blob[0:4]))
	assert.Equal(t, CurrentVersion, binary.BigEndian.Uint16(blob[4:6]))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(blob[6:8]))
	assert.Equal(t, uint32(len(blob)-headerSize), binary.BigEndian.Uint32(blob[40:44]))
	assert.False(t, isZero(blob[8:40]), "hash is populated by default")
}

func TestDecodeRejectsCorruption(t *testing.T) {
	c := NewCodec(CodecOptions{})
	blob, err := c.Encode(sampleState())
	require.NoError(t, err)

	corrupt := func(mutate func([]byte)) []byte {
		b := append([]byte(nil), blob...)
		mutate(b)
		return b
	}

	cases := []struct {
		name   string
		blob   []byte
		reason string
	}{
		{"truncated header", blob[:10], "shorter than"},
		{"bad magic", corrupt(func(b []byte) { copy(b, "XXXX") }), "bad magic"},
		{"version zero", corrupt(func(b []byte) { binary.BigEndian.PutUint16(b[4:6], 0) }), "version 0"},
		{"future version", corrupt(func(b []byte) { binary.BigEndian.PutUint16(b[4:6], 99) }), "newer than supported"},
		{"reserved flags", corrupt(func(b []byte) { binary.BigEndian.PutUint16(b[6:8], 1) }), "reserved flags"},
		{"length mismatch", corrupt(func(b []byte) { binary.BigEndian.PutUint32(b[40:44], 7) }), "does not match"},
		{"payload flipped", corrupt(func(b []byte) { b[headerSize] ^= 0xFF }), "hash mismatch"},
		{"hash flipped", corrupt(func(b []byte) { b[8] ^= 0xFF }), "hash mismatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Decode(tc.blob)
			var integrity *IntegrityError
			require.ErrorAs(t, err, &integrity)
			assert.Contains(t, integrity.Reason, tc.reason)
		})
	}
}

func TestDecodeWithoutHash(t *testing.T) {
	c := NewCodec(CodecOptions{DisableHash: true})
	blob, err := c.Encode(sampleState())
	require.NoError(t, err)
	assert.True(t, isZero(blob[8:40]))

	// A zero hash skips verification entirely.
	_, err = c.Decode(blob)
	require.NoError(t, err)
}

func TestDecodeAppliesMigrations(t *testing.T) {
	migrations, err := NewMigrationRegistry(
		Migration{From: 1, Transform: func(tree map[string]any) (map[string]any, error) {
			// v2 renamed the instruction field.
			tree["originalInstruction"] = tree["instruction"]
			delete(tree, "instruction")
			return tree, nil
		}},
	)
	require.NoError(t, err)

	v1 := NewCodec(CodecOptions{Version: 1, Migrations: migrations})
	v2 := NewCodec(CodecOptions{Version: 2, Migrations: migrations})

	// Simulate a v1 blob whose JSON uses the old field name.
	old := map[string]any{"instruction": "old shape", "latestUserMessage": "hi"}
	blob := encodeTree(t, v1, old)

	got, err := v2.Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "old shape", got.OriginalInstruction)
	assert.Equal(t, "hi", got.LatestUserMessage)
}

func TestDecodeMissingMigrationLink(t *testing.T) {
	v1 := NewCodec(CodecOptions{Version: 1})
	v3 := NewCodec(CodecOptions{Version: 3})

	blob, err := v1.Encode(Initial("hi"))
	require.NoError(t, err)

	_, err = v3.Decode(blob)
	var migration *MigrationError
	require.ErrorAs(t, err, &migration)
	assert.Contains(t, migration.Reason, "no migration from blob version 1")
}

func TestDecodeMaterializesPayload(t *testing.T) {
	type hotelQuery struct {
		City   string `json:"city"`
		Nights int    `json:"nights"`
	}
	payloads, err := NewPayloadRegistry(PayloadType{
		ContextType: "hotel_query",
		Version:     2,
		Decode: func(data []byte) (any, error) {
			var q hotelQuery
			if err := json.Unmarshal(data, &q); err != nil {
				return nil, err
			}
			return q, nil
		},
		Upgrades: map[int]func(map[string]any) (map[string]any, error){
			1: func(tree map[string]any) (map[string]any, error) {
				// v2 added nights with a default.
				if _, ok := tree["nights"]; !ok {
					tree["nights"] = float64(1)
				}
				return tree, nil
			},
		},
	})
	require.NoError(t, err)

	plain := NewCodec(CodecOptions{})
	blob, err := plain.Encode(sampleState())
	require.NoError(t, err)

	typed := NewCodec(CodecOptions{Payloads: payloads})
	got, err := typed.Decode(blob)
	require.NoError(t, err)
	require.NotNil(t, got.WorkingContext)
	assert.Equal(t, hotelQuery{City: "Lisbon", Nights: 1}, got.WorkingContext.Payload)
	assert.Equal(t, 2, got.WorkingContext.Version)
}

func TestToReadableJSON(t *testing.T) {
	c := NewCodec(CodecOptions{})
	blob, err := c.Encode(sampleState())
	require.NoError(t, err)

	pretty, err := c.ToReadableJSON(blob)
	require.NoError(t, err)
	assert.Contains(t, pretty, `"originalInstruction": "book a hotel in Lisbon"`)
	assert.True(t, strings.HasPrefix(pretty, "{"))

	_, err = c.ToReadableJSON([]byte("junk"))
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestEncodeDecodeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	c := NewCodec(CodecOptions{})

	properties.Property("round-trip preserves the instruction and message", prop.ForAll(
		func(instruction, message string) bool {
			s := Initial(instruction)
			s.LatestUserMessage = message
			blob, err := c.Encode(s)
			if err != nil {
				return false
			}
			got, err := c.Decode(blob)
			if err != nil {
				return false
			}
			return got.OriginalInstruction == instruction && got.LatestUserMessage == message
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("provided params survive the round trip", prop.ForAll(
		func(keys []string) bool {
			s := Initial("x")
			for _, k := range keys {
				if k == "" {
					continue
				}
				s.ProvidedParams[k] = k + "-value"
			}
			blob, err := c.Encode(s)
			if err != nil {
				return false
			}
			got, err := c.Decode(blob)
			if err != nil {
				return false
			}
			for k := range s.ProvidedParams {
				if got.ProvidedParams[k] != k+"-value" {
					return false
				}
			}
			return len(got.ProvidedParams) == len(s.ProvidedParams)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("any single payload byte flip is detected", prop.ForAll(
		func(seed int) bool {
			blob, err := c.Encode(sampleState())
			if err != nil {
				return false
			}
			idx := headerSize + seed%(len(blob)-headerSize)
			blob[idx] ^= 0x01
			_, err = c.Decode(blob)
			return err != nil
		},
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t)
}

// encodeTree builds a blob whose JSON payload is the given tree verbatim,
// bypassing State marshaling so tests can fabricate historical shapes.
func encodeTree(t *testing.T, c *Codec, tree map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(tree)
	require.NoError(t, err)
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	blob := make([]byte, headerSize+compressed.Len())
	copy(blob[0:4], blobMagic)
	binary.BigEndian.PutUint16(blob[4:6], c.version)
	sum := sha256.Sum256(compressed.Bytes())
	copy(blob[8:40], sum[:])
	binary.BigEndian.PutUint32(blob[40:44], uint32(compressed.Len()))
	copy(blob[headerSize:], compressed.Bytes())
	return blob
}
