package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(tree map[string]any) (map[string]any, error) { return tree, nil }

func TestMigrationRegistryRejectsDuplicates(t *testing.T) {
	r, err := NewMigrationRegistry(Migration{From: 1, Transform: identity})
	require.NoError(t, err)
	err = r.Register(Migration{From: 1, Transform: identity})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration")
}

func TestMigrationRegistryRequiresTransform(t *testing.T) {
	r, err := NewMigrationRegistry()
	require.NoError(t, err)
	assert.Error(t, r.Register(Migration{From: 1}))
}

func TestMigrationChainOrder(t *testing.T) {
	r, err := NewMigrationRegistry(
		Migration{From: 2, Transform: identity},
		Migration{From: 1, Transform: identity},
		Migration{From: 3, Transform: identity},
	)
	require.NoError(t, err)

	chain, err := r.chain(1, 4)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, uint16(1), chain[0].From)
	assert.Equal(t, uint16(2), chain[1].From)
	assert.Equal(t, uint16(3), chain[2].From)

	empty, err := r.chain(4, 4)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMigrationApplyStopsOnFailure(t *testing.T) {
	boom := errors.New("bad tree")
	migrations := []Migration{
		{From: 1, Transform: func(tree map[string]any) (map[string]any, error) {
			tree["step1"] = true
			return tree, nil
		}},
		{From: 2, Transform: func(map[string]any) (map[string]any, error) {
			return nil, boom
		}},
	}
	_, err := apply(migrations, map[string]any{})
	var migration *MigrationError
	require.ErrorAs(t, err, &migration)
	assert.Contains(t, migration.Reason, "migration from v2 failed")
}

func TestPayloadRegistryRejectsNewerVersion(t *testing.T) {
	payloads, err := NewPayloadRegistry(PayloadType{ContextType: "q", Version: 1})
	require.NoError(t, err)

	wc := &WorkingContext{ContextType: "q", Version: 5, Payload: map[string]any{}}
	err = payloads.materialize(wc)
	var migration *MigrationError
	require.ErrorAs(t, err, &migration)
	assert.Contains(t, migration.Reason, "newer than supported")
}

func TestPayloadRegistryUnknownTypePassesThrough(t *testing.T) {
	payloads, err := NewPayloadRegistry()
	require.NoError(t, err)
	wc := &WorkingContext{ContextType: "mystery", Version: 9, Payload: map[string]any{"k": "v"}}
	require.NoError(t, payloads.materialize(wc))
	assert.Equal(t, map[string]any{"k": "v"}, wc.Payload)
	assert.Equal(t, 9, wc.Version)
}

func TestPayloadRegistryMissingUpgrade(t *testing.T) {
	payloads, err := NewPayloadRegistry(PayloadType{ContextType: "q", Version: 3})
	require.NoError(t, err)
	wc := &WorkingContext{ContextType: "q", Version: 1, Payload: map[string]any{}}
	err = payloads.materialize(wc)
	var migration *MigrationError
	require.ErrorAs(t, err, &migration)
	assert.Contains(t, migration.Reason, "no upgrade")
}
