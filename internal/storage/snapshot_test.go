package storage_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/osintgraph/internal/storage"
	"github.com/scrypster/osintgraph/internal/storage/storagetest"
	"github.com/scrypster/osintgraph/pkg/types"
)

func TestEncodeDecodeSnapshot(t *testing.T) {
	snap := storagetest.SampleSnapshot(time.Date(2024, 3, 3, 3, 3, 3, 0, time.UTC))

	data, err := storage.EncodeSnapshot(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)

	decoded, err := storage.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap.Entities[0].ID, decoded.Entities[0].ID)
	assert.Equal(t, snap.Relationships[0].Confidence, decoded.Relationships[0].Confidence)
	assert.Equal(t, snap.Clusters, decoded.Clusters)
}

func TestDecodeSnapshot_EmptyListsAreNotNil(t *testing.T) {
	decoded, err := storage.DecodeSnapshot([]byte(`{"version":1,"saved_at":"2024-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.NotNil(t, decoded.Entities)
	assert.NotNil(t, decoded.Relationships)
	assert.NotNil(t, decoded.Clusters)
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	valid := storagetest.SampleSnapshot(time.Now())
	data, err := storage.EncodeSnapshot(valid)
	require.NoError(t, err)
	doc := string(data)

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{"},
		{"unknown field", `{"version":1,"surprise":true}`},
		{"future version", `{"version":2}`},
		{"zero version", `{"version":0}`},
		{"unknown relationship kind", strings.Replace(doc, `"same_person"`, `"best_friends"`, 1)},
		{"unknown attribute type", strings.Replace(doc, `"type": "string"`, `"type": "blob"`, 1)},
		{"confidence out of range", strings.Replace(doc, `"confidence": 100`, `"confidence": 140`, 1)},
		{"dangling endpoint", strings.Replace(doc, `"entity_b": "ent:account:twitter:john_doe"`, `"entity_b": "ent:account:x:y"`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotEqual(t, doc, tt.doc)
			_, err := storage.DecodeSnapshot([]byte(tt.doc))
			assert.True(t, errors.Is(err, storage.ErrCorruptSnapshot), "got %v", err)
		})
	}
}

func TestSnapshotValidate_Duplicates(t *testing.T) {
	snap := storagetest.SampleSnapshot(time.Now())
	snap.Entities = append(snap.Entities, snap.Entities[0])
	assert.ErrorIs(t, snap.Validate(), storage.ErrCorruptSnapshot)

	snap = storagetest.SampleSnapshot(time.Now())
	mirror := snap.Relationships[0].Clone()
	mirror.ID = "rel:mirror"
	mirror.EntityA, mirror.EntityB = mirror.EntityB, mirror.EntityA
	snap.Relationships = append(snap.Relationships, mirror)
	assert.ErrorIs(t, snap.Validate(), storage.ErrCorruptSnapshot, "one relationship per unordered pair")
}

func TestNewSnapshot_KeepsEntityOrder(t *testing.T) {
	entities := []*types.Entity{
		{ID: "ent:ip:10.0.0.2", Kind: types.EntityIP, Name: "10.0.0.2"},
		{ID: "ent:ip:10.0.0.1", Kind: types.EntityIP, Name: "10.0.0.1"},
	}
	snap := storage.NewSnapshot(entities, nil, nil, time.Now())
	assert.Equal(t, "ent:ip:10.0.0.2", snap.Entities[0].ID, "first-seen order is part of the state")

	entities[0] = nil
	assert.NotNil(t, snap.Entities[0], "slice is copied")
	assert.NotNil(t, snap.Relationships)
	assert.NotNil(t, snap.Clusters)
}

func TestValidateName(t *testing.T) {
	for _, good := range []string{"current", "case-42", "2024.05.01_run", "A"} {
		assert.NoError(t, storage.ValidateName(good), good)
	}
	for _, bad := range []string{"", ".hidden", "a/b", "a b", strings.Repeat("x", 129)} {
		assert.ErrorIs(t, storage.ValidateName(bad), storage.ErrInvalidInput, bad)
	}
}
