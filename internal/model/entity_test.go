package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEntity(t *testing.T) {
	now := time.Now()
	e := NewEntity("abc", now)
	assert.Equal(t, "abc", e.ID)
	assert.Empty(t, e.Fields)
	assert.Empty(t, e.History)
	assert.Equal(t, now, e.CreatedAt)
}

func TestEntity_Name(t *testing.T) {
	e := NewEntity("x", time.Now())
	assert.Equal(t, "", e.Name())

	e.Fields[FieldName] = FieldValue{FieldKey: FieldName, Value: "ABC Pte Ltd"}
	assert.Equal(t, "ABC Pte Ltd", e.Name())
}

func TestEntity_Snapshot_Isolated(t *testing.T) {
	e := NewEntity("x", time.Now())
	e.Fields[FieldName] = FieldValue{FieldKey: FieldName, Value: "Original"}
	e.History[FieldName] = []FieldValue{{FieldKey: FieldName, Value: "Original"}}

	snap := e.Snapshot()

	e.Fields[FieldName] = FieldValue{FieldKey: FieldName, Value: "Mutated"}
	e.History[FieldName] = append(e.History[FieldName], FieldValue{Value: "Mutated"})

	assert.Equal(t, "Original", snap.Fields[FieldName].Value)
	assert.Len(t, snap.History[FieldName], 1)
}
