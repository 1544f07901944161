// Package gatewaytest holds behaviour checks shared by every persistence.Gateway.
package gatewaytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"essay_reader/essay"
	"essay_reader/persistence"
)

// Factory returns a fresh, empty gateway. Cleanup is the factory's job.
type Factory func(t *testing.T) persistence.Gateway

// Key builds a duplicate-detection tuple for tests.
func Key(subject string, level essay.ReadingLevel, content string) essay.Key {
	return essay.Key{Subject: subject, ReadingLevel: level, Content: content}
}

// Run executes the shared checks against gateways built by newGateway.
func Run(t *testing.T, newGateway Factory) {
	t.Run("EmptyListIsNotAnError", func(t *testing.T) {
		g := newGateway(t)
		records, err := g.ListSaved(context.Background(), "nobody")
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("SaveThenFindDuplicate", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		k := Key("Physics", essay.LevelUniversity, "Quantum mechanics ...")

		id, err := g.Save(ctx, "user42", k)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		found, err := g.FindDuplicate(ctx, "user42", k)
		require.NoError(t, err)
		assert.Equal(t, id, found)

		other, err := g.FindDuplicate(ctx, "user7", k)
		require.NoError(t, err)
		assert.Empty(t, other, "duplicates are scoped to the user")

		miss, err := g.FindDuplicate(ctx, "user42", Key("Physics", essay.LevelExpert, "Quantum mechanics ..."))
		require.NoError(t, err)
		assert.Empty(t, miss, "matching is exact on every field")
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		first, err := g.Save(ctx, "user42", Key("Art", essay.LevelChild, "one"))
		require.NoError(t, err)
		second, err := g.Save(ctx, "user42", Key("Art", essay.LevelChild, "two"))
		require.NoError(t, err)
		_, err = g.Save(ctx, "user7", Key("Art", essay.LevelChild, "not mine"))
		require.NoError(t, err)

		records, err := g.ListSaved(ctx, "user42")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, second, records[0].ID)
		assert.Equal(t, first, records[1].ID)
		assert.Equal(t, "user42", records[0].UserID)
		assert.Equal(t, essay.LevelChild, records[0].ReadingLevel)
		assert.False(t, records[0].CreatedAt.IsZero())
	})

	t.Run("RemoveThenGone", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		k := Key("History", essay.LevelHigh, "Rome ...")
		id, err := g.Save(ctx, "user42", k)
		require.NoError(t, err)

		require.NoError(t, g.Remove(ctx, id, "user42"))

		found, err := g.FindDuplicate(ctx, "user42", k)
		require.NoError(t, err)
		assert.Empty(t, found)
		records, err := g.ListSaved(ctx, "user42")
		require.NoError(t, err)
		assert.Empty(t, records)

		assert.NoError(t, g.Remove(ctx, id, "user42"), "removing a missing row succeeds")
	})

	t.Run("RemoveNeverCrossesUsers", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		id, err := g.Save(ctx, "owner", Key("Science", essay.LevelMiddle, "cells"))
		require.NoError(t, err)

		_ = g.Remove(ctx, id, "intruder")

		records, err := g.ListSaved(ctx, "owner")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, id, records[0].ID)
	})

	t.Run("DuplicateRowsResolveToNewest", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		k := Key("Economics", essay.LevelExpert, "same text")
		_, err := g.Save(ctx, "user42", k)
		require.NoError(t, err)
		newest, err := g.Save(ctx, "user42", k)
		require.NoError(t, err)

		found, err := g.FindDuplicate(ctx, "user42", k)
		require.NoError(t, err)
		assert.Equal(t, newest, found)
	})

	t.Run("RequiresUser", func(t *testing.T) {
		g := newGateway(t)
		ctx := context.Background()
		k := Key("Art", essay.LevelChild, "x")

		_, err := g.ListSaved(ctx, "")
		assert.ErrorIs(t, err, persistence.ErrUnauthenticated)
		_, err = g.Save(ctx, "", k)
		assert.ErrorIs(t, err, persistence.ErrUnauthenticated)
		assert.ErrorIs(t, g.Remove(ctx, "id", ""), persistence.ErrUnauthenticated)
		_, err = g.FindDuplicate(ctx, "", k)
		assert.ErrorIs(t, err, persistence.ErrUnauthenticated)
	})

	t.Run("SaveRejectsIncompleteEssay", func(t *testing.T) {
		g := newGateway(t)
		_, err := g.Save(context.Background(), "user42", Key("Art", essay.LevelChild, ""))
		assert.True(t, persistence.IsKind(err, persistence.Rejected), "got %v", err)
	})
}
