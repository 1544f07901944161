package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"essay_reader/essay"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("list: %w", Unavailable(errors.New("dial tcp"), ""))
	assert.True(t, IsKind(err, Transport))
	assert.False(t, IsKind(err, Rejected))
	assert.Equal(t, "list: Could not reach saved essays. Please try again.", err.Error())

	rej := Rejectedf(errors.New("constraint"), "Could not save %q", "Art")
	assert.True(t, IsKind(rej, Rejected))
	assert.Equal(t, `Could not save "Art"`, rej.Error())
}

func TestUnauthenticatedSentinel(t *testing.T) {
	assert.ErrorIs(t, CheckUser(" "), ErrUnauthenticated)
	assert.NoError(t, CheckUser("user42"))
	assert.NotEmpty(t, ErrUnauthenticated.Error())

	wrapped := &Error{Kind: Unauthenticated, Message: "token expired"}
	assert.ErrorIs(t, wrapped, ErrUnauthenticated)
	assert.NotErrorIs(t, Unavailable(nil, ""), ErrUnauthenticated)
}

func TestCheckKey(t *testing.T) {
	assert.NoError(t, CheckKey(essay.Key{Subject: "Art", ReadingLevel: essay.LevelChild, Content: "c"}))
	assert.True(t, IsKind(CheckKey(essay.Key{Subject: "Art", ReadingLevel: essay.LevelChild}), Rejected))
}
