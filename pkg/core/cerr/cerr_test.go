package cerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storekit/storekit/pkg/core/cerr"
)

func TestKindPredicates(t *testing.T) {
	t.Parallel()
	cause := errors.New("row is absent")

	err := cerr.NotFound(cause)
	assert.True(t, cerr.IsNotFound(err))
	assert.False(t, cerr.IsMapping(err))
	assert.False(t, cerr.IsBackend(err))

	assert.True(t, cerr.IsMapping(cerr.Mapping(cause)))
	assert.True(t, cerr.IsBackend(cerr.Backend(cause)))

	assert.False(t, cerr.IsNotFound(cause), "untagged errors carry no kind")
	assert.False(t, cerr.IsNotFound(nil))
}

func TestCauseIsPreserved(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection reset")
	err := cerr.Backend(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("loading user: %w", cerr.NotFound(errors.New("no rows")))
	assert.True(t, cerr.IsNotFound(err))
	assert.False(t, cerr.IsBackend(err))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(
		t, "backend error: timeout",
		cerr.Backend(errors.New("timeout")).Error(),
	)
	assert.Equal(t, "not-found error", (&cerr.Error{Kind: cerr.KindNotFound}).Error())
	assert.Equal(t, "mapping", cerr.KindMapping.String())
}
