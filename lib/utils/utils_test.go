package utils_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"poll-node/lib/utils"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, utils.Map([]int{1, 2, 3}, strconv.Itoa))
	assert.Empty(t, utils.Map([]int{}, strconv.Itoa))
}

func TestPromiseHelpers(t *testing.T) {
	v, err := utils.PromiseResolve(7).Await(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, *v)

	boom := errors.New("boom")
	_, err = utils.PromiseReject[int](boom).Await(context.Background())
	assert.ErrorIs(t, err, boom)
}
