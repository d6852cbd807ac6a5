package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepositoryKeepsTaxonomy(t *testing.T) {
	require.NoError(t, Repository("get", nil))

	err := Repository("get", ErrNotFound)
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrRepository)

	err = Repository("find", errors.New("connection reset"))
	require.ErrorIs(t, err, ErrRepository)
	require.Contains(t, err.Error(), "find")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("title is required"):           http.StatusBadRequest,
		fmt.Errorf("x: %w", ErrInvalidSubteam):     http.StatusBadRequest,
		ErrNotFound:                                http.StatusNotFound,
		ErrUnauthorized:                            http.StatusForbidden,
		ErrUnauthenticated:                         http.StatusUnauthorized,
		ErrConflict:                                http.StatusConflict,
		Repository("list", errors.New("timeout")): http.StatusServiceUnavailable,
		errors.New("boom"):                         http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
