package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidErr("bad", nil)))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFoundErr("gone")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(UnauthorizedErr("who")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ForbiddenErr("no")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ConflictErr("dup")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Wrap(errors.New("boom"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "bad", PublicMessage(InvalidErr("bad", nil)))
	assert.Equal(t, "Something went wrong.", PublicMessage(errors.New("internal detail")))
	assert.Equal(t, "Something went wrong.", PublicMessage(Wrap(errors.New("internal detail"))))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(cause)
	assert.ErrorIs(t, err, cause)

	ae, ok := As(fmt.Errorf("outer: %w", err))
	assert.True(t, ok)
	assert.Equal(t, Internal, ae.Kind)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil))
}
