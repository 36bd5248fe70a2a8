package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndStatusSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("approve batch: %w", NewInsufficientStock("Not enough stock for Flour.").WithDetail("ingredient_id", "flour"))

	assert.Equal(t, CodeInsufficientStock, Code(err))
	assert.True(t, HasCode(err, CodeInsufficientStock))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(err))
	assert.Equal(t, "Not enough stock for Flour.", Message(err))
}

func TestUnclassifiedErrorsAreHidden(t *testing.T) {
	err := errors.New("pq: relation documents does not exist")

	assert.Equal(t, CodeInternal, Code(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.NotContains(t, Message(err), "relation")
}

func TestTransientKeepsCause(t *testing.T) {
	cause := errors.New("conflict")
	err := NewTransient(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
	assert.Empty(t, Code(nil))
}
