package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestOKEnvelope(t *testing.T) {
	w, resp := serve(t, func(c *gin.Context) {
		OK(c, gin.H{"id": 1})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]interface{}{"id": float64(1)}, resp.Data)
}

func TestFailValidation(t *testing.T) {
	w, resp := serve(t, func(c *gin.Context) {
		Fail(c, ValidationError("unknown sort field %q", "password"))
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, NameValidation, resp.Error.Name)
	assert.Equal(t, `unknown sort field "password"`, resp.Error.Message)
}

func TestFailHidesQueryErrors(t *testing.T) {
	w, resp := serve(t, func(c *gin.Context) {
		Fail(c, QueryError("list projects", errors.New("pq: relation \"projects\" does not exist")))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "InternalServerError", resp.Error.Name)
	assert.NotContains(t, resp.Error.Message, "relation")
}

func TestFailUnknownErrorIsInternal(t *testing.T) {
	w, resp := serve(t, func(c *gin.Context) {
		Fail(c, errors.New("boom"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "InternalServerError", resp.Error.Name)
}

func TestAuthorizationAndNotFoundDiffer(t *testing.T) {
	assert.NotEqual(t, AuthorizationError("x").Status, NotFoundError("project").Status)
	assert.True(t, IsName(ReconciliationError("delete links", 2, 1), NameReconciliation))
}
