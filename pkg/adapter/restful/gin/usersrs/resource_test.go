// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package usersrs_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/adapter/db/sqlite"
	"github.com/storekit/storekit/pkg/adapter/restful/gin/usersrs"
	"github.com/storekit/storekit/pkg/core/model"
)

// newTestServer wires the users resource over a private in-memory
// database and returns the gin engine to drive with httptest.
func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	ctx := context.Background()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	p, err := sqlite.NewPool(ctx, dsn, 1)
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() {
		assert.NoError(t, p.Close(), "failed to close the pool")
	})
	_, err = p.DB.ExecContext(ctx, `CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
)`)
	require.NoError(t, err, "failed to create the users table")
	users, err := sqlite.NewRepository(p, model.UserMeta{}, nil)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	e := gin.New()
	usersrs.Register(e.Group("/api/v1/"), p.Manager(), users)
	return e
}

func serve(e *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func createUser(t *testing.T, e *gin.Engine, email string) model.User {
	t.Helper()
	w := serve(e, http.MethodPost, "/api/v1/users",
		fmt.Sprintf(`{"email": %q, "active": true}`, email))
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body)
	var u model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	return u
}

func TestCreateUser(t *testing.T) {
	e := newTestServer(t)
	u := createUser(t, e, "a@example.com")
	assert.NotZero(t, u.ID)
	assert.Equal(t, "a@example.com", u.Email)
	assert.True(t, u.Active)
}

func TestCreateUserValidation(t *testing.T) {
	e := newTestServer(t)
	w := serve(e, http.MethodPost, "/api/v1/users", `{"email": "not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(e, http.MethodPost, "/api/v1/users", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUser(t *testing.T) {
	e := newTestServer(t)
	u := createUser(t, e, "a@example.com")

	w := serve(e, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", u.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
	var got model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, u, got)

	w = serve(e, http.MethodGet, "/api/v1/users/4242", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(e, http.MethodGet, "/api/v1/users/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUsers(t *testing.T) {
	e := newTestServer(t)
	createUser(t, e, "a@example.com")
	createUser(t, e, "a@example.com")
	createUser(t, e, "b@example.com")

	w := serve(e, http.MethodGet, "/api/v1/users?email=a@example.com", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var got []model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	w = serve(e, http.MethodGet, "/api/v1/users", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "the email filter is required")
}

func TestUpdateUser(t *testing.T) {
	e := newTestServer(t)
	u := createUser(t, e, "a@example.com")

	w := serve(e, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", u.ID),
		`{"email": "b@example.com", "active": false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var got model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "b@example.com", got.Email)
	assert.False(t, got.Active)

	w = serve(e, http.MethodPut, "/api/v1/users/4242",
		`{"email": "b@example.com", "active": false}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteUser(t *testing.T) {
	e := newTestServer(t)
	u := createUser(t, e, "a@example.com")

	w := serve(e, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", u.ID), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(e, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", u.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(e, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", u.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
