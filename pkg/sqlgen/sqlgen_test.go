package sqlgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/sqlgen"
)

var users = sqlgen.Table{
	Name:          "users",
	IDColumn:      "id",
	SelectColumns: []string{"id", "email", "active"},
	InsertColumns: []string{"email", "active"},
	UpdateColumns: []string{"email", "active"},
}

func TestSelectByID(t *testing.T) {
	t.Parallel()
	q, err := sqlgen.SelectByID(sqlgen.Question, users)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, email, active FROM users WHERE id = ?", q)

	q, err = sqlgen.SelectByID(sqlgen.Dollar, users)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, email, active FROM users WHERE id = $1", q)
}

func TestSelectByField(t *testing.T) {
	t.Parallel()
	q, err := sqlgen.SelectByField(sqlgen.Question, users, "email")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, email, active FROM users WHERE email = ?", q)

	q, err = sqlgen.SelectByField(sqlgen.Dollar, users, "email")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, email, active FROM users WHERE email = $1", q)
}

func TestInsert(t *testing.T) {
	t.Parallel()
	q, err := sqlgen.Insert(sqlgen.Question, users, "")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO users (email,active) VALUES (?,?)", q)

	q, err = sqlgen.Insert(sqlgen.Dollar, users, "id")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO users (email,active) VALUES ($1,$2) RETURNING id", q)
}

func TestUpdateByID(t *testing.T) {
	t.Parallel()
	q, err := sqlgen.UpdateByID(sqlgen.Question, users)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE users SET email = ?, active = ? WHERE id = ?", q)

	q, err = sqlgen.UpdateByID(sqlgen.Dollar, users)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE users SET email = $1, active = $2 WHERE id = $3", q)
}

func TestDeleteByID(t *testing.T) {
	t.Parallel()
	q, err := sqlgen.DeleteByID(sqlgen.Question, users)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM users WHERE id = ?", q)

	q, err = sqlgen.DeleteByID(sqlgen.Dollar, users)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM users WHERE id = $1", q)
}
