// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package usersrs realizes the users resource of the demo REST
// server. Every handler runs its repository operations through the
// transaction manager, so one HTTP request forms one transactional
// chain; handlers never see a connection.
package usersrs

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/storekit/storekit/pkg/core/cerr"
	"github.com/storekit/storekit/pkg/core/model"
	"github.com/storekit/storekit/pkg/core/repo"
	"github.com/storekit/storekit/pkg/core/txn"
)

type resource struct {
	users repo.Repository[model.User, int64]
	mgr   *txn.Manager
}

// Register wires the users REST APIs:
//  1. POST   /users        creates a user.
//  2. GET    /users/:id    fetches one user.
//  3. GET    /users?email= lists users by email.
//  4. PUT    /users/:id    updates a user.
//  5. DELETE /users/:id    deletes a user.
func Register(r *gin.RouterGroup, mgr *txn.Manager, users repo.Repository[model.User, int64]) {
	rs := &resource{users: users, mgr: mgr}
	r.POST("users", rs.CreateUser)
	r.GET("users/:id", rs.GetUser)
	r.GET("users", rs.ListUsers)
	r.PUT("users/:id", rs.UpdateUser)
	r.DELETE("users/:id", rs.DeleteUser)
}

// requestCtx tags the request context so log records of one request
// can be correlated.
func requestCtx(c *gin.Context) context.Context {
	return context.WithValue(c.Request.Context(), requestIDKey{}, uuid.NewString())
}

type requestIDKey struct{}

// RequestID returns the correlation id of the given request context,
// if one has been assigned.
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

func (rs *resource) CreateUser(c *gin.Context) {
	req := rs.DserUserReq(c)
	if req == nil {
		return
	}
	user := &model.User{Email: req.Email, Active: req.Active}
	created, err := txn.Execute(requestCtx(c), rs.mgr, txn.DefaultDefinition(),
		func(ctx context.Context) (*model.User, error) {
			return rs.users.Insert(ctx, user)
		},
	)
	if err != nil {
		SerErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (rs *resource) GetUser(c *gin.Context) {
	id, ok := dserID(c)
	if !ok {
		return
	}
	def := txn.Definition{Propagation: txn.Supports, ReadOnly: true}
	user, err := txn.Execute(requestCtx(c), rs.mgr, def,
		func(ctx context.Context) (*model.User, error) {
			return rs.users.FindByID(ctx, id)
		},
	)
	if err != nil {
		SerErr(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (rs *resource) ListUsers(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "email query parameter is required"})
		return
	}
	def := txn.Definition{Propagation: txn.Supports, ReadOnly: true}
	users, err := txn.Execute(requestCtx(c), rs.mgr, def,
		func(ctx context.Context) ([]model.User, error) {
			return rs.users.FindByField(ctx, "email", email)
		},
	)
	if err != nil {
		SerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (rs *resource) UpdateUser(c *gin.Context) {
	id, ok := dserID(c)
	if !ok {
		return
	}
	req := rs.DserUserReq(c)
	if req == nil {
		return
	}
	user := &model.User{ID: id, Email: req.Email, Active: req.Active}
	updated, err := txn.Execute(requestCtx(c), rs.mgr, txn.DefaultDefinition(),
		func(ctx context.Context) (*model.User, error) {
			return rs.users.Update(ctx, user)
		},
	)
	if err != nil {
		SerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (rs *resource) DeleteUser(c *gin.Context) {
	id, ok := dserID(c)
	if !ok {
		return
	}
	deleted, err := txn.Execute(requestCtx(c), rs.mgr, txn.DefaultDefinition(),
		func(ctx context.Context) (bool, error) {
			return rs.users.DeleteByID(ctx, id)
		},
	)
	if err != nil {
		SerErr(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"detail": "user not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func dserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "id must be an integer"})
		return 0, false
	}
	return id, true
}

// SerErr serializes err with a status code matching its kind.
func SerErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case cerr.IsNotFound(err):
		status = http.StatusNotFound
	case cerr.IsMapping(err), cerr.IsBackend(err):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}
