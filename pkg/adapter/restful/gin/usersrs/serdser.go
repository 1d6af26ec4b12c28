// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package usersrs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

// UserReq is the request body of the create and update user APIs.
type UserReq struct {
	Email  string `json:"email" validate:"required,email"`
	Active bool   `json:"active"`
}

var validate = validator.New()

// DserUserReq deserializes and validates a UserReq from the request
// body, reporting binding problems to the client itself. A nil return
// value indicates that a response has been written already.
func (rs *resource) DserUserReq(c *gin.Context) *UserReq {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil
	}
	req := &UserReq{}
	if err := json.Unmarshal(data, req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil
	}
	switch err := validate.Struct(req).(type) {
	case *validator.InvalidValidationError:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	case validator.ValidationErrors:
		var nameToErrs map[string][]string
		for _, ferr := range err {
			addErr(&nameToErrs, ferr.Field(), ferr.Error())
		}
		c.JSON(http.StatusBadRequest, nameToErrs)
	default:
		if err == nil {
			return req
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	}
	return nil
}

func addErr(errs *map[string][]string, name string, msgs ...string) {
	if (*errs) == nil {
		*errs = make(map[string][]string)
	}
	if elist, ok := (*errs)[name]; !ok {
		(*errs)[name] = msgs
	} else {
		(*errs)[name] = append(elist, msgs...)
	}
}
