package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/pkg/validation"
)

// dateLayouts are tried in order; plain dates are taken as UTC midnight.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

var (
	errInvalidID   = errors.New("invalid_snowflake_id")
	errInvalidTime = errors.New("invalid_time")
)

// parseOptionalBool returns nil for an empty value.
func parseOptionalBool(value string) (*bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// parseOptionalTime returns nil for an empty value.
func parseOptionalTime(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errInvalidTime
}

// pathID parses a snowflake path parameter, aborting with a validation
// error when it is malformed.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := parseID(c.Param(name))
	if err != nil {
		AbortWithError(c, validation.New(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

// queryID parses an optional snowflake query parameter, returning zero when
// it is absent.
func queryID(c *gin.Context, name string) (snowflake.ID, bool) {
	if strings.TrimSpace(c.Query(name)) == "" {
		return 0, true
	}
	id, err := parseID(c.Query(name))
	if err != nil {
		AbortWithError(c, validation.New(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}

// requiredDate accepts RFC 3339 timestamps or plain dates.
func requiredDate(c *gin.Context, field, value string) (time.Time, bool) {
	parsed, err := parseOptionalTime(value)
	if err != nil {
		AbortWithError(c, validation.New(field, "invalid_time", "must be a date or RFC 3339 timestamp"))
		return time.Time{}, false
	}
	if parsed == nil {
		AbortWithError(c, validation.New(field, "required", "is required"))
		return time.Time{}, false
	}
	return *parsed, true
}
