package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/vletron/inkblog/middleware"
)

// unauthorizedMessage is the fixed message returned whenever an ownership
// check fails, regardless of which resource was touched.
const unauthorizedMessage = "Unauthorized"

// authzResult tags the outcome of an ownership check so callers branch on
// an explicit decision instead of a row existing or not.
type authzResult int

const (
	authzGranted authzResult = iota
	authzDenied
)

// requireOwner is the uniform authorization guard applied before every
// owner-gated mutation: the acting identity must be present and match the
// stored owner.
func requireOwner(ctx *gin.Context, ownerID uint) authzResult {
	uid, ok := getUserID(ctx)
	if !ok || uid != ownerID {
		return authzDenied
	}
	return authzGranted
}

// requireNullableOwner guards resources whose owner reference is nullable.
// Anonymous rows have no owner, so nobody passes the check.
func requireNullableOwner(ctx *gin.Context, ownerID *uint) authzResult {
	if ownerID == nil {
		return authzDenied
	}
	return requireOwner(ctx, *ownerID)
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}
