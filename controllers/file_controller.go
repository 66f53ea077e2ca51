package controllers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/vletron/inkblog/storage"
	"github.com/vletron/inkblog/utils"
)

// FileController serves blobs behind signed links issued by the store.
type FileController struct {
	store *storage.Store
}

// NewFileController creates a new FileController instance.
func NewFileController(store *storage.Store) *FileController {
	return &FileController{store: store}
}

// Download streams an object after validating the signed link token. The
// token is bound to exactly one key; a valid token for another object does
// not grant access here.
func (f *FileController) Download(ctx *gin.Context) {
	key := ctx.Param("key")

	tokenKey, err := f.store.VerifyToken(ctx.Query("token"))
	if err != nil || tokenKey != key {
		utils.Error(ctx, http.StatusForbidden, 40310, "invalid or expired link")
		return
	}

	obj, err := f.store.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			utils.Error(ctx, http.StatusNotFound, 40410, "object not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, err.Error())
		return
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, err.Error())
		return
	}

	http.ServeContent(ctx.Writer, ctx.Request, key, info.ModTime(), obj)
}
