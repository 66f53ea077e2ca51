package controllers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vletron/inkblog/models"
	"github.com/vletron/inkblog/storage"
	"github.com/vletron/inkblog/utils"
)

// CommentController manages comments and their image attachments.
type CommentController struct {
	db    *gorm.DB
	store *storage.Store
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB, store *storage.Store) *CommentController {
	return &CommentController{db: db, store: store}
}

// Attachment change modes submitted by the client on comment edit.
const (
	changeAdded   = "added"
	changeRemoved = "removed"
)

// AttachmentChange is one entry of the client-submitted diff describing how
// the attachment set of a comment changes during an edit. Added entries are
// matched positionally against the uploaded files; removed entries name
// stored attachment rows by id.
type AttachmentChange struct {
	ID    string `json:"id"`
	Mode  string `json:"mode"`
	IsNew bool   `json:"isNew"`
}

// parseAttachmentChanges decodes and validates the diff side channel.
func parseAttachmentChanges(raw string) ([]AttachmentChange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var changes []AttachmentChange
	if err := json.Unmarshal([]byte(raw), &changes); err != nil {
		return nil, err
	}
	for _, ch := range changes {
		if ch.Mode != changeAdded && ch.Mode != changeRemoved {
			return nil, errInvalidChangeMode
		}
	}
	return changes, nil
}

var errInvalidChangeMode = errors.New("attachment change mode must be added or removed")

// attachmentResult reports the outcome of one attachment upload so the
// caller can tell exactly which subset of a batch succeeded.
type attachmentResult struct {
	Key   string `json:"key"`
	Error string `json:"error,omitempty"`
}

// storeAttachments persists the submitted files as attachments of the given
// comment. Every file is handled independently and concurrently: the row is
// inserted referencing a fresh random key, then the bytes are uploaded.
// Failures are collected per item and never block siblings; no transaction
// ties the batch together.
func (c *CommentController) storeAttachments(commentID uint, files []*multipart.FileHeader) []attachmentResult {
	results := make([]attachmentResult, len(files))

	var wg sync.WaitGroup
	for i, header := range files {
		wg.Add(1)
		go func(i int, header *multipart.FileHeader) {
			defer wg.Done()

			key := storage.RandomKey(header.Filename)
			results[i].Key = key

			att := models.Attachment{CommentID: commentID, Key: key}
			if err := c.db.Create(&att).Error; err != nil {
				results[i].Error = err.Error()
				return
			}

			f, err := header.Open()
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			defer f.Close()

			if err := c.store.Upload(key, f); err != nil {
				results[i].Error = err.Error()
			}
		}(i, header)
	}
	wg.Wait()

	for _, res := range results {
		if res.Error != "" {
			utils.Sugar.Warnf("attachment upload failed key=%s err=%s", res.Key, res.Error)
		}
	}
	return results
}

// ListComments returns every comment of a blog, newest first, along with the
// total count. Each attachment whose backing object still exists carries a
// signed link; attachments whose object is gone are returned without one and
// are expected to be filtered from image grids by the client.
func (c *CommentController) ListComments(ctx *gin.Context) {
	blogID := ctx.Param("id")

	var total int64
	if err := c.db.Model(&models.Comment{}).Where("blog_id = ?", blogID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, err.Error())
		return
	}

	var comments []models.Comment
	if err := c.db.Where("blog_id = ?", blogID).
		Preload("User").
		Preload("Attachments").
		Order("created_at DESC").
		Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, err.Error())
		return
	}

	for i := range comments {
		for j := range comments[i].Attachments {
			if link, ok := c.store.ResolveLink(comments[i].Attachments[j].Key); ok {
				comments[i].Attachments[j].Link = link
			}
		}
	}

	utils.Success(ctx, "success", gin.H{
		"items": comments,
		"count": total,
	})
}

// CreateComment adds a comment to a blog. Anonymous visitors may comment;
// the owner reference is then left null. Submitted files become attachments
// uploaded as an independent batch after the comment row is inserted.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var blog models.Blog
	if err := c.db.First(&blog, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40404, "blog not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50042, err.Error())
		return
	}

	content := utils.StripTags(ctx.PostForm("content"))
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40030, "content cannot be empty")
		return
	}

	comment := models.Comment{
		BlogID:  blog.ID,
		Content: content,
	}
	if userID, ok := getUserID(ctx); ok {
		comment.UserID = &userID
	}

	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, err.Error())
		return
	}

	var results []attachmentResult
	if form, err := ctx.MultipartForm(); err == nil {
		if files := form.File["attachments"]; len(files) > 0 {
			results = c.storeAttachments(comment.ID, files)
		}
	}

	utils.Success(ctx, "The comment has been added successfully.", gin.H{
		"comment":     comment,
		"attachments": results,
	})
}

// UpdateComment edits a comment's content and reconciles its attachment set
// against the submitted diff. Content is updated unconditionally; the
// general update path carries no ownership check. Added entries upload new
// files matched positionally against the submitted payloads; removed
// entries delete the backing object if it still exists, then the row.
// Attachments not named in the diff are untouched.
func (c *CommentController) UpdateComment(ctx *gin.Context) {
	var comment models.Comment
	if err := c.db.First(&comment, ctx.Param("commentId")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40405, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50044, err.Error())
		return
	}

	content := utils.StripTags(ctx.PostForm("content"))
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "content cannot be empty")
		return
	}

	changes, err := parseAttachmentChanges(ctx.PostForm("attachments_metadata"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid attachments metadata")
		return
	}

	if err := c.db.Model(&comment).Update("content", content).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50045, err.Error())
		return
	}

	var files []*multipart.FileHeader
	if form, err := ctx.MultipartForm(); err == nil {
		files = form.File["attachments"]
	}

	added := make([]*multipart.FileHeader, 0, len(files))
	next := 0
	var results []attachmentResult
	for _, ch := range changes {
		switch {
		case ch.Mode == changeAdded && ch.IsNew:
			if next < len(files) {
				added = append(added, files[next])
				next++
			}
		case ch.Mode == changeRemoved && !ch.IsNew:
			c.removeAttachment(ch.ID)
		}
	}
	if len(added) > 0 {
		results = c.storeAttachments(comment.ID, added)
	}

	utils.Success(ctx, "The comment has been updated successfully.", gin.H{
		"attachments": results,
	})
}

// removeAttachment deletes one stored attachment named by a diff entry:
// backing object first (when it still exists), then the row. Entries that
// reference no stored row are silently skipped.
func (c *CommentController) removeAttachment(id string) {
	attID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return
	}

	var att models.Attachment
	if err := c.db.First(&att, uint(attID)).Error; err != nil {
		return
	}

	if c.store.Exists(att.Key) {
		if err := c.store.Delete(att.Key); err != nil {
			utils.Sugar.Warnf("failed to delete attachment object key=%s: %v", att.Key, err)
			return
		}
	}
	if err := c.db.Delete(&att).Error; err != nil {
		utils.Sugar.Warnf("failed to delete attachment row id=%d: %v", att.ID, err)
	}
}

// DeleteComment allows the comment owner to delete it, cascading over the
// attachments: for each one the backing object is removed when present,
// then the row, each handled independently; finally the comment row goes.
// Anonymous comments have no owner and cannot be deleted this way.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	var comment models.Comment
	if err := c.db.Preload("Attachments").First(&comment, ctx.Param("commentId")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40406, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50046, err.Error())
		return
	}

	if requireNullableOwner(ctx, comment.UserID) == authzDenied {
		utils.Error(ctx, http.StatusForbidden, 40303, unauthorizedMessage)
		return
	}

	for _, att := range comment.Attachments {
		if c.store.Exists(att.Key) {
			if err := c.store.Delete(att.Key); err != nil {
				utils.Sugar.Warnf("failed to delete attachment object key=%s: %v", att.Key, err)
				continue
			}
		}
		if err := c.db.Delete(&models.Attachment{}, att.ID).Error; err != nil {
			utils.Sugar.Warnf("failed to delete attachment row id=%d: %v", att.ID, err)
		}
	}

	if err := c.db.Delete(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50047, err.Error())
		return
	}

	utils.Success(ctx, "The comment has been deleted successfully.", nil)
}
