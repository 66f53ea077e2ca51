package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vletron/inkblog/config"
	"github.com/vletron/inkblog/models"
	"github.com/vletron/inkblog/storage"
	"github.com/vletron/inkblog/utils"
)

// BlogController manages CRUD operations for blogs.
type BlogController struct {
	db    *gorm.DB
	store *storage.Store
}

// NewBlogController creates a new BlogController instance.
func NewBlogController(db *gorm.DB, store *storage.Store) *BlogController {
	return &BlogController{db: db, store: store}
}

// CreateBlog allows authenticated users to publish a new blog. The request
// is a multipart form with title, rich-text content, and an optional cover
// image. When an image is present its object key is generated up front, the
// row is inserted referencing it, and only then are the bytes uploaded; an
// upload failure after the insert is not rolled back.
func (b *BlogController) CreateBlog(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	title := utils.StripTags(strings.TrimSpace(ctx.PostForm("title")))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	content := utils.Sanitize(ctx.PostForm("content"))
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40022, "content cannot be empty")
		return
	}

	blog := models.Blog{
		UserID:  userID,
		Title:   title,
		Content: content,
	}

	file, header, err := ctx.Request.FormFile("image")
	if err == nil {
		defer file.Close()
		if !coverSizeOK(header.Size) {
			utils.Error(ctx, http.StatusBadRequest, 40023, "image exceeds upload size limit")
			return
		}
		blog.ImageKey = storage.RandomKey(header.Filename)
	}

	if err := b.db.Create(&blog).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, err.Error())
		return
	}

	if blog.ImageKey != "" {
		if err := b.store.Upload(blog.ImageKey, file); err != nil {
			// Row already exists at this point; surfaced, not compensated.
			utils.Error(ctx, http.StatusInternalServerError, 50021, err.Error())
			return
		}
	}

	utils.Success(ctx, "The blog has been created successfully.", gin.H{"blog": blog})
}

// ListBlogs returns one fixed-size page of blogs, newest first, with the
// pager window and per-item signed cover links resolved on the fly.
func (b *BlogController) ListBlogs(ctx *gin.Context) {
	b.listBlogs(ctx, b.db.Model(&models.Blog{}))
}

// ListMyBlogs returns the authenticated user's blogs, paginated the same way.
func (b *BlogController) ListMyBlogs(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	b.listBlogs(ctx, b.db.Model(&models.Blog{}).Where("user_id = ?", userID))
}

func (b *BlogController) listBlogs(ctx *gin.Context, query *gorm.DB) {
	page := parsePage(ctx.Query("page"))
	pageSize := config.Get().PageSize

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, err.Error())
		return
	}

	// No explicit clamp: an out-of-range page yields an empty slice.
	var blogs []models.Blog
	if err := query.Preload("User").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&blogs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, err.Error())
		return
	}

	for i := range blogs {
		if link, ok := b.store.ResolveLink(blogs[i].ImageKey); ok {
			blogs[i].ImageURL = link
		}
	}

	pages := totalPages(total, pageSize)
	utils.Success(ctx, "success", gin.H{
		"items": blogs,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": pages,
			"window":      computeWindow(page, pages),
		},
	})
}

// GetBlog returns a single blog with its author and, when the backing
// object still exists, a signed cover image link.
func (b *BlogController) GetBlog(ctx *gin.Context) {
	var blog models.Blog
	if err := b.db.Preload("User").First(&blog, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40401, "blog not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, err.Error())
		return
	}

	if link, ok := b.store.ResolveLink(blog.ImageKey); ok {
		blog.ImageURL = link
	}

	utils.Success(ctx, "success", gin.H{"blog": blog})
}

// UpdateBlog allows the owner to edit title, content, and cover image.
// The image key is assigned once: the first upload picks a random key and
// later uploads overwrite the same object. A remove_image flag deletes the
// backing object if it still exists and clears the reference.
func (b *BlogController) UpdateBlog(ctx *gin.Context) {
	var blog models.Blog
	if err := b.db.First(&blog, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40402, "blog not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, err.Error())
		return
	}

	if requireOwner(ctx, blog.UserID) == authzDenied {
		utils.Error(ctx, http.StatusForbidden, 40301, unauthorizedMessage)
		return
	}

	title := utils.StripTags(strings.TrimSpace(ctx.PostForm("title")))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40024, "title cannot be empty")
		return
	}
	content := utils.Sanitize(ctx.PostForm("content"))
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "content cannot be empty")
		return
	}
	blog.Title = title
	blog.Content = content

	file, header, err := ctx.Request.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		if !coverSizeOK(header.Size) {
			utils.Error(ctx, http.StatusBadRequest, 40026, "image exceeds upload size limit")
			return
		}
		// Keys are immutable once assigned: re-uploads overwrite in place.
		if blog.ImageKey == "" {
			blog.ImageKey = storage.RandomKey(header.Filename)
		}
		if err := b.store.Upload(blog.ImageKey, file); err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50026, err.Error())
			return
		}
	case ctx.PostForm("remove_image") == "true" && blog.ImageKey != "":
		if b.store.Exists(blog.ImageKey) {
			if err := b.store.Delete(blog.ImageKey); err != nil {
				utils.Error(ctx, http.StatusInternalServerError, 50027, err.Error())
				return
			}
		}
		blog.ImageKey = ""
	}

	if err := b.db.Save(&blog).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, err.Error())
		return
	}

	utils.Success(ctx, "The blog has been updated successfully.", gin.H{"blog": blog})
}

// DeleteBlog allows the owner to delete their blog. The backing cover
// object is removed before the row so the UI can never reference an
// orphaned row; a crash in between leaves at worst an orphaned object.
func (b *BlogController) DeleteBlog(ctx *gin.Context) {
	var blog models.Blog
	if err := b.db.First(&blog, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40403, "blog not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50029, err.Error())
		return
	}

	if requireOwner(ctx, blog.UserID) == authzDenied {
		utils.Error(ctx, http.StatusForbidden, 40302, unauthorizedMessage)
		return
	}

	if blog.ImageKey != "" && b.store.Exists(blog.ImageKey) {
		if err := b.store.Delete(blog.ImageKey); err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50030, err.Error())
			return
		}
	}

	if err := b.db.Delete(&blog).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, err.Error())
		return
	}

	utils.Success(ctx, "The blog has been deleted successfully.", nil)
}

func coverSizeOK(size int64) bool {
	limit := int64(config.Get().MaxUploadMB) * 1024 * 1024
	return size <= limit
}
