package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/vletron/inkblog/models"
	"github.com/vletron/inkblog/storage"
)

type commentPayload struct {
	Comment     models.Comment     `json:"comment"`
	Attachments []attachmentResult `json:"attachments"`
}

type commentListPayload struct {
	Items []models.Comment `json:"items"`
	Count int64            `json:"count"`
}

func seedBlog(t *testing.T, db *gorm.DB, owner models.User) models.Blog {
	t.Helper()
	blog := models.Blog{UserID: owner.ID, Title: "t", Content: "<p>x</p>"}
	if err := db.Create(&blog).Error; err != nil {
		t.Fatalf("seed blog: %v", err)
	}
	return blog
}

func seedComment(t *testing.T, db *gorm.DB, blog models.Blog, userID *uint, content string) models.Comment {
	t.Helper()
	comment := models.Comment{BlogID: blog.ID, UserID: userID, Content: content}
	if err := db.Create(&comment).Error; err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	return comment
}

func seedAttachment(t *testing.T, db *gorm.DB, store *storage.Store, commentID uint, key, content string) models.Attachment {
	t.Helper()
	att := models.Attachment{CommentID: commentID, Key: key}
	if err := db.Create(&att).Error; err != nil {
		t.Fatalf("seed attachment: %v", err)
	}
	if content != "" {
		if err := store.Upload(key, strings.NewReader(content)); err != nil {
			t.Fatalf("upload attachment: %v", err)
		}
	}
	return att
}

func TestCreateCommentAnonymous(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	blog := seedBlog(t, db, createTestUser(t, db, "alice"))

	req := newMultipartRequest(t, http.MethodPost,
		fmt.Sprintf("/api/v1/blogs/%d/comments", blog.ID),
		map[string]string{"content": "nice <b>post</b>"})

	rec := doRequest(r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload commentPayload
	env := decodeResponse(t, rec, &payload)
	if env.Message != "The comment has been added successfully." {
		t.Errorf("message = %q", env.Message)
	}
	if payload.Comment.UserID != nil {
		t.Errorf("anonymous comment got owner %d", *payload.Comment.UserID)
	}
	if payload.Comment.Content != "nice post" {
		t.Errorf("content = %q, markup should be stripped", payload.Comment.Content)
	}
}

func TestCreateCommentWithAttachments(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	author := createTestUser(t, db, "alice")
	blog := seedBlog(t, db, author)

	req := newMultipartRequest(t, http.MethodPost,
		fmt.Sprintf("/api/v1/blogs/%d/comments", blog.ID),
		map[string]string{"content": "with pictures"},
		filePart{field: "attachments", name: "a.png", data: []byte("a")},
		filePart{field: "attachments", name: "b.jpg", data: []byte("b")},
	)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, author))

	rec := doRequest(r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload commentPayload
	decodeResponse(t, rec, &payload)

	if payload.Comment.UserID == nil || *payload.Comment.UserID != author.ID {
		t.Errorf("comment owner = %v, want %d", payload.Comment.UserID, author.ID)
	}
	if len(payload.Attachments) != 2 {
		t.Fatalf("got %d attachment results, want 2", len(payload.Attachments))
	}
	for _, res := range payload.Attachments {
		if res.Error != "" {
			t.Errorf("attachment %s failed: %s", res.Key, res.Error)
		}
		if !store.Exists(res.Key) {
			t.Errorf("object %s missing after upload", res.Key)
		}
	}

	var rows []models.Attachment
	if err := db.Where("comment_id = ?", payload.Comment.ID).Find(&rows).Error; err != nil {
		t.Fatalf("load attachment rows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d attachment rows, want 2", len(rows))
	}
}

func TestCreateCommentMissingBlog(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)

	req := newMultipartRequest(t, http.MethodPost, "/api/v1/blogs/9999/comments",
		map[string]string{"content": "hello"})
	if rec := doRequest(r, req); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListCommentsResolvesLinks(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	author := createTestUser(t, db, "alice")
	blog := seedBlog(t, db, author)

	comment := seedComment(t, db, blog, &author.ID, "hello")
	seedAttachment(t, db, store, comment.ID, "kept.png", "bytes")
	// An attachment whose object was removed behind our back still lists,
	// just without a link.
	seedAttachment(t, db, store, comment.ID, "lost.png", "")

	rec := doRequest(r, newMultipartRequest(t, http.MethodGet,
		fmt.Sprintf("/api/v1/blogs/%d/comments", blog.ID), nil))
	var payload commentListPayload
	decodeResponse(t, rec, &payload)

	if payload.Count != 1 || len(payload.Items) != 1 {
		t.Fatalf("count = %d, items = %d", payload.Count, len(payload.Items))
	}
	if got := len(payload.Items[0].Attachments); got != 2 {
		t.Fatalf("got %d attachments, want 2", got)
	}
	for _, att := range payload.Items[0].Attachments {
		switch att.Key {
		case "kept.png":
			if att.Link == "" {
				t.Error("stored attachment has no link")
			}
		case "lost.png":
			if att.Link != "" {
				t.Errorf("orphaned attachment got link %q", att.Link)
			}
		}
	}
	if payload.Items[0].User == nil || payload.Items[0].User.Name != "alice" {
		t.Error("author not preloaded")
	}
}

func TestUpdateCommentAppliesAttachmentDiff(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	author := createTestUser(t, db, "alice")
	blog := seedBlog(t, db, author)
	comment := seedComment(t, db, blog, &author.ID, "before")

	removed := seedAttachment(t, db, store, comment.ID, "old.png", "old")
	untouched := seedAttachment(t, db, store, comment.ID, "keep.png", "keep")

	metadata := fmt.Sprintf(
		`[{"id":"new-0","mode":"added","isNew":true},{"id":"%d","mode":"removed","isNew":false}]`,
		removed.ID)
	req := newMultipartRequest(t, http.MethodPut,
		fmt.Sprintf("/api/v1/comments/%d", comment.ID),
		map[string]string{"content": "after", "attachments_metadata": metadata},
		filePart{field: "attachments", name: "new.png", data: []byte("new")},
	)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, author))

	rec := doRequest(r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload commentPayload
	decodeResponse(t, rec, &payload)
	if len(payload.Attachments) != 1 || payload.Attachments[0].Error != "" {
		t.Fatalf("attachment results = %+v", payload.Attachments)
	}
	newKey := payload.Attachments[0].Key
	if !store.Exists(newKey) {
		t.Error("added object missing")
	}

	var stored models.Comment
	if err := db.Preload("Attachments").First(&stored, comment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Content != "after" {
		t.Errorf("content = %q, want %q", stored.Content, "after")
	}
	if len(stored.Attachments) != 2 {
		t.Fatalf("got %d attachments, want 2 (added + untouched)", len(stored.Attachments))
	}
	keys := map[string]bool{}
	for _, att := range stored.Attachments {
		keys[att.Key] = true
	}
	if !keys[untouched.Key] || !keys[newKey] {
		t.Errorf("attachment keys = %v", keys)
	}
	if keys[removed.Key] {
		t.Error("removed attachment row survived")
	}
	if store.Exists(removed.Key) {
		t.Error("removed attachment object survived")
	}
	if !store.Exists(untouched.Key) {
		t.Error("untouched attachment object was deleted")
	}
}

func TestUpdateCommentSkipsUnknownRemovals(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	author := createTestUser(t, db, "alice")
	blog := seedBlog(t, db, author)
	comment := seedComment(t, db, blog, &author.ID, "before")

	req := newMultipartRequest(t, http.MethodPut,
		fmt.Sprintf("/api/v1/comments/%d", comment.ID),
		map[string]string{
			"content":              "after",
			"attachments_metadata": `[{"id":"9999","mode":"removed","isNew":false},{"id":"junk","mode":"removed","isNew":false}]`,
		})

	if rec := doRequest(r, req); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var stored models.Comment
	if err := db.First(&stored, comment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Content != "after" {
		t.Errorf("content = %q, want %q", stored.Content, "after")
	}
}

func TestUpdateCommentRejectsBadMetadata(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	author := createTestUser(t, db, "alice")
	blog := seedBlog(t, db, author)
	comment := seedComment(t, db, blog, &author.ID, "before")

	for _, metadata := range []string{"{broken", `[{"id":"1","mode":"replaced"}]`} {
		req := newMultipartRequest(t, http.MethodPut,
			fmt.Sprintf("/api/v1/comments/%d", comment.ID),
			map[string]string{"content": "after", "attachments_metadata": metadata})
		if rec := doRequest(r, req); rec.Code != http.StatusBadRequest {
			t.Errorf("metadata %q status = %d, want 400", metadata, rec.Code)
		}
	}

	var stored models.Comment
	if err := db.First(&stored, comment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Content != "before" {
		t.Errorf("content = %q, rejected edit must not apply", stored.Content)
	}
}

func TestUpdateCommentHasNoOwnershipCheck(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	blog := seedBlog(t, db, alice)
	comment := seedComment(t, db, blog, &alice.ID, "before")

	// A different signed-in user, and even an anonymous caller, can edit.
	req := newMultipartRequest(t, http.MethodPut,
		fmt.Sprintf("/api/v1/comments/%d", comment.ID),
		map[string]string{"content": "edited by bob"})
	req.Header.Set("Authorization", "Bearer "+loginToken(t, bob))
	if rec := doRequest(r, req); rec.Code != http.StatusOK {
		t.Fatalf("other-user edit status = %d", rec.Code)
	}

	req = newMultipartRequest(t, http.MethodPut,
		fmt.Sprintf("/api/v1/comments/%d", comment.ID),
		map[string]string{"content": "edited anonymously"})
	if rec := doRequest(r, req); rec.Code != http.StatusOK {
		t.Fatalf("anonymous edit status = %d", rec.Code)
	}

	var stored models.Comment
	if err := db.First(&stored, comment.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Content != "edited anonymously" {
		t.Errorf("content = %q", stored.Content)
	}
}

func TestDeleteCommentCascadesAttachments(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	blog := seedBlog(t, db, alice)
	comment := seedComment(t, db, blog, &alice.ID, "bye")

	seedAttachment(t, db, store, comment.ID, "one.png", "1")
	seedAttachment(t, db, store, comment.ID, "two.png", "")
	target := fmt.Sprintf("/api/v1/comments/%d", comment.ID)

	req := newMultipartRequest(t, http.MethodDelete, target, nil)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, bob))
	if rec := doRequest(r, req); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner delete status = %d, want 403", rec.Code)
	}

	req = newMultipartRequest(t, http.MethodDelete, target, nil)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, alice))
	if rec := doRequest(r, req); rec.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if store.Exists("one.png") {
		t.Error("attachment object survived the delete")
	}
	var attCount, commentCount int64
	db.Model(&models.Attachment{}).Where("comment_id = ?", comment.ID).Count(&attCount)
	db.Model(&models.Comment{}).Where("id = ?", comment.ID).Count(&commentCount)
	if attCount != 0 {
		t.Errorf("%d attachment rows survived", attCount)
	}
	if commentCount != 0 {
		t.Error("comment row survived")
	}
}

func TestDeleteAnonymousCommentAlwaysDenied(t *testing.T) {
	db := openTestDB(t)
	store := openTestStore(t)
	r := newTestRouter(db, store)
	alice := createTestUser(t, db, "alice")
	blog := seedBlog(t, db, alice)
	comment := seedComment(t, db, blog, nil, "anonymous")

	req := newMultipartRequest(t, http.MethodDelete,
		fmt.Sprintf("/api/v1/comments/%d", comment.ID), nil)
	req.Header.Set("Authorization", "Bearer "+loginToken(t, alice))
	if rec := doRequest(r, req); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, ownerless comments have no deleter", rec.Code)
	}
}

func TestParseAttachmentChanges(t *testing.T) {
	if changes, err := parseAttachmentChanges(""); err != nil || changes != nil {
		t.Errorf("empty input = (%v, %v)", changes, err)
	}
	if changes, err := parseAttachmentChanges("null"); err != nil || changes != nil {
		t.Errorf("null input = (%v, %v)", changes, err)
	}

	changes, err := parseAttachmentChanges(`[{"id":"7","mode":"removed","isNew":false},{"id":"x","mode":"added","isNew":true}]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(changes) != 2 || changes[0].Mode != changeRemoved || !changes[1].IsNew {
		t.Errorf("changes = %+v", changes)
	}

	if _, err := parseAttachmentChanges(`[{"id":"1","mode":"edited"}]`); err == nil {
		t.Error("unknown mode accepted")
	}
	if _, err := parseAttachmentChanges("{nope"); err == nil {
		t.Error("malformed JSON accepted")
	}
}
