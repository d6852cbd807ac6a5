package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/internal/catalog"
	"github.com/ninersracing/kbwiki/internal/comments"
	"github.com/ninersracing/kbwiki/internal/storage"
	"github.com/ninersracing/kbwiki/internal/subteam"
	"github.com/ninersracing/kbwiki/pkg/logger"
)

// MaxAttachmentBytes caps a single uploaded file.
const MaxAttachmentBytes = 25 << 20

// DocumentHandler serves the catalog, its comments and attachment uploads.
type DocumentHandler struct {
	catalog  *catalog.Service
	comments *comments.Service
	uploader *storage.Uploader
}

func NewDocumentHandler(cat *catalog.Service, cs *comments.Service, up *storage.Uploader) *DocumentHandler {
	return &DocumentHandler{catalog: cat, comments: cs, uploader: up}
}

// Register mounts the document routes on an authenticated group.
func (h *DocumentHandler) Register(rg gin.IRoutes) {
	rg.GET("/documents", h.List)
	rg.POST("/documents", h.Create)
	rg.GET("/documents/search", h.Search)
	rg.GET("/documents/:id", h.Get)
	rg.PATCH("/documents/:id", h.Update)
	rg.DELETE("/documents/:id", h.Delete)
	rg.POST("/documents/:id/pin", h.TogglePin)

	rg.GET("/documents/:id/comments", h.ListComments)
	rg.POST("/documents/:id/comments", h.AddComment)
	rg.DELETE("/comments/:id", h.DeleteComment)

	rg.POST("/attachments", h.Upload)

	rg.GET("/subteams", h.Subteams)
	rg.GET("/subteams/:id/documents", h.Browse)
	rg.GET("/subteams/:id/tags", h.Tags)
	rg.GET("/subteams/:id/serial", h.NextSerial)
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.catalog.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var in catalog.CreateInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.catalog.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	d, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DocumentHandler) Update(c *gin.Context) {
	var in catalog.UpdateInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.catalog.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) TogglePin(c *gin.Context) {
	d, err := h.catalog.TogglePin(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DocumentHandler) Search(c *gin.Context) {
	docs, err := h.catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) Subteams(c *gin.Context) {
	c.JSON(http.StatusOK, subteam.All())
}

// Browse accepts the tag filter as repeated ?tag= values or one comma list.
func (h *DocumentHandler) Browse(c *gin.Context) {
	var filter []string
	for _, v := range c.QueryArray("tag") {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter = append(filter, t)
			}
		}
	}
	view, err := h.catalog.Browse(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DocumentHandler) Tags(c *gin.Context) {
	ts, err := h.catalog.TagsForSubteam(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h *DocumentHandler) NextSerial(c *gin.Context) {
	s, err := h.catalog.NextSerial(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"serialNumber": s})
}

func (h *DocumentHandler) ListComments(c *gin.Context) {
	cs, err := h.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (h *DocumentHandler) AddComment(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}
	cm, err := h.comments.Add(c.Request.Context(), actor(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (h *DocumentHandler) DeleteComment(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Upload stores the multipart "files" and returns the URLs that succeeded.
// Unreadable or oversized files are skipped like failed uploads.
func (h *DocumentHandler) Upload(c *gin.Context) {
	p := actor(c)
	if p.IsGuest() {
		c.JSON(http.StatusForbidden, gin.H{"error": "guests cannot upload attachments"})
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form with files"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}
	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > MaxAttachmentBytes {
			logger.Warnf("attachment %q skipped: %d bytes exceeds limit", fh.Filename, fh.Size)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			logger.Warnf("attachment %q unreadable: %v", fh.Filename, err)
			continue
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			logger.Warnf("attachment %q unreadable: %v", fh.Filename, err)
			continue
		}
		files = append(files, storage.File{Name: fh.Filename, Data: data})
	}
	urls := h.uploader.UploadAll(c.Request.Context(), files, p.DisplayName())
	c.JSON(http.StatusOK, gin.H{"urls": urls, "failed": len(headers) - len(urls)})
}
