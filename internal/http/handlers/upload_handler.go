// Upload HTTP handler.
//
//   - POST /uploads  (auth, multipart field "file")
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadResponse carries the public URL of a stored image.
type UploadResponse struct {
	URL string `json:"url" example:"https://cdn.example.com/images/uploads/2025/03/0b7c.jpg"`
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadImage godoc
// @ID          uploadImage
// @Summary     Upload an image
// @Description Stores a JPEG, PNG, GIF or WebP image and returns its URL for use in request and offer image fields.
// @Tags        Uploads
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file  formData  file  true  "Image"
// @Success     201   {object}  handlers.UploadResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     413   {object}  handlers.ErrorResponse
// @Failure     503   {object}  handlers.ErrorResponse  "Storage not configured"
// @Router      /uploads [post]
func (h *Handlers) UploadImage(c *gin.Context) {
	if _, okUser := currentUser(c); !okUser {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "file too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return
	}
	if fh.Size > h.maxUpload {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		failErr(c, err)
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		failErr(c, err)
		return
	}
	ct := http.DetectContentType(head[:n])
	if !allowedImageTypes[ct] {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unsupported image type "+ct)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		failErr(c, err)
		return
	}

	url, err := h.images.Put(c.Request.Context(), fh.Filename, ct, f, fh.Size)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, UploadResponse{URL: url})
}
