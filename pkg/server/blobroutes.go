package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"storyreel/pkg/blob"
	"storyreel/pkg/utils"
)

type storedImage struct {
	ID             string `json:"id"`
	BlobURL        string `json:"blobUrl"`
	ProjectName    string `json:"projectName"`
	SequenceNumber int    `json:"sequenceNumber"`
	Timestamp      int64  `json:"timestamp"`
}

type deleteReq struct {
	Key string `json:"key"`
}

// GET /api/images
//
// Lists stored images newest first, with project and sequence parsed back
// out of each key.
func (s *Server) handleListImages(c echo.Context) error {
	if s.blobs == nil {
		return c.JSON(http.StatusOK, map[string]any{"images": []storedImage{}})
	}

	objects, err := s.blobs.List(c.QueryParam("project"))
	if err != nil {
		c.Logger().Errorf("blob list error: %v", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("Failed to list images"))
	}

	images := make([]storedImage, 0, len(objects))
	for _, obj := range objects {
		seq, _ := blob.SequenceOf(obj.Key)
		images = append(images, storedImage{
			ID:             obj.Key,
			BlobURL:        obj.URL,
			ProjectName:    projectOf(obj.Key),
			SequenceNumber: seq,
			Timestamp:      obj.Uploaded.UnixMilli(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"images": images})
}

// POST /api/images/delete
func (s *Server) handleDeleteImage(c echo.Context) error {
	var req deleteReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if req.Key == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("Image key is required"))
	}
	if s.blobs == nil {
		return c.JSON(http.StatusOK, map[string]any{"success": true})
	}
	if err := s.blobs.Delete(req.Key); err != nil {
		c.Logger().Errorf("blob delete error: %v", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("Failed to delete image"))
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// POST /api/images/clear
func (s *Server) handleClearImages(c echo.Context) error {
	if s.blobs == nil {
		return c.JSON(http.StatusOK, map[string]any{"success": true, "deleted": 0})
	}

	objects, err := s.blobs.List("")
	if err != nil {
		c.Logger().Errorf("blob list error: %v", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("Failed to clear images"))
	}

	deleted := 0
	for _, obj := range objects {
		if err := s.blobs.Delete(obj.Key); err != nil {
			c.Logger().Warnf("failed to delete %s: %v", obj.Key, err)
			continue
		}
		deleted++
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "deleted": deleted})
}

// projectOf extracts the project name from a <project>-<n>.<ext> key. Keys
// without a sequence suffix keep everything before the extension.
func projectOf(key string) string {
	if i := strings.LastIndex(key, "-"); i > 0 {
		if _, ok := blob.SequenceOf(key); ok {
			return key[:i]
		}
	}
	if i := strings.LastIndex(key, "."); i > 0 {
		return key[:i]
	}
	return key
}
