package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"rawgallery/internal/database"
	"rawgallery/internal/logging"
	"rawgallery/internal/tags"
	"rawgallery/internal/xmp"
)

const dateLayout = "2006-01-02"

// maxPage bounds the page parameter well above any real library size.
const maxPage = 1_000_000

// ImageResponse is an image as returned by the API, with the URL its
// thumbnail is served under.
type ImageResponse struct {
	database.Image
	ThumbnailURL string `json:"thumbnailUrl"`
}

// ImagePageResponse is one page of ListImages results.
type ImagePageResponse struct {
	Items      []ImageResponse      `json:"items"`
	TotalItems int                  `json:"totalItems"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
	Filter     database.ImageFilter `json:"filter"`
}

func newImageResponse(img database.Image) ImageResponse {
	return ImageResponse{
		Image:        img,
		ThumbnailURL: "/thumbnails/" + filepath.Base(img.ThumbPath),
	}
}

// ListImages returns one page of images ordered by capture time.
//
// Query parameters: minRating (1-5), from and to (YYYY-MM-DD or RFC 3339,
// both inclusive), tag (repeatable, pipe-delimited; matches the tag and its
// descendants) and page (1-based).
func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()

	filter, err := parseImageFilter(query)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := 1
	if raw := query.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 || page > maxPage {
			writeJSONError(w, fmt.Sprintf("page must be between 1 and %d", maxPage), http.StatusBadRequest)
			return
		}
	}

	result, err := h.db.ListImages(r.Context(), filter, page)
	if err != nil {
		logging.Error("ListImages database error: %v", err)
		writeJSONError(w, "Failed to list images", http.StatusInternalServerError)
		return
	}

	response := ImagePageResponse{
		Items:      make([]ImageResponse, 0, len(result.Items)),
		TotalItems: result.TotalItems,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
		Filter:     filter,
	}
	for _, img := range result.Items {
		response.Items = append(response.Items, newImageResponse(img))
	}

	logging.Debug("ListImages completed in %v, page %d with %d of %d items",
		time.Since(start), page, len(response.Items), response.TotalItems)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// GetImage returns one image with its tags.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		writeJSONError(w, "Invalid image id", http.StatusBadRequest)
		return
	}

	img, err := h.db.GetImage(r.Context(), id)
	if err != nil {
		logging.Error("GetImage %d database error: %v", id, err)
		writeJSONError(w, "Failed to get image", http.StatusInternalServerError)
		return
	}
	if img == nil {
		writeJSONError(w, "Image not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, newImageResponse(*img))
}

func parseImageFilter(query url.Values) (database.ImageFilter, error) {
	var filter database.ImageFilter

	if raw := query.Get("minRating"); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil || rating < 0 || rating > xmp.MaxRating {
			return filter, fmt.Errorf("minRating must be between 0 and %d", xmp.MaxRating)
		}
		filter.MinRating = rating
	}

	// EXIF capture times carry no zone and are read as local time
	from, err := parseDateParam(query.Get("from"), false, time.Local)
	if err != nil {
		return filter, fmt.Errorf("invalid from: %w", err)
	}
	to, err := parseDateParam(query.Get("to"), true, time.Local)
	if err != nil {
		return filter, fmt.Errorf("invalid to: %w", err)
	}
	if from != nil && to != nil && to.Before(*from) {
		return filter, errors.New("to must not be before from")
	}
	filter.DateFrom, filter.DateTo = from, to

	for _, raw := range query["tag"] {
		if segments := tags.Split(raw); len(segments) > 0 {
			filter.Tags = append(filter.Tags, segments)
		}
	}
	return filter, nil
}

// parseDateParam accepts a calendar date, taken as midnight in loc, or an
// RFC 3339 timestamp. A bare date used as an upper bound covers the whole day.
func parseDateParam(raw string, endOfDay bool, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
