package v2

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/camruler/camruler/internal/api/middleware"
	"github.com/camruler/camruler/internal/measure"
)

// RecordsResponse lists persisted measurements, oldest first.
type RecordsResponse struct {
	Records []measure.Record `json:"records"`
	Count   int              `json:"count"`
	Total   int              `json:"total"`
}

// GetLiveFrame handles GET /api/v2/frames/live
func (c *Controller) GetLiveFrame(ctx echo.Context) error {
	f, err := c.mailbox.Latest()
	if err != nil {
		return c.handleDomainError(ctx, err, "No live frame available")
	}
	ctx.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	ctx.Response().Header().Set(middleware.HeaderFrameSeq, strconv.FormatUint(f.Seq, 10))
	return ctx.Blob(http.StatusOK, "image/jpeg", f.Data)
}

// ListRecords handles GET /api/v2/records
//
// limit keeps only the most recent records.
func (c *Controller) ListRecords(ctx echo.Context) error {
	limit := 0
	if v := ctx.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.HandleError(ctx, err, "Parameter 'limit' must be a non-negative integer", http.StatusBadRequest)
		}
		limit = n
	}

	records, err := c.store.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read records", http.StatusInternalServerError)
	}
	total := len(records)
	if limit > 0 && limit < total {
		records = slices.Clone(records[total-limit:])
	}
	return ctx.JSON(http.StatusOK, RecordsResponse{Records: records, Count: len(records), Total: total})
}
