package v2

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/camruler/camruler/internal/api/middleware"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/overlay"
	"github.com/camruler/camruler/internal/session"
)

// ModeRequest toggles calibration mode.
type ModeRequest struct {
	Calibration *bool `json:"calibration"`
}

// KnownLengthRequest sets the reference length used by calibration.
type KnownLengthRequest struct {
	Value *float64 `json:"value"`
}

// CalibrateRequest optionally overrides the known length for one calibration.
type CalibrateRequest struct {
	KnownLength *float64 `json:"known_length,omitempty"`
}

// CalibrateResponse carries the calibration outcome and the updated session.
type CalibrateResponse struct {
	Result  session.CalibrationResult `json:"result"`
	Session session.Snapshot          `json:"session"`
}

// SaveResponse carries the persisted record and the reset session.
type SaveResponse struct {
	Record  measure.Record   `json:"record"`
	Session session.Snapshot `json:"session"`
}

// GetSession handles GET /api/v2/session
func (c *Controller) GetSession(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, sessionFrom(ctx).Snapshot())
}

// StartNewProduct handles POST /api/v2/session/products
func (c *Controller) StartNewProduct(ctx echo.Context) error {
	s := sessionFrom(ctx)
	c.sessions.StartNewProduct(s)
	return ctx.JSON(http.StatusOK, s.Snapshot())
}

// SetMode handles PUT /api/v2/session/mode
func (c *Controller) SetMode(ctx echo.Context) error {
	var req ModeRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Calibration == nil {
		return c.HandleError(ctx, nil, "Field 'calibration' is required", http.StatusBadRequest)
	}
	s := sessionFrom(ctx)
	s.SetCalibrationMode(*req.Calibration)
	return ctx.JSON(http.StatusOK, s.Snapshot())
}

// SetKnownLength handles PUT /api/v2/session/known-length
func (c *Controller) SetKnownLength(ctx echo.Context) error {
	var req KnownLengthRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.Value == nil {
		return c.HandleError(ctx, nil, "Field 'value' is required", http.StatusBadRequest)
	}
	s := sessionFrom(ctx)
	if err := s.SetKnownLength(*req.Value); err != nil {
		return c.handleDomainError(ctx, err, "Invalid known length")
	}
	return ctx.JSON(http.StatusOK, s.Snapshot())
}

// Capture handles POST /api/v2/session/capture
func (c *Controller) Capture(ctx echo.Context) error {
	s := sessionFrom(ctx)
	if _, err := c.sessions.Capture(s, c.mailbox); err != nil {
		return c.handleDomainError(ctx, err, "No live frame available")
	}
	return ctx.JSON(http.StatusOK, s.Snapshot())
}

// SetPoints handles PUT /api/v2/session/points
//
// The body is the complete ordered point list; clicks are accumulated by the
// client.
func (c *Controller) SetPoints(ctx echo.Context) error {
	var points []measure.Point
	if err := ctx.Bind(&points); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	s := sessionFrom(ctx)
	if err := s.SetPoints(points); err != nil {
		return c.handleDomainError(ctx, err, "Points rejected")
	}
	return ctx.JSON(http.StatusOK, s.Snapshot())
}

// Calibrate handles POST /api/v2/session/calibrate
func (c *Controller) Calibrate(ctx echo.Context) error {
	var req CalibrateRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
		}
	}
	s := sessionFrom(ctx)
	res, err := c.sessions.Calibrate(s, req.KnownLength)
	if err != nil {
		return c.handleDomainError(ctx, err, "Calibration failed")
	}
	return ctx.JSON(http.StatusOK, CalibrateResponse{Result: res, Session: s.Snapshot()})
}

// Save handles POST /api/v2/session/save
func (c *Controller) Save(ctx echo.Context) error {
	s := sessionFrom(ctx)
	rec, err := c.sessions.Save(ctx.Request().Context(), s)
	if err != nil {
		return c.handleDomainError(ctx, err, "Measurement not saved")
	}
	return ctx.JSON(http.StatusCreated, SaveResponse{Record: rec, Session: s.Snapshot()})
}

// GetFrame handles GET /api/v2/session/frame
//
// With annotated=true the current points are drawn on the frame: markers in
// calibration mode, distance segments otherwise.
func (c *Controller) GetFrame(ctx echo.Context) error {
	s := sessionFrom(ctx)
	f, err := s.Frame()
	if err != nil {
		return c.handleDomainError(ctx, err, "No frame captured")
	}

	data := f.Data
	if annotated, _ := strconv.ParseBool(ctx.QueryParam("annotated")); annotated && c.renderer != nil {
		snap := s.Snapshot()
		plan := overlay.MeasurementPlan(snap.Segments, snap.Unit)
		if snap.CalibrationMode {
			plan = overlay.CalibrationPlan(snap.Points)
		}
		if data, err = c.renderer.Render(f.Data, plan); err != nil {
			return c.HandleError(ctx, err, "Failed to render overlay", http.StatusInternalServerError)
		}
	}

	ctx.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	ctx.Response().Header().Set(middleware.HeaderFrameSeq, strconv.FormatUint(f.Seq, 10))
	return ctx.Blob(http.StatusOK, "image/jpeg", data)
}
