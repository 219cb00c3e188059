package session

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/patrickmn/go-cache"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/observability/metrics"
	"github.com/camruler/camruler/internal/video"
)

const (
	// CookieName is the name of the browser session cookie.
	CookieName = "camruler_session"
	cookieKey  = "id"

	defaultTTL      = 12 * time.Hour
	janitorInterval = time.Minute
)

// ProductCounter reports the highest product number already persisted.
type ProductCounter interface {
	LastProductNumber(ctx context.Context) (int, error)
}

// Store is what the manager needs from the record table.
type Store interface {
	Recorder
	ProductCounter
}

// SaveHook runs after a record has been persisted.
type SaveHook func(ctx context.Context, rec measure.Record)

// CalibrateHook runs after a successful calibration.
type CalibrateHook func(ratio float64)

// Manager owns all sessions. Sessions expire after the TTL without activity.
type Manager struct {
	cfg     Config
	store   Store
	cache   *cache.Cache
	cookies *sessions.CookieStore
	ttl     time.Duration
	log     logger.Logger
	metrics *metrics.MeasurementMetrics

	onSave      []SaveHook
	onCalibrate []CalibrateHook

	// lastSeed is the highest product number seen, used when the store
	// cannot be read
	lastSeed atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records session actions on m.
func WithMetrics(m *metrics.MeasurementMetrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithSaveHook adds fn to the hooks run after each save.
func WithSaveHook(fn SaveHook) Option {
	return func(mgr *Manager) { mgr.onSave = append(mgr.onSave, fn) }
}

// WithCalibrateHook adds fn to the hooks run after each calibration.
func WithCalibrateHook(fn CalibrateHook) Option {
	return func(mgr *Manager) { mgr.onCalibrate = append(mgr.onCalibrate, fn) }
}

// NewManager creates a manager. secret signs the session cookie. Expired
// sessions are only purged while Run is active.
func NewManager(cfg Config, store Store, secret []byte, ttl time.Duration, log logger.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	cookies := sessions.NewCookieStore(secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	m := &Manager{
		cfg:     cfg,
		store:   store,
		cache:   cache.New(ttl, 0),
		cookies: cookies,
		ttl:     ttl,
		log:     log.Module(componentName).Module("manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache.OnEvicted(func(id string, _ any) {
		m.log.Debug("session expired", logger.String("session_id", id))
		m.updateActive()
	})
	return m
}

// Run purges expired sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.cache.DeleteExpired()
		}
	}
}

func (m *Manager) updateActive() {
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(m.cache.ItemCount()))
	}
}

// Create starts a new session. The product counter is seeded from the store
// so numbering continues across restarts. When the store cannot be read the
// last number seen by this manager is used instead.
func (m *Manager) Create(ctx context.Context) *Session {
	last, err := m.store.LastProductNumber(ctx)
	if err != nil {
		last = int(m.lastSeed.Load())
		m.log.Warn("product counter not seeded from store",
			logger.Int("fallback", last),
			logger.Error(err))
	} else {
		m.observeProduct(last)
	}
	s := New(uuid.NewString(), m.cfg, last)
	m.cache.SetDefault(s.ID, s)
	m.updateActive()
	m.log.Info("session created",
		logger.String("session_id", s.ID),
		logger.Int("product_counter", last))
	return s
}

func (m *Manager) observeProduct(n int) {
	for {
		cur := m.lastSeed.Load()
		if int64(n) <= cur || m.lastSeed.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

// Get returns a live session and refreshes its expiry.
func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	m.cache.SetDefault(id, s)
	return s, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.cache.ItemCount()
}

// FromRequest returns the session named by the request cookie, creating one
// and setting the cookie when there is none or it has expired.
func (m *Manager) FromRequest(w http.ResponseWriter, r *http.Request) (*Session, error) {
	// a cookie that fails verification yields a fresh gorilla session
	cs, _ := m.cookies.Get(r, CookieName)
	if id, ok := cs.Values[cookieKey].(string); ok {
		if s, ok := m.Get(id); ok {
			return s, nil
		}
	}

	s := m.Create(r.Context())
	cs.Values[cookieKey] = s.ID
	if err := cs.Save(r, w); err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryHTTP).
			Context("operation", "save_cookie").
			Build()
	}
	return s, nil
}

// StartNewProduct resets s for the next product.
func (m *Manager) StartNewProduct(s *Session) int {
	n := s.StartNewProduct()
	if m.metrics != nil {
		m.metrics.ProductsStarted.Inc()
	}
	m.log.Info("new product started", logger.String("session_id", s.ID), logger.Int("product_counter", n))
	return n
}

// Capture copies the latest live frame into s.
func (m *Manager) Capture(s *Session, mb *video.Mailbox) (video.Frame, error) {
	f, err := mb.Latest()
	if err != nil {
		return video.Frame{}, err
	}
	s.Capture(f)
	if m.metrics != nil {
		m.metrics.Captures.Inc()
	}
	m.log.Debug("frame captured",
		logger.String("session_id", s.ID),
		logger.Uint64("seq", f.Seq),
		logger.Int("width", f.Width),
		logger.Int("height", f.Height))
	return f, nil
}

// Calibrate runs s.Calibrate, records the outcome and fires calibrate hooks
// on success.
func (m *Manager) Calibrate(s *Session, knownLength *float64) (CalibrationResult, error) {
	res, err := s.Calibrate(knownLength)
	switch {
	case err != nil:
		m.recordCalibration(metrics.ResultRejected, 0)
		m.log.Warn("calibration rejected", logger.String("session_id", s.ID), logger.Error(err))
		return res, err
	case res.Waiting:
		m.recordCalibration(metrics.ResultWaiting, 0)
		return res, nil
	}

	m.recordCalibration(metrics.ResultSuccess, res.Ratio)
	m.log.Info("calibrated",
		logger.String("session_id", s.ID),
		logger.Float64("ratio", res.Ratio),
		logger.Float64("pixel_distance", res.PixelDistance),
		logger.Float64("known_length", res.KnownLength))
	for _, fn := range m.onCalibrate {
		fn(res.Ratio)
	}
	return res, nil
}

func (m *Manager) recordCalibration(result string, ratio float64) {
	if m.metrics != nil {
		m.metrics.RecordCalibration(result, ratio)
	}
}

// Save persists the session's measurement and fires save hooks on success.
func (m *Manager) Save(ctx context.Context, s *Session) (measure.Record, error) {
	points := len(s.Snapshot().Points)
	rec, err := s.Save(ctx, m.store)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordSave(metrics.ResultError, points)
		}
		m.log.Warn("save failed", logger.String("session_id", s.ID), logger.Error(err))
		return rec, err
	}
	m.observeProduct(rec.Product)
	if m.metrics != nil {
		m.metrics.RecordSave(metrics.ResultSuccess, points)
	}
	m.log.Info("measurement saved",
		logger.String("session_id", s.ID),
		logger.Int("product", rec.Product),
		logger.Float64("width", rec.Width),
		logger.Float64("height", rec.Height))
	for _, fn := range m.onSave {
		fn(ctx, rec)
	}
	return rec, nil
}
