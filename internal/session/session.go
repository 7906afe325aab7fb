// Package session is the road-editing session: it loads one task onto a map
// surface and an editing engine, keeps the vertex helper layer in sync, maps
// tool clicks to engine modes and saves the result.
//
// A Session is not safe for concurrent use. Every method is meant to run on
// the UI event loop; only Loader.Fetch and Gateway.Save may run elsewhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"roadedit/internal/editor"
	"roadedit/internal/geom"
	"roadedit/internal/logging"
	"roadedit/internal/mapview"
)

var (
	ErrClosed    = errors.New("session closed")
	ErrNotLoaded = errors.New("session not loaded")
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	SourceTiles   = "osm-tiles"
	LayerTiles    = "osm-layer"
	SourceImagery = "prediction-source"
	LayerImagery  = "satellite-layer"
	SourceHelper  = "helper-points"
	LayerHelper   = "helper-points-layer"
	SourceBBox    = "bbox-debug"
	LayerBBox     = "bbox-debug-line"

	DefaultTileURL     = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultInitialZoom = 14.0
	DefaultFitPadding  = 2
	imageryOpacity     = 0.6
)

type Session struct {
	engine    Engine
	surface   Surface
	tools     *Controller
	projector *Projector
	logger    *slog.Logger

	tileURL string
	zoom    float64
	padding int

	state  State
	taskID string
	err    error

	bbox      geom.BBox
	hasBBox   bool
	bboxKnown bool

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithInitialZoom(z float64) Option {
	return func(s *Session) {
		if z > 0 {
			s.zoom = z
		}
	}
}

// WithFitPadding sets the fit-to-bbox padding, in terminal cells.
func WithFitPadding(cells int) Option {
	return func(s *Session) {
		if cells >= 0 {
			s.padding = cells
		}
	}
}

func WithTileURL(u string) Option {
	return func(s *Session) {
		if u != "" {
			s.tileURL = u
		}
	}
}

// New wires a session to its engine and surface. engine may be nil, in which
// case every tool action is a no-op.
func New(engine Engine, surface Surface, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		engine:  engine,
		surface: surface,
		logger:  logging.NewNop(),
		tileURL: DefaultTileURL,
		zoom:    DefaultInitialZoom,
		padding: DefaultFitPadding,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.projector = NewProjector(engine, surface, SourceHelper, s.logger)
	s.tools = NewController(engine, func() bool { return s.state == StateReady }, s.projector.Refresh, s.logger)
	if engine != nil {
		engine.On(s.handleEvent)
	}
	return s
}

// Begin starts loading taskID. It returns false when the session has already
// begun (or been closed), so a load runs exactly once.
func (s *Session) Begin(taskID string) bool {
	if s.state != StateIdle {
		return false
	}
	s.taskID = taskID
	s.state = StateLoading
	s.logger.Info("loading task", "task_id", taskID)
	return true
}

func (s *Session) TaskID() string     { return s.taskID }
func (s *Session) State() State       { return s.state }
func (s *Session) Err() error         { return s.err }
func (s *Session) Alive() bool        { return s.state != StateClosed }
func (s *Session) Tools() *Controller { return s.tools }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// BBox returns the viewport bbox, which may be a fallback.
func (s *Session) BBox() (geom.BBox, bool) { return s.bbox, s.hasBBox }

// KnownBBox returns the bbox supplied by the task itself.
func (s *Session) KnownBBox() (geom.BBox, bool) { return s.bbox, s.bboxKnown }

// Apply installs the result of Loader.Fetch. It must run on the event loop.
func (s *Session) Apply(res *LoadResult, err error) error {
	switch s.state {
	case StateClosed:
		return ErrClosed
	case StateLoading:
	default:
		return fmt.Errorf("%w: apply in state %s", ErrNotLoaded, s.state)
	}
	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty load result", ErrNotLoaded)
	}
	if err != nil {
		s.fail(err)
		return err
	}

	s.bbox, s.hasBBox, s.bboxKnown = res.BBox, res.HasBBox, res.BBoxKnown
	if s.hasBBox {
		s.surface.SetView(s.bbox.Center(), s.zoom)
	}
	if err := s.addBaseLayers(res); err != nil {
		s.fail(err)
		return err
	}
	s.surface.OnLoad(func() { s.onLoaded(res) })
	return nil
}

func (s *Session) fail(err error) {
	s.state = StateFailed
	s.err = err
	s.logger.Error("task load failed", "task_id", s.taskID, "err", err)
}

func (s *Session) addBaseLayers(res *LoadResult) error {
	if err := s.surface.AddSource(SourceTiles, mapview.Source{Kind: mapview.SourceTiles, Tiles: []string{s.tileURL}, TileSize: 256}); err != nil {
		return err
	}
	if err := s.surface.AddLayer(mapview.Layer{ID: LayerTiles, Kind: mapview.LayerRaster, Source: SourceTiles, Paint: mapview.Paint{Color: lipgloss.Color("238")}}); err != nil {
		return err
	}

	if res.Background != nil && s.hasBBox {
		src := mapview.Source{
			Kind:        mapview.SourceImage,
			URL:         res.Background.URL,
			Image:       res.Background.Image,
			Coordinates: s.bbox.ImageCorners(),
		}
		if err := s.surface.AddSource(SourceImagery, src); err != nil {
			return err
		}
		if err := s.surface.AddLayer(mapview.Layer{ID: LayerImagery, Kind: mapview.LayerRaster, Source: SourceImagery, Paint: mapview.Paint{Opacity: imageryOpacity}}); err != nil {
			return err
		}
	}

	if err := s.surface.AddSource(SourceHelper, mapview.Source{Kind: mapview.SourceGeoJSON, Data: geojson.NewFeatureCollection()}); err != nil {
		return err
	}
	if err := s.surface.AddLayer(mapview.Layer{ID: LayerHelper, Kind: mapview.LayerCircle, Source: SourceHelper, Paint: mapview.Paint{Color: lipgloss.Color("#FFFFFF"), Glyph: '•'}}); err != nil {
		return err
	}
	if s.engine != nil {
		return s.engine.AddTo(s.surface)
	}
	return nil
}

func (s *Session) onLoaded(res *LoadResult) {
	if s.state != StateLoading {
		return
	}
	if s.hasBBox {
		outline := geojson.NewFeatureCollection()
		outline.Append(geojson.NewFeature(orb.Polygon{s.bbox.Outline()}))
		if err := s.surface.AddSource(SourceBBox, mapview.Source{Kind: mapview.SourceGeoJSON, Data: outline}); err != nil {
			s.logger.Warn("bbox outline unavailable", "err", err)
		} else if err := s.surface.AddLayer(mapview.Layer{ID: LayerBBox, Kind: mapview.LayerLine, Source: SourceBBox, Paint: mapview.Paint{Color: lipgloss.Color("#FF0000")}}); err != nil {
			s.logger.Warn("bbox outline unavailable", "err", err)
		}
	}
	if s.engine != nil {
		ids := s.engine.Add(res.Features)
		s.logger.Info("task loaded", "task_id", s.taskID, "features", len(ids), "imagery", res.Background != nil)
	}
	s.projector.Refresh()
	if s.hasBBox {
		s.surface.FitBounds(s.bbox.Bound(), s.padding)
	}
	s.state = StateReady
}

func (s *Session) handleEvent(ev editor.Event) {
	if s.state == StateClosed {
		return
	}
	switch ev.Type {
	case editor.EventCreate, editor.EventDelete, editor.EventUpdate:
		s.projector.Refresh()
	case editor.EventSelectionChange, editor.EventModeChange:
		s.tools.HandleEvent(ev)
	}
}

// Refresh recomputes the helper point layer.
func (s *Session) Refresh() { s.projector.Refresh() }

// ImportResult describes what Import did with a collection.
type ImportResult struct {
	IDs        []string // ids of the added roads
	Skipped    int      // non-line or degenerate geometries
	Reassigned int      // roads whose id was already taken
}

// Import adds the roads of fc (pasted or loaded from a file) to the engine.
// Only line geometries are kept and multi-lines are split. An imported road
// never replaces an existing one: a taken id is dropped so the engine
// assigns a fresh one.
func (s *Session) Import(fc *geojson.FeatureCollection) (ImportResult, error) {
	if err := s.ready(); err != nil {
		return ImportResult{}, err
	}
	roads, skipped := geom.Roads(fc)
	res := ImportResult{Skipped: skipped}
	taken := make(map[string]bool)
	for _, f := range s.engine.GetAll().Features {
		taken[editor.FeatureID(f)] = true
	}
	for i, f := range roads.Features {
		id := editor.FeatureID(f)
		if id == "" {
			continue
		}
		if taken[id] {
			nf := *f
			nf.ID = nil
			roads.Features[i] = &nf
			res.Reassigned++
			continue
		}
		taken[id] = true
	}
	if len(roads.Features) > 0 {
		res.IDs = s.engine.Add(roads)
	}
	s.logger.Info("imported features", "task_id", s.taskID, "count", len(res.IDs),
		"skipped", res.Skipped, "reassigned", res.Reassigned)
	return res, nil
}

// FitToBBox re-fits the viewport to the session bbox.
func (s *Session) FitToBBox() {
	if s.Alive() && s.hasBBox {
		s.surface.FitBounds(s.bbox.Bound(), s.padding)
	}
}

// Payload snapshots the engine's features for saving.
func (s *Session) Payload() ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var bbox *geom.BBox
	if s.bboxKnown {
		b := s.bbox
		bbox = &b
	}
	return BuildPayload(s.engine.GetAll(), bbox)
}

func (s *Session) ready() error {
	switch {
	case s.state == StateClosed:
		return ErrClosed
	case s.state != StateReady || s.engine == nil:
		return ErrNotLoaded
	}
	return nil
}

// Close tears the session down: the surface is removed, the engine detached
// and in-flight requests cancelled. Later completions are ignored.
func (s *Session) Close() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.cancel()
	if s.engine != nil {
		s.engine.Close()
	}
	if s.surface != nil {
		s.surface.Remove()
	}
	s.logger.Info("session closed", "task_id", s.taskID)
}
