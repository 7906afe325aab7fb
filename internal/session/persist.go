package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"roadedit/internal/geom"
	"roadedit/internal/logging"
)

type SaveMode string

const (
	SavePostAndExport SaveMode = "post_and_export"
	SaveExportOnly    SaveMode = "export_only"
)

type GeometrySaver interface {
	SaveGeometry(ctx context.Context, taskID string, body []byte) error
}

// BuildPayload serializes the collection with a top-level bbox when one is
// known, indented by two spaces.
func BuildPayload(fc *geojson.FeatureCollection, bbox *geom.BBox) ([]byte, error) {
	out := geojson.NewFeatureCollection()
	if fc != nil {
		out.Features = fc.Features
	}
	if bbox != nil {
		out.BBox = geojson.BBox(bbox.Slice())
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// ExportFileName is the local export name for taskID.
func ExportFileName(taskID string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, taskID)
	return "roads_" + safe + ".json"
}

// SaveReport describes both halves of a save.
type SaveReport struct {
	Posted     bool
	PostErr    error
	ExportPath string
	ExportErr  error
}

func (r SaveReport) Err() error {
	return errors.Join(r.PostErr, r.ExportErr)
}

// Gateway persists a payload to the backend and to a local file.
type Gateway struct {
	saver     GeometrySaver
	exportDir string
	mode      SaveMode
	logger    *slog.Logger
}

type GatewayOption func(*Gateway)

func WithExportDir(dir string) GatewayOption {
	return func(g *Gateway) { g.exportDir = dir }
}

func WithSaveMode(m SaveMode) GatewayOption {
	return func(g *Gateway) {
		if m != "" {
			g.mode = m
		}
	}
}

func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

func NewGateway(saver GeometrySaver, opts ...GatewayOption) *Gateway {
	g := &Gateway{saver: saver, exportDir: ".", mode: SavePostAndExport, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Mode() SaveMode { return g.mode }

// Save posts payload (unless exporting only) and always writes the same
// bytes to the export file, whatever the POST outcome.
func (g *Gateway) Save(ctx context.Context, taskID string, payload []byte) SaveReport {
	var rep SaveReport
	if g.mode == SavePostAndExport && g.saver != nil {
		if err := g.saver.SaveGeometry(ctx, taskID, payload); err != nil {
			rep.PostErr = err
			g.logger.Error("save to backend failed", "task_id", taskID, "err", err)
		} else {
			rep.Posted = true
			g.logger.Info("geometry saved", "task_id", taskID, "bytes", len(payload))
		}
	}

	path := filepath.Join(g.exportDir, ExportFileName(taskID))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		rep.ExportErr = fmt.Errorf("export %s: %w", path, err)
		g.logger.Error("export failed", "path", path, "err", err)
	} else {
		rep.ExportPath = path
	}
	return rep
}
