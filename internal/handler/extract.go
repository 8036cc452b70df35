package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/crs"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	"github.com/MarlonSantos/geonode-cloud/internal/normalize"
	"github.com/MarlonSantos/geonode-cloud/internal/repair"
)

// LayerName returns the request's layer name, or one derived from the base
// file stem.
func LayerName(req *model.IngestionRequest) string {
	if req.LayerName != "" {
		return req.LayerName
	}
	return normalize.LayerNameFromPath(req.BaseFile())
}

// Extract builds one descriptor per base file. Upload and replace resolve
// the file's CRS, repairing files that carry none; copy only describes the
// file since the copied catalog record carries the CRS.
//
// Unexpected failures while describing an upload never fail extraction:
// they produce a Degraded descriptor and a warning instead.
func (h *NetCDF) Extract(ctx context.Context, req *model.IngestionRequest) (*Extraction, error) {
	if req.BaseFile() == "" {
		return nil, errors.New("extract: base file is not provided")
	}
	switch req.Action {
	case model.ActionCopy:
		return h.extractCopy(req), nil
	case model.ActionUpload, model.ActionReplace:
		return h.extractGrid(ctx, req), nil
	}
	return nil, errors.Newf("extract: unsupported action %q", req.Action)
}

func (h *NetCDF) extractCopy(req *model.IngestionRequest) *Extraction {
	name := LayerName(req)
	return &Extraction{
		Resources: []model.ResourceDescriptor{{
			Name:       name,
			SourcePath: req.BaseFile(),
			Workspace:  h.workspace,
			Store:      name,
		}},
	}
}

func (h *NetCDF) extractGrid(ctx context.Context, req *model.IngestionRequest) *Extraction {
	path := req.BaseFile()
	name := LayerName(req)
	log := h.log.With().Str("file", filepath.Base(path)).Str("layer", name).Logger()

	ext := &Extraction{}
	d, meta, err := h.describe(ctx, log, path, name, ext)
	if err != nil {
		log.Warn().Err(err).Msg("crs extraction failed, falling back to minimal descriptor")
		ext.Warnings = append(ext.Warnings,
			fmt.Sprintf("crs extraction failed for %s, publishing without crs: %v", filepath.Base(path), err))
		ext.Resources = []model.ResourceDescriptor{{
			Name:       name,
			SourcePath: path,
			Workspace:  h.workspace,
			Store:      name,
			Degraded:   true,
		}}
		return ext
	}
	ext.Resources = []model.ResourceDescriptor{d}
	ext.Metadata = meta
	return ext
}

func (h *NetCDF) describe(ctx context.Context, log zerolog.Logger, path, name string, ext *Extraction) (d model.ResourceDescriptor, meta *model.GridMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic while reading %s: %v", path, r)
		}
	}()

	meta, err = h.source.ReadMetadata(path)
	if err != nil {
		return d, nil, errors.Wrap(err, "read metadata")
	}
	res := crs.Resolve(meta)

	repaired := false
	if !res.Discovered && h.repairer != nil {
		out, rerr := h.repairer.Repair(ctx, path)
		h.metrics.IncRepair(rerr == nil)
		if rerr != nil {
			log.Warn().Err(rerr).Msg("crs repair failed, continuing with the original file")
			ext.Warnings = append(ext.Warnings,
				fmt.Sprintf("crs repair failed for %s: %v", filepath.Base(path), rerr))
		} else {
			rmeta, err := h.source.ReadMetadata(out)
			if err != nil {
				_ = os.Remove(out)
				return d, nil, errors.Wrap(err, "read repaired metadata")
			}
			meta, path, repaired = rmeta, out, true
			res = crs.Resolve(meta)
		}
	}

	if res.Defaulted {
		var msg string
		if res.Discovered {
			msg = fmt.Sprintf("unrecognized crs %q in %s, defaulting to %s", res.Raw.String(), res.Source, model.DefaultCRS)
		} else {
			msg = fmt.Sprintf("no crs information in %s, defaulting to %s", filepath.Base(path), model.DefaultCRS)
		}
		log.Warn().Str("source", res.Source).Msg(msg)
		ext.Warnings = append(ext.Warnings, msg)
	}
	h.metrics.IncCRSResolution(res.Source, res.Defaulted, repaired)

	srid, err := res.CRS.SRID()
	if err != nil {
		if repaired {
			_ = os.Remove(path)
		}
		return d, nil, err
	}

	log.Info().
		Str("crs", res.CRS.String()).
		Str("source", res.Source).
		Bool("repaired", repaired).
		Msg("crs resolved")

	d = model.ResourceDescriptor{
		Name:       name,
		SourcePath: path,
		CRS:        res.CRS,
		SRID:       srid,
		Workspace:  h.workspace,
		Store:      name,
		Repaired:   repaired,
	}
	if vars := repair.DataVariables(meta); len(vars) > 0 {
		d.Variable = vars[0]
	}
	return d, meta, nil
}
