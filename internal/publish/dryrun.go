package publish

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// DryRun logs what would be published and reports success.
type DryRun struct {
	Log zerolog.Logger
}

func (d DryRun) Publish(_ context.Context, resources []model.ResourceDescriptor, target model.PublishTarget) (*model.PublishResult, error) {
	res := &model.PublishResult{Target: target}
	for _, r := range resources {
		d.Log.Info().
			Str("workspace", target.Workspace).
			Str("store", target.Store).
			Str("layer", r.Name).
			Str("file", r.SourcePath).
			Str("srs", r.CRS.String()).
			Msg("dry run: would publish coverage")
		res.Layers = append(res.Layers, model.PublishedLayer{Name: r.Name, SRS: r.CRS})
	}
	return res, nil
}

func (d DryRun) Repoint(_ context.Context, resources []model.ResourceDescriptor, target model.PublishTarget) error {
	for _, r := range resources {
		d.Log.Info().
			Str("workspace", target.Workspace).
			Str("store", target.Store).
			Str("layer", r.Name).
			Str("file", r.SourcePath).
			Str("srs", r.CRS.String()).
			Msg("dry run: would repoint coverage")
	}
	return nil
}

func (d DryRun) Unpublish(_ context.Context, target model.PublishTarget) error {
	d.Log.Info().
		Str("workspace", target.Workspace).
		Str("store", target.Store).
		Msg("dry run: would delete coverage store")
	return nil
}
