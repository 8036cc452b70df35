// Package publish makes grid resources available on a GeoServer instance
// through its REST API.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// ProjectionForceDeclared makes GeoServer use the declared SRS even when
// the file's native CRS differs or is unknown.
const ProjectionForceDeclared = "FORCE_DECLARED"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, msg)
}

// GeoServerConfig configures a GeoServer client.
type GeoServerConfig struct {
	URL      string
	User     string
	Password string
	// RequestsPerSecond limits calls to the REST API. Zero disables the limit.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// GeoServer publishes NetCDF coverage stores.
type GeoServer struct {
	base    string
	user    string
	pass    string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewGeoServer returns a client for the REST API under cfg.URL.
func NewGeoServer(cfg GeoServerConfig, log zerolog.Logger) (*GeoServer, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid geoserver url %q", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &GeoServer{
		base:    strings.TrimRight(cfg.URL, "/") + "/rest",
		user:    cfg.User,
		pass:    cfg.Password,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     log.With().Str("component", "geoserver").Logger(),
	}, nil
}

type workspaceBody struct {
	Workspace struct {
		Name string `json:"name"`
	} `json:"workspace"`
}

type coverageBody struct {
	Coverage coverage `json:"coverage"`
}

type coverage struct {
	Name             string `json:"name"`
	NativeName       string `json:"nativeName,omitempty"`
	Title            string `json:"title,omitempty"`
	SRS              string `json:"srs,omitempty"`
	ProjectionPolicy string `json:"projectionPolicy,omitempty"`
	Enabled          bool   `json:"enabled"`
}

// Publish creates the workspace if needed, points an external NetCDF
// coverage store at the first resource's file and configures one coverage
// per resource with its declared SRS forced.
func (g *GeoServer) Publish(ctx context.Context, resources []model.ResourceDescriptor, target model.PublishTarget) (*model.PublishResult, error) {
	if len(resources) == 0 {
		return nil, errors.New("nothing to publish")
	}
	if err := g.ensureWorkspace(ctx, target.Workspace); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(resources[0].SourcePath)
	if err != nil {
		return nil, errors.Wrap(err, "resolve raster path")
	}
	storePath := "/workspaces/" + url.PathEscape(target.Workspace) +
		"/coveragestores/" + url.PathEscape(target.Store)
	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	if err := g.do(ctx, http.MethodPut, storePath+"/external.netcdf?configure=none", "text/plain", []byte(fileURL), nil); err != nil {
		return nil, errors.Wrap(err, "create coverage store")
	}

	result := &model.PublishResult{Target: target}
	for _, r := range resources {
		cov := coverage{
			Name:       r.Name,
			NativeName: r.Variable,
			Title:      r.Name,
			Enabled:    true,
		}
		if r.CRS != "" {
			cov.SRS = r.CRS.String()
			cov.ProjectionPolicy = ProjectionForceDeclared
		}
		body, err := json.Marshal(coverageBody{Coverage: cov})
		if err != nil {
			return nil, errors.Wrap(err, "encode coverage")
		}
		if err := g.do(ctx, http.MethodPost, storePath+"/coverages", "application/json", body, nil); err != nil {
			return nil, errors.Wrapf(err, "configure coverage %s", r.Name)
		}
		result.Layers = append(result.Layers, model.PublishedLayer{Name: r.Name, SRS: r.CRS})
		g.log.Info().
			Str("workspace", target.Workspace).
			Str("store", target.Store).
			Str("layer", r.Name).
			Str("srs", cov.SRS).
			Msg("coverage published")
	}
	return result, nil
}

// Repoint points the existing store at target to the first resource's file
// and updates each resource's coverage with its declared SRS. It never
// creates a store: a missing one is an error.
func (g *GeoServer) Repoint(ctx context.Context, resources []model.ResourceDescriptor, target model.PublishTarget) error {
	if len(resources) == 0 {
		return errors.New("nothing to repoint")
	}
	storePath := "/workspaces/" + url.PathEscape(target.Workspace) +
		"/coveragestores/" + url.PathEscape(target.Store)
	if err := g.do(ctx, http.MethodGet, storePath, "", nil, nil); err != nil {
		return errors.Wrapf(err, "look up coverage store %s", target.Store)
	}

	abs, err := filepath.Abs(resources[0].SourcePath)
	if err != nil {
		return errors.Wrap(err, "resolve raster path")
	}
	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	if err := g.do(ctx, http.MethodPut, storePath+"/external.netcdf?configure=none", "text/plain", []byte(fileURL), nil); err != nil {
		return errors.Wrap(err, "repoint coverage store")
	}

	for _, r := range resources {
		cov := coverage{Name: r.Name, Enabled: true}
		if r.CRS != "" {
			cov.SRS = r.CRS.String()
			cov.ProjectionPolicy = ProjectionForceDeclared
		}
		body, err := json.Marshal(coverageBody{Coverage: cov})
		if err != nil {
			return errors.Wrap(err, "encode coverage")
		}
		if err := g.do(ctx, http.MethodPut, storePath+"/coverages/"+url.PathEscape(r.Name), "application/json", body, nil); err != nil {
			return errors.Wrapf(err, "update coverage %s", r.Name)
		}
		g.log.Info().
			Str("workspace", target.Workspace).
			Str("store", target.Store).
			Str("layer", r.Name).
			Str("file", abs).
			Str("srs", cov.SRS).
			Msg("coverage repointed")
	}
	return nil
}

// Unpublish deletes the coverage store and everything under it. A store
// that does not exist is already unpublished.
func (g *GeoServer) Unpublish(ctx context.Context, target model.PublishTarget) error {
	path := "/workspaces/" + url.PathEscape(target.Workspace) +
		"/coveragestores/" + url.PathEscape(target.Store) + "?recurse=true&purge=metadata"
	err := g.do(ctx, http.MethodDelete, path, "", nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		g.log.Debug().Str("store", target.Store).Msg("coverage store already gone")
		return nil
	}
	return errors.Wrap(err, "delete coverage store")
}

func (g *GeoServer) ensureWorkspace(ctx context.Context, ws string) error {
	err := g.do(ctx, http.MethodGet, "/workspaces/"+url.PathEscape(ws), "", nil, nil)
	if err == nil {
		return nil
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		return errors.Wrap(err, "look up workspace")
	}
	var body workspaceBody
	body.Workspace.Name = ws
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode workspace")
	}
	return errors.Wrap(g.do(ctx, http.MethodPost, "/workspaces", "application/json", b, nil), "create workspace")
}

func (g *GeoServer) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit")
	}

	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, payload)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if g.user != "" {
		req.SetBasicAuth(g.user, g.pass)
	}

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	g.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("geoserver request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
