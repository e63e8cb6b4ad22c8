// Package image turns a rendered build spec into a tagged local image,
// skipping the build when an image with the same fingerprint already exists.
package image

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/strongdm/bubble/internal/buildcache"
	"github.com/strongdm/bubble/internal/docker"
)

// Engine is the subset of the docker client the builder needs.
type Engine interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	BuildImage(ctx context.Context, opts docker.BuildOptions) error
}

// ProgressFunc receives build output one line at a time.
type ProgressFunc func(line string)

// Result describes the image produced (or reused) by Build.
type Result struct {
	Tag         string
	Fingerprint buildcache.Fingerprint
	Cached      bool
}

// BuildError reports a failed context assembly or docker build.
type BuildError struct {
	Tag string
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Tag, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder builds images through Engine.
type Builder struct {
	Engine     Engine
	Repository string
	Labels     map[string]string
	Progress   ProgressFunc
	Logger     *log.Logger
}

// Build returns the tag for spec, building it unless a cached image exists
// and force is false. A forced build also disables docker's layer cache.
func (b *Builder) Build(ctx context.Context, spec buildcache.Spec, force bool) (Result, error) {
	if b == nil || b.Engine == nil {
		return Result{}, errors.New("image builder not configured")
	}
	cache := buildcache.New(b.Engine, b.Repository)
	fp := buildcache.Compute(spec)
	res := Result{Tag: cache.Tag(fp), Fingerprint: fp}

	if !force {
		ok, err := cache.Exists(ctx, fp)
		if err != nil {
			return res, fmt.Errorf("check image %s: %w", res.Tag, err)
		}
		if ok {
			b.logf("Using cached image %s", res.Tag)
			res.Cached = true
			return res, nil
		}
	}

	var buf bytes.Buffer
	if err := WriteContext(&buf, spec); err != nil {
		return res, &BuildError{Tag: res.Tag, Err: fmt.Errorf("assemble build context: %w", err)}
	}

	b.logf("Building image %s", res.Tag)
	started := time.Now()
	err := b.Engine.BuildImage(ctx, docker.BuildOptions{
		Tag:      res.Tag,
		Context:  &buf,
		Labels:   b.Labels,
		NoCache:  force,
		Progress: b.Progress,
	})
	if err != nil {
		return res, &BuildError{Tag: res.Tag, Err: err}
	}
	b.logf("Built image %s in %s", res.Tag, time.Since(started).Round(time.Second))
	return res, nil
}

func (b *Builder) logf(format string, args ...any) {
	if b.Logger != nil {
		b.Logger.Printf(format, args...)
	}
}

// WriteContext writes a gzip-compressed tar holding the Dockerfile and every
// context file at its declared path and mode.
func WriteContext(w io.Writer, spec buildcache.Spec) error {
	zw := gzip.NewWriter(w)
	tw := tar.NewWriter(zw)

	if err := addFile(tw, "Dockerfile", []byte(spec.Dockerfile), 0o644); err != nil {
		return err
	}
	seen := map[string]bool{"Dockerfile": true}
	for _, f := range spec.Files {
		name, err := cleanContextPath(f.Path)
		if err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("duplicate context file %q", name)
		}
		seen[name] = true
		mode := int64(f.Mode.Perm())
		if mode == 0 {
			mode = 0o644
		}
		if err := addFile(tw, name, f.Content, mode); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

func addFile(tw *tar.Writer, name string, content []byte, mode int64) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     mode,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func cleanContextPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("context file path required")
	}
	cleaned := path.Clean(strings.TrimPrefix(p, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("context file path %q escapes the build context", p)
	}
	return cleaned, nil
}
