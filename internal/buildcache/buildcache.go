// Package buildcache derives content-addressed image tags from rendered build
// specs and answers whether such an image is already present.
package buildcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
)

// DefaultRepository is the image repository every bubble image is tagged under.
const DefaultRepository = "bubble"

// tagLength is the number of fingerprint characters embedded in image tags.
const tagLength = 12

// ContextFile is an auxiliary file placed in the build context next to the
// Dockerfile.
type ContextFile struct {
	Path    string
	Content []byte
	Mode    fs.FileMode
}

// Spec is a fully rendered build: Dockerfile text plus context files.
type Spec struct {
	Dockerfile string
	Files      []ContextFile
}

// Fingerprint is a hex sha256 digest of a Spec's Dockerfile text.
type Fingerprint string

// Short returns the leading characters used in image tags.
func (f Fingerprint) Short() string {
	if len(f) <= tagLength {
		return string(f)
	}
	return string(f[:tagLength])
}

// Compute fingerprints spec. Only the Dockerfile text participates; context
// file contents do not.
func Compute(spec Spec) Fingerprint {
	sum := sha256.Sum256([]byte(spec.Dockerfile))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// ImageTag returns "<repository>:<short fingerprint>".
func ImageTag(repository string, fp Fingerprint) string {
	if repository == "" {
		repository = DefaultRepository
	}
	return repository + ":" + fp.Short()
}

// ImageStore reports whether a local image exists.
type ImageStore interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
}

// Cache checks the local image store for fingerprinted images.
type Cache struct {
	Store      ImageStore
	Repository string
}

// New returns a Cache backed by store.
func New(store ImageStore, repository string) *Cache {
	if repository == "" {
		repository = DefaultRepository
	}
	return &Cache{Store: store, Repository: repository}
}

// Tag returns the image tag for fp in this cache's repository.
func (c *Cache) Tag(fp Fingerprint) string {
	return ImageTag(c.Repository, fp)
}

// Exists reports whether an image tagged for fp is present.
func (c *Cache) Exists(ctx context.Context, fp Fingerprint) (bool, error) {
	return c.Store.ImageExists(ctx, c.Tag(fp))
}
