// Package storage stores product images and generated site files on
// Cloudinary.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ErrNotConfigured is returned by Disabled for every write.
var ErrNotConfigured = errors.New("file storage is not configured")

// rawExtensions are stored as raw assets. Cloudinary keeps the extension in
// the public id of raw assets and drops it for images.
var rawExtensions = map[string]bool{".xml": true, ".txt": true}

var versionSegment = regexp.MustCompile(`^v\d+/`)

// UploadOptions tunes a single upload.
type UploadOptions struct {
	// ContentType is informative; Cloudinary sniffs the payload itself.
	ContentType string
	// Overwrite replaces an existing asset at the same path.
	Overwrite bool
}

// Cloudinary is a FileStorage backed by one Cloudinary account. Every path
// is relative to Folder.
type Cloudinary struct {
	cld       *cloudinary.Cloudinary
	cloudName string
	folder    string
}

// NewCloudinary creates a Cloudinary storage from a cloudinary:// URL.
func NewCloudinary(rawURL, folder string) (*Cloudinary, error) {
	if rawURL == "" {
		return nil, ErrNotConfigured
	}
	cld, err := cloudinary.NewFromURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &Cloudinary{
		cld:       cld,
		cloudName: cld.Config.Cloud.CloudName,
		folder:    strings.Trim(folder, "/"),
	}, nil
}

func resourceType(p string) string {
	if rawExtensions[strings.ToLower(path.Ext(p))] {
		return "raw"
	}
	return "image"
}

func (c *Cloudinary) publicID(p string) string {
	p = strings.TrimPrefix(p, "/")
	if resourceType(p) == "image" {
		p = strings.TrimSuffix(p, path.Ext(p))
	}
	if c.folder == "" {
		return p
	}
	return c.folder + "/" + p
}

// Upload stores data at path and returns its public HTTPS URL.
func (c *Cloudinary) Upload(ctx context.Context, p string, data io.Reader, opts UploadOptions) (string, error) {
	overwrite := opts.Overwrite
	invalidate := opts.Overwrite
	res, err := c.cld.Upload.Upload(ctx, data, uploader.UploadParams{
		PublicID:     c.publicID(p),
		ResourceType: resourceType(p),
		Overwrite:    &overwrite,
		Invalidate:   &invalidate,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", p, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", p, res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", fmt.Errorf("upload %s: no URL returned", p)
	}
	return res.SecureURL, nil
}

// Remove deletes every path. Missing assets are not an error.
func (c *Cloudinary) Remove(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
			PublicID:     c.publicID(p),
			ResourceType: resourceType(p),
		})
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		case res.Error.Message != "":
			errs = append(errs, fmt.Errorf("remove %s: %s", p, res.Error.Message))
		}
	}
	return errors.Join(errs...)
}

// Managed reports whether u points at an asset inside this storage's folder.
func (c *Cloudinary) Managed(u string) bool {
	_, ok := c.PathFromURL(u)
	return ok
}

// PathFromURL maps a delivery URL such as
// https://res.cloudinary.com/<cloud>/image/upload/v1712/<folder>/products/abc.jpg
// back to the storage path "products/abc.jpg".
func (c *Cloudinary) PathFromURL(u string) (string, bool) {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host != "res.cloudinary.com" {
		return "", false
	}

	prefix := "/" + c.cloudName + "/"
	if !strings.HasPrefix(parsed.Path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(parsed.Path, prefix)

	// <resource type>/upload/
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[1] != "upload" {
		return "", false
	}
	rest = versionSegment.ReplaceAllString(parts[2], "")

	if c.folder != "" {
		if !strings.HasPrefix(rest, c.folder+"/") {
			return "", false
		}
		rest = strings.TrimPrefix(rest, c.folder+"/")
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Disabled is the FileStorage used when no Cloudinary account is configured.
type Disabled struct{}

// Upload always fails with ErrNotConfigured.
func (Disabled) Upload(context.Context, string, io.Reader, UploadOptions) (string, error) {
	return "", ErrNotConfigured
}

// Remove always fails with ErrNotConfigured.
func (Disabled) Remove(context.Context, []string) error { return ErrNotConfigured }

// Managed always reports false.
func (Disabled) Managed(string) bool { return false }

// PathFromURL never resolves.
func (Disabled) PathFromURL(string) (string, bool) { return "", false }
