// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package media

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/afero"
)

// LocalUploader writes images to a directory, for development and
// single-node deployments.
type LocalUploader struct {
	fs        afero.Fs
	publicURL string
	now       func() time.Time
}

// NewLocalUploader stores files under dir on fs. publicURL is the base the
// directory is served from, such as http://localhost:5001/uploads.
func NewLocalUploader(fs afero.Fs, dir, publicURL string) (*LocalUploader, error) {
	if dir == "" {
		return nil, oops.Code("MEDIA_CONFIG_INVALID").Errorf("local storage directory is required")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, oops.Code("MEDIA_CONFIG_INVALID").With("dir", dir).Wrap(err)
	}
	return &LocalUploader{
		fs:        afero.NewBasePathFs(fs, dir),
		publicURL: publicURL,
		now:       time.Now,
	}, nil
}

// Upload decodes imageData and writes it under a dated path.
func (u *LocalUploader) Upload(_ context.Context, imageData string) (string, error) {
	img, err := DecodeImage(imageData)
	if err != nil {
		return "", err
	}

	key := ObjectKey(u.now(), img.Extension)
	if err := u.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return "", oops.Code("MEDIA_UPLOAD_FAILED").With("operation", "create directory").With("key", key).Wrap(err)
	}
	if err := afero.WriteFile(u.fs, key, img.Data, 0o644); err != nil {
		return "", oops.Code("MEDIA_UPLOAD_FAILED").With("operation", "write file").With("key", key).Wrap(err)
	}
	return publicURL(u.publicURL, key), nil
}

// FileSystem exposes the stored files for http.FileServer.
func (u *LocalUploader) FileSystem() http.FileSystem {
	return afero.NewHttpFs(u.fs).Dir("/")
}
