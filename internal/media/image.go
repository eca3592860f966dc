// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

// Package media stores profile pictures and returns their public URLs.
//
// Pictures arrive as data URLs (data:image/png;base64,...) or bare base64.
// The payload's content type is sniffed, never trusted from the client, and
// only raster image types are stored.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/credgate/credgate/internal/auth"
)

// KeyPrefix is the object key prefix for profile pictures.
const KeyPrefix = "profile-pics"

// AllowedContentTypes are the raster formats accepted as profile pictures.
// Scriptable formats such as SVG are refused since uploads may be served
// from the API origin.
var AllowedContentTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Uploader stores an encoded image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, imageData string) (string, error)
}

// Image is a decoded, sniffed upload.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

func errNotImage(reason string) oops.OopsErrorBuilder {
	return oops.Code("PROFILE_PIC_NOT_IMAGE").
		Public("Profile pic must be an image").
		With("reason", reason)
}

// DecodeImage decodes a data URL or bare base64 payload and checks that it
// holds an image.
func DecodeImage(imageData string) (*Image, error) {
	payload := strings.TrimSpace(imageData)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, encoded, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, errNotImage("malformed data url").Wrap(auth.ErrValidation)
		}
		payload = encoded
	}
	if payload == "" {
		return nil, errNotImage("empty payload").Wrap(auth.ErrValidation)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, errNotImage("invalid base64").Wrap(auth.ErrValidation)
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), AllowedContentTypes...) {
		return nil, errNotImage("unsupported content type").
			With("content_type", mt.String()).
			Wrap(auth.ErrValidation)
	}

	return &Image{Data: data, ContentType: mt.String(), Extension: mt.Extension()}, nil
}

func decodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// ObjectKey returns profile-pics/YYYY/MM/DD/<ulid><ext> for an upload at now.
func ObjectKey(now time.Time, ext string) string {
	now = now.UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s", KeyPrefix, now.Year(), now.Month(), now.Day(), id, ext)
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
