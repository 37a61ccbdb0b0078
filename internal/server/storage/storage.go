// Package storage keeps avatar images in S3-compatible object storage.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// AvatarStore uploads and deletes avatar images.
type AvatarStore interface {
	Upload(ctx context.Context, blob []byte, contentType string) (models.Avatar, error)
	Delete(ctx context.Context, publicID string) error
}

// MaxAvatarSize bounds decoded avatar payloads.
const MaxAvatarSize = 5 << 20

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrUnsupportedImage is returned for payloads that are not an accepted image.
var ErrUnsupportedImage = common.NewValidationError("avatar", "must be a png, jpeg, gif or webp data URL")

// DecodeDataURL parses "data:<type>;base64,<payload>" as sent by browsers
// and returns the raw bytes with their content type.
func DecodeDataURL(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", ErrUnsupportedImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrUnsupportedImage
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", ErrUnsupportedImage
	}
	if _, ok := extensions[contentType]; !ok {
		return nil, "", ErrUnsupportedImage
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxAvatarSize {
		return nil, "", common.NewValidationError("avatar", "image is too large")
	}

	blob, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(blob) == 0 {
		return nil, "", ErrUnsupportedImage
	}
	return blob, contentType, nil
}

// Disabled is the AvatarStore used when no bucket is configured.
type Disabled struct{}

var errDisabled = errors.New("avatar storage is not configured")

func (Disabled) Upload(context.Context, []byte, string) (models.Avatar, error) {
	return models.Avatar{}, fmt.Errorf("%w: %v", common.ErrDependencyFailure, errDisabled)
}

// Delete succeeds so that account removal is not blocked.
func (Disabled) Delete(context.Context, string) error { return nil }
