package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	MaxAvatarBytes = 3 << 20
	// MaxAvatarSide is the longest edge kept after resizing.
	MaxAvatarSide = 512
	jpegQuality   = 85
	avatarFolder  = "avatars"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
	ErrCorruptImage     = errors.New("image could not be decoded")
)

// Storage persists an object and returns the URL it is reachable at.
type Storage interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

// Avatar processes profile picture uploads.
type Avatar struct {
	store Storage
	now   func() time.Time
}

func NewAvatar(store Storage) *Avatar {
	return &Avatar{store: store, now: time.Now}
}

// Process validates data, re-encodes it as JPEG and stores it under a fresh
// name. It returns the public URL.
func (a *Avatar) Process(ctx context.Context, contentType string, data []byte) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if _, ok := allowedTypes[ct]; !ok {
		return "", ErrUnsupportedImage
	}
	if len(data) > MaxAvatarBytes {
		return "", ErrImageTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	b := img.Bounds()
	if b.Dx() > MaxAvatarSide || b.Dy() > MaxAvatarSide {
		img = imaging.Fit(img, MaxAvatarSide, MaxAvatarSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}

	key := avatarFolder + "/" + uuid.NewString() + "_" + strconv.FormatInt(a.now().UnixMilli(), 10) + ".jpeg"
	url, err := a.store.Put(ctx, key, "image/jpeg", buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	return url, nil
}
