package service

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

type PhotoKind string

const (
	PhotoFind      PhotoKind = "find"
	PhotoSpeakeasy PhotoKind = "speakeasy"
	PhotoAvatar    PhotoKind = "avatar"
)

var photoExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/heic": "heic",
	"image/webp": "webp",
}

// PhotoService hands out pre-signed upload URLs for user photos.
type PhotoService struct {
	storage domain.PhotoStorage
	users   UserSource
	clock

	URLTTL time.Duration
}

func NewPhotoService(storage domain.PhotoStorage, users UserSource) *PhotoService {
	return &PhotoService{
		storage: storage,
		users:   users,
		clock:   defaultClock(),
		URLTTL:  5 * time.Minute,
	}
}

type PhotoUpload struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	PhotoURL  string `json:"photo_url"`
	ExpiresIn int    `json:"expires_in"`
}

// PresignUpload returns a PUT URL under "<kind>s/<user id>/<uuid>.<ext>".
func (s *PhotoService) PresignUpload(ctx context.Context, kind PhotoKind, contentType string) (*PhotoUpload, error) {
	user, err := s.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	switch kind {
	case PhotoFind, PhotoSpeakeasy, PhotoAvatar:
	default:
		return nil, fmt.Errorf("%w: unknown photo kind %q", domain.ErrInvalidInput, kind)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: content type must be an image", domain.ErrInvalidInput)
	}
	ext, ok := photoExtensions[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image type %s", domain.ErrInvalidInput, mediaType)
	}

	key := fmt.Sprintf("%ss/%s/%s.%s", kind, user.ID, s.NewID(), ext)
	url, err := s.storage.PresignPut(ctx, key, mediaType, s.URLTTL)
	if err != nil {
		return nil, err
	}
	return &PhotoUpload{
		UploadURL: url,
		Key:       key,
		PhotoURL:  s.storage.PublicURL(key),
		ExpiresIn: int(s.URLTTL.Seconds()),
	}, nil
}
