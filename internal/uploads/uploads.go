package uploads

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidKey            = errors.New("invalid key")
	ErrContentTypeIsRequired = errors.New("contentType is required")
	ErrInvalidContentType    = errors.New("invalid contentType")
)

// Chat image uploads only; everything else is rejected before presigning.
var allowedMimeTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

func ExtForMime(m string) (string, bool) {
	ext, ok := allowedMimeTypes[m]
	return ext, ok
}

func GenerateKey(contentType string) (string, error) {
	if contentType == "" {
		return "", ErrContentTypeIsRequired
	}

	ext, ok := ExtForMime(contentType)
	if !ok {
		return "", ErrInvalidContentType
	}

	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return "uploads/chat/" + u.String() + ext, nil
}

func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if !strings.HasPrefix(key, "uploads/chat/") {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
