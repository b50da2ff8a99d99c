package storage

import "strings"

// photoExtensions maps the photo MIME types accepted for meal captures to
// their preferred file extensions. Phone cameras produce JPEG, HEIC, or WebP;
// PNG covers screenshots of delivery-app receipts.
var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// IsPhotoMIME reports whether the content type is accepted for meal photos.
func IsPhotoMIME(contentType string) bool {
	_, ok := photoExtensions[normalizeMIME(contentType)]
	return ok
}

// ExtForPhotoMIME returns the file extension for an accepted photo MIME type,
// or empty string for anything else.
func ExtForPhotoMIME(contentType string) string {
	return photoExtensions[normalizeMIME(contentType)]
}

// PhotoMIMETypes returns the accepted content types, for error messages.
func PhotoMIMETypes() []string {
	return []string{"image/jpeg", "image/png", "image/webp", "image/heic"}
}

// normalizeMIME strips parameters like charset and lowercases the type.
func normalizeMIME(contentType string) string {
	contentType, _, _ = strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(contentType))
}
