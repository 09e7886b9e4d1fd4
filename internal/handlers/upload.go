package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
)

const (
	maxImageBytes   = 5 << 20
	productImageRel = "uploads/products"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// defaultCategoryImages backs products that were created without an
// upload so listings never render a broken image.
var defaultCategoryImages = map[string]string{
	"vegetable": "https://images.unsplash.com/photo-1540420773420-3366772f4999?w=400",
	"fruit":     "https://images.unsplash.com/photo-1619566636858-adf3ef46400b?w=400",
	"grain":     "https://images.unsplash.com/photo-1574323347407-f5e1ad6d020b?w=400",
	"spice":     "https://images.unsplash.com/photo-1596040033229-a9821ebd058d?w=400",
	"dairy":     "https://images.unsplash.com/photo-1628088062854-d1870b4553da?w=400",
	"meat":      "https://images.unsplash.com/photo-1607623814075-e51df1bdc82f?w=400",
	"poultry":   "https://images.unsplash.com/photo-1548550023-2bdb3c5beed7?w=400",
	"other":     "https://images.unsplash.com/photo-1488459716781-31db52582fe9?w=400",
}

func defaultImageFor(category string) string {
	if url, ok := defaultCategoryImages[category]; ok {
		return url
	}
	return defaultCategoryImages["other"]
}

// saveUploadedImage stores a multipart file under the upload dir and
// returns its public URL path.
func saveUploadedImage(uploadDir string, file *multipart.FileHeader) (string, error) {
	if file.Size > maxImageBytes {
		return "", fmt.Errorf("%w: image must be 5MB or smaller", domain.ErrValidation)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
	default:
		return "", fmt.Errorf("%w: unsupported image type %q", domain.ErrValidation, ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	return writeImage(uploadDir, ext, src)
}

// saveBase64Image accepts a data URI ("data:image/png;base64,...") or a
// bare base64 payload and stores it like a multipart upload.
func saveBase64Image(uploadDir, data string) (string, error) {
	ext := ".jpg"
	if strings.HasPrefix(data, "data:") {
		parts := strings.SplitN(data, ",", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("%w: malformed image data", domain.ErrValidation)
		}
		mime := strings.TrimSuffix(strings.TrimPrefix(parts[0], "data:"), ";base64")
		if e, ok := imageExtensions[mime]; ok {
			ext = e
		} else {
			return "", fmt.Errorf("%w: unsupported image type %q", domain.ErrValidation, mime)
		}
		data = parts[1]
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 image data", domain.ErrValidation)
	}
	if len(raw) > maxImageBytes {
		return "", fmt.Errorf("%w: image must be 5MB or smaller", domain.ErrValidation)
	}

	return writeImage(uploadDir, ext, strings.NewReader(string(raw)))
}

func writeImage(uploadDir, ext string, src io.Reader) (string, error) {
	dir := filepath.Join(uploadDir, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return "/" + productImageRel + "/" + name, nil
}

// removeLocalImage deletes a previously uploaded file. External URLs
// (default category images) are left alone.
func removeLocalImage(uploadDir, imageURL string) {
	prefix := "/" + productImageRel + "/"
	if !strings.HasPrefix(imageURL, prefix) {
		return
	}
	name := filepath.Base(strings.TrimPrefix(imageURL, prefix))
	os.Remove(filepath.Join(uploadDir, "products", name))
}
