// internal/injector/photo.go
package injector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/internal/browser/dom"
)

// PhotoName is the file name every attached photo gets.
const PhotoName = "photo.jpg"

// ErrNotImage is returned for payloads that are not image data URLs.
var ErrNotImage = errors.New("photo is not an image data URL")

// DecodeDataURL splits a base64 data URL into its MIME type and bytes.
func DecodeDataURL(dataURL string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(dataURL, "data:image") {
		return "", nil, ErrNotImage
	}
	header, payload, found := strings.Cut(dataURL, ",")
	if !found {
		return "", nil, fmt.Errorf("data URL has no payload: %w", ErrNotImage)
	}
	_, rest, _ := strings.Cut(header, ":")
	mime, _, found = strings.Cut(rest, ";")
	if !found || mime == "" {
		return "", nil, fmt.Errorf("data URL has no media type: %w", ErrNotImage)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode photo payload: %w", err)
	}
	return mime, data, nil
}

// AttachPhoto attaches the photo to every file input that accepts images, or
// declares no accept filter. It returns how many inputs took the file.
// Failures on one input do not stop the others.
func (i *Injector) AttachPhoto(ctx context.Context, dataURL string) (int, error) {
	mime, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return 0, err
	}
	fields, err := i.adapter.Fields(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate fields: %w", err)
	}

	file := dom.File{Name: PhotoName, MIME: mime, Data: data}
	attached := 0
	for _, f := range fields {
		if f.Tag != "input" || f.Type != "file" {
			continue
		}
		if f.Accept != "" && !strings.Contains(f.Accept, "image") {
			continue
		}
		if err := i.adapter.AttachFile(ctx, f.Key, file); err != nil {
			i.logger.Warn("Photo attach failed.", zap.String("key", f.Key), zap.Error(err))
			continue
		}
		if err := i.adapter.Dispatch(ctx, f.Key, dom.FileEvents()...); err != nil {
			i.logger.Warn("Photo events failed.", zap.String("key", f.Key), zap.Error(err))
			continue
		}
		attached++
	}
	i.logger.Debug("Photo attached.", zap.Int("inputs", attached), zap.String("mime", mime))
	return attached, ctx.Err()
}
