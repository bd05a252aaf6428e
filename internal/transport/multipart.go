package transport

import (
	"bytes"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// fileField is the form field that carries the file payload
const fileField = "file"

// EncodeMultipart builds a multipart/form-data body holding every metadata
// pair as a form field followed by the file at fileLocation.
// It returns the body and its Content-Type including the boundary.
func EncodeMultipart(fileLocation string, metadata map[string]string) ([]byte, string, error) {
	path := LocalPath(fileLocation)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", types.NewError(types.KindUnknown, 0, errors.Wrapf(err, "failed to read %s", filepath.Base(path)))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(uuid.New().String()); err != nil {
		return nil, "", types.NewError(types.KindUnknown, 0, errors.Wrap(err, "failed to set boundary"))
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := w.WriteField(k, metadata[k]); err != nil {
			return nil, "", types.NewError(types.KindUnknown, 0, errors.Wrapf(err, "failed to write field %s", k))
		}
	}

	part, err := w.CreateFormFile(fileField, filepath.Base(path))
	if err != nil {
		return nil, "", types.NewError(types.KindUnknown, 0, errors.Wrap(err, "failed to create file part"))
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", types.NewError(types.KindUnknown, 0, errors.Wrap(err, "failed to write file part"))
	}

	if err := w.Close(); err != nil {
		return nil, "", types.NewError(types.KindUnknown, 0, errors.Wrap(err, "failed to finish multipart body"))
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// LocalPath turns a file:// URL into a filesystem path; other values pass through
func LocalPath(fileLocation string) string {
	u, err := url.Parse(fileLocation)
	if err == nil && u.Scheme == "file" {
		return u.Path
	}
	return fileLocation
}
