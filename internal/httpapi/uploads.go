package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// saveUpload stores the optional `image` file under the upload dir and
// returns (stored name, absolute-ish path). Names are prefixed with the
// submission's unix-millisecond timestamp so distinct uploads never
// overwrite each other; the original base name is kept for the UI.
func (s *Server) saveUpload(r *http.Request) (name, path string, err error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", "", nil
		}
		return "", "", err
	}
	defer file.Close()

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", "", err
	}

	name = fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(header.Filename))
	path = filepath.Join(s.cfg.UploadDir, name)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(path)
		return "", "", err
	}
	return name, path, nil
}
