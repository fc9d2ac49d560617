package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/cf-error-page/editor/internal/platform/httpx"
)

const assetCacheControl = "public, max-age=604800, stale-while-revalidate=86400"

// EditorHandlers serves the built editor front-end.
type EditorHandlers struct {
	files  fs.FS
	prefix string
	etags  map[string]string
}

// NewEditorHandlers serves files from dir, mounted under prefix + "/editor".
func NewEditorHandlers(dir, prefix string) *EditorHandlers {
	return NewEditorHandlersFS(os.DirFS(dir), prefix)
}

// NewEditorHandlersFS serves files from an arbitrary filesystem. ETags are computed once up
// front; a missing or unreadable tree simply yields none.
func NewEditorHandlersFS(files fs.FS, prefix string) *EditorHandlers {
	etags := map[string]string{}
	_ = fs.WalkDir(files, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(files, name)
		if err != nil {
			return nil
		}
		sum := sha256.Sum256(data)
		etags[name] = `W/"` + hex.EncodeToString(sum[:]) + `"`
		return nil
	})
	return &EditorHandlers{files: files, prefix: strings.TrimRight(prefix, "/"), etags: etags}
}

// Static handles GET .../editor/*. Directories resolve to their index.html. HTML documents
// are revalidated on every load; other assets are cached for a week.
func (h *EditorHandlers) Static(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, h.prefix+"/editor")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		name = "index.html"
	}

	info, err := fs.Stat(h.files, name)
	if err == nil && info.IsDir() {
		name = path.Join(name, "index.html")
		_, err = fs.Stat(h.files, name)
	}
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_found", "file not found", http.StatusNotFound))
		return
	}

	w.Header().Set("Vary", "Accept-Encoding")
	if path.Ext(name) == ".html" {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", assetCacheControl)
	}
	if et := h.etags[name]; et != "" {
		w.Header().Set("ETag", et)
		if inm := r.Header.Get("If-None-Match"); inm != "" && inm == et {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	http.ServeFileFS(w, r, h.files, name)
}

// Redirect handles GET / by sending the client to the editor.
func (h *EditorHandlers) Redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.prefix+"/editor/", http.StatusFound)
}
