package server

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"recipehub/internal/domain/upload"
)

// uploadsFS serves the uploads root without directory listings and hides
// files that are still being written.
type uploadsFS struct {
	fs http.FileSystem
}

func newUploadsFS(root string) uploadsFS {
	return uploadsFS{fs: gin.Dir(root, false)}
}

func (u uploadsFS) Open(name string) (http.File, error) {
	if upload.IsPartial(name) {
		return nil, os.ErrNotExist
	}
	return u.fs.Open(name)
}
