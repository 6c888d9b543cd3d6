package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// dashboard is a prebuilt single page app served next to the endpoint.
type dashboard struct {
	root  string
	index string
}

func openDashboard(dir string) (*dashboard, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return nil, errors.New("index.html not found")
	}
	return &dashboard{root: dir, index: index}, nil
}

// file maps a request path to a regular file below root. Paths that do not
// name one resolve to index.html so client side routes load the app.
func (d *dashboard) file(urlPath string) string {
	p := filepath.Join(d.root, filepath.FromSlash(path.Clean("/"+urlPath)))
	if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
		return p
	}
	return d.index
}

func isEndpointPath(p string) bool {
	return p == "/exec" || strings.HasPrefix(p, "/exec/") || strings.HasPrefix(p, "/api/") || p == "/ws"
}

// mountStatic installs the fallback handler. Without a dashboard every
// unknown route gets the endpoint's JSON envelope.
func (s *Server) mountStatic(dir string) {
	var site *dashboard
	if dir != "" {
		var err error
		if site, err = openDashboard(dir); err != nil {
			s.logger.Warn("dashboard disabled", zap.String("path", dir), zap.Error(err))
			site = nil
		} else {
			s.logger.Info("serving dashboard", zap.String("path", dir))
		}
	}

	s.engine.NoRoute(func(c *gin.Context) {
		method := c.Request.Method
		p := c.Request.URL.Path
		if site == nil || isEndpointPath(p) || (method != http.MethodGet && method != http.MethodHead) {
			s.respondError(c, http.StatusNotFound, fmt.Errorf("no route for %s %s", method, p))
			return
		}
		c.File(site.file(p))
	})
}
