package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pmsync/internal/gateway"
	"pmsync/internal/models"
	"pmsync/internal/storage/sqlite"
)

// handleExec dispatches on the action query parameter.
func (s *Server) handleExec(c *gin.Context) {
	action := c.Query("action")
	if action == gateway.ActionBulkLoad {
		s.handleBulkLoad(c)
		return
	}

	kind := models.EntityType(c.Query("type"))
	if !kind.Valid() {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("unknown type %q", kind))
		return
	}
	id := c.Query("id")

	switch action {
	case gateway.ActionCreate:
		s.handleCreate(c, kind)
	case gateway.ActionUpdate:
		if !requireID(s, c, id) {
			return
		}
		s.handleUpdate(c, kind, id)
	case gateway.ActionDelete:
		if !requireID(s, c, id) {
			return
		}
		s.handleDelete(c, kind, id)
	default:
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("unknown action %q", action))
	}
}

func requireID(s *Server, c *gin.Context, id string) bool {
	if id == "" {
		s.respondError(c, http.StatusBadRequest, errors.New("missing id"))
		return false
	}
	return true
}

// readBody accepts either a raw JSON body or a form field named data.
func readBody(c *gin.Context) ([]byte, error) {
	if c.ContentType() == "application/x-www-form-urlencoded" || c.ContentType() == "multipart/form-data" {
		data := c.PostForm("data")
		if data == "" {
			return nil, errors.New("missing data field")
		}
		return []byte(data), nil
	}
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrExists):
		return http.StatusConflict
	case errors.Is(err, sqlite.ErrInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleBulkLoad(c *gin.Context) {
	cols, err := s.store.LoadAll(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, cols)
}

func (s *Server) handleCreate(c *gin.Context, kind models.EntityType) {
	body, err := readBody(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	rec, created, err := s.store.Create(c.Request.Context(), kind, body)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	if created {
		s.hub.Publish(ChangeEvent{Action: gateway.ActionCreate, Type: kind, ID: rec.EntityID()})
	}
	respondSuccess(c, rec)
}

func (s *Server) handleUpdate(c *gin.Context, kind models.EntityType, id string) {
	body, err := readBody(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	rec, err := s.store.Update(c.Request.Context(), kind, id, body)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	s.hub.Publish(ChangeEvent{Action: gateway.ActionUpdate, Type: kind, ID: id})
	respondSuccess(c, rec)
}

func (s *Server) handleDelete(c *gin.Context, kind models.EntityType, id string) {
	cascaded, err := s.store.Delete(c.Request.Context(), kind, id)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	s.hub.Publish(ChangeEvent{Action: gateway.ActionDelete, Type: kind, ID: id, Cascaded: cascaded})
	respondSuccess(c, gin.H{"id": id, "cascaded": cascaded})
}
