package server

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/visatk/pdf-core/internal/domain"
	apperrors "github.com/visatk/pdf-core/internal/errors"
	"github.com/visatk/pdf-core/internal/logging"
	"github.com/visatk/pdf-core/internal/session"
)

// maxUploadBytes caps multipart uploads; PDFs beyond this are rejected
// before buffering.
const maxUploadBytes = 50 << 20 // 50 MiB

// resolveSession resolves the id query parameter to a coordinator.
// requireID distinguishes endpoints that may mint a fresh session (upload)
// from those that must address an existing one.
func (s *Server) resolveSession(c echo.Context, requireID bool) (*session.Coordinator, error) {
	idParam := c.QueryParam("id")
	if requireID && idParam == "" {
		return nil, apperrors.ValidationError("missing session id")
	}

	co, err := s.registry.Resolve(idParam)
	if errors.Is(err, domain.ErrInvalidSessionID) {
		return nil, apperrors.ValidationError("invalid session id").WithContext("id", idParam)
	}
	if err != nil {
		return nil, err
	}
	return co, nil
}

// readFormFile extracts the multipart "file" field.
func readFormFile(c echo.Context) (data []byte, contentType, fileName string, err error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, "", "", apperrors.ValidationError("no file uploaded")
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, "", "", apperrors.ValidationError("file too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", "", apperrors.InternalError("failed to open uploaded file", err)
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, "", "", apperrors.InternalError("failed to read uploaded file", err)
	}
	if len(data) > maxUploadBytes {
		return nil, "", "", apperrors.ValidationError("file too large")
	}

	return data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename, nil
}

// handleUpload stores a document for a session, minting a fresh session id
// when none is supplied. The file must arrive as multipart field "file".
func (s *Server) handleUpload(c echo.Context) error {
	// Validate the payload before resolving so a malformed request never
	// mints a session.
	data, contentType, fileName, err := readFormFile(c)
	if err != nil {
		return err
	}

	co, err := s.resolveSession(c, false)
	if err != nil {
		return err
	}

	meta, err := co.Upload(c.Request().Context(), data, contentType, fileName)
	if err != nil {
		return apperrors.StorageError("failed to store document", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"id":      co.ID().String(),
		"meta":    meta,
	})
}

// handleSaveChanges overwrites the stored bytes with the client-rendered
// document (annotations burned in).
func (s *Server) handleSaveChanges(c echo.Context) error {
	co, err := s.resolveSession(c, true)
	if err != nil {
		return err
	}

	data, _, _, err := readFormFile(c)
	if err != nil {
		return err
	}

	if err := co.SaveChanges(c.Request().Context(), data); err != nil {
		return apperrors.StorageError("failed to store document", err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDownload(c echo.Context) error {
	co, err := s.resolveSession(c, true)
	if err != nil {
		return err
	}

	data, _, found, err := co.Download(c.Request().Context())
	if err != nil {
		return apperrors.StorageError("failed to fetch document", err)
	}
	if !found {
		return apperrors.NotFoundError("PDF not found")
	}

	c.Response().Header().Set("ETag", fmt.Sprintf("\"%x\"", sha256.Sum256(data)))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

func (s *Server) handleMetadata(c echo.Context) error {
	co, err := s.resolveSession(c, true)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, co.Metadata())
}

// handleWebSocket upgrades the connection and runs the read pump, feeding
// inbound frames into the session coordinator until the client disconnects.
func (s *Server) handleWebSocket(c echo.Context) error {
	co, err := s.resolveSession(c, true)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	if err := co.Attach(conn); err != nil {
		logging.WithSession(co.ID().String()).Warn("Failed to attach client", "error", err)
		return nil
	}

	// Read pump - blocks until the connection closes. Per-message errors
	// never terminate other connections; malformed frames are dropped by
	// the coordinator.
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		co.HandleMessage(conn, msg)
	}

	co.Detach(conn)

	return nil
}
