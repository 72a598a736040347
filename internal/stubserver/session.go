package stubserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/csheth/rulebook/internal/corpus"
)

const (
	msgLoaded          = "Data loaded successfully. RAG session initialized."
	msgQueryUninit     = "RAG session not initialized. Please call /load_data first."
	msgStateUninit     = "Session not initialized. Please call /load_data first."
	msgInvalidJSON     = "Invalid JSON file provided"
	msgJSONShape       = "JSON must be an object or array"
	msgJSONNotUTF8     = "JSON file must be UTF-8 encoded"
	fieldDocument      = "pdf_file"
	fieldSeed          = "json_file"
	maxUploadPartBytes = 16 << 20
)

var (
	errInvalidJSON = errors.New(msgInvalidJSON)
	errJSONShape   = errors.New(msgJSONShape)
)

// ragSession is the single server-side session. Loading replaces it.
type ragSession struct {
	id       uuid.UUID
	owner    string
	document string
	loadedAt time.Time
	index    *passageIndex
	state    map[string]any
}

func (r *ragSession) snapshot() map[string]any {
	return maps.Clone(r.state)
}

func (s *Server) currentSession() *ragSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Server) handleLoadData(c *fiber.Ctx) error {
	docHeader, docErr := c.FormFile(fieldDocument)
	seedHeader, seedErr := c.FormFile(fieldSeed)
	var missing []fieldError
	if docErr != nil {
		missing = append(missing, missingField(fieldDocument))
	}
	if seedErr != nil {
		missing = append(missing, missingField(fieldSeed))
	}
	if len(missing) > 0 {
		return validationFailed(c, missing)
	}

	seedRaw, err := readPart(seedHeader)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load data: "+err.Error())
	}
	if !utf8.Valid(seedRaw) {
		return fiber.NewError(fiber.StatusBadRequest, msgJSONNotUTF8)
	}
	state, err := parseSeed(seedRaw)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	docRaw, err := readPart(docHeader)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load data: "+err.Error())
	}
	pages, err := corpus.ExtractPages(docRaw)
	if err != nil {
		// Answers fall back to "not found" instead of failing the load.
		s.log.Warn("pdf text extraction failed", zap.String("document", docHeader.Filename), zap.Error(err))
	}

	sess := &ragSession{
		id:       uuid.New(),
		owner:    fmt.Sprint(c.Locals(localUsername)),
		document: docHeader.Filename,
		loadedAt: s.now(),
		index:    newPassageIndex(pages),
		state:    state,
	}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.log.Info("session loaded",
		zap.Stringer("session_id", sess.id),
		zap.String("owner", sess.owner),
		zap.String("document", sess.document),
		zap.Int("pages", len(pages)),
		zap.Int("passages", sess.index.Len()),
		zap.Int("state_keys", len(state)),
	)
	return c.JSON(fiber.Map{
		"message":       msgLoaded,
		"session_state": sess.snapshot(),
	})
}

type queryRequest struct {
	Question string `json:"question" validate:"required"`
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return validationFailed(c, []fieldError{{Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid"}})
	}
	if errs := s.checkStruct(req); len(errs) > 0 {
		return validationFailed(c, errs)
	}
	sess := s.currentSession()
	if sess == nil {
		return fiber.NewError(fiber.StatusBadRequest, msgQueryUninit)
	}
	answer := sess.index.Answer(req.Question, sess.document)
	s.log.Debug("question answered",
		zap.Stringer("session_id", sess.id),
		zap.Int("question_chars", len(req.Question)),
		zap.Int("answer_chars", len(answer)),
	)
	return c.JSON(fiber.Map{
		"response":      answer,
		"session_state": sess.snapshot(),
	})
}

func (s *Server) handleSessionState(c *fiber.Ctx) error {
	sess := s.currentSession()
	if sess == nil {
		return fiber.NewError(fiber.StatusBadRequest, msgStateUninit)
	}
	return c.JSON(sess.snapshot())
}

// parseSeed accepts a JSON object, or an array wrapped as {"data": [...]}.
func parseSeed(raw []byte) (map[string]any, error) {
	var value any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, errInvalidJSON
	}
	if dec.More() {
		return nil, errInvalidJSON
	}
	switch v := value.(type) {
	case map[string]any:
		return v, nil
	case []any:
		return map[string]any{"data": v}, nil
	default:
		return nil, errJSONShape
	}
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadPartBytes))
}
