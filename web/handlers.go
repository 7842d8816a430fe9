package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rlm-engine/cost"
	"rlm-engine/engine"
	apperrors "rlm-engine/errors"
	"rlm-engine/utils"
)

type queryRequest struct {
	Question     string   `json:"question" binding:"required"`
	DocumentID   string   `json:"document_id"`
	DocumentIDs  []string `json:"document_ids"`
	DocumentText string   `json:"document_text"`
}

type batchQueryRequest struct {
	Questions    []string `json:"questions" binding:"required"`
	DocumentID   string   `json:"document_id"`
	DocumentIDs  []string `json:"document_ids"`
	DocumentText string   `json:"document_text"`
}

type queryResponse struct {
	Result engine.QueryResult `json:"result"`
	Cost   *cost.Estimate     `json:"cost,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	document, ok := s.resolveDocument(c, req.DocumentText, req.DocumentID, req.DocumentIDs)
	if !ok {
		return
	}

	result, err := s.runner.Run(c.Request.Context(), req.Question, document)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.archiveResult(c, req.Question, result)

	c.JSON(http.StatusOK, s.buildResponse(result))
}

func (s *Server) handleBatchQuery(c *gin.Context) {
	var req batchQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if len(req.Questions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "questions must not be empty"})
		return
	}

	document, ok := s.resolveDocument(c, req.DocumentText, req.DocumentID, req.DocumentIDs)
	if !ok {
		return
	}

	results, err := s.runner.RunBatch(c.Request.Context(), req.Questions, document)
	if err != nil {
		s.writeError(c, err)
		return
	}
	for i, result := range results {
		s.archiveResult(c, req.Questions[i], result)
	}

	responses := make([]queryResponse, len(results))
	for i, result := range results {
		responses[i] = s.buildResponse(result)
	}
	c.JSON(http.StatusOK, gin.H{"results": responses})
}

func (s *Server) handleUploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if file.Size > s.config.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	id := c.PostForm("id")
	if id == "" {
		id = utils.DocumentIDFromFilename(file.Filename)
	}

	// The ingestor chain works from paths, so land the upload in a temp file
	// that keeps the original extension.
	tmp, err := os.CreateTemp("", "rlm-upload-*"+strings.ToLower(filepath.Ext(file.Filename)))
	if err != nil {
		s.writeError(c, err)
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		s.writeError(c, err)
		return
	}

	text, err := s.ingest.Ingest(tmpPath)
	if err != nil {
		s.writeError(c, err)
		return
	}

	meta := s.docs.Load(id, utils.SanitizeFilename(file.Filename), text)
	s.logger.Info("Document uploaded",
		zap.String("id", meta.ID),
		zap.Int("chars", meta.CharCount))
	c.JSON(http.StatusCreated, meta)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"documents": s.docs.List()})
}

func (s *Server) handleDetectDomain(c *gin.Context) {
	id := c.Param("id")
	text, err := s.docs.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	meta, err := s.docs.Meta(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	scores := s.domains.DetectMulti(text, meta.Source, 0.2)
	type detected struct {
		Domain      string  `json:"domain"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	}
	out := make([]detected, len(scores))
	for i, sc := range scores {
		out[i] = detected{
			Domain:      sc.Domain.Name,
			Description: sc.Domain.Description,
			Confidence:  sc.Confidence,
		}
	}
	c.JSON(http.StatusOK, gin.H{"document_id": id, "domains": out})
}

func (s *Server) handleListResults(c *gin.Context) {
	if s.archive == nil {
		s.writeError(c, apperrors.WrapError(apperrors.ErrServiceUnavailable, "result archive not configured"))
		return
	}
	n, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := s.archive.ListRecent(c.Request.Context(), n)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": records})
}

// resolveDocument picks the document for a query: inline text first, then a
// combined multi-document context, then a single registered document, then
// the active document. Writes the error response itself on failure.
func (s *Server) resolveDocument(c *gin.Context, text, id string, ids []string) (string, bool) {
	switch {
	case text != "":
		return text, true
	case len(ids) > 0:
		combined, err := s.docs.CombinedContext(ids)
		if err != nil {
			s.writeError(c, err)
			return "", false
		}
		return combined, true
	case id != "":
		doc, err := s.docs.Get(id)
		if err != nil {
			s.writeError(c, err)
			return "", false
		}
		return doc, true
	default:
		if doc := s.docs.Active(); doc != "" {
			return doc, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": apperrors.ErrNoDocument.Error()})
		return "", false
	}
}

func (s *Server) buildResponse(result engine.QueryResult) queryResponse {
	resp := queryResponse{Result: result}
	if s.config.TrackCosts {
		est := s.pricing.Estimate(result, s.config.RootModel, s.config.SubModel)
		resp.Cost = &est
	}
	return resp
}

func (s *Server) archiveResult(c *gin.Context, question string, result engine.QueryResult) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.SaveResult(c.Request.Context(), question, result); err != nil {
		s.logger.Warn("Failed to archive result", zap.Error(err))
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsInvalidInput(err), apperrors.IsNoDocument(err),
		errors.Is(err, apperrors.ErrDocumentIngestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsServiceUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrLLMCommunication):
		s.logger.Error("Upstream model call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "model call failed"})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
