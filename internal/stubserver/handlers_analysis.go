package stubserver

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".dcm", ".nii", ".nii.gz"}

const maxUploadBytes = 50 << 20

type analyzeRequest struct {
	Filename  string `json:"filename" binding:"required"`
	ImageData string `json:"image_data" binding:"required"`
	EnableXAI *bool  `json:"enable_xai"`
}

type reportRequest struct {
	IncludeReferences *bool `json:"include_references"`
}

func allowedFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// toPNG normalizes an upload to PNG. Volumes and DICOM are not rendered;
// they get a grey placeholder frame.
func toPNG(name string, data []byte) ([]byte, string, error) {
	lower := strings.ToLower(name)
	var buf bytes.Buffer

	if strings.HasSuffix(lower, ".dcm") || strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz") {
		placeholder := imaging.New(64, 64, color.Gray{Y: 96})
		if err := imaging.Encode(&buf, placeholder, imaging.PNG); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), imagingKind(name), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image", nil
}

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []fieldError{{
			Loc: []any{"body", "file"}, Msg: "Field required", Type: "missing",
		}}})
		return
	}
	if !allowedFile(fh.Filename) {
		abortDetail(c, http.StatusBadRequest, "File type not allowed. Allowed types: jpg, jpeg, png, dcm, nii, nii.gz")
		return
	}
	if fh.Size > maxUploadBytes {
		abortDetail(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, "Error processing file: "+err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		abortDetail(c, http.StatusInternalServerError, "Error processing file: "+err.Error())
		return
	}

	png, kind, err := toPNG(fh.Filename, data)
	if err != nil {
		abortDetail(c, http.StatusBadRequest, "Failed to process file")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "File uploaded successfully",
		"filename":   fh.Filename,
		"file_type":  kind,
		"image_data": base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.ImageData); err != nil {
		abortDetail(c, http.StatusBadRequest, "Invalid image data")
		return
	}

	rec := &analysisRecord{
		OwnerID:  currentUser(c),
		ID:       uuid.NewString(),
		Filename: req.Filename,
		Date:     now(),
		Analysis: cannedAnalysis(req.Filename),
		Findings: append([]string(nil), cannedFindings...),
		Keywords: append([]string(nil), cannedKeywords...),
		Recommendations: map[string]any{
			"urgency_level":          "Routine",
			"primary_specialist":     "Radiologist",
			"additional_specialists": []string{"Primary Care Physician"},
		},
		PubMedArticles: append([]article(nil), cannedArticles...),
		ClinicalTrials: []any{},
	}

	s.store.mu.Lock()
	s.store.analyses[rec.ID] = rec
	s.store.analysisIDs = append(s.store.analysisIDs, rec.ID)
	s.store.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"analysis_id": rec.ID, "filename": rec.Filename}).Info("Analysis stored")
	c.JSON(http.StatusCreated, rec)
}

// ownedAnalyses returns the user's analyses, newest first
func (s *Server) ownedAnalyses(userID string) []analysisRecord {
	s.store.mu.RLock()
	out := make([]analysisRecord, 0)
	for _, id := range s.store.analysisIDs {
		if a := s.store.analyses[id]; a.OwnerID == userID {
			out = append(out, *a)
		}
	}
	s.store.mu.RUnlock()

	// Reverse insertion order breaks ties between equal timestamps
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	newestFirst(out, func(a analysisRecord) string { return a.Date })
	return out
}

func (s *Server) findAnalysis(c *gin.Context, id string) (*analysisRecord, bool) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	a, ok := s.store.analyses[id]
	if !ok || a.OwnerID != currentUser(c) {
		abortDetail(c, http.StatusNotFound, "Analysis not found")
		return nil, false
	}
	cp := *a
	return &cp, true
}

func (s *Server) handleAnalysisHistory(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []fieldError{{
				Loc: []any{"query", "limit"}, Msg: "Input should be a valid integer", Type: "int_parsing",
			}}})
			return
		}
		limit = n
	}

	all := s.ownedAnalyses(currentUser(c))
	if len(all) > limit {
		all = all[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"analyses": all})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	a, ok := s.findAnalysis(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleAnalysisReport(c *gin.Context) {
	var req reportRequest
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return
		}
	}
	a, ok := s.findAnalysis(c, c.Param("id"))
	if !ok {
		return
	}

	lines := []string{"Medical Imaging Report", "Image: " + a.Filename, "Date: " + a.Date}
	for i, f := range a.Findings {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, f))
	}
	if req.IncludeReferences == nil || *req.IncludeReferences {
		for _, art := range a.PubMedArticles {
			lines = append(lines, fmt.Sprintf("PMID %s: %s", art.ID, art.Title))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"report_data": base64.StdEncoding.EncodeToString(minimalPDF(lines...)),
		"filename":    "medical_report_" + a.ID + ".pdf",
	})
}
