package stubserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type generateReportRequest struct {
	AnalysisID string `json:"analysis_id" binding:"required"`
	Title      string `json:"title"`
}

func reportJSON(r *report) gin.H {
	return gin.H{
		"id":          r.ID,
		"title":       r.Title,
		"analysis_id": r.AnalysisID,
		"content":     r.Content,
		"created_at":  r.CreatedAt,
		"filename":    r.Filename,
	}
}

func (s *Server) handleListReports(c *gin.Context) {
	userID := currentUser(c)

	s.store.mu.RLock()
	owned := make([]report, 0)
	for i := len(s.store.reportIDs) - 1; i >= 0; i-- {
		if r := s.store.reports[s.store.reportIDs[i]]; r.OwnerID == userID {
			owned = append(owned, *r)
		}
	}
	s.store.mu.RUnlock()

	newestFirst(owned, func(r report) string { return r.CreatedAt })
	out := make([]gin.H, 0, len(owned))
	for i := range owned {
		out = append(out, reportJSON(&owned[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGenerateReport(c *gin.Context) {
	var req generateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	s.store.mu.RLock()
	a, ok := s.store.analyses[req.AnalysisID]
	var analysis analysisRecord
	if ok {
		analysis = *a
	}
	s.store.mu.RUnlock()
	if !ok || analysis.OwnerID != currentUser(c) {
		abortDetail(c, http.StatusNotFound, "Analysis not found")
		return
	}

	title := req.Title
	if title == "" {
		title = "Medical Report - " + analysis.Filename
	}
	created := time.Now().UTC()
	r := &report{
		OwnerID:    currentUser(c),
		ID:         uuid.NewString(),
		Title:      title,
		AnalysisID: analysis.ID,
		Content:    reportMarkdown(&analysis, title, created.Format("January 02, 2006 at 03:04 PM")),
		CreatedAt:  now(),
		Filename:   fmt.Sprintf("report_%s.md", created.Format("20060102_150405")),
	}

	s.store.mu.Lock()
	s.store.reports[r.ID] = r
	s.store.reportIDs = append(s.store.reportIDs, r.ID)
	s.store.mu.Unlock()

	c.JSON(http.StatusCreated, reportJSON(r))
}

func (s *Server) findReport(c *gin.Context) (*report, bool) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	r, ok := s.store.reports[c.Param("id")]
	if !ok || r.OwnerID != currentUser(c) {
		abortDetail(c, http.StatusNotFound, "Report not found")
		return nil, false
	}
	cp := *r
	return &cp, true
}

func (s *Server) handleGetReport(c *gin.Context) {
	if r, ok := s.findReport(c); ok {
		c.JSON(http.StatusOK, reportJSON(r))
	}
}

func (s *Server) handleDownloadReport(c *gin.Context) {
	r, ok := s.findReport(c)
	if !ok {
		return
	}
	filename := r.Filename
	if filename == "" {
		filename = "report.md"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/markdown", []byte(r.Content))
}
