package stubserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createQASessionRequest struct {
	RoomName    string `json:"room_name" binding:"required"`
	CreatorName string `json:"creator_name" binding:"required"`
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func qaSummary(q *qaSession) gin.H {
	return gin.H{
		"id":         q.ID,
		"room_name":  q.RoomName,
		"creator":    q.Creator,
		"created_at": q.CreatedAt,
	}
}

func (s *Server) handleCreateQASession(c *gin.Context) {
	var req createQASessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session := &qaSession{
		OwnerID:   currentUser(c),
		ID:        uuid.NewString(),
		RoomName:  req.RoomName,
		Creator:   req.CreatorName,
		CreatedAt: now(),
	}
	session.Messages = append(session.Messages, newMessage(qaSystemSender,
		"Welcome to the medical report Q&A room. Ask anything about your imaging reports."))

	s.store.mu.Lock()
	s.store.qaSessions[session.ID] = session
	s.store.qaSessionIDs = append(s.store.qaSessionIDs, session.ID)
	s.store.mu.Unlock()

	c.JSON(http.StatusCreated, qaSummary(session))
}

// handleListQASessions answers with a bare array
func (s *Server) handleListQASessions(c *gin.Context) {
	userID := currentUser(c)

	s.store.mu.RLock()
	out := make([]gin.H, 0)
	for _, id := range s.store.qaSessionIDs {
		if q := s.store.qaSessions[id]; q.OwnerID == userID {
			out = append(out, qaSummary(q))
		}
	}
	s.store.mu.RUnlock()

	c.JSON(http.StatusOK, out)
}

func (s *Server) withQASession(c *gin.Context, fn func(q *qaSession)) bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	q, ok := s.store.qaSessions[c.Param("id")]
	if !ok || q.OwnerID != currentUser(c) {
		abortDetail(c, http.StatusNotFound, "Q&A session not found")
		return false
	}
	fn(q)
	return true
}

func (s *Server) handleAskQuestion(c *gin.Context) {
	var req askRequest
	if !bindJSON(c, &req) {
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		abortDetail(c, http.StatusBadRequest, "Question must not be empty")
		return
	}

	var answer storedMessage
	if !s.withQASession(c, func(q *qaSession) {
		q.Messages = append(q.Messages, newMessage(q.Creator, question))
		answer = newMessage(assistantName, qaAnswer(question))
		q.Messages = append(q.Messages, answer)
	}) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question":  question,
		"answer":    answer.Content,
		"timestamp": answer.Timestamp,
	})
}

// handleQAHistory returns the stored {user, content, timestamp} log
func (s *Server) handleQAHistory(c *gin.Context) {
	var body gin.H
	if !s.withQASession(c, func(q *qaSession) {
		body = gin.H{
			"session_id": q.ID,
			"room_name":  q.RoomName,
			"messages":   append([]storedMessage(nil), q.Messages...),
		}
	}) {
		return
	}
	c.JSON(http.StatusOK, body)
}
