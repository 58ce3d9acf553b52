package stubserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medscan-console/pkg/gateway"
	"github.com/sirupsen/logrus"
)

const (
	stageInitial     = "initial"
	stageSpecialists = "specialists"
	stageSummary     = "summary"
)

type createConsultationRequest struct {
	CaseDescription string `json:"case_description" binding:"required"`
	CreatorName     string `json:"creator_name" binding:"required"`
}

type sendMessageRequest struct {
	Message  string `json:"message" binding:"required"`
	UserName string `json:"user_name" binding:"required"`
}

func transformMessage(m storedMessage) gin.H {
	var kind any
	if t := gateway.SpecialistType(m.User); t != "" {
		kind = t
	}
	return gin.H{
		"sender":          m.User,
		"message":         m.Content,
		"timestamp":       m.Timestamp,
		"specialist_type": kind,
	}
}

func newMessage(sender, content string) storedMessage {
	return storedMessage{
		ID:        uuid.NewString(),
		User:      sender,
		Content:   content,
		Type:      "text",
		Timestamp: now(),
	}
}

// withConsultation runs fn on the caller's consultation under the write lock
func (s *Server) withConsultation(c *gin.Context, fn func(room *consultation)) bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	room, ok := s.store.consultations[c.Param("id")]
	if !ok || room.OwnerID != currentUser(c) {
		abortDetail(c, http.StatusNotFound, "Consultation not found")
		return false
	}
	fn(room)
	return true
}

// appendMessage records a message and returns it for broadcasting
func (room *consultation) appendMessage(sender, content string) storedMessage {
	msg := newMessage(sender, content)
	room.Messages = append(room.Messages, msg)
	if sender != systemSender {
		known := false
		for _, p := range room.Participants {
			if p == sender {
				known = true
				break
			}
		}
		if !known {
			room.Participants = append(room.Participants, sender)
		}
	}
	return msg
}

func (s *Server) handleCreateConsultation(c *gin.Context) {
	var req createConsultationRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.CaseDescription) == "" {
		abortDetail(c, http.StatusBadRequest, "Case description must not be empty")
		return
	}

	room := &consultation{
		OwnerID:      currentUser(c),
		ID:           fmt.Sprintf("CASE-%s-%s", time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8]),
		Description:  req.CaseDescription,
		Creator:      req.CreatorName,
		CreatedAt:    now(),
		Participants: []string{req.CreatorName},
		Stage:        stageInitial,
		Opinions:     []string{},
	}
	room.appendMessage(systemSender, fmt.Sprintf("Consultation room created for case: %s", req.CaseDescription))

	s.store.mu.Lock()
	s.store.consultations[room.ID] = room
	s.store.consultationIDs = append(s.store.consultationIDs, room.ID)
	s.store.mu.Unlock()

	s.logger.WithField("consultation_id", room.ID).Info("Consultation created")
	c.JSON(http.StatusCreated, gin.H{
		"id":                 room.ID,
		"description":        room.Description,
		"creator":            room.Creator,
		"created_at":         room.CreatedAt,
		"participants":       len(room.Participants),
		"consultation_stage": room.Stage,
	})
}

func (s *Server) handleListConsultations(c *gin.Context) {
	userID := currentUser(c)

	s.store.mu.RLock()
	rooms := make([]gin.H, 0)
	for _, id := range s.store.consultationIDs {
		room := s.store.consultations[id]
		if room.OwnerID != userID {
			continue
		}
		rooms = append(rooms, gin.H{
			"id":                 room.ID,
			"description":        room.Description,
			"creator":            room.Creator,
			"created_at":         room.CreatedAt,
			"participants":       len(room.Participants),
			"consultation_stage": room.Stage,
		})
	}
	s.store.mu.RUnlock()

	c.JSON(http.StatusOK, rooms)
}

func (s *Server) handleGetConsultation(c *gin.Context) {
	var body gin.H
	ok := s.withConsultation(c, func(room *consultation) {
		messages := make([]gin.H, 0, len(room.Messages))
		for _, m := range room.Messages {
			messages = append(messages, transformMessage(m))
		}
		body = gin.H{
			"id":                  room.ID,
			"description":         room.Description,
			"creator":             room.Creator,
			"created_at":          room.CreatedAt,
			"participants":        append([]string(nil), room.Participants...),
			"consultation_stage":  room.Stage,
			"specialist_opinions": append([]string(nil), room.Opinions...),
			"messages":            messages,
		}
	})
	if ok {
		c.JSON(http.StatusOK, body)
	}
}

func (s *Server) handleConsultationMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		abortDetail(c, http.StatusBadRequest, "Failed to send message")
		return
	}

	var msg storedMessage
	if !s.withConsultation(c, func(room *consultation) {
		msg = room.appendMessage(req.UserName, req.Message)
	}) {
		return
	}

	s.hub.broadcast(c.Param("id"), "new_message", msg)
	c.JSON(http.StatusOK, transformMessage(msg))
}

// handleStartConsultation moves an initial consultation to the specialist
// stage with the first opinion
func (s *Server) handleStartConsultation(c *gin.Context) {
	var added []storedMessage
	conflict := false
	if !s.withConsultation(c, func(room *consultation) {
		if room.Stage != stageInitial {
			conflict = true
			return
		}
		first := panel[0]
		opinion := specialistOpinion(first, room.Description)
		room.Stage = stageSpecialists
		room.Opinions = append(room.Opinions, opinion)
		added = append(added, room.appendMessage(first.name, opinion))
	}) {
		return
	}
	if conflict {
		abortDetail(c, http.StatusBadRequest, "Consultation already started")
		return
	}

	s.broadcastAll(c.Param("id"), added)
	c.JSON(http.StatusOK, gin.H{"message": "Consultation started successfully"})
}

// handleAutoComplete runs every remaining specialist and the summary
func (s *Server) handleAutoComplete(c *gin.Context) {
	var added []storedMessage
	conflict := false
	if !s.withConsultation(c, func(room *consultation) {
		if room.Stage == stageSummary {
			conflict = true
			return
		}
		added = append(added, room.appendMessage(systemSender,
			"🏥 **Starting Multidisciplinary Consultation**\n\nOur specialist team is now reviewing your case..."))

		room.Stage = stageSpecialists
		for _, sp := range panel {
			if hasSpoken(room, sp.name) {
				continue
			}
			opinion := specialistOpinion(sp, room.Description)
			room.Opinions = append(room.Opinions, opinion)
			added = append(added, room.appendMessage(sp.name, opinion))
		}

		added = append(added, room.appendMessage(chiefSender, summaryOpinion(len(room.Opinions))))
		room.Stage = stageSummary
	}) {
		return
	}
	if conflict {
		abortDetail(c, http.StatusBadRequest, "Consultation already completed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"consultation_id": c.Param("id"),
		"messages":        len(added),
	}).Info("Consultation completed")
	s.broadcastAll(c.Param("id"), added)
	c.JSON(http.StatusOK, gin.H{"message": "Consultation completed successfully"})
}

func hasSpoken(room *consultation, sender string) bool {
	for _, m := range room.Messages {
		if m.User == sender {
			return true
		}
	}
	return false
}

func (s *Server) broadcastAll(room string, msgs []storedMessage) {
	for _, m := range msgs {
		s.hub.broadcast(room, "new_message", m)
	}
}

func (s *Server) handleConsultationWS(c *gin.Context) {
	if !s.withConsultation(c, func(*consultation) {}) {
		return
	}
	s.hub.serve(c.Writer, c.Request, c.Param("id"))
}
