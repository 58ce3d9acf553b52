package stubserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func userJSON(u userRecord) gin.H {
	return gin.H{
		"user_id":   u.ID,
		"email":     u.Email,
		"full_name": u.FullName,
		"role":      u.Role,
	}
}

// issueToken stores a fresh opaque bearer token for the user
func (s *Server) issueToken(userID string) string {
	token := uuid.NewString()
	s.store.mu.Lock()
	s.store.tokens[token] = userID
	s.store.mu.Unlock()
	return token
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := req.Role
	if role == "" {
		role = "user"
	}

	s.store.mu.Lock()
	if _, exists := s.store.usersByEmail[email]; exists {
		s.store.mu.Unlock()
		abortDetail(c, http.StatusBadRequest, "Email already registered")
		return
	}
	u := &userRecord{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     req.FullName,
		Role:         role,
		PasswordHash: hashPassword(req.Password),
	}
	s.store.usersByEmail[email] = u
	s.store.usersByID[u.ID] = u
	s.store.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"user_id": u.ID, "role": role}).Info("User registered")
	c.JSON(http.StatusCreated, gin.H{
		"access_token": s.issueToken(u.ID),
		"token_type":   "bearer",
		"user":         userJSON(*u),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	s.store.mu.RLock()
	u, ok := s.store.usersByEmail[strings.ToLower(strings.TrimSpace(req.Email))]
	var user userRecord
	if ok {
		user = *u
	}
	s.store.mu.RUnlock()

	if !ok || user.PasswordHash != hashPassword(req.Password) {
		abortDetail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": s.issueToken(user.ID),
		"token_type":   "bearer",
		"user":         userJSON(user),
	})
}

func (s *Server) handleMe(c *gin.Context) {
	u, ok := s.store.user(currentUser(c))
	if !ok {
		abortDetail(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, userJSON(u))
}

func (s *Server) handleLogout(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.store.revoke(token)
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
