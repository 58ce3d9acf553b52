package stubserver

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

type userRecord struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	PasswordHash string
}

type storedMessage struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type analysisRecord struct {
	OwnerID         string         `json:"-"`
	ID              string         `json:"id"`
	Filename        string         `json:"filename"`
	Date            string         `json:"date"`
	Analysis        string         `json:"analysis"`
	Findings        []string       `json:"findings"`
	Keywords        []string       `json:"keywords"`
	Recommendations map[string]any `json:"doctor_recommendations"`
	PubMedArticles  []article      `json:"pubmed_articles"`
	ClinicalTrials  []any          `json:"clinical_trials"`
}

type article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Journal string `json:"journal"`
	Year    string `json:"year"`
}

type consultation struct {
	OwnerID      string
	ID           string
	Description  string
	Creator      string
	CreatedAt    string
	Participants []string
	Stage        string
	Opinions     []string
	Messages     []storedMessage
}

type qaSession struct {
	OwnerID   string
	ID        string
	RoomName  string
	Creator   string
	CreatedAt string
	Messages  []storedMessage
}

type report struct {
	OwnerID    string
	ID         string
	Title      string
	AnalysisID string
	Content    string
	CreatedAt  string
	Filename   string
}

// store keeps all stub state in memory, scoped per user
type store struct {
	mu            sync.RWMutex
	usersByEmail  map[string]*userRecord
	usersByID     map[string]*userRecord
	tokens        map[string]string
	analyses      map[string]*analysisRecord
	consultations map[string]*consultation
	qaSessions    map[string]*qaSession
	reports       map[string]*report

	// insertion order, maps alone would shuffle listings
	analysisIDs     []string
	consultationIDs []string
	qaSessionIDs    []string
	reportIDs       []string
}

func newStore() *store {
	return &store{
		usersByEmail:  make(map[string]*userRecord),
		usersByID:     make(map[string]*userRecord),
		tokens:        make(map[string]string),
		analyses:      make(map[string]*analysisRecord),
		consultations: make(map[string]*consultation),
		qaSessions:    make(map[string]*qaSession),
		reports:       make(map[string]*report),
	}
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (s *store) userForToken(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	return id, ok
}

func (s *store) revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func (s *store) user(id string) (userRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return userRecord{}, false
	}
	return *u, true
}

// newestFirst sorts by an ISO-8601 timestamp, newest first
func newestFirst[T any](items []T, ts func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return ts(items[i]) > ts(items[j])
	})
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000")
}
