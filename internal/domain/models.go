package domain

import (
	"strings"
	"time"
)

// User represents the authenticated identity returned by the backend
type User struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// DisplayName returns the user's full name, or fallback when unknown
func (u *User) DisplayName(fallback string) string {
	if u == nil || strings.TrimSpace(u.FullName) == "" {
		return fallback
	}
	return u.FullName
}

// Session is the persisted identity plus bearer credential
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// AuthResult is the decoded response of register and login
type AuthResult struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// DoctorRecommendations holds the referral block of an analysis
type DoctorRecommendations struct {
	UrgencyLevel          string   `json:"urgency_level"`
	PrimarySpecialist     string   `json:"primary_specialist"`
	AdditionalSpecialists []string `json:"additional_specialists"`
}

// Article is a literature reference attached to an analysis
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Journal string `json:"journal,omitempty"`
	Year    string `json:"year,omitempty"`
	Authors string `json:"authors,omitempty"`
	URL     string `json:"url,omitempty"`
}

// AnalysisRecord is an image analysis produced by the backend.
// It is read-only on the client.
type AnalysisRecord struct {
	ID              string                `json:"id"`
	Filename        string                `json:"filename"`
	Date            string                `json:"date"`
	Type            string                `json:"type,omitempty"`
	Analysis        string                `json:"analysis"`
	Findings        []string              `json:"findings"`
	Keywords        []string              `json:"keywords"`
	Recommendations DoctorRecommendations `json:"doctor_recommendations"`
	PubMedArticles  []Article             `json:"pubmed_articles"`
	ClinicalTrials  []any                 `json:"clinical_trials,omitempty"`
}

// GetID returns the record identifier
func (a AnalysisRecord) GetID() string { return a.ID }

// Urgency returns the urgency level, defaulting to Routine
func (a AnalysisRecord) Urgency() string {
	if a.Recommendations.UrgencyLevel == "" {
		return "Routine"
	}
	return a.Recommendations.UrgencyLevel
}

// UploadResult is the response of the multipart upload endpoint
type UploadResult struct {
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	FileType  string `json:"file_type"`
	ImageData string `json:"image_data"`
}

// AnalyzeRequest is the body of the analyze endpoint
type AnalyzeRequest struct {
	Filename  string `json:"filename"`
	ImageData string `json:"image_data"`
	EnableXAI bool   `json:"enable_xai"`
}

// GeneratedReport is a decoded PDF report
type GeneratedReport struct {
	Filename string
	PDF      []byte
}

// Stage is the consultation stage as reported by the backend
type Stage string

const (
	StageInitial     Stage = "initial"
	StageSpecialists Stage = "specialists"
	StageSummary     Stage = "summary"
)

// IsInitial reports whether the consultation has not been started yet.
// An empty stage is treated as initial, matching the backend default.
func (s Stage) IsInitial() bool { return s == StageInitial || s == "" }

// IsSummary reports whether the consultation reached its final stage
func (s Stage) IsSummary() bool { return s == StageSummary }

// ConsultationMessage is one immutable entry of a consultation log
type ConsultationMessage struct {
	Sender         string `json:"sender"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
	SpecialistType string `json:"specialist_type,omitempty"`
}

// ConsultationCase is a multi-specialist consultation room
type ConsultationCase struct {
	ID                 string                `json:"id"`
	Description        string                `json:"description"`
	Creator            string                `json:"creator"`
	CreatedAt          string                `json:"created_at"`
	Participants       int                   `json:"participants"`
	Stage              Stage                 `json:"consultation_stage"`
	SpecialistOpinions []any                 `json:"specialist_opinions,omitempty"`
	Messages           []ConsultationMessage `json:"messages"`
}

// GetID returns the consultation identifier
func (c ConsultationCase) GetID() string { return c.ID }

// CreateConsultationRequest is the body of the create endpoint
type CreateConsultationRequest struct {
	CaseDescription string `json:"case_description"`
	CreatorName     string `json:"creator_name"`
}

// SendMessageRequest is the body of the consultation message endpoint
type SendMessageRequest struct {
	Message  string `json:"message"`
	UserName string `json:"user_name"`
}

// Role identifies the author of a Q&A message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// QAMessage is the canonical Q&A message shape
type QAMessage struct {
	Role      Role   `json:"role"`
	Sender    string `json:"sender,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// QASession is a RAG question-answering room
type QASession struct {
	ID        string      `json:"id"`
	Title     string      `json:"room_name"`
	Creator   string      `json:"creator"`
	CreatedAt string      `json:"created_at"`
	Messages  []QAMessage `json:"messages"`
}

// GetID returns the session identifier
func (q QASession) GetID() string { return q.ID }

// CreateQASessionRequest is the body of the Q&A create endpoint
type CreateQASessionRequest struct {
	RoomName    string `json:"room_name"`
	CreatorName string `json:"creator_name"`
}

// Answer is the response of the ask endpoint
type Answer struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// ReportSource tells where a report descriptor came from
type ReportSource string

const (
	ReportSourceStored   ReportSource = "stored"
	ReportSourceAnalysis ReportSource = "analysis"
)

// ReportDescriptor describes a downloadable report
type ReportDescriptor struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Filename      string       `json:"filename"`
	AnalysisID    string       `json:"analysis_id"`
	CreatedAt     string       `json:"created_at"`
	Content       string       `json:"content,omitempty"`
	Urgency       string       `json:"urgency,omitempty"`
	FindingsCount int          `json:"findings_count"`
	Type          string       `json:"type,omitempty"`
	Source        ReportSource `json:"source"`
}

// GetID returns the report identifier
func (r ReportDescriptor) GetID() string { return r.ID }

// ReportFromAnalysis projects an analysis record into a report descriptor
func ReportFromAnalysis(a AnalysisRecord) ReportDescriptor {
	kind := a.Type
	if kind == "" {
		kind = "IMAGE"
	}
	return ReportDescriptor{
		ID:            a.ID,
		Title:         a.Filename,
		Filename:      a.Filename,
		AnalysisID:    a.ID,
		CreatedAt:     a.Date,
		Urgency:       a.Urgency(),
		FindingsCount: len(a.Findings),
		Type:          kind,
		Source:        ReportSourceAnalysis,
	}
}

// ReportFilename derives the download name used for generated PDF reports
func ReportFilename(filename string) string {
	base := filename
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		base = "analysis"
	}
	return base + "_medical_report.pdf"
}

// Timestamp parses a backend ISO-8601 timestamp, returning the zero time on failure
func Timestamp(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
