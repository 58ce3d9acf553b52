package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/medscan-console/internal/domain"
)

// QAService covers /api/qa
type QAService struct {
	client *Client
}

type wireQASession struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	RoomName  string        `json:"room_name"`
	Title     string        `json:"title"`
	Creator   string        `json:"creator"`
	CreatedAt string        `json:"created_at"`
	Messages  []wireMessage `json:"messages"`
}

func (w wireQASession) toDomain(endpoint string) (domain.QASession, error) {
	s := domain.QASession{
		ID:        w.ID,
		Title:     w.RoomName,
		Creator:   w.Creator,
		CreatedAt: w.CreatedAt,
		Messages:  make([]domain.QAMessage, 0, len(w.Messages)),
	}
	if s.ID == "" {
		s.ID = w.SessionID
	}
	if s.Title == "" {
		s.Title = w.Title
	}
	for _, m := range w.Messages {
		msg, err := m.toQAMessage(endpoint)
		if err != nil {
			return domain.QASession{}, err
		}
		s.Messages = append(s.Messages, msg)
	}
	return s, nil
}

// Create opens a Q&A session
func (s *QAService) Create(ctx context.Context, req domain.CreateQASessionRequest) (*domain.QASession, error) {
	const path = "/api/qa/create"
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path, jsonBody: req})
	if err != nil {
		return nil, err
	}

	var w wireQASession
	if err := decodeObject(path, resp.body, &w); err != nil {
		return nil, err
	}
	session, err := w.toDomain(path)
	if err != nil {
		return nil, err
	}
	if err := requireField(path, "id", session.ID); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns the caller's Q&A sessions
func (s *QAService) List(ctx context.Context) ([]domain.QASession, error) {
	const path = "/api/qa/sessions"
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	wires, err := decodeList[wireQASession](path, resp.body, "sessions")
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.QASession, 0, len(wires))
	for _, w := range wires {
		session, err := w.toDomain(path)
		if err != nil {
			return nil, err
		}
		if err := requireField(path, "id", session.ID); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// History returns the message log of a session. The session id is
// filled in from the request when the backend omits it.
func (s *QAService) History(ctx context.Context, id string) (*domain.QASession, error) {
	path := "/api/qa/" + url.PathEscape(id) + "/history"
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	var w wireQASession
	if err := decodeObject(path, resp.body, &w); err != nil {
		return nil, err
	}
	session, err := w.toDomain(path)
	if err != nil {
		return nil, err
	}
	if session.ID == "" {
		session.ID = id
	}
	return &session, nil
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask submits a question and returns the assistant answer
func (s *QAService) Ask(ctx context.Context, id, question string) (*domain.Answer, error) {
	path := "/api/qa/" + url.PathEscape(id) + "/question"
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path, jsonBody: askRequest{Question: question}})
	if err != nil {
		return nil, err
	}

	var answer domain.Answer
	if err := decodeObject(path, resp.body, &answer); err != nil {
		return nil, err
	}
	if err := requireField(path, "answer", answer.Answer); err != nil {
		return nil, err
	}
	return &answer, nil
}
