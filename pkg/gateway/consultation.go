package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/medscan-console/internal/domain"
)

// ConsultationService covers /api/consultation
type ConsultationService struct {
	client *Client
}

// wireConsultation tolerates participants sent either as a count or as a list
type wireConsultation struct {
	ID                 string          `json:"id"`
	Description        string          `json:"description"`
	Creator            string          `json:"creator"`
	CreatedAt          string          `json:"created_at"`
	Participants       json.RawMessage `json:"participants"`
	Stage              domain.Stage    `json:"consultation_stage"`
	SpecialistOpinions []any           `json:"specialist_opinions"`
	Messages           []wireMessage   `json:"messages"`
}

func (w wireConsultation) toDomain(endpoint string) (domain.ConsultationCase, error) {
	c := domain.ConsultationCase{
		ID:                 w.ID,
		Description:        w.Description,
		Creator:            w.Creator,
		CreatedAt:          w.CreatedAt,
		Stage:              w.Stage,
		SpecialistOpinions: w.SpecialistOpinions,
		Messages:           make([]domain.ConsultationMessage, 0, len(w.Messages)),
	}
	if c.Stage == "" {
		c.Stage = domain.StageInitial
	}
	if err := requireField(endpoint, "id", c.ID); err != nil {
		return domain.ConsultationCase{}, err
	}

	raw := bytes.TrimSpace(w.Participants)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return domain.ConsultationCase{}, &domain.DecodeError{Endpoint: endpoint, Reason: "malformed participants", Err: err}
		}
		c.Participants = len(list)
	default:
		if err := json.Unmarshal(raw, &c.Participants); err != nil {
			return domain.ConsultationCase{}, &domain.DecodeError{Endpoint: endpoint, Reason: "malformed participants", Err: err}
		}
	}

	for _, m := range w.Messages {
		msg, err := m.toConsultationMessage(endpoint)
		if err != nil {
			return domain.ConsultationCase{}, err
		}
		c.Messages = append(c.Messages, msg)
	}
	return c, nil
}

// Create opens a consultation. The response carries at least the new id.
func (s *ConsultationService) Create(ctx context.Context, req domain.CreateConsultationRequest) (*domain.ConsultationCase, error) {
	const path = "/api/consultation/create"
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path, jsonBody: req})
	if err != nil {
		return nil, err
	}
	return decodeConsultation(path, resp.body)
}

// List returns the caller's consultation rooms
func (s *ConsultationService) List(ctx context.Context) ([]domain.ConsultationCase, error) {
	const path = "/api/consultation/rooms"
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	wires, err := decodeList[wireConsultation](path, resp.body, "rooms")
	if err != nil {
		return nil, err
	}
	rooms := make([]domain.ConsultationCase, 0, len(wires))
	for _, w := range wires {
		room, err := w.toDomain(path)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// Get fetches a consultation with its full message log
func (s *ConsultationService) Get(ctx context.Context, id string) (*domain.ConsultationCase, error) {
	path := "/api/consultation/" + url.PathEscape(id)
	resp, err := s.client.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	return decodeConsultation(path, resp.body)
}

// SendMessage appends a message and returns the stored entry
func (s *ConsultationService) SendMessage(ctx context.Context, id string, req domain.SendMessageRequest) (*domain.ConsultationMessage, error) {
	path := "/api/consultation/" + url.PathEscape(id) + "/message"
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path, jsonBody: req})
	if err != nil {
		return nil, err
	}

	var w wireMessage
	if err := decodeObject(path, resp.body, &w); err != nil {
		return nil, err
	}
	msg, err := w.toConsultationMessage(path)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Start moves the consultation into the specialist stage
func (s *ConsultationService) Start(ctx context.Context, id string) (string, error) {
	return s.trigger(ctx, "/api/consultation/"+url.PathEscape(id)+"/start")
}

// AutoComplete runs every remaining stage on the backend
func (s *ConsultationService) AutoComplete(ctx context.Context, id string) (string, error) {
	return s.trigger(ctx, "/api/consultation/"+url.PathEscape(id)+"/auto-complete")
}

func (s *ConsultationService) trigger(ctx context.Context, path string) (string, error) {
	resp, err := s.client.do(ctx, request{method: http.MethodPost, path: path})
	if err != nil {
		return "", err
	}
	var ack struct {
		Message string `json:"message"`
	}
	if len(bytes.TrimSpace(resp.body)) == 0 {
		return "", nil
	}
	if err := decodeObject(path, resp.body, &ack); err != nil {
		return "", err
	}
	return ack.Message, nil
}

func decodeConsultation(endpoint string, body []byte) (*domain.ConsultationCase, error) {
	var w wireConsultation
	if err := decodeObject(endpoint, body, &w); err != nil {
		return nil, err
	}
	c, err := w.toDomain(endpoint)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
