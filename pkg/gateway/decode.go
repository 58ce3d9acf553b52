package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medscan-console/internal/domain"
)

// decodeObject unmarshals a JSON object response into v
func decodeObject(endpoint string, data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &domain.DecodeError{Endpoint: endpoint, Reason: "expected a JSON object"}
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return &domain.DecodeError{Endpoint: endpoint, Reason: "malformed body", Err: err}
	}
	return nil
}

// decodeList accepts either a bare JSON array or an object wrapping the array
// under one of wrapperKeys.
func decodeList[T any](endpoint string, data []byte, wrapperKeys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &domain.DecodeError{Endpoint: endpoint, Reason: "empty body"}
	}

	raw := trimmed
	if trimmed[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, &domain.DecodeError{Endpoint: endpoint, Reason: "malformed body", Err: err}
		}
		raw = nil
		for _, key := range wrapperKeys {
			if v, ok := wrapper[key]; ok {
				raw = v
				break
			}
		}
		if raw == nil {
			return nil, &domain.DecodeError{
				Endpoint: endpoint,
				Reason:   fmt.Sprintf("missing list field (%s)", strings.Join(wrapperKeys, "|")),
			}
		}
	}

	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &domain.DecodeError{Endpoint: endpoint, Reason: "expected a JSON array", Err: err}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func requireField(endpoint, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &domain.DecodeError{Endpoint: endpoint, Reason: "missing required field " + name}
	}
	return nil
}

// wireMessage is the union of every message shape the backend emits:
// {role, content}, {sender, message} and the stored {user, content}.
type wireMessage struct {
	Role           *string `json:"role"`
	Sender         *string `json:"sender"`
	User           *string `json:"user"`
	Message        *string `json:"message"`
	Content        *string `json:"content"`
	Timestamp      string  `json:"timestamp"`
	SpecialistType string  `json:"specialist_type"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toQAMessage normalizes a wire message into the canonical Q&A shape
func (w wireMessage) toQAMessage(endpoint string) (domain.QAMessage, error) {
	msg := domain.QAMessage{Timestamp: w.Timestamp}
	switch {
	case w.Role != nil && w.Content != nil:
		msg.Role = normalizeRole(*w.Role)
		msg.Sender = deref(w.Sender)
		msg.Content = *w.Content
	case w.Sender != nil && w.Message != nil:
		msg.Sender = *w.Sender
		msg.Role = roleFromSender(*w.Sender)
		msg.Content = *w.Message
	case w.User != nil && w.Content != nil:
		msg.Sender = *w.User
		msg.Role = roleFromSender(*w.User)
		msg.Content = *w.Content
	default:
		return domain.QAMessage{}, &domain.DecodeError{Endpoint: endpoint, Reason: "unrecognized message shape"}
	}
	return msg, nil
}

// toConsultationMessage normalizes a wire message into a consultation entry
func (w wireMessage) toConsultationMessage(endpoint string) (domain.ConsultationMessage, error) {
	msg := domain.ConsultationMessage{Timestamp: w.Timestamp, SpecialistType: w.SpecialistType}
	switch {
	case w.Sender != nil && w.Message != nil:
		msg.Sender, msg.Message = *w.Sender, *w.Message
	case w.User != nil && w.Content != nil:
		msg.Sender, msg.Message = *w.User, *w.Content
	case w.Role != nil && w.Content != nil:
		msg.Sender, msg.Message = *w.Role, *w.Content
	default:
		return domain.ConsultationMessage{}, &domain.DecodeError{Endpoint: endpoint, Reason: "unrecognized message shape"}
	}
	if msg.SpecialistType == "" {
		msg.SpecialistType = SpecialistType(msg.Sender)
	}
	return msg, nil
}

func normalizeRole(role string) domain.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "ai":
		return domain.RoleAssistant
	case "system":
		return domain.RoleSystem
	default:
		return domain.RoleUser
	}
}

// roleFromSender infers the author role from a sender label
func roleFromSender(sender string) domain.Role {
	s := strings.ToLower(strings.TrimSpace(sender))
	switch {
	case s == "system":
		return domain.RoleSystem
	case s == "ai", strings.Contains(s, "assistant"), strings.HasPrefix(s, "ai "),
		strings.Contains(s, "qa system"):
		return domain.RoleAssistant
	default:
		return domain.RoleUser
	}
}

// SpecialistType derives the specialist tag from a consultation sender label
func SpecialistType(sender string) string {
	switch {
	case strings.Contains(sender, "Radiologist"):
		return "radiologist"
	case strings.Contains(sender, "Cardiologist"):
		return "cardiologist"
	case strings.Contains(sender, "Pulmonologist"):
		return "pulmonologist"
	case strings.Contains(sender, "Neurologist"):
		return "neurologist"
	case strings.Contains(sender, "Chief Medical Officer"):
		return "summary"
	default:
		return ""
	}
}
