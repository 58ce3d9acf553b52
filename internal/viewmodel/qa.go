package viewmodel

import (
	"context"
	"strings"
	"time"

	"github.com/medscan-console/internal/domain"
)

// QAAPI is the backend surface used by the Q&A screen
type QAAPI interface {
	Create(ctx context.Context, req domain.CreateQASessionRequest) (*domain.QASession, error)
	List(ctx context.Context) ([]domain.QASession, error)
	History(ctx context.Context, id string) (*domain.QASession, error)
	Ask(ctx context.Context, id, question string) (*domain.Answer, error)
}

const defaultPatientName = "Patient"

// QAState is a snapshot of the Q&A screen
type QAState struct {
	State[domain.QASession]
	Question string
	Pending  []ChatEntry[domain.QAMessage]
}

// Messages returns the selected log followed by its provisional tail
func (s QAState) Messages() []domain.QAMessage {
	if s.Selected == nil {
		return nil
	}
	out := append([]domain.QAMessage(nil), s.Selected.Messages...)
	return append(out, tail(s.Pending, s.Selected.ID)...)
}

// QA is the medical question-answering screen
type QA struct {
	*ListDetail[domain.QASession]
	api  QAAPI
	chat composer[domain.QAMessage]
}

// NewQA creates the Q&A view-model
func NewQA(api QAAPI, deps Deps) *QA {
	q := &QA{api: api}
	q.ListDetail = newListDetail(deps, "qa",
		fallbacks{
			load:   "Failed to load Q&A sessions",
			detail: "Failed to load Q&A session",
			create: "Failed to create Q&A session",
		},
		api.List,
		func(ctx context.Context, item domain.QASession) (*domain.QASession, error) {
			detail, err := api.History(ctx, item.ID)
			if err != nil {
				return nil, err
			}
			// History carries only the log
			if detail.Title == "" {
				detail.Title = item.Title
			}
			if detail.Creator == "" {
				detail.Creator = item.Creator
			}
			if detail.CreatedAt == "" {
				detail.CreatedAt = item.CreatedAt
			}
			return detail, nil
		},
	)
	q.onFresh = q.chat.dropConfirmed
	return q
}

// Snapshot returns a copy of the screen state
func (q *QA) Snapshot() QAState {
	q.mu.Lock()
	defer q.mu.Unlock()
	input, pending := q.chat.snapshot()
	return QAState{State: q.snapshotLocked(), Question: input, Pending: pending}
}

// SetQuestion updates the question input box
func (q *QA) SetQuestion(text string) {
	q.mu.Lock()
	q.chat.input = text
	q.mu.Unlock()
}

// Create opens a new Q&A session and selects it
func (q *QA) Create(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", q.fail(domain.NewValidationError("room_name", "Please enter a session title"), "")
	}

	return q.create(ctx, func(ctx context.Context) (string, error) {
		created, err := q.api.Create(ctx, domain.CreateQASessionRequest{
			RoomName:    title,
			CreatorName: q.deps.displayName(defaultPatientName),
		})
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
}

// Ask submits the question box to the selected session. The backend
// appends both the question and the answer to the session log.
func (q *QA) Ask(ctx context.Context) error {
	sender := q.deps.displayName(defaultPatientName)
	return submit(ctx, q.ListDetail, &q.chat, chatSend[domain.QAMessage]{
		compose: func(text string) domain.QAMessage {
			return domain.QAMessage{
				Role:      domain.RoleUser,
				Sender:    sender,
				Content:   text,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
		},
		call: func(ctx context.Context, id, text string) error {
			_, err := q.api.Ask(ctx, id, text)
			return err
		},
		empty:    "Please enter a question",
		fallback: "Failed to process medical question.",
	})
}
