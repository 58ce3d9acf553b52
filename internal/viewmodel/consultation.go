package viewmodel

import (
	"context"
	"strings"
	"time"

	"github.com/medscan-console/internal/domain"
	"github.com/medscan-console/pkg/gateway"
	"github.com/sirupsen/logrus"
)

// ConsultationAPI is the backend surface used by the consultation screen
type ConsultationAPI interface {
	Create(ctx context.Context, req domain.CreateConsultationRequest) (*domain.ConsultationCase, error)
	List(ctx context.Context) ([]domain.ConsultationCase, error)
	Get(ctx context.Context, id string) (*domain.ConsultationCase, error)
	SendMessage(ctx context.Context, id string, req domain.SendMessageRequest) (*domain.ConsultationMessage, error)
	Start(ctx context.Context, id string) (string, error)
	AutoComplete(ctx context.Context, id string) (string, error)
	Watch(ctx context.Context, id string) (<-chan gateway.LiveEvent, error)
}

const defaultDoctorName = "Doctor"

// ConsultationState is a snapshot of the consultation screen
type ConsultationState struct {
	State[domain.ConsultationCase]
	NewMessage string
	Pending    []ChatEntry[domain.ConsultationMessage]
}

// Messages returns the selected log followed by its provisional tail
func (s ConsultationState) Messages() []domain.ConsultationMessage {
	if s.Selected == nil {
		return nil
	}
	out := append([]domain.ConsultationMessage(nil), s.Selected.Messages...)
	return append(out, tail(s.Pending, s.Selected.ID)...)
}

// Consultations is the multi-specialist consultation screen. The stage is
// only ever reflected from the backend, never computed locally.
type Consultations struct {
	*ListDetail[domain.ConsultationCase]
	api  ConsultationAPI
	chat composer[domain.ConsultationMessage]
}

// NewConsultations creates the consultation view-model
func NewConsultations(api ConsultationAPI, deps Deps) *Consultations {
	c := &Consultations{api: api}
	c.ListDetail = newListDetail(deps, "consultation",
		fallbacks{
			load:   "Failed to load consultations",
			detail: "Failed to load consultation",
			create: "Failed to create consultation",
		},
		api.List,
		func(ctx context.Context, item domain.ConsultationCase) (*domain.ConsultationCase, error) {
			return api.Get(ctx, item.ID)
		},
	)
	c.onFresh = c.chat.dropConfirmed
	return c
}

// Snapshot returns a copy of the screen state
func (c *Consultations) Snapshot() ConsultationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	input, pending := c.chat.snapshot()
	return ConsultationState{State: c.snapshotLocked(), NewMessage: input, Pending: pending}
}

// SetMessage updates the message input box
func (c *Consultations) SetMessage(text string) {
	c.mu.Lock()
	c.chat.input = text
	c.mu.Unlock()
}

// Create opens a new consultation and selects it
func (c *Consultations) Create(ctx context.Context, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", c.fail(domain.NewValidationError("case_description", "Please enter a case description"), "")
	}

	return c.create(ctx, func(ctx context.Context) (string, error) {
		created, err := c.api.Create(ctx, domain.CreateConsultationRequest{
			CaseDescription: description,
			CreatorName:     c.deps.displayName(defaultDoctorName),
		})
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
}

// SendMessage posts the input box to the selected consultation
func (c *Consultations) SendMessage(ctx context.Context) error {
	sender := c.deps.displayName(defaultDoctorName)
	return submit(ctx, c.ListDetail, &c.chat, chatSend[domain.ConsultationMessage]{
		compose: func(text string) domain.ConsultationMessage {
			return domain.ConsultationMessage{
				Sender:    sender,
				Message:   text,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
		},
		call: func(ctx context.Context, id, text string) error {
			_, err := c.api.SendMessage(ctx, id, domain.SendMessageRequest{Message: text, UserName: sender})
			return err
		},
		empty:    "Please enter a message",
		fallback: "Failed to send message",
	})
}

// Start asks the backend to run the specialist panel
func (c *Consultations) Start(ctx context.Context) error {
	return c.trigger(ctx, "start", c.api.Start, "Failed to start consultation")
}

// AutoComplete runs the consultation to its summary. It is only offered
// while the consultation is still in its initial stage.
func (c *Consultations) AutoComplete(ctx context.Context) error {
	item, err := c.selected()
	if err != nil {
		return err
	}
	if !item.Stage.IsInitial() {
		return c.fail(domain.NewValidationError("consultation_stage", "Consultation has already started"), "")
	}
	return c.trigger(ctx, "auto-complete", c.api.AutoComplete, "Failed to auto-complete consultation")
}

func (c *Consultations) trigger(ctx context.Context, action string, call func(context.Context, string) (string, error), fallback string) error {
	if err := c.deps.requireAuth(); err != nil {
		return err
	}
	item, err := c.selected()
	if err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}

	ack, err := call(ctx, item.ID)
	c.finish(err, fallback)
	if err != nil {
		return err
	}

	c.logger().WithFields(logrus.Fields{
		"id":     item.ID,
		"action": action,
		"ack":    ack,
	}).Info("Consultation triggered")

	return c.refreshSelected(ctx, item)
}

// Follow subscribes to the live feed of the selected consultation and
// re-fetches it on every event, so the log stays in server order. It
// blocks until ctx is cancelled or the feed closes; onUpdate, if set,
// runs after each successful re-fetch.
func (c *Consultations) Follow(ctx context.Context, onUpdate func(ConsultationState)) error {
	if err := c.deps.requireAuth(); err != nil {
		return err
	}
	item, err := c.selected()
	if err != nil {
		return err
	}

	events, err := c.api.Watch(ctx, item.ID)
	if err != nil {
		return c.fail(err, "Failed to connect to consultation")
	}

	for ev := range events {
		c.logger().WithFields(logrus.Fields{
			"id":     item.ID,
			"type":   ev.Type,
			"sender": ev.Message.Sender,
		}).Debug("Live event")

		if err := c.refreshSelected(ctx, item); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if onUpdate != nil {
			onUpdate(c.Snapshot())
		}
	}
	return nil
}
