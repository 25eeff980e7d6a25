package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models/dto"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/middleware"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/autosave"
	"github.com/gin-gonic/gin/binding"
)

// Inbound message types
const (
	TypeDraft = "draft"
	TypeFlush = "flush"
)

// Outbound message types
const (
	TypeResult   = "result"
	TypeAutoSave = "autosave"
	TypeEvent    = "event"
	TypeError    = "error"
)

const calculateTimeout = 5 * time.Second

// InboundMessage is sent by the client. A draft carries the current form;
// a flush asks for the pending draft to be saved immediately.
type InboundMessage struct {
	Type         string                   `json:"type" binding:"required,oneof=draft flush"`
	Courses      []dto.CourseRequest      `json:"courses" binding:"dive"`
	PriorHistory *dto.PriorHistoryRequest `json:"priorHistory"`
}

// OutboundMessage is pushed to the client
type OutboundMessage struct {
	Type     string                 `json:"type"`
	Result   *dto.CalculationResult `json:"result,omitempty"`
	AutoSave *dto.AutoSaveResponse  `json:"autoSave,omitempty"`
	Event    *models.SnapshotEvent  `json:"event,omitempty"`
	Error    *dto.ErrorDetail       `json:"error,omitempty"`
}

func errorMessage(err error) OutboundMessage {
	_, detail := middleware.ErrorStatus(err)
	return OutboundMessage{Type: TypeError, Error: detail}
}

func autoSaveMessage(out *services.AutoSaveOutcome) OutboundMessage {
	resp := dto.NewAutoSaveResponse(out.Saved, out.Message, out.Snapshot)
	return OutboundMessage{Type: TypeAutoSave, AutoSave: &resp}
}

func (c *Client) reply(msg OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal message")
		return
	}
	if !c.trySend(data) {
		c.logger.Warn().Str("type", msg.Type).Msg("Send queue full, dropping message")
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(errorMessage(apperrors.NewBadRequestError("malformed message")))
		return
	}
	if err := binding.Validator.ValidateStruct(&msg); err != nil {
		c.reply(OutboundMessage{Type: TypeError, Error: dto.HandleValidationError(err)})
		return
	}

	switch msg.Type {
	case TypeDraft:
		c.handleDraft(msg)
	case TypeFlush:
		ctx, cancel := context.WithTimeout(context.Background(), disconnectFlushTimeout)
		defer cancel()
		if err := c.scheduler.Flush(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Flush failed")
		}
	}
}

// handleDraft answers with the live result and schedules an auto-save
func (c *Client) handleDraft(msg InboundMessage) {
	draft := autosave.Draft{
		Courses: dto.CoursesToDomain(msg.Courses),
		Prior:   msg.PriorHistory.ToDomain(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), calculateTimeout)
	defer cancel()

	result, err := c.service.Calculate(ctx, draft.Courses, draft.Prior)
	if err != nil {
		c.reply(errorMessage(err))
		return
	}
	res := dto.NewCalculationResult(result)
	c.reply(OutboundMessage{Type: TypeResult, Result: &res})

	// a cleared form must not let an older draft save later
	if draft.Empty() {
		c.scheduler.Discard()
		return
	}
	c.scheduler.Submit(draft)
}
