package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/duoplay-backend/internal/checkers"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
)

func (that *Server) handleMove(ctx context.Context, client *client, msg *Message) error {
	var move entity.Move
	if err := json.Unmarshal(msg.Payload, &move); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	outcome, err := client.controller.Move(ctx, move)
	if err != nil {
		return err
	}

	payload := ResponsePayload{Outcome: &outcome}
	if !outcome.Accepted && outcome.Reason != nil {
		payload.Error = outcome.Reason.Error()
	}

	client.push(msg.Action, payload)

	return nil
}

func (that *Server) handleSelect(ctx context.Context, client *client, msg *Message) error {
	var from checkers.Square
	if err := json.Unmarshal(msg.Payload, &from); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	selection, err := client.controller.Select(ctx, from)
	if err != nil {
		return err
	}

	client.push(msg.Action, ResponsePayload{Selection: selection})

	return nil
}

func (that *Server) handleReset(ctx context.Context, client *client, msg *Message) error {
	if err := client.controller.Reset(ctx); err != nil {
		return err
	}

	client.push(msg.Action, ResponsePayload{})

	return nil
}

func (that *Server) handleView(ctx context.Context, client *client, _ *Message) error {
	view, err := client.controller.View(ctx)
	if err != nil {
		return err
	}

	client.push(actionState, view)

	return nil
}
