package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/confirm/internal/confirm/chat"
	"github.com/aussiebroadwan/confirm/pkg/confirmsdk"
	"github.com/aussiebroadwan/confirm/pkg/httpx"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
)

const maxMessageBytes = 4 << 10

// MessageHandler feeds one chat message to the robot and returns its
// replies.
type MessageHandler struct {
	Robot *chat.Robot
}

// ServeHTTP handles POST /v1/messages.
func (h *MessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		confirmsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req confirmsdk.MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		confirmsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		confirmsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	var replies chat.Buffer
	err := h.Robot.Receive(ctx, chat.Message{UserID: userID, Text: req.Text}, &replies)
	switch {
	case errors.Is(err, chat.ErrNoRoute):
		confirmsdk.ErrUnknownCommand.WriteError(w)
		return
	case err != nil && len(replies.Replies()) == 0:
		log.Error("message handling failed", "err", err)
		confirmsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, confirmsdk.MessageResponse{
		Replies: replies.Replies(),
	})
}
