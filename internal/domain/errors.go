package domain

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotRequested         = errors.New("conversation is not in requested state")
	ErrNotParticipant       = errors.New("address is not a participant")
)
