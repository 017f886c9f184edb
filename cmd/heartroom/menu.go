package main

import (
	"context"
	"errors"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/heartroom/internal/protocol"
	"github.com/1ureka/heartroom/internal/room"
	"github.com/1ureka/heartroom/internal/token"
	"github.com/1ureka/heartroom/internal/util"
)

const (
	actionCreateRoom = "Create a room"
	actionInvite     = "Generate an invite link"
	actionPaste      = "Paste a link"
	actionState      = "Set my heart state"
	actionName       = "Change display name"
	actionShow       = "Show participants"
	actionReset      = "Leave the room"
	actionQuit       = "Quit"
)

// menuOptions lists the actions that make sense for role.
func menuOptions(role room.Role) []string {
	switch role {
	case room.RoleHost:
		return []string{actionInvite, actionPaste, actionState, actionName, actionShow, actionCreateRoom, actionReset, actionQuit}
	case room.RoleGuest:
		return []string{actionState, actionName, actionShow, actionPaste, actionReset, actionQuit}
	default:
		return []string{actionCreateRoom, actionPaste, actionName, actionQuit}
	}
}

// runMenu drives the room from interactive prompts until the user quits or
// ctx is cancelled.
func (s *session) runMenu(ctx context.Context) error {
	for ctx.Err() == nil {
		choice, err := pterm.DefaultInteractiveSelect.
			WithOptions(menuOptions(s.room.Role())).
			WithDefaultText("What next?").
			Show()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}

		if err := s.do(ctx, choice); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			report(err)
		}
	}
	return nil
}

var errQuit = errors.New("quit")

func (s *session) do(ctx context.Context, choice string) error {
	switch choice {
	case actionCreateRoom:
		s.room.CreateRoom()

	case actionInvite:
		return s.invite(ctx)

	case actionPaste:
		input, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Paste an invite or response link").
			Show()
		pterm.Println()
		return s.paste(ctx, input)

	case actionState:
		state, _ := pterm.DefaultInteractiveSelect.
			WithOptions([]string{
				string(protocol.StateHeart),
				string(protocol.StateFriend),
				string(protocol.StateWaiting),
				string(protocol.StateIdle),
			}).
			WithDefaultText("Heart state").
			Show()
		s.room.SetLocalState(state)

	case actionName:
		name, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Display name").
			Show()
		pterm.Println()
		if strings.TrimSpace(name) == "" {
			util.LogWarning("display name left unchanged")
			return nil
		}
		util.LogSuccess("Display name set to %s", s.room.SetDisplayName(name))

	case actionShow:
		s.term.show(s.room.View())

	case actionReset:
		s.room.Reset()

	case actionQuit:
		return errQuit
	}
	return nil
}

// report prints err unless the room already showed it as a status note.
func report(err error) {
	var roomErr *room.RoomError
	var tokenErr *token.HandshakeError
	if errors.As(err, &roomErr) || errors.As(err, &tokenErr) {
		util.LogDebug("%v", err)
		return
	}
	util.LogError("%v", err)
}
