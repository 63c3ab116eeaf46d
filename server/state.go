package server

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Authentication states of a session.
const (
	stateUnauthenticated = "unauthenticated"
	stateUserGiven       = "user_given"
	stateAuthenticated   = "authenticated"
)

// Events that move a session between authentication states.
const (
	eventUser  = "user"
	eventLogin = "login"
)

// authState tracks where a session is in the USER/PASS exchange.
//
//	unauthenticated --user--> user_given --login--> authenticated
//	user_given      --user--> user_given
//
// There is no way back out of authenticated.
type authState struct {
	machine *fsm.FSM
}

func newAuthState() *authState {
	return &authState{
		machine: fsm.NewFSM(
			stateUnauthenticated,
			fsm.Events{
				{Name: eventUser, Src: []string{stateUnauthenticated, stateUserGiven}, Dst: stateUserGiven},
				{Name: eventLogin, Src: []string{stateUserGiven}, Dst: stateAuthenticated},
			},
			fsm.Callbacks{},
		),
	}
}

// fire triggers event. Re-entering the current state is not an error.
func (a *authState) fire(ctx context.Context, event string) error {
	err := a.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) && noTransition.Err == nil {
		return nil
	}
	return err
}

func (a *authState) current() string {
	return a.machine.Current()
}

func (a *authState) userGiven() bool {
	return a.machine.Is(stateUserGiven)
}

func (a *authState) authenticated() bool {
	return a.machine.Is(stateAuthenticated)
}
