// ABOUTME: Scope Resolver deciding whose documents a query or upload targets
// ABOUTME: Pure function of identity, action and the admin's selection; no I/O

// Package scope computes the authorization scope attached to query and
// upload requests. It is the only place that decides whether a request
// carries an explicit target user.
package scope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389/bank-assistant/internal/session"
)

// ErrMissingTarget is returned when a specific target user is required but blank
var ErrMissingTarget = errors.New("target user id is required")

// Action is the kind of request being scoped.
type Action int

const (
	ActionQuery Action = iota
	ActionUpload
)

func (a Action) String() string {
	switch a {
	case ActionQuery:
		return "query"
	case ActionUpload:
		return "upload"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Mode is the admin-selectable scope mode. The zero value is AllUsers.
type Mode int

const (
	AllUsers Mode = iota
	Mine
	SpecificUser
)

func (m Mode) String() string {
	switch m {
	case AllUsers:
		return "all users"
	case Mine:
		return "mine"
	case SpecificUser:
		return "specific user"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Selection is the admin's current scope choice.
type Selection struct {
	Mode     Mode
	TargetID string
}

// ForUser selects a single target user.
func ForUser(id string) Selection {
	return Selection{Mode: SpecificUser, TargetID: id}
}

func (s Selection) String() string {
	if s.Mode == SpecificUser {
		return "user " + strings.TrimSpace(s.TargetID)
	}
	return s.Mode.String()
}

// Payload is the scope attached to an outgoing request.
// An empty TargetID means the request carries no user_id field.
type Payload struct {
	TargetID string
}

// HasTarget reports whether the request must carry an explicit target.
func (p Payload) HasTarget() bool {
	return p.TargetID != ""
}

// Resolve computes the scope for action performed by id under sel.
//
// Non-privileged identities never carry a target; the backend uses the
// session's own user. Privileged queries without a specific user go to the
// backend default. Privileged uploads always need a specific user.
func Resolve(id session.Identity, action Action, sel Selection) (Payload, error) {
	if !id.IsPrivileged {
		return Payload{}, nil
	}

	target := strings.TrimSpace(sel.TargetID)

	switch action {
	case ActionQuery:
		if sel.Mode != SpecificUser {
			return Payload{}, nil
		}
		if target == "" {
			return Payload{}, ErrMissingTarget
		}
		return Payload{TargetID: target}, nil

	case ActionUpload:
		if sel.Mode != SpecificUser || target == "" {
			return Payload{}, ErrMissingTarget
		}
		return Payload{TargetID: target}, nil

	default:
		return Payload{}, fmt.Errorf("unknown action %s", action)
	}
}
