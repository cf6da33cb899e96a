package models

import (
	"fmt"
	"sort"
	"strings"
)

// Server actions a sub-admin may be granted.
const (
	ActionView    = "view"
	ActionEdit    = "edit"
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
)

// Actions lists every known server action.
var Actions = []string{ActionView, ActionEdit, ActionStart, ActionStop, ActionRestart}

// ActionSet holds the per-server grants of a sub-admin.
type ActionSet struct {
	View    bool `json:"view"`
	Edit    bool `json:"edit"`
	Start   bool `json:"start"`
	Stop    bool `json:"stop"`
	Restart bool `json:"restart"`
}

// ServerPermissions maps a server id to the actions granted on it.
type ServerPermissions map[string]ActionSet

// Allows reports whether the named action is granted. Unknown actions are never granted.
func (a ActionSet) Allows(action string) bool {
	switch action {
	case ActionView:
		return a.View
	case ActionEdit:
		return a.Edit
	case ActionStart:
		return a.Start
	case ActionStop:
		return a.Stop
	case ActionRestart:
		return a.Restart
	default:
		return false
	}
}

// IsKnownAction reports whether action is one of Actions.
func IsKnownAction(action string) bool {
	for _, known := range Actions {
		if known == action {
			return true
		}
	}
	return false
}

// ParseActionSet builds an ActionSet from loosely typed input, rejecting unknown keys.
func ParseActionSet(raw map[string]bool) (ActionSet, error) {
	var unknown []string
	var set ActionSet
	for key, granted := range raw {
		switch key {
		case ActionView:
			set.View = granted
		case ActionEdit:
			set.Edit = granted
		case ActionStart:
			set.Start = granted
		case ActionStop:
			set.Stop = granted
		case ActionRestart:
			set.Restart = granted
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ActionSet{}, fmt.Errorf("unknown permission action(s): %s", strings.Join(unknown, ", "))
	}
	return set, nil
}

// ParseServerPermissions converts request input into ServerPermissions.
func ParseServerPermissions(raw map[string]map[string]bool) (ServerPermissions, error) {
	perms := make(ServerPermissions, len(raw))
	for serverID, actions := range raw {
		if strings.TrimSpace(serverID) == "" {
			return nil, fmt.Errorf("permission entry with empty server id")
		}
		set, err := ParseActionSet(actions)
		if err != nil {
			return nil, fmt.Errorf("server %s: %w", serverID, err)
		}
		perms[serverID] = set
	}
	return perms, nil
}
