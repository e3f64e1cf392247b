// Package flow defines conversation-session state management for
// multi-step button/text flows.
package flow

import "context"

// FlowType identifies a multi-step conversation flow.
type FlowType string

// FlowTypeCustomize is the add/edit/remove habit customization flow.
const FlowTypeCustomize FlowType = "customize"

// StateType identifies a state within a flow.
type StateType string

// Customize-flow states. The flow runs
// CHOOSING -> {ADDING | REMOVING | EDITING_SELECT} -> [EDITING_VALUE] -> end.
const (
	// StateChoosing waits for the add/edit/remove action button.
	StateChoosing StateType = "CHOOSING"
	// StateAdding waits for the free-text name of a new habit.
	StateAdding StateType = "ADDING"
	// StateRemoving waits for the habit button to delete.
	StateRemoving StateType = "REMOVING"
	// StateEditingSelect waits for the habit button to rename.
	StateEditingSelect StateType = "EDITING_SELECT"
	// StateEditingValue waits for the free-text replacement name.
	StateEditingValue StateType = "EDITING_VALUE"
)

// DataKey names a value stored alongside a session's state.
type DataKey string

// DataKeyEditHabitID remembers which habit a rename applies to while the
// flow waits for the new name.
const DataKeyEditHabitID DataKey = "edit_habit_id"

// StateManager defines the interface for managing per-user flow state.
// A state of "" means the user has no active session.
type StateManager interface {
	// GetCurrentState retrieves the current state for a user in a flow.
	GetCurrentState(ctx context.Context, userID string, flowType FlowType) (StateType, error)

	// SetCurrentState updates the current state for a user in a flow,
	// creating the session if none exists.
	SetCurrentState(ctx context.Context, userID string, flowType FlowType, state StateType) error

	// GetStateData retrieves additional data associated with the session.
	GetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey) (string, error)

	// SetStateData stores additional data associated with the session.
	SetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey, value string) error

	// TransitionState transitions from one state to another, failing when
	// the current state does not match fromState.
	TransitionState(ctx context.Context, userID string, flowType FlowType, fromState, toState StateType) error

	// ResetState discards the session and all its data.
	ResetState(ctx context.Context, userID string, flowType FlowType) error
}
