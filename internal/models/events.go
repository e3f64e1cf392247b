package models

// EventType classifies an inbound chat event.
type EventType string

const (
	// EventTypeCommand is a slash command, e.g. "/remind 08:30".
	EventTypeCommand EventType = "command"
	// EventTypeCallback is an inline-button press carrying a payload string.
	EventTypeCallback EventType = "callback"
	// EventTypeText is a free-text message outside of any command.
	EventTypeText EventType = "text"
)

// Event is a single inbound interaction from a user, normalized across
// transports. Exactly one of Command/Data/Body is meaningful depending on
// Type.
type Event struct {
	Type EventType `json:"type"`
	// From is the canonicalized user identifier of the sender.
	From string `json:"from"`
	// Command is the command name without the leading slash.
	Command string `json:"command,omitempty"`
	// Args are the whitespace-separated command arguments.
	Args []string `json:"args,omitempty"`
	// Data is the raw callback payload for button presses.
	Data string `json:"data,omitempty"`
	// Body is the text of a plain message.
	Body string `json:"body,omitempty"`
	// MessageID identifies the message the pressed keyboard is attached to,
	// when the transport supports in-place edits. Zero when unknown.
	MessageID int `json:"message_id,omitempty"`
	// Time is the unix timestamp the transport reported for the event.
	Time int64 `json:"time,omitempty"`
}

// Button is one inline keyboard button: a visible label and the callback
// payload delivered when it is pressed.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Keyboard is a grid of inline buttons attached to an outbound message.
type Keyboard struct {
	Rows [][]Button `json:"rows"`
}

// AddRow appends one row of buttons to the keyboard.
func (k *Keyboard) AddRow(buttons ...Button) {
	k.Rows = append(k.Rows, buttons)
}

// Empty reports whether the keyboard has no buttons.
func (k Keyboard) Empty() bool {
	return len(k.Rows) == 0
}

// Buttons returns the keyboard's buttons flattened in row order. The
// WhatsApp service uses this to render numbered text menus.
func (k Keyboard) Buttons() []Button {
	var out []Button
	for _, row := range k.Rows {
		out = append(out, row...)
	}
	return out
}
