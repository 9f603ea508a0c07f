package bot

// KeyboardKind tells the transport how to render a keyboard.
type KeyboardKind string

const (
	// KeyboardReply replaces the user's keyboard with labelled buttons that
	// send their text when pressed.
	KeyboardReply KeyboardKind = "reply"
	// KeyboardInline attaches buttons to the message that send callback data.
	KeyboardInline KeyboardKind = "inline"
	// KeyboardRemove hides any reply keyboard.
	KeyboardRemove KeyboardKind = "remove"
)

// Button is one key. Data is set for inline buttons only.
type Button struct {
	Text            string `json:"text"`
	Data            string `json:"data,omitempty"`
	RequestLocation bool   `json:"request_location,omitempty"`
}

// Keyboard is a layout of buttons in rows.
type Keyboard struct {
	Kind KeyboardKind `json:"kind"`
	Rows [][]Button   `json:"rows,omitempty"`
}

// Reply is the render instruction returned for every inbound event.
type Reply struct {
	Text     string    `json:"text"`
	Keyboard *Keyboard `json:"keyboard,omitempty"`
}

func plain(s string) Reply {
	return Reply{Text: s}
}

func withKeyboard(s string, kb *Keyboard) Reply {
	return Reply{Text: s, Keyboard: kb}
}
