package models

// LocalEventType is the kind of event the local-notification SDK reports.
type LocalEventType string

const (
	LocalEventDismissed   LocalEventType = "dismissed"
	LocalEventPress       LocalEventType = "press"
	LocalEventActionPress LocalEventType = "action-press"
)

// DisplayedNotification is a notification as the tray stores it.
type DisplayedNotification struct {
	ID    string            `json:"id"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// PressAction identifies which action button was pressed.
type PressAction struct {
	ID string `json:"id"`
}

type LocalEventDetail struct {
	Notification *DisplayedNotification `json:"notification,omitempty"`
	PressAction  *PressAction           `json:"pressAction,omitempty"`
}

// LocalEvent is delivered by the local-notification SDK on user interaction.
type LocalEvent struct {
	Type   LocalEventType   `json:"type"`
	Detail LocalEventDetail `json:"detail"`
}

// ActionID returns the pressed action id, or "" when there is none.
func (e LocalEvent) ActionID() string {
	if e.Detail.PressAction == nil {
		return ""
	}
	return e.Detail.PressAction.ID
}

// AsRemoteMessage converts the stored notification back into the shape the normalizer takes.
func (d DisplayedNotification) AsRemoteMessage() RemoteMessage {
	msg := RemoteMessage{
		MessageID: d.ID,
		Data:      d.Data,
	}
	if d.Title != "" || d.Body != "" {
		msg.Notification = &Alert{Title: d.Title, Body: d.Body}
	}
	return msg
}
