package types

import "time"

// Stage represents the lifecycle stage of a contact session
type Stage string

const (
	StageIdle           Stage = "idle"            // No active service, menu is shown on contact
	StageInService      Stage = "in_service"      // Queued or actively chatting with an attendant
	StageAwaitingRating Stage = "awaiting_rating" // Service closed, waiting for a 1-5 rating
	StageAwaitingClose  Stage = "awaiting_close"  // Close requested, waiting for attendant confirmation
)

// Connectable reports whether a queued contact in this stage may be
// paired with an attendant. Anything else found at the queue head is
// a stale entry and gets purged.
func (s Stage) Connectable() bool {
	return s == StageInService || s == StageAwaitingClose
}

// Confirmation identifies a pending two-party confirmation on a session
type Confirmation string

const (
	// ConfirmCloseByAttendant is set while the attendant's close request
	// waits for their yes/no answer.
	ConfirmCloseByAttendant Confirmation = "close_requested_by_attendant"
)

// Session tracks where a single contact is in the service lifecycle.
// There is at most one session per contact id.
type Session struct {
	Contact      string       `json:"contact"`
	Stage        Stage        `json:"stage"`
	Sector       Sector       `json:"sector,omitempty"`
	Attendant    string       `json:"attendant,omitempty"`
	Pending      Confirmation `json:"pendingConfirmation,omitempty"`
	LastActivity time.Time    `json:"lastActivity"`
	DisplayName  string       `json:"displayName,omitempty"`
}

// Attendant is a human operator assigned to a single home sector
type Attendant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Sector Sector `json:"sector"`
	Busy   bool   `json:"busy"`
}

// MediaKind identifies the kind of a forwarded media message
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaSticker  MediaKind = "sticker"
)

// Media carries an opaque reference into the transport's media store
// plus an optional caption. The engine never touches the bytes.
type Media struct {
	Kind    MediaKind `json:"kind"`
	Ref     string    `json:"ref"`
	Caption string    `json:"caption,omitempty"`
}

// Content is the tagged text-or-media variant of a chat message.
// Exactly one of Text or Media is set.
type Content struct {
	Text  string `json:"text,omitempty"`
	Media *Media `json:"media,omitempty"`
}

// IsMedia reports whether the content carries a media payload
func (c Content) IsMedia() bool { return c.Media != nil }

// Preview returns a short loggable form of the content: the text
// itself, the media caption, or a kind placeholder.
func (c Content) Preview() string {
	if c.Media == nil {
		return c.Text
	}
	if c.Media.Caption != "" {
		return c.Media.Caption
	}
	return "[media: " + string(c.Media.Kind) + "]"
}

// InboundMessage is a single message delivered by the chat transport
type InboundMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	PushName  string    `json:"pushName,omitempty"`
	Content   Content   `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
