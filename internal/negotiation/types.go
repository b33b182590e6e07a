// Package negotiation implements the client for the backend AI negotiation
// endpoint.
//
// One call to SendTurn carries exactly one turn: the current message text
// and, optionally, remote image paths and a building id. Prior conversation
// turns are never resent; the backend retains negotiation context keyed by
// the session id threaded on every request.
package negotiation

import (
	"time"
)

// Status discriminates the backend's response to a turn.
type Status string

const (
	// StatusNeedMoreInfo means the assistant requested more information.
	// There is no structured payload, just text to show the user.
	StatusNeedMoreInfo Status = "need_more_info"

	// StatusReadyToCreate means the assistant produced a complete creation
	// plan awaiting user confirmation.
	StatusReadyToCreate Status = "ready_to_create"

	// StatusCreated means the backend confirmed the listing was created.
	StatusCreated Status = "created"

	// StatusCreationFailed means a creation attempt failed.
	StatusCreationFailed Status = "creation_failed"
)

// ParseStatus maps a wire status string to a Status. Unrecognized or missing
// values map to StatusNeedMoreInfo: the dialog fails open into clarification
// rather than erroring the whole exchange.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusReadyToCreate, StatusCreated, StatusCreationFailed, StatusNeedMoreInfo:
		return Status(s)
	default:
		return StatusNeedMoreInfo
	}
}

// BuildingPlan describes the building to create when the user publishes a
// room in a building not yet known to the backend.
type BuildingPlan struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
}

// RoomPlan describes the room record to create.
type RoomPlan struct {
	Name       string   `json:"name"`
	Price      int64    `json:"price"`
	Deposit    int64    `json:"deposit,omitempty"`
	AreaSqm    float64  `json:"areaSqm,omitempty"`
	Amenities  []string `json:"amenities,omitempty"`
	Rules      []string `json:"rules,omitempty"`
	ImagePaths []string `json:"imagePaths,omitempty"`
}

// PublishPlan is the structured creation plan proposed by the backend once
// negotiation converges. It is replaced wholesale on each response, never
// merged field by field.
type PublishPlan struct {
	// Description is the human-readable summary of the plan, shown to the
	// user for confirmation.
	Description string `json:"description"`

	// Building is the optional "create building" sub-plan. Nil when the
	// room is published into an existing building.
	Building *BuildingPlan `json:"building,omitempty"`

	// Room is the "create room" sub-plan.
	Room RoomPlan `json:"room"`
}

// Turn is one request to the negotiation endpoint.
type Turn struct {
	// SessionID correlates this turn with the in-progress negotiation.
	SessionID string `json:"sessionId"`

	// Message is the user's text for this turn. It may be empty only when
	// the turn confirms creation and image paths are attached instead.
	Message string `json:"message"`

	// ImagePaths are remote paths of successfully uploaded images.
	ImagePaths []string `json:"imagePaths,omitempty"`

	// BuildingID optionally scopes the negotiation to an existing building
	// owned by the user.
	BuildingID string `json:"buildingId,omitempty"`
}

// Response is the backend's structured reply to one turn.
type Response struct {
	// Message is free text for display in the conversation.
	Message string

	// Timestamp is the backend's reply time. Falls back to the local clock
	// when the wire value is absent or unparseable.
	Timestamp time.Time

	// Status discriminates the payload below.
	Status Status

	// Plan is set when Status is StatusReadyToCreate.
	Plan *PublishPlan

	// RoomID is the created resource id, set when Status is StatusCreated.
	RoomID string

	// ErrorText is the backend's failure description, set when Status is
	// StatusCreationFailed.
	ErrorText string
}
