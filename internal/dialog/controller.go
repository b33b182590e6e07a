package dialog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomli/publishd/internal/asset"
	"github.com/roomli/publishd/internal/log"
	"github.com/roomli/publishd/internal/metrics"
	"github.com/roomli/publishd/internal/negotiation"
)

// State is the dialog controller's current state. Exactly one state is
// active at any time.
type State string

const (
	// StateForm is the initial input collection state; the only state in
	// which the user edits images and submits the first turn.
	StateForm State = "form"

	// StateNegotiating means a turn is in flight; new submissions are
	// rejected until it resolves.
	StateNegotiating State = "negotiating"

	// StateClarification means the assistant requested more information;
	// the user may reply.
	StateClarification State = "clarification"

	// StateReadyToCreate means the assistant produced a complete creation
	// plan awaiting user confirmation.
	StateReadyToCreate State = "ready_to_create"

	// StateCreated means the backend confirmed the listing was created.
	// Terminal; navigation to the created resource is scheduled.
	StateCreated State = "created"

	// StateCreationFailed means a creation attempt failed. Not terminal:
	// the user may retry from the preserved plan.
	StateCreationFailed State = "creation_failed"
)

// Sentinel errors for controller operations
var (
	// ErrTurnInFlight is returned when an operation is rejected because a
	// negotiation turn is already outstanding
	ErrTurnInFlight = errors.New("a negotiation turn is already in flight")
	// ErrUploadsInFlight is returned when submission is rejected because
	// images are still uploading
	ErrUploadsInFlight = errors.New("images are still uploading")
	// ErrFailedUploads is returned when submission is rejected because
	// failed uploads have not been removed
	ErrFailedUploads = errors.New("failed uploads must be removed before submitting")
	// ErrEmptySubmission is returned when a submission carries neither
	// text nor an uploaded image
	ErrEmptySubmission = errors.New("submission requires text or an uploaded image")
	// ErrInvalidTransition is returned when an operation is not defined
	// for the current state
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	// ErrNotEditable is returned when images are edited outside the form state
	ErrNotEditable = errors.New("images can only be edited in the form state")
)

// TurnSender sends one negotiation turn. Implemented by negotiation.Client;
// tests substitute fakes.
type TurnSender interface {
	SendTurn(ctx context.Context, turn negotiation.Turn) (*negotiation.Response, error)
}

// Navigator receives the dialog's navigation side effects. The host shell
// decides what "navigate" means (for the HTTP surface, recording a route the
// client polls; for tests, capturing calls).
type Navigator interface {
	// NavigateToRoom is called after a listing was created, once the
	// configured display delay has elapsed.
	NavigateToRoom(roomID string)

	// NavigateBack is called when the user cancels the dialog.
	NavigateBack()
}

// Config carries the dependencies and tunables for one Controller.
type Config struct {
	// SessionID correlates every negotiation turn with this dialog.
	SessionID string

	// BuildingID optionally scopes the dialog to an existing building.
	BuildingID string

	// MaxImages bounds the image pool (asset.DefaultMaxAssets if zero).
	MaxImages int

	// NavigateDelay is how long the created state is displayed before the
	// navigator is invoked.
	NavigateDelay time.Duration

	// Sender sends negotiation turns. Required.
	Sender TurnSender

	// Navigator receives navigation side effects. Required.
	Navigator Navigator
}

// Controller is the top-level orchestrator of one publish dialog. It owns
// the current state, interprets protocol responses, and drives the asset
// tracker and the conversation log.
//
// All methods are safe for concurrent use. The mutex is released while a
// turn is on the wire; the StateNegotiating value itself is what rejects
// concurrent submissions in the meantime.
type Controller struct {
	mu sync.Mutex

	state      State
	sessionID  string
	buildingID string

	tracker *asset.Tracker
	log     *Log

	sender        TurnSender
	nav           Navigator
	navigateDelay time.Duration
	navTimer      *time.Timer

	plan       *negotiation.PublishPlan
	roomID     string
	failReason string

	// alert is the user-visible, dismissible transport error message.
	alert string

	logger zerolog.Logger
}

// NewController creates a dialog controller in StateForm.
func NewController(cfg Config) *Controller {
	return &Controller{
		state:         StateForm,
		sessionID:     cfg.SessionID,
		buildingID:    cfg.BuildingID,
		tracker:       asset.NewTracker(cfg.MaxImages),
		log:           NewLog(),
		sender:        cfg.Sender,
		nav:           cfg.Navigator,
		navigateDelay: cfg.NavigateDelay,
		logger:        log.WithComponent("dialog").With().Str("session_id", cfg.SessionID).Logger(),
	}
}

// State returns the current dialog state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetBuildingID sets the building the dialog publishes into. A no-op once
// the first turn has been sent.
func (c *Controller) SetBuildingID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateForm && id != "" {
		c.buildingID = id
	}
}

// AddImages registers user-selected files with the asset tracker. Only
// allowed in StateForm. Files beyond the pool cap are silently truncated;
// the accepted assets are returned in submission order, already marked
// uploading.
func (c *Controller) AddImages(files []asset.File) ([]asset.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateForm {
		return nil, ErrNotEditable
	}
	return c.tracker.Add(files), nil
}

// RemoveImage deletes one asset regardless of its upload state. If the
// asset was uploading, the in-flight result is discarded when it resolves.
func (c *Controller) RemoveImage(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateForm {
		return ErrNotEditable
	}
	if !c.tracker.Remove(id) {
		return errors.New("no such image")
	}
	return nil
}

// ResolveUploads reconciles upload outcomes into the tracker. Outcomes for
// removed assets are discarded. Allowed in any state because an upload
// batch may resolve after the dialog has moved on.
func (c *Controller) ResolveUploads(outcomes map[string]asset.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.MarkResolved(outcomes)
}

// Submit sends the user's text as a negotiation turn.
//
// From StateForm the turn carries the text plus all uploaded image paths;
// the guard requires text or at least one uploaded image, and no asset may
// be uploading or failed. From StateClarification the turn carries the
// non-empty reply text only. Any other state rejects the submission.
//
// The call blocks until the turn resolves. A transport failure resets the
// dialog to StateForm with a dismissible alert; the conversation log and
// any plan are discarded.
func (c *Controller) Submit(ctx context.Context, text string) error {
	c.mu.Lock()

	var turn negotiation.Turn
	switch c.state {
	case StateForm:
		if err := c.guardSubmit(text, true); err != nil {
			c.mu.Unlock()
			return err
		}
		turn = negotiation.Turn{
			SessionID:  c.sessionID,
			Message:    text,
			ImagePaths: c.tracker.UploadedPaths(),
			BuildingID: c.buildingID,
		}
	case StateClarification:
		if err := c.guardSubmit(text, false); err != nil {
			c.mu.Unlock()
			return err
		}
		turn = negotiation.Turn{
			SessionID: c.sessionID,
			Message:   text,
		}
	case StateNegotiating:
		c.mu.Unlock()
		return ErrTurnInFlight
	default:
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	if text != "" {
		c.log.AppendUser(text)
	}
	c.state = StateNegotiating
	c.mu.Unlock()

	return c.sendAndApply(ctx, turn)
}

// guardSubmit checks the submission guards shared by Form and
// Clarification. allowImages is true when uploaded images may substitute
// for text (the Form submission).
func (c *Controller) guardSubmit(text string, allowImages bool) error {
	if c.tracker.AnyUploading() {
		return ErrUploadsInFlight
	}
	if c.tracker.AnyFailed() {
		return ErrFailedUploads
	}
	if text == "" {
		if !allowImages || len(c.tracker.UploadedPaths()) == 0 {
			return ErrEmptySubmission
		}
	}
	return nil
}

// Confirm sends the confirm-creation turn from StateReadyToCreate: empty
// text plus the currently uploaded image paths.
//
// Confirm is NOT idempotent at the protocol layer. Repeated confirms issue
// repeated creation attempts; the StateNegotiating value rejects a second
// confirm only while the first is outstanding.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateNegotiating {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	if c.state != StateReadyToCreate {
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	turn := negotiation.Turn{
		SessionID:  c.sessionID,
		ImagePaths: c.tracker.UploadedPaths(),
		BuildingID: c.buildingID,
	}
	c.state = StateNegotiating
	c.mu.Unlock()

	return c.sendAndApply(ctx, turn)
}

// Retry re-enters StateReadyToCreate from StateCreationFailed, re-showing
// the preserved plan for another confirm attempt. No protocol call is made.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCreationFailed {
		return ErrInvalidTransition
	}
	c.state = StateReadyToCreate
	c.failReason = ""
	return nil
}

// Cancel exits the dialog: the navigator is told to go back and the
// dialog's state is discarded by the host (session removal). Rejected while
// a turn is in flight, because an in-flight call cannot be aborted, only
// ignored.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.state == StateNegotiating {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	if c.navTimer != nil {
		c.navTimer.Stop()
		c.navTimer = nil
	}
	nav := c.nav
	c.mu.Unlock()

	if nav != nil {
		nav.NavigateBack()
	}
	return nil
}

// DismissAlert clears the dismissible transport error message.
func (c *Controller) DismissAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alert = ""
}

// sendAndApply performs the protocol call without holding the mutex, then
// applies the response (or the transport failure) to the state machine.
func (c *Controller) sendAndApply(ctx context.Context, turn negotiation.Turn) error {
	resp, err := c.sender.SendTurn(ctx, turn)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		// Single fallback path for every transport-level failure:
		// back to the form with a dismissible alert. Partial dialog
		// state (log, plan) is discarded; the user restarts the
		// exchange.
		c.logger.Warn().Err(err).Msg("negotiation turn failed, resetting dialog")
		c.state = StateForm
		c.plan = nil
		c.log.Clear()
		c.alert = "The assistant is unavailable right now. Please try again."
		return err
	}

	if resp.Message != "" {
		c.log.AppendAssistant(resp.Message, resp.Timestamp)
	}

	switch resp.Status {
	case negotiation.StatusReadyToCreate:
		if resp.Plan == nil {
			// A ready_to_create response without a plan violates the
			// contract; fail open into clarification like an unknown
			// status.
			c.logger.Warn().Msg("ready_to_create response without plan, treating as clarification")
			c.state = StateClarification
			return nil
		}
		c.plan = resp.Plan
		c.state = StateReadyToCreate

	case negotiation.StatusCreated:
		c.roomID = resp.RoomID
		c.state = StateCreated
		metrics.ListingsCreated.Inc()
		c.scheduleNavigation(resp.RoomID)
		c.logger.Info().Str("room_id", resp.RoomID).Msg("listing created")

	case negotiation.StatusCreationFailed:
		c.failReason = resp.ErrorText
		c.state = StateCreationFailed
		c.logger.Info().Str("reason", resp.ErrorText).Msg("creation attempt failed")

	default:
		// StatusNeedMoreInfo, plus anything the parser failed open on.
		c.state = StateClarification
	}
	return nil
}

// scheduleNavigation arranges for the navigator to be invoked after the
// configured display delay. Called with the mutex held.
func (c *Controller) scheduleNavigation(roomID string) {
	if c.nav == nil {
		return
	}
	nav := c.nav
	c.navTimer = time.AfterFunc(c.navigateDelay, func() {
		nav.NavigateToRoom(roomID)
	})
}

// Snapshot is a read-only view of the dialog for rendering.
type Snapshot struct {
	State      State                    `json:"state"`
	Assets     []asset.Asset            `json:"images"`
	Messages   []Message                `json:"messages"`
	Plan       *negotiation.PublishPlan `json:"plan,omitempty"`
	RoomID     string                   `json:"roomId,omitempty"`
	FailReason string                   `json:"failReason,omitempty"`
	Alert      string                   `json:"alert,omitempty"`
}

// Snapshot returns a consistent view of the dialog's current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:      c.state,
		Assets:     c.tracker.Assets(),
		Messages:   c.log.Messages(),
		Plan:       c.plan,
		RoomID:     c.roomID,
		FailReason: c.failReason,
		Alert:      c.alert,
	}
}

// Plan returns the current publish plan, or nil if none is stored.
func (c *Controller) Plan() *negotiation.PublishPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}
