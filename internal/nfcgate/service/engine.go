package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

var (
	ErrInvalidTag = errors.New("tag id is required")

	// ErrStore means the decision could not be computed because a store
	// read or insert failed. No journal entry was written and registration
	// mode is unchanged.
	ErrStore = errors.New("store failure")

	// ErrJournal means the decision was computed but appending the journal
	// entry failed. The Outcome returned alongside it is valid.
	ErrJournal = errors.New("journal append failed")
)

const (
	ModeActive   = "ACTIVE"
	ModeInactive = "INACTIVE"

	// SystemTagID is journalled for administrative actions that have no tag.
	SystemTagID = "SYSTEM"

	displayNameLayout = "20060102_150405"
)

// Journal wording.
const (
	actionMasterKey    = "Master key authentication"
	actionRegistration = "User registration"
	actionAccessCheck  = "Access check"
	actionModeOverride = "Registration mode toggle"
)

// ScanObserver is notified after every decision. Observers run on the
// caller's goroutine and must not block.
type ScanObserver interface {
	// ScanProcessed receives the outcome and the journal entry, which is
	// nil when the journal append failed.
	ScanProcessed(ctx context.Context, out types.Outcome, entry *types.AccessEvent)
	ScanFailed(ctx context.Context, tagID string, err error)
}

type EngineConfig struct {
	MasterKey string

	// Now defaults to time.Now. Display names use its location.
	Now func() time.Time
}

// Engine turns tag identifiers into decisions. The registration flag is the
// only mutable state it owns; everything durable lives in the stores.
type Engine struct {
	users     store.UserStore
	journal   store.JournalStore
	masterKey string
	now       func() time.Time
	observers []ScanObserver

	mu               sync.Mutex
	registrationMode bool
}

func NewEngine(users store.UserStore, journal store.JournalStore, cfg EngineConfig, observers ...ScanObserver) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		users:     users,
		journal:   journal,
		masterKey: cfg.MasterKey,
		now:       now,
		observers: observers,
	}
}

// ValidateTag is the caller-side check adapters run before ProcessScan.
func ValidateTag(tagID string) error {
	if strings.TrimSpace(tagID) == "" {
		return ErrInvalidTag
	}
	return nil
}

func (e *Engine) MasterKey() string { return e.masterKey }

func (e *Engine) RegistrationMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registrationMode
}

// toggle flips the flag and returns the new value in one critical section,
// so two concurrent master-key scans always produce two flips.
func (e *Engine) toggle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registrationMode = !e.registrationMode
	return e.registrationMode
}

// ProcessScan decides what a scanned tag means and journals the decision.
//
// Priority: master key toggles registration mode; otherwise, in
// registration mode the tag is enrolled; otherwise access is checked.
// The flag lock is never held across a store call.
func (e *Engine) ProcessScan(ctx context.Context, tagID string) (types.Outcome, error) {
	if err := ValidateTag(tagID); err != nil {
		return types.Outcome{}, err
	}

	var (
		out    types.Outcome
		action string
		err    error
	)
	switch {
	case tagID == e.masterKey:
		out, action = masterKeyOutcome(tagID, e.toggle()), actionMasterKey
	case e.RegistrationMode():
		out, err = e.register(ctx, tagID)
		action = actionRegistration
	default:
		out, err = e.checkAccess(ctx, tagID)
		action = actionAccessCheck
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStore, err)
		e.notifyFailed(ctx, tagID, err)
		return types.Outcome{}, err
	}

	out.DecidedAt = e.now()
	return e.record(ctx, out, action)
}

// ToggleRegistration flips registration mode without a master key. It is
// journalled under SystemTagID.
func (e *Engine) ToggleRegistration(ctx context.Context) (types.Outcome, error) {
	mode := e.toggle()
	word := modeWord(mode)
	out := types.Outcome{
		Kind:             types.OutcomeModeOverride,
		TagID:            SystemTagID,
		Response:         "MASTER_KEY:" + word,
		Summary:          "Mode set to " + word,
		RegistrationMode: mode,
		DecidedAt:        e.now(),
	}
	return e.record(ctx, out, actionModeOverride)
}

func (e *Engine) register(ctx context.Context, tagID string) (types.Outcome, error) {
	existing, err := e.users.FindUser(ctx, tagID)
	switch {
	case err == nil:
		return types.Outcome{
			Kind:             types.OutcomeAlreadyRegistered,
			TagID:            tagID,
			Response:         "REGISTERED:" + existing.DisplayName,
			Summary:          "Already registered as " + existing.DisplayName,
			DisplayName:      existing.DisplayName,
			RegistrationMode: true,
		}, nil
	case !errors.Is(err, store.ErrNotFound):
		return types.Outcome{}, err
	}

	name := DisplayName(e.now())
	created, err := e.users.InsertUser(ctx, tagID, name)
	if errors.Is(err, store.ErrDuplicateTag) {
		// Lost a race with a concurrent registration of the same tag.
		return types.Outcome{
			Kind:             types.OutcomeRegistrationFailed,
			TagID:            tagID,
			Response:         "REGISTERED:Registration failed",
			Summary:          "Registration failed - user exists",
			RegistrationMode: true,
		}, nil
	}
	if err != nil {
		return types.Outcome{}, err
	}

	return types.Outcome{
		Kind:             types.OutcomeRegistered,
		TagID:            tagID,
		Response:         "REGISTERED:" + created.DisplayName,
		Summary:          "Registered as " + created.DisplayName,
		DisplayName:      created.DisplayName,
		RegistrationMode: true,
	}, nil
}

func (e *Engine) checkAccess(ctx context.Context, tagID string) (types.Outcome, error) {
	u, err := e.users.FindUser(ctx, tagID)
	if errors.Is(err, store.ErrNotFound) {
		return types.Outcome{
			Kind:     types.OutcomeAccessDenied,
			TagID:    tagID,
			Response: "ACCESS_DENIED",
			Summary:  "Access denied - unknown card",
		}, nil
	}
	if err != nil {
		return types.Outcome{}, err
	}

	return types.Outcome{
		Kind:        types.OutcomeAccessGranted,
		TagID:       tagID,
		Response:    "ACCESS_GRANTED:" + u.DisplayName,
		Summary:     "Access granted to " + u.DisplayName,
		DisplayName: u.DisplayName,
	}, nil
}

// record appends exactly one journal entry for out. A failed append does
// not undo the decision: the outcome is returned with ErrJournal.
func (e *Engine) record(ctx context.Context, out types.Outcome, action string) (types.Outcome, error) {
	entry, err := e.journal.AppendEvent(ctx, out.TagID, action, out.Summary)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrJournal, err)
		for _, o := range e.observers {
			o.ScanFailed(ctx, out.TagID, err)
			o.ScanProcessed(ctx, out, nil)
		}
		return out, err
	}

	for _, o := range e.observers {
		o.ScanProcessed(ctx, out, &entry)
	}
	return out, nil
}

func (e *Engine) notifyFailed(ctx context.Context, tagID string, err error) {
	for _, o := range e.observers {
		o.ScanFailed(ctx, tagID, err)
	}
}

func masterKeyOutcome(tagID string, mode bool) types.Outcome {
	word := modeWord(mode)
	return types.Outcome{
		Kind:             types.OutcomeMasterKeyToggled,
		TagID:            tagID,
		Response:         "MASTER_KEY:" + word,
		Summary:          "Registration mode " + word,
		RegistrationMode: mode,
	}
}

// DisplayName is the name given to a tag enrolled at t.
func DisplayName(t time.Time) string {
	return "User_" + t.Format(displayNameLayout)
}

func modeWord(active bool) string {
	if active {
		return ModeActive
	}
	return ModeInactive
}
