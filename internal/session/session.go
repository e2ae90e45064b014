// Package session drives one author's submission from editing to a published
// change request.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"mutual/internal/domain"
	"mutual/internal/engine/auth"
	"mutual/internal/logger"
	"mutual/internal/signing"
	"mutual/internal/validator"
)

type State int

const (
	Editing State = iota
	SavingDraft
	Submitting
	Published
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case SavingDraft:
		return "saving_draft"
	case Submitting:
		return "submitting"
	case Published:
		return "published"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrBusy is returned when a save or submit is already running.
var ErrBusy = errors.New("another save or submit is in progress")

// ErrPublished is returned by edits and submissions after a successful
// publish until Reset is called.
var ErrPublished = errors.New("submission already published")

var ErrUnknownField = errors.New("unknown field")

type DraftSaver interface {
	SaveDraft(ctx context.Context, id domain.Identity, doc domain.CaseStudy) (domain.Draft, error)
}

type Publisher interface {
	Publish(ctx context.Context, id domain.Identity, doc domain.CaseStudy) (domain.Publication, error)
}

// Session holds the document being edited. It is safe for concurrent use;
// at most one save or submit runs at a time.
type Session struct {
	mu        sync.Mutex
	state     State
	doc       domain.RawCaseStudy
	editor    iter.Seq[string]
	errs      validator.Errors
	result    *domain.Publication
	drafts    DraftSaver
	publisher Publisher
	log       *slog.Logger
}

func New(drafts DraftSaver, publisher Publisher) *Session {
	return &Session{
		drafts:    drafts,
		publisher: publisher,
		log:       logger.Default(),
		doc:       blank(),
	}
}

// WithLogger replaces the session logger.
func (s *Session) WithLogger(l *slog.Logger) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
	return s
}

func blank() domain.RawCaseStudy {
	return domain.RawCaseStudy{PartOfTeam: domain.BoolFalse, Type: domain.StudyTypeSignal}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns a copy of the document as currently edited, with the
// latest editor value as its markdown.
func (s *Session) Document() domain.RawCaseStudy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Errors returns the field errors from the last save or submit.
func (s *Session) Errors() validator.Errors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(validator.Errors(nil), s.errs...)
}

// Result is the publication once the session reached Published.
func (s *Session) Result() *domain.Publication {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

func (s *Session) SetDocument(raw domain.RawCaseStudy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Published {
		return ErrPublished
	}
	s.doc = raw
	s.editor = nil
	return nil
}

// Load resumes editing a saved draft.
func (s *Session) Load(d domain.Draft) error {
	return s.SetDocument(d.CaseStudy.Raw())
}

// SetField sets one field by its JSON name.
func (s *Session) SetField(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Published {
		return ErrPublished
	}
	switch name {
	case "email":
		s.doc.Email = value
	case "name":
		s.doc.Name = value
	case "title":
		s.doc.Title = value
	case "organizationName":
		s.doc.OrganizationName = value
	case "industry":
		s.doc.Industry = value
	case "partOfTeam":
		s.doc.PartOfTeam = domain.BoolString(value)
	case "url":
		s.doc.URL = value
	case "markdown":
		s.doc.Markdown = value
		s.editor = nil
	case "type":
		s.doc.Type = domain.StudyType(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

// FollowEditor makes seq the source of the markdown body. The sequence must be
// finite; it is read once, at the next save, submit or Document call, and its
// last value becomes the body.
func (s *Session) FollowEditor(seq iter.Seq[string]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Published {
		return ErrPublished
	}
	s.editor = seq
	return nil
}

// snapshot must be called with mu held. The editor's latest value is kept in
// the document, so a sequence that can only be read once still supplies the
// body to later attempts.
func (s *Session) snapshot() domain.RawCaseStudy {
	if s.editor != nil {
		for md := range s.editor {
			s.doc.Markdown = md
		}
		s.editor = nil
	}
	return s.doc
}

// begin moves from Editing to next and returns the document to work on.
func (s *Session) begin(id domain.Identity, next State) (domain.RawCaseStudy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case SavingDraft, Submitting:
		return domain.RawCaseStudy{}, ErrBusy
	case Published:
		return domain.RawCaseStudy{}, ErrPublished
	}
	if !id.Authenticated() {
		return domain.RawCaseStudy{}, auth.ErrAuthRequired
	}
	s.state = next
	return s.snapshot(), nil
}

func (s *Session) finish(state State, errs validator.Errors, result *domain.Publication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.errs = errs
	s.result = result
}

func (s *Session) sessionLog() *slog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// SaveDraft stores the current document. The session is back in Editing when it returns.
func (s *Session) SaveDraft(ctx context.Context, id domain.Identity) (domain.Draft, error) {
	raw, err := s.begin(id, SavingDraft)
	if err != nil {
		return domain.Draft{}, err
	}
	log := s.sessionLog().With("owner", id.Owner(), "op", "save_draft")
	doc, err := validator.Validate(raw)
	if err != nil {
		ve, _ := validator.AsErrors(err)
		s.finish(Editing, ve, nil)
		log.Info("draft not saved", "error", err)
		return domain.Draft{}, err
	}
	d, err := s.drafts.SaveDraft(ctx, id, doc)
	if err != nil {
		s.finish(Editing, nil, nil)
		log.Warn("draft save failed", "error", err)
		return domain.Draft{}, err
	}
	s.finish(Editing, nil, nil)
	log.Info("draft saved", "draft_id", d.ID)
	return d, nil
}

// Submit validates the document, signs it when the identity carries a wallet,
// and publishes it. A wallet identity needs a signer for that same address.
// On any failure the session returns to Editing with the document unchanged;
// on success it is Published.
func (s *Session) Submit(ctx context.Context, id domain.Identity, signer signing.WalletSigner) (domain.Publication, error) {
	raw, err := s.begin(id, Submitting)
	if err != nil {
		return domain.Publication{}, err
	}
	log := s.sessionLog().With("owner", id.Owner(), "op", "submit")

	raw.Signature = nil
	doc, err := validator.Validate(raw)
	if err != nil {
		ve, _ := validator.AsErrors(err)
		s.finish(Editing, ve, nil)
		return domain.Publication{}, err
	}
	if id.Wallet != nil {
		if err := signerFor(id.Wallet, signer); err != nil {
			s.finish(Editing, nil, nil)
			log.Info("signing did not complete", "error", err)
			return domain.Publication{}, err
		}
		sig, err := signing.Sign(ctx, doc, signer)
		if err != nil {
			s.finish(Editing, nil, nil)
			log.Info("signing did not complete", "error", err)
			return domain.Publication{}, err
		}
		doc.Signature = &sig
	}
	pub, err := s.publisher.Publish(ctx, id, doc)
	if err != nil {
		s.finish(Editing, nil, nil)
		log.Warn("publish failed", "error", err)
		return domain.Publication{}, err
	}
	s.finish(Published, nil, &pub)
	log.Info("submission published", "number", pub.ChangeRequest.Number)
	return pub, nil
}

func signerFor(wallet *domain.WalletIdentity, signer signing.WalletSigner) error {
	if signer == nil {
		return &signing.SigningError{Kind: signing.Unavailable, Err: fmt.Errorf("no signer for wallet %s", wallet.Address)}
	}
	if !strings.EqualFold(signer.Address(), wallet.Address) {
		return &signing.SigningError{Kind: signing.Unavailable, Err: fmt.Errorf("signer %s does not hold wallet %s", signer.Address(), wallet.Address)}
	}
	return nil
}

// Reset starts a new submission with a blank document.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SavingDraft || s.state == Submitting {
		return ErrBusy
	}
	s.state = Editing
	s.doc = blank()
	s.editor = nil
	s.errs = nil
	s.result = nil
	return nil
}
