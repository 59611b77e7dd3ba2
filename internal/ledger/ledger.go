package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"approval-ledger/internal/model"

	"github.com/google/uuid"
)

// Store is the Document Store contract: the whole collection is read and
// written back in one piece, in insertion order.
type Store interface {
	Load(ctx context.Context) ([]model.Document, error)
	Save(ctx context.Context, docs []model.Document) error
}

// EventKind names what happened to a document.
type EventKind string

const (
	EventSubmitted    EventKind = "document.submitted"
	EventTransitioned EventKind = "document.transitioned"
	EventDeleted      EventKind = "document.deleted"
)

// Event is published to listeners after a change has been saved.
type Event struct {
	Kind     EventKind      `json:"type"`
	Document model.Document `json:"document"`
	Previous model.Status   `json:"previous,omitempty"`
	ActorID  string         `json:"actorId,omitempty"`
	Actor    string         `json:"actor,omitempty"`
	At       time.Time      `json:"at"`
}

// Listener receives ledger events. Listeners must not call back into the Ledger.
type Listener interface {
	DocumentChanged(ctx context.Context, ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event)

func (f ListenerFunc) DocumentChanged(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Ledger runs the approval operations as read-modify-write cycles against a
// Store. Cycles are serialized so one process never interleaves its own writes.
type Ledger struct {
	store     Store
	rules     Transitions
	listeners []Listener
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	mu        sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTransitions replaces the default forward-only table.
func WithTransitions(t Transitions) Option {
	return func(l *Ledger) { l.rules = t }
}

// WithListener registers a change listener.
func WithListener(lis Listener) Option {
	return func(l *Ledger) { l.listeners = append(l.listeners, lis) }
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		rules:  ForwardOnly(),
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rules returns the active transition table.
func (l *Ledger) Rules() Transitions {
	return l.rules
}

// AddListener registers a listener after construction.
func (l *Ledger) AddListener(lis Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, lis)
}

// List returns the stage view, most recently added first.
func (l *Ledger) List(ctx context.Context, stage Stage) ([]model.Document, error) {
	docs, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	return ListByStage(docs, stage)
}

// Counters returns the dashboard counters of stage.
func (l *Ledger) Counters(ctx context.Context, stage Stage) (Counters, error) {
	docs, err := l.read(ctx)
	if err != nil {
		return Counters{}, err
	}
	return ComputeCounters(docs, stage)
}

// Get returns one document.
func (l *Ledger) Get(ctx context.Context, id string) (model.Document, error) {
	docs, err := l.read(ctx)
	if err != nil {
		return model.Document{}, err
	}
	return FindDocument(docs, id)
}

// Export projects the stage view. Nil columns select the stage defaults.
func (l *Ledger) Export(ctx context.Context, stage Stage, columns []Column) (Projection, error) {
	view, err := l.List(ctx, stage)
	if err != nil {
		return Projection{}, err
	}
	if len(columns) == 0 {
		columns = DefaultColumns(stage)
	}
	return ExportProjection(view, columns)
}

// PrintParams returns the printable form parameters of one document.
func (l *Ledger) PrintParams(ctx context.Context, id string) (url.Values, error) {
	doc, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return PrintParams(doc)
}

// SubmitInput describes a new request coming from the submission forms.
type SubmitInput struct {
	DocType           string
	PurchaseRequestNo string
	RequesterName     string
	RequesterEmail    string
	DepartmentName    string
	SubmissionDate    model.Date
	RequiredDate      model.Date
	Items             []model.LineItem
	Remarks           string
	ActorID           string
}

// Submit appends a new Draft document.
func (l *Ledger) Submit(ctx context.Context, in SubmitInput) (model.Document, error) {
	if strings.TrimSpace(in.RequesterName) == "" {
		return model.Document{}, fmt.Errorf("%w: requester name is required", ErrMalformedInput)
	}
	docType := in.DocType
	if docType == "" {
		docType = model.DocTypePurchaseRequest
	}
	if !model.ValidDocType(docType) {
		return model.Document{}, fmt.Errorf("%w: unknown document type %q", ErrMalformedInput, in.DocType)
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.Description) == "" {
			return model.Document{}, fmt.Errorf("%w: item %d has no description", ErrMalformedInput, i+1)
		}
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return model.Document{}, fmt.Errorf("%w: item %d has a negative amount", ErrMalformedInput, i+1)
		}
	}

	now := l.now()
	submitted := in.SubmissionDate
	if submitted.IsZero() {
		submitted = model.NewDate(now)
	}

	var doc model.Document
	err := l.mutate(ctx, func(docs []model.Document) ([]model.Document, error) {
		doc = model.Document{
			ID:                l.newID(),
			Seq:               nextSeq(docs),
			DocType:           docType,
			PurchaseRequestNo: strings.TrimSpace(in.PurchaseRequestNo),
			RequesterName:     strings.TrimSpace(in.RequesterName),
			RequesterEmail:    strings.TrimSpace(in.RequesterEmail),
			DepartmentName:    strings.TrimSpace(in.DepartmentName),
			SubmissionDate:    submitted,
			RequiredDate:      in.RequiredDate,
			Status:            model.StatusDraft,
			Items:             append([]model.LineItem(nil), in.Items...),
			Remarks:           in.Remarks,
			Version:           1,
			UpdatedAt:         now,
		}
		return append(append([]model.Document(nil), docs...), doc), nil
	})
	if err != nil {
		return model.Document{}, err
	}

	l.logger.Info("document submitted", "id", doc.ID, "pr_no", doc.PurchaseRequestNo, "type", doc.DocType)
	l.publish(ctx, Event{Kind: EventSubmitted, Document: doc, ActorID: in.ActorID, Actor: doc.RequesterName, At: now})
	return doc, nil
}

// TransitionInput is a status change request.
type TransitionInput struct {
	Status          model.Status
	ReceivedDate    *model.Date
	GRDate          *model.Date
	PONumber        *string
	ExpectedVersion int64
	ActorID         string
	Actor           string
}

// Transition moves document id to a new status and persists the collection.
// Receiving without an explicit date stamps today's date.
func (l *Ledger) Transition(ctx context.Context, id string, in TransitionInput) (model.Document, error) {
	if !in.Status.Valid() {
		return model.Document{}, fmt.Errorf("%w: unknown status %q", ErrMalformedInput, in.Status)
	}
	now := l.now()
	fields := Fields{
		ReceivedDate:    in.ReceivedDate,
		GRDate:          in.GRDate,
		PONumber:        in.PONumber,
		Actor:           in.Actor,
		ExpectedVersion: in.ExpectedVersion,
		At:              now,
	}
	if in.Status == model.StatusReceived && fields.ReceivedDate == nil {
		today := model.NewDate(now)
		fields.ReceivedDate = &today
	}

	var (
		previous model.Status
		updated  model.Document
		changed  bool
	)
	err := l.mutate(ctx, func(docs []model.Document) ([]model.Document, error) {
		before, err := FindDocument(docs, id)
		if err != nil {
			return nil, err
		}
		previous = before.Status
		out, err := TransitionStatus(docs, id, in.Status, fields, l.rules)
		if err != nil {
			return nil, err
		}
		updated, _ = FindDocument(out, id)
		changed = updated.Version != before.Version
		if !changed {
			return nil, errUnchanged
		}
		return out, nil
	})
	if err != nil {
		return model.Document{}, err
	}
	if !changed {
		return updated, nil
	}

	l.logger.Info("document transitioned", "id", id, "from", previous, "to", updated.Status, "actor", in.Actor)
	l.publish(ctx, Event{Kind: EventTransitioned, Document: updated, Previous: previous, ActorID: in.ActorID, Actor: in.Actor, At: now})
	return updated, nil
}

// Delete removes document id.
func (l *Ledger) Delete(ctx context.Context, id, actorID, actor string) error {
	var removed model.Document
	err := l.mutate(ctx, func(docs []model.Document) ([]model.Document, error) {
		doc, err := FindDocument(docs, id)
		if err != nil {
			return nil, err
		}
		removed = doc
		return DeleteDocument(docs, id)
	})
	if err != nil {
		return err
	}

	l.logger.Info("document deleted", "id", id, "actor", actor)
	l.publish(ctx, Event{Kind: EventDeleted, Document: removed, Previous: removed.Status, ActorID: actorID, Actor: actor, At: l.now()})
	return nil
}

// errUnchanged short-circuits mutate when there is nothing to write.
var errUnchanged = errors.New("ledger: unchanged")

// mutate performs one serialized load-apply-save cycle.
func (l *Ledger) mutate(ctx context.Context, apply func([]model.Document) ([]model.Document, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	docs, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %v", ErrStoreUnavailable, err)
	}
	out, err := apply(docs)
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := l.save(ctx, docs, out); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return fmt.Errorf("%w: save: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// save writes out, as a change set against loaded when the store supports it.
func (l *Ledger) save(ctx context.Context, loaded, out []model.Document) error {
	cs, ok := l.store.(ChangeStore)
	if !ok {
		return l.store.Save(ctx, out)
	}
	changes := Diff(loaded, out)
	if len(changes) == 0 {
		return nil
	}
	return cs.SaveChanges(ctx, changes)
}

// read loads the collection for a read-only view. A corrupt store reads as
// empty; any other failure is reported.
func (l *Ledger) read(ctx context.Context) ([]model.Document, error) {
	docs, err := l.store.Load(ctx)
	if err == nil {
		return docs, nil
	}
	if errors.Is(err, ErrCorruptStore) {
		l.logger.Warn("document store unreadable, serving empty collection", "error", err)
		return []model.Document{}, nil
	}
	return nil, fmt.Errorf("%w: load: %v", ErrStoreUnavailable, err)
}

func (l *Ledger) publish(ctx context.Context, ev Event) {
	l.mu.Lock()
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()
	for _, lis := range listeners {
		lis.DocumentChanged(ctx, ev)
	}
}

func nextSeq(docs []model.Document) int64 {
	var maxSeq int64
	for _, d := range docs {
		if d.Seq > maxSeq {
			maxSeq = d.Seq
		}
	}
	return maxSeq + 1
}
