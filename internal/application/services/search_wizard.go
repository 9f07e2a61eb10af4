package services

import (
	"context"
	"errors"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
)

// WizardStep is a position in the three-step search flow.
type WizardStep int

const (
	StepLocation WizardStep = 1
	StepRefine   WizardStep = 2
	StepResults  WizardStep = 3
)

// Valid reports whether s is one of the three steps.
func (s WizardStep) Valid() bool {
	return s >= StepLocation && s <= StepResults
}

// ErrPlaceRequired is returned when a gated transition is refused because no
// place was entered. The wizard state is left unchanged.
var ErrPlaceRequired = errors.New("enter a city or an address to continue")

// Field is an input of the search form.
type Field string

const (
	FieldPlace     Field = "place"
	FieldCategory  Field = "category"
	FieldRadius    Field = "radius"
	FieldSort      Field = "sort"
	FieldPhotoOnly Field = "photo_only"
	FieldDate      Field = "date"
)

// FieldSet is an ordered set of form inputs.
type FieldSet []Field

// Contains reports whether f is in the set
func (s FieldSet) Contains(f Field) bool {
	for _, candidate := range s {
		if candidate == f {
			return true
		}
	}
	return false
}

// VisibleFields returns the inputs shown at step. The results step only keeps
// the quick category picks; unknown steps show nothing.
func VisibleFields(step WizardStep) FieldSet {
	switch step {
	case StepLocation:
		return FieldSet{FieldPlace, FieldCategory, FieldRadius, FieldSort, FieldPhotoOnly}
	case StepRefine:
		return FieldSet{FieldCategory, FieldDate}
	case StepResults:
		return FieldSet{FieldCategory}
	default:
		return FieldSet{}
	}
}

// StepStore persists the current step between visits.
type StepStore interface {
	SaveStep(ctx context.Context, step int)
	LoadStep(ctx context.Context) (int, bool)
}

// SearchWizard tracks the step of the search flow. It is not safe for
// concurrent use; SearchSession serializes access.
type SearchWizard struct {
	step         WizardStep
	gated        bool
	store        StepStore
	onStepChange func(from, to WizardStep)
}

// NewSearchWizard hydrates the step from store. A missing or invalid stored
// step starts at StepLocation. store may be nil.
func NewSearchWizard(ctx context.Context, store StepStore, gated bool) *SearchWizard {
	w := &SearchWizard{step: StepLocation, gated: gated, store: store}
	if store != nil {
		if stored, ok := store.LoadStep(ctx); ok && WizardStep(stored).Valid() {
			w.step = WizardStep(stored)
		}
	}
	return w
}

// OnStepChange registers fn to run after every step change.
func (w *SearchWizard) OnStepChange(fn func(from, to WizardStep)) {
	w.onStepChange = fn
}

// Step returns the current step
func (w *SearchWizard) Step() WizardStep {
	return w.step
}

// Gated reports whether leaving the location step requires a place.
func (w *SearchWizard) Gated() bool {
	return w.gated
}

// Advance moves one step forward. In gated mode leaving StepLocation requires
// a place. Advancing from StepResults does nothing.
func (w *SearchWizard) Advance(ctx context.Context, criteria entities.SearchCriteria) error {
	if w.step >= StepResults {
		return nil
	}
	if w.step == StepLocation && w.gated && !criteria.HasPlace() {
		return ErrPlaceRequired
	}
	w.setStep(ctx, w.step+1)
	return nil
}

// Retreat moves one step back, stopping at StepLocation.
func (w *SearchWizard) Retreat(ctx context.Context) {
	if w.step <= StepLocation {
		return
	}
	w.setStep(ctx, w.step-1)
}

// Submit jumps to StepResults from any step, subject to the same place gate.
func (w *SearchWizard) Submit(ctx context.Context, criteria entities.SearchCriteria) error {
	if w.gated && !criteria.HasPlace() {
		return ErrPlaceRequired
	}
	w.setStep(ctx, StepResults)
	return nil
}

// Reset returns to the location step
func (w *SearchWizard) Reset(ctx context.Context) {
	w.setStep(ctx, StepLocation)
}

// GoTo sets the step directly. Invalid steps are ignored.
func (w *SearchWizard) GoTo(ctx context.Context, step WizardStep) bool {
	if !step.Valid() {
		return false
	}
	w.setStep(ctx, step)
	return true
}

func (w *SearchWizard) setStep(ctx context.Context, step WizardStep) {
	if step == w.step {
		return
	}
	from := w.step
	w.step = step
	if w.store != nil {
		w.store.SaveStep(ctx, int(step))
	}
	if w.onStepChange != nil {
		w.onStepChange(from, step)
	}
}
