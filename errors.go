package topictrends

import (
	"errors"
	"fmt"

	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/pageview"
	"github.com/santhoshtr/topictrends/taxonomy"
	"github.com/santhoshtr/topictrends/titles"
)

var (
	// ErrNotFound is returned when a wiki, QID, title or snapshot is
	// not known.
	ErrNotFound = errors.New("topictrends: not found")

	// ErrDateOutOfRange is returned when a query range reaches before
	// the first served day or beyond today.
	ErrDateOutOfRange = errors.New("topictrends: date out of range")

	// ErrExternalUnavailable is returned when the embedding server or
	// the vector store cannot be reached. Only SearchCategories and
	// IndexTaxonomy depend on them; every other query is unaffected.
	ErrExternalUnavailable = errors.New("topictrends: external service unavailable")

	// ErrMalformed is returned when a topology snapshot fails decoding
	// or consistency checks. The failure is fatal for that wiki's load
	// only; a previously served corpus stays in service.
	ErrMalformed = errors.New("topictrends: malformed snapshot")

	// ErrSemanticDisabled is returned by SearchCategories and
	// IndexTaxonomy when no embedding server and vector store were
	// configured.
	ErrSemanticDisabled = errors.New("topictrends: semantic search not configured")
)

// translateError normalizes subpackage errors into the package
// vocabulary. The original error stays wrapped, so callers can still
// reach the structured context (wiki, QID, date bounds) via errors.As.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	var unknownQID *corpus.ErrUnknownQID
	if errors.As(err, &unknownQID) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var notLoaded *corpus.ErrWikiNotLoaded
	if errors.As(err, &notLoaded) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var noTitle *titles.TitleNotFoundError
	if errors.As(err, &noTitle) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, corpus.ErrNoSnapshot) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var outOfRange *pageview.DateRangeError
	if errors.As(err, &outOfRange) {
		return fmt.Errorf("%w: %w", ErrDateOutOfRange, err)
	}

	var malformed *corpus.ErrMalformed
	if errors.As(err, &malformed) {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var external *taxonomy.ExternalError
	if errors.As(err, &external) {
		return fmt.Errorf("%w: %w", ErrExternalUnavailable, err)
	}

	return err
}
