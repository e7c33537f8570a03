package corpus

import (
	"errors"
	"fmt"

	"github.com/santhoshtr/topictrends/core"
)

// IDKind distinguishes the two dense id spaces of a corpus.
type IDKind string

const (
	KindArticle  IDKind = "article"
	KindCategory IDKind = "category"
)

// ErrNoSnapshot is returned when a wiki directory has no CURRENT pointer.
var ErrNoSnapshot = errors.New("corpus: no snapshot available")

// Consistency failures surfaced as the cause of an ErrMalformed.
var (
	errMissingTable     = errors.New("table missing from manifest")
	errSizeMismatch     = errors.New("file size does not match manifest")
	errChecksumMismatch = errors.New("file checksum does not match manifest")
	errRowMismatch      = errors.New("row count does not match manifest")
)

// ErrUnknownQID indicates a QID not present in the corpus dense maps.
type ErrUnknownQID struct {
	Kind IDKind
	QID  core.QID
}

func (e *ErrUnknownQID) Error() string {
	return fmt.Sprintf("unknown %s qid %s", e.Kind, e.QID)
}

// ErrWikiNotLoaded indicates no corpus is in service for the wiki.
type ErrWikiNotLoaded struct {
	Wiki string
}

func (e *ErrWikiNotLoaded) Error() string {
	return fmt.Sprintf("wiki %q not loaded", e.Wiki)
}

// ErrMalformed indicates a corrupted or inconsistent topology snapshot.
// Loads failing with ErrMalformed are fatal for that corpus only.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMalformed struct {
	Wiki  string
	Path  string
	cause error
}

func (e *ErrMalformed) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("malformed snapshot for %s: %s", e.Wiki, e.Path)
	}
	return fmt.Sprintf("malformed snapshot for %s: %s: %v", e.Wiki, e.Path, e.cause)
}

func (e *ErrMalformed) Unwrap() error { return e.cause }

func malformed(wiki, path string, cause error) *ErrMalformed {
	return &ErrMalformed{Wiki: wiki, Path: path, cause: cause}
}
