package model

import "github.com/rotisserie/eris"

// Failure taxonomy. Field-level and record-level failures are contained and
// logged; none of them aborts a run.
var (
	// ErrInvalidIdentifier marks a malformed registry identifier. The field
	// is dropped; the record still proceeds.
	ErrInvalidIdentifier = eris.New("invalid identifier")

	// ErrUnresolvableRecord marks a record carrying neither an identifier nor
	// a name. The record is skipped and logged for manual inspection.
	ErrUnresolvableRecord = eris.New("unresolvable record")

	// ErrEnrichmentTimeout marks a model call that exceeded its deadline. The
	// field is left unresolved this pass and retried on a future pass.
	ErrEnrichmentTimeout = eris.New("enrichment timeout")

	// ErrEnrichmentValidation marks a model response rejected by the field's
	// grammar. Triggers the fallback classifier; never propagates.
	ErrEnrichmentValidation = eris.New("enrichment validation failure")

	// ErrModelUnavailable marks the model boundary as unreachable. The
	// orchestrator degrades to fallback-only mode for the rest of the run.
	ErrModelUnavailable = eris.New("model unavailable")
)
