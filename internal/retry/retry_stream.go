package retry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/domain/patch"
	"github.com/riverpatch/uistream/internal/generator"
)

// Emit is called for every validated StreamEvent the Retry Stream produces,
// in order. The Processor supplies this to perform the dual-write
// (allocate offset, publish, persist); a non-nil error from Emit is
// treated as fatal to the whole Run call, since it represents a fault in
// the downstream pipeline rather than a recoverable generator fault.
type Emit func(model.StreamEvent) error

// Run wraps a single generator invocation as a stream of validated
// StreamEvents, recovering from ParseError, PatchValidationError, and
// GeneratorTransportError by issuing a corrective continuation, up to
// maxAttempts total attempts. doc is the session's scratch document; it is
// never reset between attempts, and neither is the accepted-patch count, so
// a corrective continuation can never cause a subscriber to see a
// duplicate patch.
//
// On success, Run emits a terminal Stats event (usage accumulated across
// every attempt) followed by a Done event carrying the scratch document's
// final HTML, then returns nil. On exhausting maxAttempts it returns
// *model.MaxAttemptsExceeded.
func Run(ctx context.Context, gen generator.Generator, validator *patch.Validator, doc *patch.Document, initial generator.StreamRequest, maxAttempts int, emit Emit) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var acceptedPatches []model.Patch
	var usage generator.Usage
	req := initial
	var lastErr error
	attempt := 0

	for attempt < maxAttempts {
		attempt++

		stream, err := gen.OpenStream(ctx, req)
		if err != nil {
			lastErr = &model.GeneratorTransportError{Cause: err}
			req = correctiveRequest(req, doc, acceptedPatches, lastErr)
			continue
		}

		finished, recErr, fatalErr := runAttempt(ctx, stream, validator, doc, &acceptedPatches, &usage, emit)
		if fatalErr != nil {
			return fatalErr
		}

		if finished {
			statsEv := model.NewStatsEvent(usage.CacheHitRatio, usage.TokensPerSecond, req.Model, len(acceptedPatches))
			if err := emit(statsEv); err != nil {
				return err
			}
			// doc.HTML() only reflects the last Full/SetHTML snapshot: ids
			// introduced by append/prepend/set-inner-html patches are
			// tracked for selector validation but never folded back into
			// the scratch HTML string itself, so a Done persisted after a
			// run of id-only patches won't carry their markup across an
			// eviction-and-restart.
			doneEv := model.NewDoneEvent(doc.HTML())
			return emit(doneEv)
		}

		lastErr = recErr
		req = correctiveRequest(req, doc, acceptedPatches, recErr)
	}

	return &model.MaxAttemptsExceeded{SessionID: initial.SessionID, Attempts: attempt, Last: lastErr}
}

// runAttempt drives one generator stream to completion, emitting validated
// events as they're produced. finished=true means the stream reached its
// terminal record cleanly. recErr is a recoverable generator-side fault;
// fatalErr is a downstream (Emit) failure that must abort the whole Run.
func runAttempt(
	ctx context.Context,
	stream generator.TokenStream,
	validator *patch.Validator,
	doc *patch.Document,
	acceptedPatches *[]model.Patch,
	usage *generator.Usage,
	emit Emit,
) (finished bool, recErr error, fatalErr error) {
	defer stream.Close()

	acc := NewLineAccumulator()

	for {
		tok, err := stream.Next(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			return false, &model.GeneratorTransportError{Cause: err}, nil
		}

		switch tok.Kind {
		case generator.TokenText:
			for _, line := range acc.Feed(tok.Text) {
				ev, perr := ParseLine(line)
				if perr != nil {
					return false, perr, nil
				}

				switch ev.Kind {
				case model.EventKindPatches:
					if verr := validator.ApplyAll(doc, ev.Patches); verr != nil {
						return false, verr, nil
					}
					*acceptedPatches = append(*acceptedPatches, ev.Patches...)
					if e := emit(ev); e != nil {
						return false, nil, e
					}

				case model.EventKindFull:
					doc.SetHTML(ev.HTML)
					if e := emit(ev); e != nil {
						return false, nil, e
					}
				}
			}

		case generator.TokenFinishStep, generator.TokenFinish:
			mergeUsage(usage, tok.Usage)
		}

		if errors.Is(err, io.EOF) {
			return true, nil, nil
		}
	}
}

func mergeUsage(acc *generator.Usage, next generator.Usage) {
	acc.PromptTokens += next.PromptTokens
	acc.CompletionTokens += next.CompletionTokens
	if next.CacheHitRatio != 0 {
		acc.CacheHitRatio = next.CacheHitRatio
	}
	if next.TokensPerSecond != 0 {
		acc.TokensPerSecond = next.TokensPerSecond
	}
}

// correctiveRequest builds the next attempt's request: the original batch
// plus a structured description of what went wrong and what was already
// accepted, so the generator doesn't repeat accepted patches.
func correctiveRequest(prev generator.StreamRequest, doc *patch.Document, accepted []model.Patch, cause error) generator.StreamRequest {
	next := prev
	next.CurrentHTML = doc.HTML()
	next.Corrections = append(append([]string{}, prev.Corrections...),
		fmt.Sprintf("previous attempt failed (%v); %d patches already accepted must not be repeated", cause, len(accepted)))
	return next
}
