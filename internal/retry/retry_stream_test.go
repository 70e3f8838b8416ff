package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/domain/patch"
	"github.com/riverpatch/uistream/internal/generator"
)

func TestRun_HappyPath_EmitsEventsThenStatsAndDone(t *testing.T) {
	gen := generator.NewMockGenerator()
	gen.Script("s",
		`{"type":"patches","patches":[{"selector":"#root","text":"hello"}]}`+"\n",
	)

	doc := patch.NewDocument(`<div id="root"></div>`)
	validator := patch.NewValidator()

	var emitted []model.StreamEvent
	emit := func(ev model.StreamEvent) error {
		emitted = append(emitted, ev)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := Run(ctx, gen, validator, doc, generator.StreamRequest{SessionID: "s"}, 3, emit)
	require.NoError(t, err)
	require.Len(t, emitted, 3) // patches, stats, done
	require.Equal(t, model.EventKindPatches, emitted[0].Kind)
	require.Equal(t, model.EventKindStats, emitted[1].Kind)
	require.Equal(t, model.EventKindDone, emitted[2].Kind)
}

func TestRun_RetryRecovery_SeamlessSingleStream(t *testing.T) {
	// S6: attempt 0 emits a valid patch against #a then an invalid patch
	// against a selector that doesn't exist; attempt 1 (corrective) emits
	// two valid patches against #a and #b. Expected: three patches in two
	// patch events (attempt 0's single patch, then attempt 1's pair).
	gen := generator.NewMockGenerator()
	gen.Script("s",
		`{"type":"patches","patches":[{"selector":"#a","text":"one"}]}`+"\n"+
			`{"type":"patches","patches":[{"selector":"#does-not-exist","text":"x"}]}`+"\n",
	)
	gen.Script("s",
		`{"type":"patches","patches":[{"selector":"#a","text":"one-again"},{"selector":"#b","text":"two"}]}`+"\n",
	)

	doc := patch.NewDocument(`<div id="a"></div><div id="b"></div>`)
	validator := patch.NewValidator()

	var emitted []model.StreamEvent
	emit := func(ev model.StreamEvent) error {
		emitted = append(emitted, ev)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := Run(ctx, gen, validator, doc, generator.StreamRequest{SessionID: "s"}, 3, emit)
	require.NoError(t, err)

	var patchEvents int
	for _, ev := range emitted {
		if ev.Kind == model.EventKindPatches {
			patchEvents++
		}
	}
	require.Equal(t, 2, patchEvents, "one valid patch from attempt 0, one batch of two from attempt 1")

	// The corrective continuation must have seen the failure context.
	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Corrections, 1)
}

func TestRun_MaxAttemptsExceeded(t *testing.T) {
	gen := generator.NewMockGenerator()
	for i := 0; i < 3; i++ {
		gen.Script("s", `not valid json`+"\n")
	}

	doc := patch.NewDocument(`<div id="root"></div>`)
	validator := patch.NewValidator()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := Run(ctx, gen, validator, doc, generator.StreamRequest{SessionID: "s"}, 3, func(model.StreamEvent) error { return nil })
	require.Error(t, err)

	var maxErr *model.MaxAttemptsExceeded
	require.ErrorAs(t, err, &maxErr)
	require.Equal(t, 3, maxErr.Attempts)
}

func TestRun_EmptyStreamStillEmitsStatsAndDone(t *testing.T) {
	gen := generator.NewMockGenerator()
	// No script queued: MockGenerator's OpenStream yields an empty stream.

	doc := patch.NewDocument(`<div id="root"></div>`)
	validator := patch.NewValidator()

	var kinds []model.StreamEventKind
	emit := func(ev model.StreamEvent) error {
		kinds = append(kinds, ev.Kind)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := Run(ctx, gen, validator, doc, generator.StreamRequest{SessionID: "s"}, 1, emit)
	require.NoError(t, err)
	require.Equal(t, []model.StreamEventKind{model.EventKindStats, model.EventKindDone}, kinds)
}
