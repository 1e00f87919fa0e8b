/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentationex

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/pkg/doc/presexch"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	"github.com/trustbloc/edge-core/pkg/log"
	"golang.org/x/sync/errgroup"

	"github.com/trustbloc/siop-agent/pkg/siop"
)

var logger = log.New("siop-agent/presentationex")

// Matcher selects held credentials for the presentation definitions of a verified request.
type Matcher struct {
	evaluator Evaluator
}

// NewMatcher returns a Matcher.
func NewMatcher(evaluator Evaluator) *Matcher {
	return &Matcher{evaluator: evaluator}
}

// Match evaluates every presentation definition of the request concurrently and returns one submission per
// definition, in declaration order. It fails if any definition is invalid or cannot be satisfied, in which
// case no submission is returned. Definitions are schema checked in declaration order before any is
// evaluated, so an invalid definition is always reported ahead of an unsatisfied one.
// A request without definitions yields an empty sequence.
func (m *Matcher) Match(ctx context.Context, verified *siop.VerifiedRequest,
	credentials []*verifiable.Credential) ([]*siop.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refs := verified.Request.PresentationDefinitions
	submissions := make([]*siop.Submission, len(refs))

	if len(refs) == 0 {
		return submissions, nil
	}

	for _, ref := range refs {
		if err := validateDefinition(ref.Definition); err != nil {
			err = definitionError(ref, err)
			logger.Warnf("presentation matching failed: %s", err)

			return nil, err
		}
	}

	errs := make([]error, len(refs))

	g, gctx := errgroup.WithContext(ctx)

	for i, ref := range refs {
		i, ref := i, ref
		held := append([]*verifiable.Credential(nil), credentials...)

		g.Go(func() error {
			vp, err := m.evaluate(gctx, ref.Definition, held)
			if err != nil {
				errs[i] = definitionError(ref, err)

				return errs[i]
			}

			submissions[i] = &siop.Submission{
				Location:     ref.Location,
				Format:       siop.FormatLDPVP,
				DefinitionID: definitionID(ref),
				Presentation: vp,
			}

			return nil
		})
	}

	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if waitErr != nil {
		if err := firstFailure(errs); err != nil {
			waitErr = err
		}

		logger.Warnf("presentation matching failed: %s", waitErr)

		return nil, waitErr
	}

	return submissions, nil
}

func (m *Matcher) evaluate(ctx context.Context, definition *presexch.PresentationDefinition,
	credentials []*verifiable.Credential) (*verifiable.Presentation, error) {
	type result struct {
		vp  *verifiable.Presentation
		err error
	}

	ch := make(chan result, 1)

	go func() {
		vp, err := m.evaluator.Evaluate(definition, credentials)
		ch <- result{vp: vp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.vp, r.err
	}
}

func definitionID(ref *siop.PresentationDefinitionRef) string {
	if ref.Definition == nil {
		return ""
	}

	return ref.Definition.ID
}

func definitionError(ref *siop.PresentationDefinitionRef, err error) error {
	id := definitionID(ref)

	switch {
	case errors.Is(err, siop.ErrNoMatchingCredentials):
		return &siop.NoMatchingCredentialsError{DefinitionID: id, Location: ref.Location, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("presentation definition %q (%s): %w", id, ref.Location, err)
	}
}

// firstFailure reports a definition the evaluator found invalid first, then the first failed definition
// in declaration order. Evaluations abandoned because a sibling failed are skipped.
func firstFailure(errs []error) error {
	var first error

	for _, err := range errs {
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}

		if errors.Is(err, siop.ErrDefinitionInvalid) {
			return err
		}

		if first == nil {
			first = err
		}
	}

	return first
}
