/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentationex

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/hyperledger/aries-framework-go/pkg/doc/presexch"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	"github.com/piprate/json-gold/ld"

	"github.com/trustbloc/siop-agent/pkg/internal/common/adapterutil"
	"github.com/trustbloc/siop-agent/pkg/siop"
)

const (
	submissionProperty = "presentation_submission"
	credentialProperty = "verifiableCredential"
)

// PresExchEvaluator evaluates presentation definitions with the aries presentation exchange implementation.
type PresExchEvaluator struct {
	documentLoader ld.DocumentLoader
	credOpts       []verifiable.CredentialOpt
}

// NewEvaluator returns an evaluator framing credentials with documentLoader.
func NewEvaluator(documentLoader ld.DocumentLoader, opts ...verifiable.CredentialOpt) *PresExchEvaluator {
	return &PresExchEvaluator{documentLoader: documentLoader, credOpts: opts}
}

// Evaluate returns a presentation of the credentials matching the definition, with its presentation_submission.
func (e *PresExchEvaluator) Evaluate(definition *presexch.PresentationDefinition,
	credentials []*verifiable.Credential) (*verifiable.Presentation, error) {
	if err := validateDefinition(definition); err != nil {
		return nil, err
	}

	vp, err := definition.CreateVP(credentials, e.documentLoader, e.credOpts...)
	if errors.Is(err, presexch.ErrNoCredentials) {
		return nil, fmt.Errorf("%w: %s", siop.ErrNoMatchingCredentials, err.Error())
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrDefinitionInvalid, err.Error())
	}

	if err = checkSubmission(vp); err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrDefinitionInvalid, err.Error())
	}

	return vp, nil
}

// checkSubmission checks that every descriptor_map path of the submission selects a credential of the presentation.
func checkSubmission(vp *verifiable.Presentation) error {
	var doc map[string]interface{}

	if err := adapterutil.DecodeJSON(vp, &doc); err != nil {
		return err
	}

	raw, ok := doc[submissionProperty]
	if !ok {
		return errors.New("presentation has no presentation_submission")
	}

	submission := &presexch.PresentationSubmission{}

	if err := remarshal(raw, submission); err != nil {
		return fmt.Errorf("read presentation_submission: %w", err)
	}

	if vc, isObject := doc[credentialProperty].(map[string]interface{}); isObject {
		doc[credentialProperty] = []interface{}{vc}
	}

	for _, mapping := range submission.DescriptorMap {
		selected, err := jsonpath.Get(mapping.Path, doc)
		if err != nil {
			return fmt.Errorf("descriptor %s: path %s: %w", mapping.ID, mapping.Path, err)
		}

		if selected == nil {
			return fmt.Errorf("descriptor %s: path %s selects nothing", mapping.ID, mapping.Path)
		}
	}

	return nil
}

func remarshal(in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, out)
}

func validateDefinition(definition *presexch.PresentationDefinition) error {
	if definition == nil {
		return fmt.Errorf("%w: missing presentation definition", siop.ErrDefinitionInvalid)
	}

	if err := definition.ValidateSchema(); err != nil {
		return fmt.Errorf("%w: %s", siop.ErrDefinitionInvalid, err.Error())
	}

	return nil
}
