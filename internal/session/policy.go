package session

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	stderrors "session-sentinel/internal/common/errors"
)

// policyDocumentSchema constrains the per-deployment policy override file.
// Both fields are required so a partial document cannot silently mix file
// values with defaults.
const policyDocumentSchema = `{
	"type": "object",
	"properties": {
		"inactivity_timeout_seconds": {"type": "integer", "minimum": 60},
		"warning_threshold_seconds":  {"type": "integer", "minimum": 10}
	},
	"required": ["inactivity_timeout_seconds", "warning_threshold_seconds"],
	"additionalProperties": false
}`

type policyDocument struct {
	InactivityTimeoutSeconds int `json:"inactivity_timeout_seconds"`
	WarningThresholdSeconds  int `json:"warning_threshold_seconds"`
}

// LoadPolicyFile reads and validates a JSON policy override document.
// Deployments without a policy file keep the configured defaults.
func LoadPolicyFile(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, stderrors.NewPolicyInvalidError(fmt.Sprintf("read %s: %v", path, err))
	}

	schemaLoader := gojsonschema.NewStringLoader(policyDocumentSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return Policy{}, stderrors.NewPolicyInvalidError(fmt.Sprintf("validate %s: %v", path, err))
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return Policy{}, stderrors.NewPolicyInvalidError(strings.Join(details, "; "))
	}

	var doc policyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Policy{}, stderrors.NewPolicyInvalidError(err.Error())
	}

	policy := Policy{
		InactivityTimeout: time.Duration(doc.InactivityTimeoutSeconds) * time.Second,
		WarningThreshold:  time.Duration(doc.WarningThresholdSeconds) * time.Second,
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, stderrors.NewPolicyInvalidError(err.Error())
	}

	return policy, nil
}
