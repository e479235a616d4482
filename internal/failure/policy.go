package failure

import "sort"

// ClassPolicy describes one failure class of the retry policy document.
type ClassPolicy struct {
	Retryable          bool  `json:"retryable"`
	TransientHTTPCodes []int `json:"transient_http_codes,omitempty"`
}

// PolicyDocument is the machine-readable retry policy exposed to
// operational tooling. It must stay in lockstep with Classify; the
// published docs/retry-policy.json copy is asserted against it in tests.
type PolicyDocument struct {
	Version        string               `json:"version"`
	FailureClasses map[Code]ClassPolicy `json:"failure_classes"`
}

// Policy returns the retry policy the classifier implements.
func Policy() PolicyDocument {
	codes := make([]int, 0, len(transientStatuses))
	for code := range transientStatuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return PolicyDocument{
		Version: "1.0",
		FailureClasses: map[Code]ClassPolicy{
			CodeProviderTransient: {Retryable: true, TransientHTTPCodes: codes},
			CodeProviderPermanent: {Retryable: false},
			CodeValidation:        {Retryable: false},
			CodeSystem:            {Retryable: false},
		},
	}
}
