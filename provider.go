package blobx

import "fmt"

// Provider identifies an object-storage backend. The set is closed.
type Provider string

const (
	ProviderAWSS3 Provider = "AWS_S3"
	ProviderGCP   Provider = "GCP"
	ProviderMinIO Provider = "MINIO"
)

// knownProviders is the canonical ordering used for listings.
var knownProviders = []Provider{ProviderAWSS3, ProviderGCP, ProviderMinIO}

// KnownProviders returns every supported provider tag.
func KnownProviders() []Provider {
	out := make([]Provider, len(knownProviders))
	copy(out, knownProviders)
	return out
}

// IsValid reports whether p is one of the supported tags.
func (p Provider) IsValid() bool {
	for _, k := range knownProviders {
		if p == k {
			return true
		}
	}
	return false
}

func (p Provider) String() string { return string(p) }

// ParseProvider matches s exactly (case-sensitive) against the supported
// tags. Anything else is ErrInvalidProvider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProvider, s)
	}
	return p, nil
}

func providerRank(p Provider) int {
	for i, k := range knownProviders {
		if p == k {
			return i
		}
	}
	return len(knownProviders)
}
