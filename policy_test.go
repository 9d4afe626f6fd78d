package blobx_test

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/gostratum/blobx"
	"github.com/gostratum/blobx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allProviders = []blobx.Provider{blobx.ProviderAWSS3, blobx.ProviderGCP, blobx.ProviderMinIO}

// sequence returns the queued values in order, wrapping around.
type sequence struct {
	values []int
	i      int
}

func (s *sequence) IntN(n int) int {
	v := s.values[s.i%len(s.values)] % n
	s.i++
	return v
}

func TestRandomPolicy(t *testing.T) {
	t.Run("always returns a registered provider", func(t *testing.T) {
		p, err := blobx.NewRandomPolicy(allProviders[:2], rand.New(rand.NewPCG(1, 2)))
		require.NoError(t, err)

		seen := map[blobx.Provider]int{}
		for i := 0; i < 200; i++ {
			seen[p.Choose()]++
		}
		assert.Len(t, seen, 2)
		assert.Zero(t, seen[blobx.ProviderMinIO])
	})

	t.Run("single provider is constant", func(t *testing.T) {
		p, err := blobx.NewRandomPolicy([]blobx.Provider{blobx.ProviderGCP}, nil)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			assert.Equal(t, blobx.ProviderGCP, p.Choose())
		}
	})

	t.Run("follows the randomizer", func(t *testing.T) {
		p, err := blobx.NewRandomPolicy(allProviders, &sequence{values: []int{2, 0, 1}})
		require.NoError(t, err)
		assert.Equal(t, blobx.ProviderMinIO, p.Choose())
		assert.Equal(t, blobx.ProviderAWSS3, p.Choose())
		assert.Equal(t, blobx.ProviderGCP, p.Choose())
	})

	t.Run("no providers", func(t *testing.T) {
		_, err := blobx.NewRandomPolicy(nil, nil)
		assert.ErrorIs(t, err, blobx.ErrNoProviders)
	})

	t.Run("concurrent use", func(t *testing.T) {
		p, err := blobx.NewRandomPolicy(allProviders, rand.New(rand.NewPCG(3, 4)))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					assert.Contains(t, allProviders, p.Choose())
				}
			}()
		}
		wg.Wait()
	})
}

func TestRoundRobinPolicy(t *testing.T) {
	p, err := blobx.NewRoundRobinPolicy(allProviders)
	require.NoError(t, err)

	var got []blobx.Provider
	for i := 0; i < 6; i++ {
		got = append(got, p.Choose())
	}
	assert.Equal(t, []blobx.Provider{
		blobx.ProviderAWSS3, blobx.ProviderGCP, blobx.ProviderMinIO,
		blobx.ProviderAWSS3, blobx.ProviderGCP, blobx.ProviderMinIO,
	}, got)

	_, err = blobx.NewRoundRobinPolicy(nil)
	assert.ErrorIs(t, err, blobx.ErrNoProviders)
}

func TestWeightedPolicy(t *testing.T) {
	weights := map[blobx.Provider]int{blobx.ProviderAWSS3: 3, blobx.ProviderGCP: 1}

	p, err := blobx.NewWeightedPolicy(allProviders[:2], weights, &sequence{values: []int{0, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, blobx.ProviderAWSS3, p.Choose())
	assert.Equal(t, blobx.ProviderAWSS3, p.Choose())
	assert.Equal(t, blobx.ProviderGCP, p.Choose())

	tests := []struct {
		name      string
		providers []blobx.Provider
		weights   map[blobx.Provider]int
		wantErr   error
	}{
		{
			name:    "no providers",
			weights: weights,
			wantErr: blobx.ErrNoProviders,
		},
		{
			name:      "missing weight",
			providers: allProviders,
			weights:   weights,
			wantErr:   blobx.ErrInvalidConfig,
		},
		{
			name:      "zero weight",
			providers: allProviders[:2],
			weights:   map[blobx.Provider]int{blobx.ProviderAWSS3: 1, blobx.ProviderGCP: 0},
			wantErr:   blobx.ErrInvalidConfig,
		},
		{
			name:      "weight for unregistered provider",
			providers: allProviders[:1],
			weights:   weights,
			wantErr:   blobx.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := blobx.NewWeightedPolicy(tt.providers, tt.weights, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFixedPolicy(t *testing.T) {
	p, err := blobx.NewFixedPolicy(allProviders, blobx.ProviderGCP)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.Equal(t, blobx.ProviderGCP, p.Choose())
	}

	_, err = blobx.NewFixedPolicy(allProviders[:1], blobx.ProviderGCP)
	assert.ErrorIs(t, err, blobx.ErrUnknownProvider)

	_, err = blobx.NewFixedPolicy(nil, blobx.ProviderGCP)
	assert.ErrorIs(t, err, blobx.ErrNoProviders)
}

func TestNewPolicy(t *testing.T) {
	reg, err := blobx.NewRegistry(
		blobx.Registration{Provider: blobx.ProviderAWSS3, Backend: testutil.NewMemoryBackend(blobx.ProviderAWSS3)},
		blobx.Registration{Provider: blobx.ProviderGCP, Backend: testutil.NewMemoryBackend(blobx.ProviderGCP)},
	)
	require.NoError(t, err)

	tests := []struct {
		name    string
		cfg     blobx.PolicyConfig
		want    any
		wantErr error
	}{
		{name: "default is random", cfg: blobx.PolicyConfig{}, want: &blobx.RandomPolicy{}},
		{name: "random", cfg: blobx.PolicyConfig{Name: blobx.PolicyRandom}, want: &blobx.RandomPolicy{}},
		{name: "round robin", cfg: blobx.PolicyConfig{Name: blobx.PolicyRoundRobin}, want: &blobx.RoundRobinPolicy{}},
		{
			name: "weighted",
			cfg:  blobx.PolicyConfig{Name: blobx.PolicyWeighted, Weights: map[string]int{"AWS_S3": 2, "GCP": 1}},
			want: &blobx.WeightedPolicy{},
		},
		{
			name:    "weighted with bad tag",
			cfg:     blobx.PolicyConfig{Name: blobx.PolicyWeighted, Weights: map[string]int{"S3": 2}},
			wantErr: blobx.ErrInvalidProvider,
		},
		{name: "fixed", cfg: blobx.PolicyConfig{Name: blobx.PolicyFixed, FixedProvider: "GCP"}, want: &blobx.FixedPolicy{}},
		{
			name:    "fixed lowercase tag",
			cfg:     blobx.PolicyConfig{Name: blobx.PolicyFixed, FixedProvider: "gcp"},
			wantErr: blobx.ErrInvalidProvider,
		},
		{
			name:    "fixed unregistered",
			cfg:     blobx.PolicyConfig{Name: blobx.PolicyFixed, FixedProvider: "MINIO"},
			wantErr: blobx.ErrUnknownProvider,
		},
		{name: "unknown name", cfg: blobx.PolicyConfig{Name: "sticky"}, wantErr: blobx.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := blobx.NewPolicy(tt.cfg, reg, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
			assert.True(t, reg.Has(p.Choose()))
		})
	}

	_, err = blobx.NewPolicy(blobx.PolicyConfig{}, nil, nil)
	assert.ErrorIs(t, err, blobx.ErrNoProviders)
}
