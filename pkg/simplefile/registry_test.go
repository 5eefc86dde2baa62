package simplefile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct{}

func (stubDriver) Create(ctx context.Context, localPath, mime string, params CreateParams) (Handle, error) {
	return nil, errors.New("not supported")
}

func (stubDriver) Get(ctx context.Context, uid string) (Handle, error) {
	return nil, &UIDError{UID: uid, Op: "get", Err: ErrFileNotFound}
}

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func() (Driver, error) { return stubDriver{}, nil })
	r.Register("broken", func() (Driver, error) { return nil, errors.New("no connection") })
	r.Register("nil", func() (Driver, error) { return nil, nil })

	assert.Equal(t, []string{"broken", "nil", "stub"}, r.Names())

	d, err := r.Build("stub")
	require.NoError(t, err)
	assert.NotNil(t, d)

	for _, name := range []string{"missing", "broken", "nil"} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Build(name)
			assert.True(t, errors.Is(err, ErrInvalidDriver))
		})
	}
}

func TestRegistryBuildKeepsFactoryError(t *testing.T) {
	errRefused := errors.New("connection refused")
	r := NewRegistry()
	r.Register("postgres", func() (Driver, error) {
		return nil, fmt.Errorf("failed to ping: %w", errRefused)
	})

	_, err := r.Build("postgres")
	assert.ErrorIs(t, err, ErrInvalidDriver)
	assert.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "failed to ping")
}

func TestProviderBuildsOnce(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry()
	r.Register("stub", func() (Driver, error) {
		calls.Add(1)
		return &stubDriver{}, nil
	})

	p := NewProvider(r, "stub")
	assert.Equal(t, "stub", p.Name())
	assert.Equal(t, int32(0), calls.Load())

	const workers = 32
	drivers := make([]Driver, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := p.Driver()
			assert.NoError(t, err)
			drivers[i] = d
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, d := range drivers {
		assert.Same(t, drivers[0], d)
	}
}

func TestProviderCachesFailure(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry()
	r.Register("broken", func() (Driver, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})

	p := NewProvider(r, "broken")
	_, err1 := p.Driver()
	_, err2 := p.Driver()
	assert.True(t, errors.Is(err1, ErrInvalidDriver))
	assert.Equal(t, err1, err2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStaticProvider(t *testing.T) {
	d, err := StaticProvider("stub", stubDriver{}).Driver()
	require.NoError(t, err)
	assert.NotNil(t, d)

	_, err = StaticProvider("none", nil).Driver()
	assert.True(t, errors.Is(err, ErrInvalidDriver))
}
