package service

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweepsExpiredCodes(t *testing.T) {
	f := newFixture(t)

	spec := domain.NewRouteSpec()
	spec.ExpireAfter = time.Hour // the timer will not fire during the test

	_, err := f.registry.Issue(invocation("u-alice", nil), spec, false)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	hk := NewHousekeepingService(f.registry, slogx.Nop(), 5*time.Millisecond)
	hk.Start()
	t.Cleanup(hk.Stop)

	require.Eventually(t, func() bool { return f.registry.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHousekeepingDefaultInterval(t *testing.T) {
	hk := NewHousekeepingService(NewRegistry(nil, slogx.Nop(), nil), slogx.Nop(), 0)
	require.Equal(t, time.Minute, hk.Interval)
}
