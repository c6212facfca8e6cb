// Package storetest holds the behaviour every store driver must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/store"
	"github.com/stretchr/testify/require"
)

// RunEnrollments exercises the Enrollments repository of a fresh store.
func RunEnrollments(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("missing user is not found", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Enrollments().GetEnrollment(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		st := newStore(t)
		e := domain.Enrollment{UserID: "u-1", Secret: "JBSWY3DPEHPK3PXP", CreatedAt: created}
		require.NoError(t, st.Enrollments().PutEnrollment(ctx, e))

		got, err := st.Enrollments().GetEnrollment(ctx, "u-1")
		require.NoError(t, err)
		require.Equal(t, e, got)
	})

	t.Run("put overwrites", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Enrollments().PutEnrollment(ctx, domain.Enrollment{UserID: "u-1", Secret: "AAAA", CreatedAt: created}))
		require.NoError(t, st.Enrollments().PutEnrollment(ctx, domain.Enrollment{UserID: "u-1", Secret: "BBBB", CreatedAt: created}))

		got, err := st.Enrollments().GetEnrollment(ctx, "u-1")
		require.NoError(t, err)
		require.Equal(t, "BBBB", got.Secret)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Enrollments().PutEnrollment(ctx, domain.Enrollment{UserID: "u-1", Secret: "AAAA", CreatedAt: created}))

		require.NoError(t, st.Enrollments().DeleteEnrollment(ctx, "u-1"))
		require.NoError(t, st.Enrollments().DeleteEnrollment(ctx, "u-1"))

		_, err := st.Enrollments().GetEnrollment(ctx, "u-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(ctx))
	})
}
