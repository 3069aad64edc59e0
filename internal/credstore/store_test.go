package credstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agribusiness-pro/apiserver/types"
)

func john() types.Profile {
	return types.Profile{
		ID:        1,
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@farm.com",
		UserType:  types.UserTypeFarmer,
		Location:  "Punjab",
		JoinDate:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
}

func TestStore_WriteReadClear(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(backend)

			_, ok := s.Read(ctx)
			assert.False(t, ok)

			require.NoError(t, s.Write(ctx, "tok-1", john()))
			rec, ok := s.Read(ctx)
			require.True(t, ok)
			assert.Equal(t, "tok-1", rec.Token)
			assert.Equal(t, john(), rec.Profile)

			updated := john()
			updated.Bio = "wheat"
			require.NoError(t, s.Write(ctx, "tok-2", updated))
			rec, ok = s.Read(ctx)
			require.True(t, ok)
			assert.Equal(t, "tok-2", rec.Token)
			assert.Equal(t, "wheat", rec.Profile.Bio)

			require.NoError(t, s.Clear(ctx))
			_, ok = s.Read(ctx)
			assert.False(t, ok)
			require.NoError(t, s.Clear(ctx))
		})
	}
}

func TestStore_CorruptProfileReadsAsAbsent(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(backend)
			require.NoError(t, backend.Set(ctx, KeyToken, []byte("tok")))

			for _, raw := range []string{"{not json", "null", "{}"} {
				require.NoError(t, backend.Set(ctx, KeyProfile, []byte(raw)))
				_, ok := s.Read(ctx)
				assert.False(t, ok, raw)
			}
		})
	}
}

func TestStore_MissingTokenReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := New(backend)
	require.NoError(t, s.Write(ctx, "tok", john()))
	require.NoError(t, backend.Delete(ctx, KeyToken))

	_, ok := s.Read(ctx)
	assert.False(t, ok)
}

func TestStore_WriteRejectsEmptyToken(t *testing.T) {
	assert.Error(t, New(NewMemoryBackend()).Write(context.Background(), "", john()))
}

func TestOpenSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, New(first).Write(ctx, "tok", john()))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	rec, ok := New(second).Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "John", rec.Profile.FirstName)
}
