package settings

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns one fresh store per backend. Each test gets its own.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	ss, err := OpenSQL(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
		"sqlite": ss,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_EmptyReturnsDefaults(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get(context.Background())
			require.NoError(t, err)
			assert.False(t, got.HasAPIKey())
			assert.Equal(t, "", got.APIKey)
			assert.Equal(t, LevelAverage, got.StudentLevel)
		})
	}
}

func TestStore_SaveThenGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, Settings{APIKey: "abc123", StudentLevel: LevelGood}))

			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, Settings{APIKey: "abc123", StudentLevel: LevelGood}, got)
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, Settings{APIKey: "first", StudentLevel: LevelWeak}))
			require.NoError(t, s.Save(ctx, Settings{APIKey: "second", StudentLevel: LevelExcellent}))

			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, "second", got.APIKey)
			assert.Equal(t, LevelExcellent, got.StudentLevel)
		})
	}
}

func TestStore_EmptyLevelReadsAsDefault(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, Settings{APIKey: "k", StudentLevel: ""}))

			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, DefaultLevel, got.StudentLevel)
		})
	}
}

func TestStore_UnknownLevelStoredVerbatim(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, Settings{APIKey: "k", StudentLevel: "genius"}))

			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, Level("genius"), got.StudentLevel)
		})
	}
}

func TestStore_EmptyKeyClears(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, Settings{APIKey: "k", StudentLevel: LevelGood}))
			require.NoError(t, s.Save(ctx, Settings{APIKey: "", StudentLevel: LevelGood}))

			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.False(t, got.HasAPIKey())
		})
	}
}

func TestStore_Ping(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}

func TestStore_ConcurrentSaveGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.Save(ctx, Settings{APIKey: "k", StudentLevel: LevelGood}))
				}()
				go func() {
					defer wg.Done()
					_, err := s.Get(ctx)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			got, err := s.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, Settings{APIKey: "k", StudentLevel: LevelGood}, got)
		})
	}
}

func TestRedisStore_UsesLegacyKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), Settings{APIKey: "abc123", StudentLevel: LevelGood}))

	mr.CheckGet(t, "apiKey", "abc123")
	mr.CheckGet(t, "studentLevel", "good")
}

func TestRedisStore_ReadsPreexistingKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("apiKey", "from-before"))
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer s.Close()

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-before", got.APIKey)
	assert.Equal(t, LevelAverage, got.StudentLevel)
}

func TestRedisStore_PingFailsWhenServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	defer s.Close()
	mr.Close()

	assert.Error(t, s.Ping(context.Background()))
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		addr    string
		want    Store
		wantErr bool
	}{
		{name: "memory", addr: "memory://", want: &MemoryStore{}},
		{name: "redis", addr: "redis://" + mr.Addr() + "/0", want: &RedisStore{}},
		{name: "sqlite", addr: "sqlite://" + filepath.Join(t.TempDir(), "s.db"), want: &SQLStore{}},
		{name: "unknown scheme", addr: "etcd://localhost:2379", wantErr: true},
		{name: "sqlite without path", addr: "sqlite://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestBackend(t *testing.T) {
	assert.Equal(t, "redis", Backend("redis://:secret@localhost:6379"))
	assert.Equal(t, "sqlite", Backend("sqlite:///var/lib/studychat.db"))
	assert.Equal(t, "memory", Backend("memory://"))
	assert.Equal(t, "unknown", Backend(""))
}

func TestLevel_Known(t *testing.T) {
	for _, l := range Levels() {
		assert.True(t, l.Known(), l)
	}
	assert.False(t, Level("").Known())
	assert.False(t, Level("Good").Known())
}
