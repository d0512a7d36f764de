package store

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api"
	"github.com/langchou/fleetgazer/internal/models"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBackend(rosterTwo)
	server := httptest.NewServer(b.handler())
	defer server.Close()

	credRepo, snapRepo := setupRepos(t)
	client := api.NewClient(server.URL, server.URL, "com.tracetrip.app", credRepo, zap.NewNop())

	original := New(zap.NewNop(), client, credRepo, snapRepo, 100)
	require.NoError(t, original.Login(ctx, "a@b.com", "secret"))
	original.UpdateVehiclePosition(ctx, "1", -23.56, -46.64)

	// 同一快照仓库上的新实例模拟进程重启
	restored := New(zap.NewNop(), client, credRepo, snapRepo, 100)
	require.NoError(t, restored.Load(ctx))

	require.Equal(t, original.IsAuthenticated(), restored.IsAuthenticated())
	require.Equal(t, original.HasCompletedOnboarding(), restored.HasCompletedOnboarding())
	require.Equal(t, original.User(), restored.User())

	before := original.Vehicles()
	after := restored.Vehicles()
	require.Len(t, after, len(before))

	for i := range before {
		require.Equal(t, before[i].ID, after[i].ID)
		require.Equal(t, before[i].Plate, after[i].Plate)
		require.Equal(t, before[i].Status, after[i].Status)
		require.Equal(t, before[i].Position, after[i].Position)

		if before[i].LastUpdateAt == nil {
			require.Nil(t, after[i].LastUpdateAt)
		} else {
			require.NotNil(t, after[i].LastUpdateAt)
			// 时间字段必须还原为时间值而非字符串
			require.True(t, before[i].LastUpdateAt.Equal(*after[i].LastUpdateAt))
		}

		require.Len(t, after[i].RecentTrack, len(before[i].RecentTrack))
		for j := range before[i].RecentTrack {
			require.InDelta(t, before[i].RecentTrack[j].Latitude, after[i].RecentTrack[j].Latitude, 1e-9)
			require.InDelta(t, before[i].RecentTrack[j].Longitude, after[i].RecentTrack[j].Longitude, 1e-9)
			require.True(t, before[i].RecentTrack[j].Timestamp.Equal(after[i].RecentTrack[j].Timestamp))
		}
	}
}

func TestLoadDefaultsMissingFields(t *testing.T) {
	ctx := context.Background()
	credRepo, snapRepo := setupRepos(t)

	// 缺失 status 与 recent_track 的老快照
	legacy := `{
		"version": 1,
		"is_authenticated": true,
		"has_completed_onboarding": true,
		"user": {"id":"7","name":"Ana","email":"a@b.com","phone":""},
		"vehicles": [
			{"id":"1","plate":"ABC1D23","brand":"Fiat","model":"Argo","last_update_at":"2024-03-01T12:00:00Z"}
		]
	}`
	require.NoError(t, snapRepo.Save(ctx, "rastreamento", []byte(legacy)))

	client := api.NewClient("http://localhost:0", "http://localhost:0", "com.tracetrip.app", credRepo, zap.NewNop())
	s := New(zap.NewNop(), client, credRepo, snapRepo, 100)
	require.NoError(t, s.Load(ctx))

	require.True(t, s.IsAuthenticated())

	v, ok := s.Vehicle("1")
	require.True(t, ok)
	require.Equal(t, models.StatusAwaitingContact, v.Status)
	require.NotNil(t, v.RecentTrack)
	require.Empty(t, v.RecentTrack)
	require.NotNil(t, v.LastUpdateAt)
}

func TestLoadAuthenticatedWithoutUserFallsBackToAnonymous(t *testing.T) {
	ctx := context.Background()
	credRepo, snapRepo := setupRepos(t)

	broken := `{"version":1,"is_authenticated":true,"vehicles":[]}`
	require.NoError(t, snapRepo.Save(ctx, "rastreamento", []byte(broken)))

	client := api.NewClient("http://localhost:0", "http://localhost:0", "com.tracetrip.app", credRepo, zap.NewNop())
	s := New(zap.NewNop(), client, credRepo, snapRepo, 100)
	require.NoError(t, s.Load(ctx))

	// 不变式：认证态必须伴随用户信息
	require.False(t, s.IsAuthenticated())
}

func TestLoadWithoutSnapshotKeepsInitialState(t *testing.T) {
	ctx := context.Background()
	credRepo, snapRepo := setupRepos(t)

	client := api.NewClient("http://localhost:0", "http://localhost:0", "com.tracetrip.app", credRepo, zap.NewNop())
	s := New(zap.NewNop(), client, credRepo, snapRepo, 100)

	require.NoError(t, s.Load(ctx))
	require.False(t, s.IsAuthenticated())
	require.Empty(t, s.Vehicles())
	require.Nil(t, s.User())
}
