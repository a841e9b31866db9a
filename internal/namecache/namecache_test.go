package namecache_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rakunlabs/nezumi/internal/gateway"
	"github.com/rakunlabs/nezumi/internal/namecache"
	"github.com/stretchr/testify/require"
)

func TestContextFriendCachesAfterOneCall(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "/get_friend_list", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   []map[string]any{{"user_id": 7, "nickname": "alice"}},
		}))
	}))
	defer server.Close()

	client, err := gateway.New(server.URL, time.Second)
	require.NoError(t, err)
	cache := namecache.New(client)

	name, err := cache.Context(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "alice", name)

	name, err = cache.Context(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "alice", name)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestContextGroupFetchesGroupInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get_group_info", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]any{"group_id": 3, "group_name": "friends"},
		}))
	}))
	defer server.Close()

	client, err := gateway.New(server.URL, time.Second)
	require.NoError(t, err)
	cache := namecache.New(client)

	name, err := cache.Context(context.Background(), -3)
	require.NoError(t, err)
	require.Equal(t, "friends", name)
}

func TestMemberCachesAfterOneCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"data":   map[string]any{"user_id": 9, "nickname": "bob", "card": "the-bob"},
		}))
	}))
	defer server.Close()

	client, err := gateway.New(server.URL, time.Second)
	require.NoError(t, err)
	cache := namecache.New(client)

	name, err := cache.Member(context.Background(), -3, 9)
	require.NoError(t, err)
	require.Equal(t, "the-bob", name)

	name, err = cache.Member(context.Background(), -3, 9)
	require.NoError(t, err)
	require.Equal(t, "the-bob", name)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestObservePopulatesWithoutGatewayCall(t *testing.T) {
	client, err := gateway.New("http://127.0.0.1:0", time.Second)
	require.NoError(t, err)
	cache := namecache.New(client)

	cache.Observe(-3, 9, "bob", "the-bob")

	name, err := cache.Member(context.Background(), -3, 9)
	require.NoError(t, err)
	require.Equal(t, "the-bob", name)
}
