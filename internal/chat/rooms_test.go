package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrivateRoomReturnsExistingRoom(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "alice")
	store.addUser(2, "bob")
	store.rooms[pairKey(1, 2)] = 7
	store.addRoom(7, 1, 2)

	resolver := NewRoomResolver(store)

	roomID, roomName, err := resolver.ResolvePrivateRoom(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, roomID)
	assert.Equal(t, "bob", roomName)
	assert.Equal(t, 0, store.createCalls)
}

func TestResolvePrivateRoomCreatesWhenMissing(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "alice")
	store.addUser(2, "bob")

	resolver := NewRoomResolver(store)

	roomID, _, err := resolver.ResolvePrivateRoom(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, store.roomCount())

	// The reverse ordering resolves to the same room.
	reverseID, _, err := resolver.ResolvePrivateRoom(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, roomID, reverseID)
	assert.Equal(t, 1, store.roomCount())
}

func TestResolvePrivateRoomRejectsSelfChat(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "alice")

	resolver := NewRoomResolver(store)

	_, _, err := resolver.ResolvePrivateRoom(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrSelfChat)
	assert.Equal(t, 0, store.roomCount())
	assert.Equal(t, 0, store.createCalls)
}

func TestResolvePrivateRoomUnknownTarget(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "alice")

	resolver := NewRoomResolver(store)

	_, _, err := resolver.ResolvePrivateRoom(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Equal(t, 0, store.roomCount())
}

func TestResolvePrivateRoomSurfacesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "alice")
	store.addUser(2, "bob")
	store.findErr = errors.New("connection refused")

	resolver := NewRoomResolver(store)

	_, _, err := resolver.ResolvePrivateRoom(context.Background(), 1, 2)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownUser)
	assert.NotErrorIs(t, err, ErrSelfChat)
}

func TestResolvePrivateRoomConcurrentCallsConverge(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "alice")
	store.addUser(2, "bob")

	resolver := NewRoomResolver(store)

	const callers = 16
	results := make([]int, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a, b := 1, 2
			if n%2 == 1 {
				a, b = 2, 1
			}
			results[n], _, errs[n] = resolver.ResolvePrivateRoom(context.Background(), a, b)
		}(i)
	}
	wg.Wait()

	for n := 0; n < callers; n++ {
		require.NoError(t, errs[n])
		assert.Equal(t, results[0], results[n])
	}
	assert.Equal(t, 1, store.roomCount())
}
