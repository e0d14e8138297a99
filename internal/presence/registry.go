// Package presence is the single source of truth for who is online and where
// they last were. All mutation goes through the Registry, which guards its
// state with one mutex and never sends on a connection while holding it.
package presence

import (
	"errors"
	"sync"
	"time"

	"gps-chat/internal/geo"
	"gps-chat/internal/models"
)

// ErrNotOnline is returned for operations on a user with no live entry.
var ErrNotOnline = errors.New("user is not online")

// Conn is the transport handle held per online user. Send must not block;
// it reports false when the connection can no longer accept frames.
// Teardown invalidates the handle so a superseded connection receives no
// further fan-out.
type Conn interface {
	Send(data []byte) bool
	Teardown()
}

// Fix is an accepted location sample. Optional refinements stay nil when the
// client did not report them or reported a non-finite value.
type Fix struct {
	Lat       float64
	Lon       float64
	Accuracy  *float64
	Speed     *float64
	Heading   *float64
	Timestamp *time.Time
}

// Entry is the live record for one connected user.
type Entry struct {
	Identity    models.Identity
	conn        Conn
	ConnectedAt time.Time

	Lat                *float64
	Lon                *float64
	Accuracy           *float64
	Speed              *float64
	Heading            *float64
	LastLocationUpdate *time.Time
	LocationTimestamp  *time.Time
	DistanceMoved      *float64

	prevLat *float64
	prevLon *float64

	IsBackground bool
	LastActivity time.Time
}

// View is the snapshot projection broadcast to clients.
type View struct {
	UserID             int        `json:"userId"`
	Username           string     `json:"username"`
	IsAdmin            bool       `json:"isAdmin"`
	ConnectedAt        time.Time  `json:"connectedAt"`
	Lat                *float64   `json:"lat"`
	Lon                *float64   `json:"lon"`
	Accuracy           *float64   `json:"locationAccuracy,omitempty"`
	Speed              *float64   `json:"speed,omitempty"`
	Heading            *float64   `json:"heading,omitempty"`
	LastLocationUpdate *time.Time `json:"lastLocationUpdate,omitempty"`
	LocationTimestamp  *time.Time `json:"locationTimestamp,omitempty"`
	DistanceMoved      *float64   `json:"distanceMoved,omitempty"`
	IsBackground       bool       `json:"isBackground,omitempty"`
}

type Registry struct {
	mu      sync.Mutex
	entries map[int]*Entry
	order   []int // userIDs in insertion order, for deterministic snapshots
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]*Entry),
	}
}

// Register inserts or replaces the entry for the identity. A reconnect
// supersedes the previous entry: the old transport handle is torn down so it
// receives nothing further, and the new connection takes over in place.
func (r *Registry) Register(identity models.Identity, conn Conn) {
	now := time.Now()

	r.mu.Lock()
	old, existed := r.entries[identity.UserID]
	r.entries[identity.UserID] = &Entry{
		Identity:     identity,
		conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
	}
	if !existed {
		r.order = append(r.order, identity.UserID)
	}
	r.mu.Unlock()

	if existed && old.conn != nil && old.conn != conn {
		old.conn.Teardown()
	}
}

// Unregister removes the entry if conn is still its transport handle. Passing
// a stale handle (a superseded socket disconnecting late) is a no-op, as is a
// userID with no entry.
func (r *Registry) Unregister(userID int, conn Conn) bool {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	if !ok || (conn != nil && entry.conn != conn) {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	entry.conn.Teardown()
	return true
}

// UpdateLocation applies an accepted fix and returns the resulting view. The
// movement delta is computed against the previous fix only; the first fix of
// a session never produces a distance.
func (r *Registry) UpdateLocation(userID int, fix Fix) (View, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok {
		return View{}, ErrNotOnline
	}

	lat, lon := fix.Lat, fix.Lon
	entry.Lat = &lat
	entry.Lon = &lon
	// Refinements update only when the fix carries them; a bare fix keeps
	// the last known values.
	if fix.Accuracy != nil {
		entry.Accuracy = fix.Accuracy
	}
	if fix.Speed != nil {
		entry.Speed = fix.Speed
	}
	if fix.Heading != nil {
		entry.Heading = fix.Heading
	}
	entry.LastLocationUpdate = &now
	if fix.Timestamp != nil {
		entry.LocationTimestamp = fix.Timestamp
	}
	entry.LastActivity = now

	if entry.prevLat != nil && entry.prevLon != nil {
		distance := geo.Distance(*entry.prevLat, *entry.prevLon, lat, lon)
		entry.DistanceMoved = &distance
	}
	entry.prevLat = &lat
	entry.prevLon = &lon

	return entry.view(), nil
}

// SetBackground flips the background flag. State only; callers do not
// broadcast for it.
func (r *Registry) SetBackground(userID int, background bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok {
		return false
	}
	entry.IsBackground = background
	entry.LastActivity = time.Now()
	return true
}

// Touch records activity for a user without changing anything else.
func (r *Registry) Touch(userID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[userID]; ok {
		entry.LastActivity = time.Now()
	}
}

// Snapshot returns views of every online user in insertion order.
func (r *Registry) Snapshot() []View {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]View, 0, len(r.order))
	for _, userID := range r.order {
		views = append(views, r.entries[userID].view())
	}
	return views
}

// ConnOf returns the current transport handle for a user, if online.
func (r *Registry) ConnOf(userID int) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// Broadcast sends data to every online connection. Handles are copied out
// under the lock and written to outside it.
func (r *Registry) Broadcast(data []byte) {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.entries))
	for _, entry := range r.entries {
		conns = append(conns, entry.conn)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Send(data)
	}
}

// Online reports whether a user has a live entry.
func (r *Registry) Online(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[userID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// view must be called with the registry lock held.
func (e *Entry) view() View {
	return View{
		UserID:             e.Identity.UserID,
		Username:           e.Identity.Username,
		IsAdmin:            e.Identity.IsAdmin,
		ConnectedAt:        e.ConnectedAt,
		Lat:                e.Lat,
		Lon:                e.Lon,
		Accuracy:           e.Accuracy,
		Speed:              e.Speed,
		Heading:            e.Heading,
		LastLocationUpdate: e.LastLocationUpdate,
		LocationTimestamp:  e.LocationTimestamp,
		DistanceMoved:      e.DistanceMoved,
		IsBackground:       e.IsBackground,
	}
}
