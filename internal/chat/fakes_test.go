package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gps-chat/internal/database"
	"gps-chat/internal/models"
)

// fakeStore is an in-memory database.Store. Private-room creation mimics the
// unique pair constraint: the loser of a concurrent create gets the winner's
// room back, never a second row.
type fakeStore struct {
	mu sync.Mutex

	usernames    map[int]string
	rooms        map[string]int // pair key -> room id
	participants map[int][]int  // room id -> user ids
	messages     []*models.Message
	nextRoomID   int
	nextMsgID    int

	createCalls int

	findErr         error
	createErr       error
	insertErr       error
	participantsErr error
	lookupErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usernames:    make(map[int]string),
		rooms:        make(map[string]int),
		participants: make(map[int][]int),
	}
}

func (s *fakeStore) addUser(id int, username string) {
	s.usernames[id] = username
}

func (s *fakeStore) addRoom(roomID int, userIDs ...int) {
	s.participants[roomID] = userIDs
	if roomID >= s.nextRoomID {
		s.nextRoomID = roomID
	}
}

func pairKey(a, b int) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (s *fakeStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, database.ErrNotFound
}

func (s *fakeStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	return nil, database.ErrNotFound
}

func (s *fakeStore) LookupUsername(ctx context.Context, userID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return "", s.lookupErr
	}
	username, ok := s.usernames[userID]
	if !ok {
		return "", database.ErrNotFound
	}
	return username, nil
}

func (s *fakeStore) FindPrivateRoom(ctx context.Context, userA, userB int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return 0, s.findErr
	}
	roomID, ok := s.rooms[pairKey(userA, userB)]
	if !ok {
		return 0, database.ErrNotFound
	}
	return roomID, nil
}

func (s *fakeStore) CreatePrivateRoom(ctx context.Context, userA, userB int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return 0, s.createErr
	}
	key := pairKey(userA, userB)
	if roomID, ok := s.rooms[key]; ok {
		return roomID, nil
	}
	s.nextRoomID++
	s.rooms[key] = s.nextRoomID
	s.participants[s.nextRoomID] = []int{userA, userB}
	return s.nextRoomID, nil
}

func (s *fakeStore) IsParticipant(ctx context.Context, roomID, userID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.participants[roomID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ParticipantsOf(ctx context.Context, roomID int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participantsErr != nil {
		return nil, s.participantsErr
	}
	return append([]int(nil), s.participants[roomID]...), nil
}

func (s *fakeStore) InsertMessage(ctx context.Context, roomID, senderID int, content string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, time.Time{}, s.insertErr
	}
	s.nextMsgID++
	createdAt := time.Now()
	s.messages = append(s.messages, &models.Message{
		ID:        s.nextMsgID,
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: createdAt,
	})
	return s.nextMsgID, createdAt, nil
}

func (s *fakeStore) RoomMessages(ctx context.Context, roomID int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, msg := range s.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeStore) roomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// fakeConn records delivered frames.
type fakeConn struct {
	mu   sync.Mutex
	sent [][]byte
	torn bool
}

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return false
	}
	c.sent = append(c.sent, data)
	return true
}

func (c *fakeConn) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.torn = true
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}
