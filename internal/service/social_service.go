package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/leveling"
	"github.com/fridayce/rork-mapcask/internal/store"
)

const maxMessageLength = 500

// UserSource is what the social store needs from the identity store.
type UserSource interface {
	CurrentUser(ctx context.Context) (*domain.User, error)
	Award(ctx context.Context, points int, reason string) (*domain.User, error)
}

// Social is the social graph store as seen by handlers.
type Social interface {
	RequestContactsPermission(ctx context.Context) (bool, error)
	SyncContacts(ctx context.Context) ([]domain.Friend, error)
	SendFriendRequest(ctx context.Context, to domain.Friend) (*domain.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID string) error
	DeclineFriendRequest(ctx context.Context, requestID string) error
	SendMessage(ctx context.Context, friendID, text string) (*domain.Message, error)
	MarkConversationAsRead(ctx context.Context, conversationID string) error

	Friends(ctx context.Context) []domain.Friend
	FriendRequests(ctx context.Context) []domain.FriendRequest
	OutgoingRequests(ctx context.Context) []domain.FriendRequest
	Conversations(ctx context.Context) []domain.Conversation
	TotalUnreadCount(ctx context.Context) int
	ConversationMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// SocialService owns friends, friend requests, conversations and messages.
// Lists are stored flat; every view is filtered to the signed-in user.
type SocialService struct {
	kv       domain.KeyValueStore
	users    UserSource
	contacts domain.ContactsProvider
	events   publisher
	outbox   outbox
	clock

	mu              sync.RWMutex
	contactsGranted bool
	friends         []domain.Friend
	requests        []domain.FriendRequest
	messages        []domain.Message
	conversations   []domain.Conversation
}

func NewSocialService(kv domain.KeyValueStore, users UserSource, contacts domain.ContactsProvider, ev domain.EventPublisher) *SocialService {
	return &SocialService{
		kv:       kv,
		users:    users,
		contacts: contacts,
		events:   newPublisher(ev),
		clock:    defaultClock(),
	}
}

var _ Social = (*SocialService)(nil)

// Load replaces the in-memory lists with what is persisted.
func (s *SocialService) Load(ctx context.Context) error {
	var (
		friends       []domain.Friend
		requests      []domain.FriendRequest
		messages      []domain.Message
		conversations []domain.Conversation
	)
	for key, dst := range map[string]any{
		domain.KeyFriends:        &friends,
		domain.KeyFriendRequests: &requests,
		domain.KeyMessages:       &messages,
		domain.KeyConversations:  &conversations,
	} {
		if _, err := store.LoadJSON(ctx, s.kv, key, dst); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.unlock(ctx)
	s.friends, s.requests, s.messages, s.conversations = friends, requests, messages, conversations
	return nil
}

// unlock releases s.mu, then publishes what the critical section raised.
func (s *SocialService) unlock(ctx context.Context) {
	pending := s.outbox.take()
	s.mu.Unlock()
	s.events.flush(ctx, pending)
}

// currentUser returns nil when signed out.
func (s *SocialService) currentUser(ctx context.Context) (*domain.User, error) {
	u, err := s.users.CurrentUser(ctx)
	if errors.Is(err, domain.ErrNotSignedIn) {
		return nil, nil
	}
	return u, err
}

func (s *SocialService) requireUser(ctx context.Context) (*domain.User, error) {
	u, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotSignedIn
	}
	return u, nil
}

func (s *SocialService) RequestContactsPermission(ctx context.Context) (bool, error) {
	granted, err := s.contacts.RequestPermission(ctx)
	if err != nil {
		return false, fmt.Errorf("request contacts permission: %w", err)
	}
	s.mu.Lock()
	s.contactsGranted = granted
	s.mu.Unlock()
	return granted, nil
}

// SyncContacts maps address-book entries that have an email to pending
// friend candidates. Nothing is persisted.
func (s *SocialService) SyncContacts(ctx context.Context) ([]domain.Friend, error) {
	s.mu.RLock()
	granted := s.contactsGranted
	s.mu.RUnlock()

	if !granted {
		ok, err := s.RequestContactsPermission(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrPermissionDenied
		}
	}

	list, err := s.contacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	now := s.now()
	candidates := make([]domain.Friend, 0, len(list))
	for _, c := range list {
		email := c.PrimaryEmail()
		if email == "" {
			continue
		}
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = "Unknown"
		}
		candidates = append(candidates, domain.Friend{
			ID:      c.ID,
			Name:    name,
			Email:   email,
			Avatar:  c.ImageURI,
			Status:  domain.StatusPending,
			AddedAt: now,
		})
	}
	return candidates, nil
}

// SendFriendRequest records a pending request from the signed-in user to to.
func (s *SocialService) SendFriendRequest(ctx context.Context, to domain.Friend) (*domain.FriendRequest, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(to.ID) == "" {
		return nil, fmt.Errorf("%w: recipient id is required", domain.ErrInvalidInput)
	}
	if to.ID == user.ID {
		return nil, fmt.Errorf("%w: cannot send a friend request to yourself", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	for _, r := range s.requests {
		if r.FromUserID == user.ID && r.ToUserID == to.ID && r.Status == domain.StatusPending {
			return nil, fmt.Errorf("friend request to %s: %w", to.ID, domain.ErrConflict)
		}
	}
	if indexFriend(s.friends, user.ID, to.ID) >= 0 {
		return nil, fmt.Errorf("already friends with %s: %w", to.ID, domain.ErrConflict)
	}

	req := domain.FriendRequest{
		ID:             s.NewID(),
		FromUserID:     user.ID,
		FromUserName:   user.Name,
		FromUserEmail:  user.Email,
		FromUserAvatar: user.Avatar,
		ToUserID:       to.ID,
		ToUserName:     to.Name,
		ToUserEmail:    to.Email,
		ToUserAvatar:   to.Avatar,
		Status:         domain.StatusPending,
		CreatedAt:      s.now(),
	}
	next := append(append([]domain.FriendRequest(nil), s.requests...), req)
	if err := store.SaveJSON(ctx, s.kv, domain.KeyFriendRequests, next); err != nil {
		return nil, fmt.Errorf("send friend request: %w", err)
	}
	s.requests = next
	s.outbox.add(domain.EventFriendRequestSent, req, req.CreatedAt, req.ToUserID, req.FromUserID)
	return &req, nil
}

// resolvable finds a request the signed-in user may resolve. Callers hold s.mu.
func (s *SocialService) resolvable(user *domain.User, requestID string) (int, error) {
	for i, r := range s.requests {
		if r.ID != requestID {
			continue
		}
		if r.ToUserID != user.ID {
			return -1, fmt.Errorf("request %s is addressed to another user: %w", requestID, domain.ErrForbidden)
		}
		return i, nil
	}
	return -1, domain.ErrRequestNotFound
}

// AcceptFriendRequest befriends sender and recipient. Accepting an already
// accepted request changes nothing.
func (s *SocialService) AcceptFriendRequest(ctx context.Context, requestID string) error {
	user, err := s.requireUser(ctx)
	if err != nil {
		return err
	}
	accepted, err := s.accept(ctx, user, requestID)
	if err != nil || !accepted {
		return err
	}
	if _, err := s.users.Award(ctx, leveling.RewardFriendRequestAccepted, "friend request accepted"); err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("award friend request points")
	}
	return nil
}

// accept reports whether the request moved to accepted in this call.
func (s *SocialService) accept(ctx context.Context, user *domain.User, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.unlock(ctx)

	i, err := s.resolvable(user, requestID)
	if err != nil {
		return false, err
	}
	req := s.requests[i]
	switch req.Status {
	case domain.StatusAccepted:
		return false, nil
	case domain.StatusDeclined:
		return false, domain.ErrInvalidTransition
	}

	now := s.now()
	req.Status = domain.StatusAccepted
	nextRequests := append([]domain.FriendRequest(nil), s.requests...)
	nextRequests[i] = req

	nextFriends := append([]domain.Friend(nil), s.friends...)
	if indexFriend(nextFriends, req.ToUserID, req.FromUserID) < 0 {
		nextFriends = append(nextFriends, domain.Friend{
			ID:      req.FromUserID,
			OwnerID: req.ToUserID,
			Name:    req.FromUserName,
			Email:   req.FromUserEmail,
			Avatar:  req.FromUserAvatar,
			Status:  domain.StatusAccepted,
			AddedAt: now,
		})
	}
	if indexFriend(nextFriends, req.FromUserID, req.ToUserID) < 0 {
		nextFriends = append(nextFriends, domain.Friend{
			ID:      user.ID,
			OwnerID: req.FromUserID,
			Name:    user.Name,
			Email:   user.Email,
			Avatar:  user.Avatar,
			Status:  domain.StatusAccepted,
			AddedAt: now,
		})
	}

	if err := store.SaveJSON(ctx, s.kv, domain.KeyFriendRequests, nextRequests); err != nil {
		return false, fmt.Errorf("accept friend request: %w", err)
	}
	if err := store.SaveJSON(ctx, s.kv, domain.KeyFriends, nextFriends); err != nil {
		return false, s.restore(ctx, fmt.Errorf("accept friend request: %w", err), domain.KeyFriendRequests, s.requests)
	}
	s.requests, s.friends = nextRequests, nextFriends
	s.outbox.add(domain.EventFriendRequestAccepted, req, now, req.FromUserID, req.ToUserID)
	return true, nil
}

// DeclineFriendRequest never creates a friend. Declining twice is a no-op.
func (s *SocialService) DeclineFriendRequest(ctx context.Context, requestID string) error {
	user, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	i, err := s.resolvable(user, requestID)
	if err != nil {
		return err
	}
	req := s.requests[i]
	switch req.Status {
	case domain.StatusDeclined:
		return nil
	case domain.StatusAccepted:
		return domain.ErrInvalidTransition
	}

	req.Status = domain.StatusDeclined
	next := append([]domain.FriendRequest(nil), s.requests...)
	next[i] = req
	if err := store.SaveJSON(ctx, s.kv, domain.KeyFriendRequests, next); err != nil {
		return fmt.Errorf("decline friend request: %w", err)
	}
	s.requests = next
	s.outbox.add(domain.EventFriendRequestDeclined, req, s.now(), req.FromUserID)
	return nil
}

// SendMessage appends a message to the conversation between the signed-in
// user and friendID, creating the conversation on first contact.
func (s *SocialService) SendMessage(ctx context.Context, friendID, text string) (*domain.Message, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if err := validate.Var(text, fmt.Sprintf("required,max=%d", maxMessageLength)); err != nil {
		return nil, fmt.Errorf("%w: message text must be 1 to %d characters", domain.ErrInvalidInput, maxMessageLength)
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	fi := indexFriend(s.friends, user.ID, friendID)
	if fi < 0 || s.friends[fi].Status != domain.StatusAccepted {
		return nil, domain.ErrFriendNotFound
	}
	friend := s.friends[fi]

	nextConvs := append([]domain.Conversation(nil), s.conversations...)
	ci := -1
	for i, c := range nextConvs {
		if c.Between(user.ID, friendID) {
			ci = i
			break
		}
	}
	now := s.now()
	if ci < 0 {
		nextConvs = append(nextConvs, domain.Conversation{
			ID: s.NewID(),
			Participants: [2]domain.Participant{
				{ID: user.ID, Name: user.Name, Avatar: user.Avatar},
				{ID: friend.ID, Name: friend.Name, Avatar: friend.Avatar},
			},
			UpdatedAt: now,
		})
		ci = len(nextConvs) - 1
	}

	msg := domain.Message{
		ID:             s.NewID(),
		ConversationID: nextConvs[ci].ID,
		SenderID:       user.ID,
		SenderName:     user.Name,
		SenderAvatar:   user.Avatar,
		Text:           text,
		Timestamp:      now,
	}
	last := msg
	nextConvs[ci].LastMessage = &last
	nextConvs[ci].UnreadCount++
	nextConvs[ci].UpdatedAt = msg.Timestamp

	nextMsgs := append(append([]domain.Message(nil), s.messages...), msg)
	if err := store.SaveJSON(ctx, s.kv, domain.KeyMessages, nextMsgs); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if err := store.SaveJSON(ctx, s.kv, domain.KeyConversations, nextConvs); err != nil {
		return nil, s.restore(ctx, fmt.Errorf("send message: %w", err), domain.KeyMessages, s.messages)
	}
	s.messages, s.conversations = nextMsgs, nextConvs

	conv := nextConvs[ci]
	s.outbox.add(domain.EventMessageSent, msg, now, conv.Participants[0].ID, conv.Participants[1].ID)
	return &msg, nil
}

// MarkConversationAsRead marks every message in the conversation read and
// zeroes its unread count. Other conversations are untouched.
func (s *SocialService) MarkConversationAsRead(ctx context.Context, conversationID string) error {
	user, err := s.requireUser(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	ci := -1
	for i, c := range s.conversations {
		if c.ID == conversationID && c.Includes(user.ID) {
			ci = i
			break
		}
	}
	if ci < 0 {
		return domain.ErrConversationNotFound
	}

	nextMsgs := append([]domain.Message(nil), s.messages...)
	for i := range nextMsgs {
		if nextMsgs[i].ConversationID == conversationID {
			nextMsgs[i].Read = true
		}
	}
	nextConvs := append([]domain.Conversation(nil), s.conversations...)
	nextConvs[ci].UnreadCount = 0
	if lm := nextConvs[ci].LastMessage; lm != nil {
		read := *lm
		read.Read = true
		nextConvs[ci].LastMessage = &read
	}

	if err := store.SaveJSON(ctx, s.kv, domain.KeyMessages, nextMsgs); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	if err := store.SaveJSON(ctx, s.kv, domain.KeyConversations, nextConvs); err != nil {
		return s.restore(ctx, fmt.Errorf("mark conversation read: %w", err), domain.KeyMessages, s.messages)
	}
	s.messages, s.conversations = nextMsgs, nextConvs

	conv := nextConvs[ci]
	s.outbox.add(domain.EventConversationRead, map[string]string{
		"conversation_id": conversationID,
		"user_id":         user.ID,
	}, s.now(), conv.Participants[0].ID, conv.Participants[1].ID)
	return nil
}

// restore writes prev back under key after a failed second write.
func (s *SocialService) restore(ctx context.Context, cause error, key string, prev any) error {
	if err := store.SaveJSON(ctx, s.kv, key, prev); err != nil {
		return errors.Join(cause, fmt.Errorf("restore %s: %w", key, err))
	}
	return cause
}

func (s *SocialService) Friends(ctx context.Context) []domain.Friend {
	user, _ := s.currentUser(ctx)
	if user == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AcceptedFriends(s.friends, user.ID)
}

func (s *SocialService) FriendRequests(ctx context.Context) []domain.FriendRequest {
	user, _ := s.currentUser(ctx)
	if user == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PendingRequests(s.requests, func(r domain.FriendRequest) bool { return r.ToUserID == user.ID })
}

func (s *SocialService) OutgoingRequests(ctx context.Context) []domain.FriendRequest {
	user, _ := s.currentUser(ctx)
	if user == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PendingRequests(s.requests, func(r domain.FriendRequest) bool { return r.FromUserID == user.ID })
}

func (s *SocialService) Conversations(ctx context.Context) []domain.Conversation {
	user, _ := s.currentUser(ctx)
	if user == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ConversationsFor(s.conversations, user.ID)
}

func (s *SocialService) TotalUnreadCount(ctx context.Context) int {
	return TotalUnread(s.Conversations(ctx))
}

// ConversationMessages returns the conversation's messages, oldest first.
func (s *SocialService) ConversationMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := false
	for _, c := range s.conversations {
		if c.ID == conversationID && c.Includes(user.ID) {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrConversationNotFound
	}
	return MessagesIn(s.messages, conversationID), nil
}

// SocialSnapshot is an unfiltered copy of every list.
type SocialSnapshot struct {
	Friends        []domain.Friend        `json:"friends"`
	FriendRequests []domain.FriendRequest `json:"friend_requests"`
	Messages       []domain.Message       `json:"messages"`
	Conversations  []domain.Conversation  `json:"conversations"`
}

func (s *SocialService) Snapshot() SocialSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SocialSnapshot{
		Friends:        append([]domain.Friend(nil), s.friends...),
		FriendRequests: append([]domain.FriendRequest(nil), s.requests...),
		Messages:       append([]domain.Message(nil), s.messages...),
		Conversations:  append([]domain.Conversation(nil), s.conversations...),
	}
}

// AcceptedFriends lists ownerID's accepted friends.
func AcceptedFriends(friends []domain.Friend, ownerID string) []domain.Friend {
	res := []domain.Friend{}
	for _, f := range friends {
		if f.OwnerID == ownerID && f.Status == domain.StatusAccepted {
			res = append(res, f)
		}
	}
	return res
}

// PendingRequests lists pending requests matching keep.
func PendingRequests(reqs []domain.FriendRequest, keep func(domain.FriendRequest) bool) []domain.FriendRequest {
	res := []domain.FriendRequest{}
	for _, r := range reqs {
		if r.Status == domain.StatusPending && keep(r) {
			res = append(res, r)
		}
	}
	return res
}

// ConversationsFor lists userID's conversations, most recently updated first.
func ConversationsFor(convs []domain.Conversation, userID string) []domain.Conversation {
	res := []domain.Conversation{}
	for _, c := range convs {
		if c.Includes(userID) {
			res = append(res, c)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res
}

func TotalUnread(convs []domain.Conversation) int {
	total := 0
	for _, c := range convs {
		total += c.UnreadCount
	}
	return total
}

// MessagesIn lists a conversation's messages, oldest first.
func MessagesIn(msgs []domain.Message, conversationID string) []domain.Message {
	res := []domain.Message{}
	for _, m := range msgs {
		if m.ConversationID == conversationID {
			res = append(res, m)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res
}

// indexFriend finds friendID in ownerID's list.
func indexFriend(friends []domain.Friend, ownerID, friendID string) int {
	for i, f := range friends {
		if f.OwnerID == ownerID && f.ID == friendID {
			return i
		}
	}
	return -1
}
