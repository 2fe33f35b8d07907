package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fridayce/rork-mapcask/internal/contacts"
	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/leveling"
	"github.com/fridayce/rork-mapcask/internal/service"
	"github.com/fridayce/rork-mapcask/internal/store/memory"
)

type socialFixture struct {
	svc   *service.SocialService
	users *fakeUsers
	book  *contacts.AddressBook
	kv    *memory.KVStore
	a     *domain.User
	b     *domain.User
	c     *domain.User
}

func newSocial(t *testing.T) *socialFixture {
	t.Helper()
	kv := memory.NewKVStore()
	users := newFakeUsers()
	book := contacts.NewAddressBook()
	svc := service.NewSocialService(kv, users, book, nil)
	svc.Now = ticker()
	require.NoError(t, svc.Load(context.Background()))
	return &socialFixture{
		svc: svc, users: users, book: book, kv: kv,
		a: userCopy(alice), b: userCopy(bob), c: userCopy(carol),
	}
}

// befriend has from send a request that to accepts.
func (f *socialFixture) befriend(t *testing.T, from, to *domain.User) {
	t.Helper()
	ctx := context.Background()
	f.users.as(from)
	req, err := f.svc.SendFriendRequest(ctx, domain.Friend{ID: to.ID, Name: to.Name, Email: to.Email})
	require.NoError(t, err)
	f.users.as(to)
	require.NoError(t, f.svc.AcceptFriendRequest(ctx, req.ID))
}

func TestSendFriendRequest(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)

	_, err := f.svc.SendFriendRequest(ctx, domain.Friend{ID: "bob"})
	assert.ErrorIs(t, err, domain.ErrNotSignedIn)

	f.users.as(f.a)
	req, err := f.svc.SendFriendRequest(ctx, domain.Friend{ID: "bob", Name: "Bob", Email: "bob@x.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, req.Status)
	assert.Equal(t, "alice", req.FromUserID)
	assert.Equal(t, "Alice", req.FromUserName)
	assert.Equal(t, "bob", req.ToUserID)

	_, err = f.svc.SendFriendRequest(ctx, domain.Friend{ID: "bob"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.svc.SendFriendRequest(ctx, domain.Friend{ID: "alice"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.svc.SendFriendRequest(ctx, domain.Friend{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Len(t, f.svc.OutgoingRequests(ctx), 1)
	assert.Empty(t, f.svc.FriendRequests(ctx))

	f.users.as(f.b)
	incoming := f.svc.FriendRequests(ctx)
	require.Len(t, incoming, 1)
	assert.Equal(t, req.ID, incoming[0].ID)
}

func TestAcceptFriendRequest_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)

	f.users.as(f.a)
	req, err := f.svc.SendFriendRequest(ctx, domain.Friend{ID: "bob", Name: "Bob", Email: "bob@x.com"})
	require.NoError(t, err)

	f.users.as(f.b)
	require.NoError(t, f.svc.AcceptFriendRequest(ctx, req.ID))
	require.NoError(t, f.svc.AcceptFriendRequest(ctx, req.ID))

	friends := f.svc.Friends(ctx)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0].ID)
	assert.Equal(t, "Alice", friends[0].Name)
	assert.Equal(t, domain.StatusAccepted, friends[0].Status)
	assert.Empty(t, f.svc.FriendRequests(ctx))

	snap := f.svc.Snapshot()
	assert.Len(t, snap.Friends, 2, "one record per side")
	require.Len(t, snap.FriendRequests, 1)
	assert.Equal(t, domain.StatusAccepted, snap.FriendRequests[0].Status)

	assert.Equal(t, leveling.RewardFriendRequestAccepted, f.users.awarded["bob"], "awarded once")

	f.users.as(f.a)
	reciprocal := f.svc.Friends(ctx)
	require.Len(t, reciprocal, 1)
	assert.Equal(t, "bob", reciprocal[0].ID)

	_, err = f.svc.SendFriendRequest(ctx, domain.Friend{ID: "bob"})
	assert.ErrorIs(t, err, domain.ErrConflict, "already friends")
}

func TestFriendRequestTransitions(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)

	f.users.as(f.a)
	req, err := f.svc.SendFriendRequest(ctx, domain.Friend{ID: "bob"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.AcceptFriendRequest(ctx, req.ID), domain.ErrForbidden, "sender cannot accept")

	f.users.as(f.b)
	assert.ErrorIs(t, f.svc.AcceptFriendRequest(ctx, "missing"), domain.ErrRequestNotFound)
	assert.ErrorIs(t, f.svc.DeclineFriendRequest(ctx, "missing"), domain.ErrRequestNotFound)

	require.NoError(t, f.svc.DeclineFriendRequest(ctx, req.ID))
	require.NoError(t, f.svc.DeclineFriendRequest(ctx, req.ID))
	assert.ErrorIs(t, f.svc.AcceptFriendRequest(ctx, req.ID), domain.ErrInvalidTransition)
	assert.Empty(t, f.svc.Friends(ctx))
	assert.Empty(t, f.svc.FriendRequests(ctx))

	f.users.as(f.c)
	req2, err := f.svc.SendFriendRequest(ctx, domain.Friend{ID: "bob"})
	require.NoError(t, err)
	f.users.as(f.b)
	require.NoError(t, f.svc.AcceptFriendRequest(ctx, req2.ID))
	assert.ErrorIs(t, f.svc.DeclineFriendRequest(ctx, req2.ID), domain.ErrInvalidTransition)

	f.users.as(nil)
	assert.ErrorIs(t, f.svc.AcceptFriendRequest(ctx, req2.ID), domain.ErrNotSignedIn)
}

func TestAcceptFriendRequest_RollsBackRequests(t *testing.T) {
	ctx := context.Background()
	kv := new(MockKV)
	kv.On("Get", mock.Anything, mock.Anything).Return("", domain.ErrNotFound)
	kv.On("Set", mock.Anything, domain.KeyFriendRequests, mock.Anything).Return(nil)
	kv.On("Set", mock.Anything, domain.KeyFriends, mock.Anything).Return(errors.New("quota exceeded"))

	users := newFakeUsers()
	svc := service.NewSocialService(kv, users, contacts.Unsupported{}, nil)
	require.NoError(t, svc.Load(ctx))

	users.as(userCopy(alice))
	req, err := svc.SendFriendRequest(ctx, domain.Friend{ID: "bob"})
	require.NoError(t, err)

	users.as(userCopy(bob))
	err = svc.AcceptFriendRequest(ctx, req.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	pending := svc.FriendRequests(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.StatusPending, pending[0].Status)
	assert.Empty(t, svc.Friends(ctx))
	assert.Zero(t, users.awarded["bob"])

	restored := kv.Calls[len(kv.Calls)-1]
	assert.Equal(t, domain.KeyFriendRequests, restored.Arguments.String(1))
	assert.Contains(t, restored.Arguments.String(2), `"status":"pending"`)
}

func TestSendMessage_ReusesConversationBothWays(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)
	f.befriend(t, f.a, f.b)

	f.users.as(f.a)
	m1, err := f.svc.SendMessage(ctx, "bob", "1")
	require.NoError(t, err)

	f.users.as(f.b)
	m2, err := f.svc.SendMessage(ctx, "alice", "2")
	require.NoError(t, err)

	f.users.as(f.a)
	m3, err := f.svc.SendMessage(ctx, "bob", "3")
	require.NoError(t, err)

	assert.Equal(t, m1.ConversationID, m2.ConversationID)
	assert.Equal(t, m1.ConversationID, m3.ConversationID)

	convs := f.svc.Conversations(ctx)
	require.Len(t, convs, 1)
	assert.Equal(t, 3, convs[0].UnreadCount)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "3", convs[0].LastMessage.Text)
	assert.Equal(t, m3.Timestamp, convs[0].UpdatedAt)

	msgs, err := f.svc.ConversationMessages(ctx, m1.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text})

	f.users.as(f.b)
	require.NoError(t, f.svc.MarkConversationAsRead(ctx, m1.ConversationID))
	assert.Equal(t, 0, f.svc.TotalUnreadCount(ctx))

	f.users.as(f.a)
	_, err = f.svc.SendMessage(ctx, "bob", "4")
	require.NoError(t, err)
	f.users.as(f.b)
	convs = f.svc.Conversations(ctx)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, 1, f.svc.TotalUnreadCount(ctx))

	msgs, err = f.svc.ConversationMessages(ctx, m1.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.True(t, msgs[2].Read)
	assert.False(t, msgs[3].Read)
}

func TestMarkConversationAsRead_OnlyThatConversation(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)
	f.befriend(t, f.a, f.b)
	f.befriend(t, f.a, f.c)

	f.users.as(f.a)
	withBob, err := f.svc.SendMessage(ctx, "bob", "hi bob")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, "bob", "still there?")
	require.NoError(t, err)
	withCarol, err := f.svc.SendMessage(ctx, "carol", "hi carol")
	require.NoError(t, err)
	require.NotEqual(t, withBob.ConversationID, withCarol.ConversationID)

	convs := f.svc.Conversations(ctx)
	require.Len(t, convs, 2)
	assert.Equal(t, withCarol.ConversationID, convs[0].ID, "most recent first")
	assert.Equal(t, 3, f.svc.TotalUnreadCount(ctx))

	require.NoError(t, f.svc.MarkConversationAsRead(ctx, withBob.ConversationID))

	for _, c := range f.svc.Conversations(ctx) {
		switch c.ID {
		case withBob.ConversationID:
			assert.Equal(t, 0, c.UnreadCount)
		case withCarol.ConversationID:
			assert.Equal(t, 1, c.UnreadCount)
		}
	}
	assert.Equal(t, 1, f.svc.TotalUnreadCount(ctx))

	assert.ErrorIs(t, f.svc.MarkConversationAsRead(ctx, "missing"), domain.ErrConversationNotFound)

	f.users.as(f.b)
	assert.ErrorIs(t, f.svc.MarkConversationAsRead(ctx, withCarol.ConversationID), domain.ErrConversationNotFound,
		"not a participant")

	f.users.as(nil)
	assert.ErrorIs(t, f.svc.MarkConversationAsRead(ctx, withBob.ConversationID), domain.ErrNotSignedIn)
	_, err = f.svc.ConversationMessages(ctx, withBob.ConversationID)
	assert.ErrorIs(t, err, domain.ErrNotSignedIn)
}

func TestSendMessage_SignedOutLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)
	f.befriend(t, f.a, f.b)

	f.users.as(nil)
	_, err := f.svc.SendMessage(ctx, "bob", "hi")
	assert.ErrorIs(t, err, domain.ErrNotSignedIn)

	snap := f.svc.Snapshot()
	assert.Empty(t, snap.Conversations)
	assert.Empty(t, snap.Messages)
	_, err = f.kv.Get(ctx, domain.KeyMessages)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.kv.Get(ctx, domain.KeyConversations)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Empty(t, f.svc.Friends(ctx))
	assert.Empty(t, f.svc.Conversations(ctx))
	assert.Zero(t, f.svc.TotalUnreadCount(ctx))
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)
	f.befriend(t, f.a, f.b)
	f.users.as(f.a)

	_, err := f.svc.SendMessage(ctx, "carol", "hi")
	assert.ErrorIs(t, err, domain.ErrFriendNotFound)

	_, err = f.svc.SendMessage(ctx, "bob", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.SendMessage(ctx, "bob", strings.Repeat("a", 501))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	m, err := f.svc.SendMessage(ctx, "bob", strings.Repeat("é", 500))
	require.NoError(t, err)
	assert.Equal(t, 500, len([]rune(m.Text)))
}

func TestTotalUnreadCount_MatchesSum(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)
	f.befriend(t, f.a, f.b)
	f.befriend(t, f.a, f.c)

	check := func() {
		t.Helper()
		sum := 0
		for _, c := range f.svc.Conversations(ctx) {
			sum += c.UnreadCount
		}
		assert.Equal(t, sum, f.svc.TotalUnreadCount(ctx))
	}

	send := func(from *domain.User, to, text string) func() {
		return func() {
			f.users.as(from)
			_, err := f.svc.SendMessage(ctx, to, text)
			require.NoError(t, err)
		}
	}

	steps := []func(){
		send(f.a, "bob", "a"),
		send(f.b, "alice", "b"),
		send(f.c, "alice", "c"),
		func() {
			f.users.as(f.a)
			for _, c := range f.svc.Conversations(ctx) {
				if c.Includes("bob") {
					_ = f.svc.MarkConversationAsRead(ctx, c.ID)
				}
			}
		},
		send(f.c, "alice", "again"),
	}
	for _, step := range steps {
		step()
		for _, u := range []*domain.User{f.a, f.b, f.c} {
			f.users.as(u)
			check()
		}
	}

	f.users.as(f.a)
	assert.Equal(t, 2, f.svc.TotalUnreadCount(ctx))
}

func TestSyncContacts(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)

	_, err := f.svc.SyncContacts(ctx)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	f.book.Upload([]domain.Contact{
		{ID: "c1", Name: "Bill", Emails: []string{"bill@x.com"}, ImageURI: "file://bill.jpg"},
		{ID: "c2", Emails: []string{" ", "anon@x.com"}},
		{ID: "c3", Name: "No Email"},
	})
	granted, err := f.svc.RequestContactsPermission(ctx)
	require.NoError(t, err)
	assert.True(t, granted)

	candidates, err := f.svc.SyncContacts(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Bill", candidates[0].Name)
	assert.Equal(t, "file://bill.jpg", candidates[0].Avatar)
	assert.Equal(t, "Unknown", candidates[1].Name)
	assert.Equal(t, "anon@x.com", candidates[1].Email)
	for _, c := range candidates {
		assert.Equal(t, domain.StatusPending, c.Status)
	}

	_, err = f.kv.Get(ctx, domain.KeyFriends)
	assert.ErrorIs(t, err, domain.ErrNotFound, "candidates are not persisted")

	unsupported := service.NewSocialService(memory.NewKVStore(), newFakeUsers(), contacts.Unsupported{}, nil)
	ok, err := unsupported.RequestContactsPermission(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSocialLoad_RestoresPersistedLists(t *testing.T) {
	ctx := context.Background()
	f := newSocial(t)
	f.befriend(t, f.a, f.b)
	f.users.as(f.a)
	_, err := f.svc.SendMessage(ctx, "bob", "persisted")
	require.NoError(t, err)

	reloaded := service.NewSocialService(f.kv, f.users, contacts.Unsupported{}, nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.Friends(ctx), 1)
	convs := reloaded.Conversations(ctx)
	require.Len(t, convs, 1)
	assert.Equal(t, "persisted", convs[0].LastMessage.Text)
}
