package service_test

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

// MockKV lets tests fail individual writes.
type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockKV) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockKV) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockKV) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeUsers is a switchable identity so one social store can act for
// several users in turn.
type fakeUsers struct {
	current *domain.User
	awarded map[string]int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{awarded: make(map[string]int)}
}

func (f *fakeUsers) as(u *domain.User) { f.current = u }

func (f *fakeUsers) CurrentUser(context.Context) (*domain.User, error) {
	if f.current == nil {
		return nil, domain.ErrNotSignedIn
	}
	u := *f.current
	return &u, nil
}

func (f *fakeUsers) Award(_ context.Context, points int, _ string) (*domain.User, error) {
	if f.current == nil {
		return nil, domain.ErrNotSignedIn
	}
	f.current.Points += points
	f.awarded[f.current.ID] += points
	u := *f.current
	return &u, nil
}

// ticker returns a clock that advances one second per call.
func ticker() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var (
	alice = &domain.User{ID: "alice", Name: "Alice", Email: "alice@x.com"}
	bob   = &domain.User{ID: "bob", Name: "Bob", Email: "bob@x.com"}
	carol = &domain.User{ID: "carol", Name: "Carol", Email: "carol@x.com"}
)

func userCopy(u *domain.User) *domain.User {
	c := *u
	return &c
}

func validFind() domain.BourbonFind {
	price := 129.99
	return domain.BourbonFind{
		StoreName:    "Liquor Barn",
		StoreAddress: "1850 S Hurstbourne Pkwy",
		BourbonName:  "Pappy Van Winkle 15",
		BourbonBrand: "Pappy Van Winkle",
		Price:        &price,
		Photos:       []string{"https://img/p.jpg"},
		Description:  "Lottery bottle",
	}
}
