package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fridayce/rork-mapcask/internal/catalog"
	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/geo"
	"github.com/fridayce/rork-mapcask/internal/leveling"
	"github.com/fridayce/rork-mapcask/internal/store"
)

// Identity is the identity and catalog store as seen by handlers.
type Identity interface {
	SignIn(ctx context.Context, name, email string) (*domain.User, error)
	SignOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, in ProfileUpdate) (*domain.User, error)
	CurrentUser(ctx context.Context) (*domain.User, error)

	AddFind(ctx context.Context, f domain.BourbonFind) ([]domain.BourbonFind, error)
	AddStore(ctx context.Context, s domain.LiquorStore) ([]domain.LiquorStore, error)
	AddSpeakeasy(ctx context.Context, s domain.Speakeasy) ([]domain.Speakeasy, error)
	ShareFind(ctx context.Context, findID string) (*domain.User, error)
	RecordActivity(ctx context.Context, a leveling.Activity) (*domain.User, int, error)

	Stores() []domain.LiquorStore
	Finds() []domain.BourbonFind
	Speakeasies() []domain.Speakeasy
	Find(id string) (*domain.BourbonFind, error)
	Speakeasy(id string) (*domain.Speakeasy, error)
	UserFinds() []domain.BourbonFind
	NearbyFinds(at domain.Location, radiusKm float64) []NearbyFind
	Progress() (leveling.Summary, error)
}

// AppService owns the signed-in user, liquor stores, finds and speakeasies.
type AppService struct {
	kv     domain.KeyValueStore
	events publisher
	outbox outbox
	clock

	mu          sync.RWMutex
	user        *domain.User
	stores      []domain.LiquorStore
	finds       []domain.BourbonFind
	speakeasies []domain.Speakeasy
}

func NewAppService(kv domain.KeyValueStore, ev domain.EventPublisher) *AppService {
	return &AppService{
		kv:     kv,
		events: newPublisher(ev),
		clock:  defaultClock(),
	}
}

var _ Identity = (*AppService)(nil)

// unlock releases s.mu, then publishes what the critical section raised.
func (s *AppService) unlock(ctx context.Context) {
	pending := s.outbox.take()
	s.mu.Unlock()
	s.events.flush(ctx, pending)
}

// Load replaces the in-memory state with what is persisted. Absent lists
// fall back to the bundled seed content.
func (s *AppService) Load(ctx context.Context) error {
	seed, err := catalog.DefaultSeed()
	if err != nil {
		return err
	}

	var user domain.User
	hasUser, err := store.LoadJSON(ctx, s.kv, domain.KeyUser, &user)
	if err != nil {
		return err
	}
	// Decode into fresh slices: decoding over the seed would keep seed
	// values in fields a persisted record omits.
	var stores []domain.LiquorStore
	found, err := store.LoadJSON(ctx, s.kv, domain.KeyStores, &stores)
	if err != nil {
		return err
	}
	if !found {
		stores = seed.Stores
	}
	var finds []domain.BourbonFind
	if found, err = store.LoadJSON(ctx, s.kv, domain.KeyFinds, &finds); err != nil {
		return err
	}
	if !found {
		finds = seed.Finds
	}
	var speakeasies []domain.Speakeasy
	if found, err = store.LoadJSON(ctx, s.kv, domain.KeySpeakeasies, &speakeasies); err != nil {
		return err
	}
	if !found {
		speakeasies = seed.Speakeasies
	}

	s.mu.Lock()
	defer s.unlock(ctx)
	s.user = nil
	if hasUser {
		s.user = &user
	}
	s.stores, s.finds, s.speakeasies = stores, finds, speakeasies
	return nil
}

type signInInput struct {
	Name  string `validate:"required,max=80"`
	Email string `validate:"required,email"`
}

// SignIn creates a fresh user with zero points and makes it current.
func (s *AppService) SignIn(ctx context.Context, name, email string) (*domain.User, error) {
	in := signInInput{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if err := validate.Struct(in); err != nil {
		return nil, invalid(err)
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	u := domain.User{
		ID:       s.NewID(),
		Name:     in.Name,
		Email:    in.Email,
		Avatar:   "https://i.pravatar.cc/150?u=" + in.Email,
		Points:   0,
		JoinedAt: s.now(),
	}
	if err := store.SaveJSON(ctx, s.kv, domain.KeyUser, u); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	s.user = &u
	return copyUser(&u), nil
}

// SignOut is idempotent.
func (s *AppService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.unlock(ctx)

	if err := s.kv.Delete(ctx, domain.KeyUser); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.user = nil
	return nil
}

// ProfileUpdate holds the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Name   *string `json:"name" validate:"omitnil,min=1,max=80"`
	Email  *string `json:"email" validate:"omitnil,email"`
	Avatar *string `json:"avatar" validate:"omitnil,max=2048"`
	City   *string `json:"city" validate:"omitnil,max=80"`
	State  *string `json:"state" validate:"omitnil,max=2"`
}

func (s *AppService) UpdateProfile(ctx context.Context, in ProfileUpdate) (*domain.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, invalid(err)
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	if s.user == nil {
		return nil, domain.ErrNotSignedIn
	}
	u := *s.user
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.Avatar != nil {
		u.Avatar = *in.Avatar
	}
	if in.City != nil {
		u.City = *in.City
	}
	if in.State != nil {
		u.State = strings.ToUpper(*in.State)
	}
	if err := store.SaveJSON(ctx, s.kv, domain.KeyUser, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.user = &u
	s.outbox.add(domain.EventUserUpdated, u, s.now(), u.ID)
	return copyUser(&u), nil
}

// commitList persists next under key and, when someone is signed in, the
// user with points added. If the user write fails prev is written back, so
// either both writes land or neither does. The caller swaps the in-memory
// state only on success; the returned user is nil when nobody is signed in.
func (s *AppService) commitList(ctx context.Context, key string, next, prev any, points int) (*domain.User, error) {
	if err := store.SaveJSON(ctx, s.kv, key, next); err != nil {
		return nil, err
	}
	if s.user == nil || points == 0 {
		return nil, nil
	}

	u := *s.user
	u.Points += points
	if err := store.SaveJSON(ctx, s.kv, domain.KeyUser, u); err != nil {
		awardErr := fmt.Errorf("award points: %w", err)
		if rbErr := store.SaveJSON(ctx, s.kv, key, prev); rbErr != nil {
			return nil, errors.Join(awardErr, fmt.Errorf("restore %s: %w", key, rbErr))
		}
		return nil, awardErr
	}
	return &u, nil
}

// AddFind prepends f to the find list and awards the find reward to the
// signed-in user. It returns the new list.
func (s *AppService) AddFind(ctx context.Context, f domain.BourbonFind) ([]domain.BourbonFind, error) {
	if err := validate.Struct(f); err != nil {
		return nil, invalid(err)
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	f.ID = s.NewID()
	f.Timestamp = s.now()
	f.Location = geo.OrFallback(f.Location)
	if s.user != nil {
		f.HunterID, f.HunterName, f.HunterAvatar = s.user.ID, s.user.Name, s.user.Avatar
	} else if f.HunterName == "" {
		f.HunterName = "Anonymous"
	}

	next := append([]domain.BourbonFind{f}, s.finds...)
	u, err := s.commitList(ctx, domain.KeyFinds, next, s.finds, leveling.RewardAddFind)
	if err != nil {
		return nil, fmt.Errorf("add find: %w", err)
	}
	s.finds = next
	s.applyAward(ctx, u)
	s.outbox.add(domain.EventFindAdded, f, f.Timestamp)
	return append([]domain.BourbonFind(nil), next...), nil
}

// AddStore appends st to the store list.
func (s *AppService) AddStore(ctx context.Context, st domain.LiquorStore) ([]domain.LiquorStore, error) {
	if err := validate.Struct(st); err != nil {
		return nil, invalid(err)
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	st.ID = s.NewID()
	st.AddedAt = s.now()
	st.Location = geo.OrFallback(st.Location)
	if s.user != nil {
		st.AddedBy, st.AddedByID = s.user.Name, s.user.ID
	} else if st.AddedBy == "" {
		st.AddedBy = "Anonymous"
	}

	next := append(append([]domain.LiquorStore(nil), s.stores...), st)
	u, err := s.commitList(ctx, domain.KeyStores, next, s.stores, leveling.RewardAddStore)
	if err != nil {
		return nil, fmt.Errorf("add store: %w", err)
	}
	s.stores = next
	s.applyAward(ctx, u)
	s.outbox.add(domain.EventStoreAdded, st, st.AddedAt)
	return append([]domain.LiquorStore(nil), next...), nil
}

// AddSpeakeasy prepends sp to the speakeasy list.
func (s *AppService) AddSpeakeasy(ctx context.Context, sp domain.Speakeasy) ([]domain.Speakeasy, error) {
	if err := validate.Struct(sp); err != nil {
		return nil, invalid(err)
	}

	s.mu.Lock()
	defer s.unlock(ctx)

	sp.ID = s.NewID()
	sp.AddedAt = s.now()
	sp.Location = geo.OrFallback(sp.Location)
	if s.user != nil {
		sp.RecommendedBy, sp.RecommendedByID, sp.RecommendedByAvatar = s.user.Name, s.user.ID, s.user.Avatar
	} else if sp.RecommendedBy == "" {
		sp.RecommendedBy = "Anonymous"
	}

	next := append([]domain.Speakeasy{sp}, s.speakeasies...)
	u, err := s.commitList(ctx, domain.KeySpeakeasies, next, s.speakeasies, leveling.RewardAddSpeakeasy)
	if err != nil {
		return nil, fmt.Errorf("add speakeasy: %w", err)
	}
	s.speakeasies = next
	s.applyAward(ctx, u)
	s.outbox.add(domain.EventSpeakeasyAdded, sp, sp.AddedAt)
	return append([]domain.Speakeasy(nil), next...), nil
}

func (s *AppService) applyAward(ctx context.Context, u *domain.User) {
	if u == nil {
		return
	}
	s.user = u
	s.outbox.add(domain.EventUserUpdated, *u, s.now(), u.ID)
}

// award adds points to the signed-in user. Callers hold s.mu.
func (s *AppService) award(ctx context.Context, points int) (*domain.User, error) {
	if s.user == nil {
		return nil, domain.ErrNotSignedIn
	}
	if points < 0 {
		return nil, fmt.Errorf("%w: points must not be negative", domain.ErrInvalidInput)
	}
	u := *s.user
	u.Points += points
	if err := store.SaveJSON(ctx, s.kv, domain.KeyUser, u); err != nil {
		return nil, err
	}
	s.applyAward(ctx, &u)
	return copyUser(&u), nil
}

// Award grants points to the signed-in user. reason annotates errors.
func (s *AppService) Award(ctx context.Context, points int, reason string) (*domain.User, error) {
	s.mu.Lock()
	defer s.unlock(ctx)

	u, err := s.award(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("award %s: %w", reason, err)
	}
	return u, nil
}

func (s *AppService) ShareFind(ctx context.Context, findID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.unlock(ctx)

	if s.user == nil {
		return nil, domain.ErrNotSignedIn
	}
	if indexFind(s.finds, findID) < 0 {
		return nil, domain.ErrFindNotFound
	}
	u, err := s.award(ctx, leveling.RewardShareFind)
	if err != nil {
		return nil, fmt.Errorf("share find: %w", err)
	}
	return u, nil
}

// RecordActivity awards the level-dependent reward for a and returns the
// updated user along with the points earned.
func (s *AppService) RecordActivity(ctx context.Context, a leveling.Activity) (*domain.User, int, error) {
	s.mu.Lock()
	defer s.unlock(ctx)

	if s.user == nil {
		return nil, 0, domain.ErrNotSignedIn
	}
	reward, err := leveling.ActivityReward(s.user.Points, a)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	u, err := s.award(ctx, reward)
	if err != nil {
		return nil, 0, fmt.Errorf("record activity: %w", err)
	}
	return u, reward, nil
}

// CurrentUser returns ErrNotSignedIn when nobody is signed in.
func (s *AppService) CurrentUser(context.Context) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, domain.ErrNotSignedIn
	}
	return copyUser(s.user), nil
}

func (s *AppService) Stores() []domain.LiquorStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LiquorStore(nil), s.stores...)
}

func (s *AppService) Finds() []domain.BourbonFind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.BourbonFind(nil), s.finds...)
}

func (s *AppService) Speakeasies() []domain.Speakeasy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Speakeasy(nil), s.speakeasies...)
}

func (s *AppService) Find(id string) (*domain.BourbonFind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexFind(s.finds, id)
	if i < 0 {
		return nil, domain.ErrFindNotFound
	}
	f := s.finds[i]
	return &f, nil
}

func (s *AppService) Speakeasy(id string) (*domain.Speakeasy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.speakeasies {
		if sp.ID == id {
			return &sp, nil
		}
	}
	return nil, fmt.Errorf("speakeasy %s: %w", id, domain.ErrNotFound)
}

// UserFinds returns the signed-in user's finds, matched by hunter id.
func (s *AppService) UserFinds() []domain.BourbonFind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	res := []domain.BourbonFind{}
	for _, f := range s.finds {
		if f.HunterID == s.user.ID {
			res = append(res, f)
		}
	}
	return res
}

// NearbyFind is a find with its distance from the query point.
type NearbyFind struct {
	domain.BourbonFind
	DistanceKm float64 `json:"distance_km"`
}

// NearbyFinds returns finds within radiusKm of at, nearest first.
func (s *AppService) NearbyFinds(at domain.Location, radiusKm float64) []NearbyFind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := []NearbyFind{}
	for _, f := range s.finds {
		if d := geo.DistanceKm(at, f.Location); d <= radiusKm {
			res = append(res, NearbyFind{BourbonFind: f, DistanceKm: d})
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].DistanceKm < res[j].DistanceKm })
	return res
}

func (s *AppService) Progress() (leveling.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return leveling.Summary{}, domain.ErrNotSignedIn
	}
	return leveling.Summarize(s.user.Points), nil
}

// Snapshot is a consistent copy of the store state.
type Snapshot struct {
	User        *domain.User         `json:"current_user"`
	Stores      []domain.LiquorStore `json:"stores"`
	Finds       []domain.BourbonFind `json:"finds"`
	Speakeasies []domain.Speakeasy   `json:"speakeasies"`
}

func (s *AppService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var u *domain.User
	if s.user != nil {
		u = copyUser(s.user)
	}
	return Snapshot{
		User:        u,
		Stores:      append([]domain.LiquorStore(nil), s.stores...),
		Finds:       append([]domain.BourbonFind(nil), s.finds...),
		Speakeasies: append([]domain.Speakeasy(nil), s.speakeasies...),
	}
}

func indexFind(finds []domain.BourbonFind, id string) int {
	for i := range finds {
		if finds[i].ID == id {
			return i
		}
	}
	return -1
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}
