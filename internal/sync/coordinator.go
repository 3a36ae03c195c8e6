// Package sync hosts the hybrid coordinator: it routes every task and
// category operation to the remote adapter or the local repositories,
// reconciles local records into the remote service when a user signs in,
// and falls back to the local path whenever a remote operation fails.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/cache"
	"todo-sync/internal/models"
	"todo-sync/internal/session"
	"todo-sync/internal/store"
)

// TaskBackend is the CRUD contract both the local repository and the
// remote adapter implement.
type TaskBackend interface {
	Create(ctx context.Context, input models.TaskInput) (*models.Task, error)
	Update(ctx context.Context, id string, upd models.TaskUpdate) (*models.Task, error)
	Toggle(ctx context.Context, id string) (*models.Task, error)
	Delete(ctx context.Context, id string) error
	ClearCompleted(ctx context.Context) (int, error)
	List(ctx context.Context, opts models.TaskListOptions) ([]models.Task, error)
	Stats(ctx context.Context) (models.TaskStats, error)
}

type CategoryBackend interface {
	Create(ctx context.Context, input models.CategoryInput) (*models.Category, error)
	Update(ctx context.Context, id string, upd models.CategoryUpdate) (*models.Category, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Category, error)
}

// CategoryPusher mirrors a local category into the remote table verbatim;
// the remote category adapter implements it.
type CategoryPusher interface {
	Push(ctx context.Context, local models.Category) (*models.Category, error)
}

// UserScoped is how the coordinator propagates the authenticated user to
// the remote client.
type UserScoped interface {
	SetUser(userID string)
}

type State int

const (
	StateLocalOnly State = iota
	StateSyncing
	StateRemoteAuthoritative
)

func (s State) String() string {
	switch s {
	case StateSyncing:
		return "syncing"
	case StateRemoteAuthoritative:
		return "remote-authoritative"
	default:
		return "local-only"
	}
}

type Collection string

const (
	CollectionTasks      Collection = "tasks"
	CollectionCategories Collection = "categories"
)

const (
	listCacheTTL  = 10 * time.Minute
	statsCacheTTL = 5 * time.Minute
)

type Options struct {
	LocalTasks       TaskBackend
	LocalCategories  CategoryBackend
	RemoteTasks      TaskBackend      // nil disables the remote path
	RemoteCategories CategoryBackend  // nil disables the remote path
	RemotePusher     CategoryPusher   // nil disables the sign-in push
	RemoteClient     UserScoped       // receives the user id on sign-in
	Session          *session.Manager
	Store            *store.Store
	IDMap            *IDMap
	Cache            *cache.MultiLevelCache
	// MinSyncInterval spaces sync passes; bursts of auth events within it
	// are coalesced onto the single-flight pass or dropped.
	MinSyncInterval time.Duration
	Logger          zerolog.Logger
}

type Coordinator struct {
	localTasks  TaskBackend
	remoteTasks TaskBackend
	localCats   CategoryBackend
	remoteCats  CategoryBackend
	pusher      CategoryPusher
	client      UserScoped

	session *session.Manager
	store   *store.Store
	idmap   *IDMap
	cache   *cache.MultiLevelCache
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu     stdsync.Mutex
	states map[Collection]State
	flight chan struct{} // non-nil while a sync pass is running
}

func NewCoordinator(opts Options) *Coordinator {
	interval := opts.MinSyncInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	c := &Coordinator{
		localTasks:  opts.LocalTasks,
		remoteTasks: opts.RemoteTasks,
		localCats:   opts.LocalCategories,
		remoteCats:  opts.RemoteCategories,
		pusher:      opts.RemotePusher,
		client:      opts.RemoteClient,
		session:     opts.Session,
		store:       opts.Store,
		idmap:       opts.IDMap,
		cache:       opts.Cache,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		logger:      opts.Logger,
		states: map[Collection]State{
			CollectionTasks:      StateLocalOnly,
			CollectionCategories: StateLocalOnly,
		},
	}
	c.session.OnEvent(c.handleSessionEvent)
	return c
}

// State reports the current routing state for a collection.
func (c *Coordinator) State(col Collection) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[col]
}

func (c *Coordinator) setState(col Collection, s State) {
	c.mu.Lock()
	c.states[col] = s
	c.mu.Unlock()
}

// useRemote gates the remote routing decision: both the session and the
// collection's state machine must agree.
func (c *Coordinator) useRemote(col Collection) bool {
	if c.remoteTasks == nil || c.remoteCats == nil {
		return false
	}
	if !c.session.Authenticated() || !c.session.Online() {
		return false
	}
	return c.State(col) == StateRemoteAuthoritative
}

// fallthroughToLocal decides whether an error coming off the remote path
// should be absorbed by retrying locally. Validation and not-found results
// are business outcomes and returned as-is.
func (c *Coordinator) fallthroughToLocal(op string, err error) bool {
	if !apperrors.IsRemote(err) {
		return false
	}
	c.logger.Warn().Err(err).Str("op", op).Msg("remote path failed, serving local fallback")
	return true
}

func (c *Coordinator) handleSessionEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventSignIn, session.EventSessionRestore:
		if c.client != nil && ev.User != nil {
			c.client.SetUser(ev.User.UserID)
		}
		c.TriggerSync(context.Background())
	case session.EventSignOut:
		if c.client != nil {
			c.client.SetUser("")
		}
		c.purgeLocal()
		c.setState(CollectionTasks, StateLocalOnly)
		c.setState(CollectionCategories, StateLocalOnly)
	case session.EventOffline:
		c.setState(CollectionTasks, StateLocalOnly)
		c.setState(CollectionCategories, StateLocalOnly)
		c.invalidateTasks()
		c.invalidateCategories()
	case session.EventOnline:
		if c.session.Authenticated() {
			c.TriggerSync(context.Background())
		}
	}
}

// purgeLocal drops the cached task/category namespaces on sign-out, along
// with the id map that tied them to remote rows.
func (c *Coordinator) purgeLocal() {
	c.store.Remove(store.KeyTasks)
	c.store.Remove(store.KeyCategories)
	c.idmap.Clear()
	c.invalidateTasks()
	c.invalidateCategories()
}

// TriggerSync starts a sync pass unless one is already in flight, in which
// case the caller is handed the running pass's completion channel.
// Passes are additionally spaced by the configured minimum interval.
func (c *Coordinator) TriggerSync(ctx context.Context) <-chan struct{} {
	c.mu.Lock()
	if c.flight != nil {
		ch := c.flight
		c.mu.Unlock()
		return ch
	}
	if !c.limiter.Allow() {
		c.mu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}
	ch := make(chan struct{})
	c.flight = ch
	c.states[CollectionCategories] = StateSyncing
	c.states[CollectionTasks] = StateSyncing
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.flight = nil
			c.mu.Unlock()
			close(ch)
		}()
		c.runSync(ctx)
	}()
	return ch
}

// runSync reconciles categories into the remote table (diffed by
// case-insensitive name), then performs the canonical fetches that flip
// each collection to Remote-Authoritative. Tasks are not pushed: only the
// category collection auto-syncs on sign-in.
func (c *Coordinator) runSync(ctx context.Context) {
	if c.remoteCats == nil || !c.session.Authenticated() || !c.session.Online() {
		c.setState(CollectionTasks, StateLocalOnly)
		c.setState(CollectionCategories, StateLocalOnly)
		return
	}

	remotes, err := c.remoteCats.List(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("category sync aborted, staying local")
		c.setState(CollectionTasks, StateLocalOnly)
		c.setState(CollectionCategories, StateLocalOnly)
		return
	}

	locals, _ := c.localCats.List(ctx)
	for _, local := range locals {
		if match := findByName(remotes, local.Name); match != nil {
			c.idmap.Record(local.ID, match.ID)
			continue
		}
		if c.pusher == nil {
			continue
		}
		pushed, err := c.pusher.Push(ctx, local)
		if err != nil {
			// A concurrent pass may have won the create; the name
			// uniqueness check surfaces that as a validation error.
			c.logger.Warn().Err(err).Str("category", local.Name).Msg("category push failed")
			continue
		}
		c.idmap.Record(local.ID, pushed.ID)
		remotes = append(remotes, *pushed)
	}

	canonical, err := c.remoteCats.List(ctx)
	if err != nil {
		c.setState(CollectionCategories, StateLocalOnly)
		c.setState(CollectionTasks, StateLocalOnly)
		return
	}
	// Listings and stats cached before the flip reflect local data; drop
	// them so every read after the flip comes from the remote service.
	c.invalidateCategories()
	c.cache.Set(categoryListKey, canonical, listCacheTTL)
	c.setState(CollectionCategories, StateRemoteAuthoritative)

	tasks, err := c.remoteTasks.List(ctx, models.TaskListOptions{})
	if err != nil {
		c.logger.Warn().Err(err).Msg("canonical task fetch failed, tasks stay local")
		c.setState(CollectionTasks, StateLocalOnly)
		return
	}
	c.invalidateTasks()
	c.setState(CollectionTasks, StateRemoteAuthoritative)
	c.logger.Info().Int("categories", len(canonical)).Int("tasks", len(tasks)).
		Msg("sync pass complete, remote authoritative")
}

func findByName(categories []models.Category, name string) *models.Category {
	for i := range categories {
		if models.EqualNames(categories[i].Name, name) {
			return &categories[i]
		}
	}
	return nil
}

const categoryListKey = "categories:list"

func taskListKey(opts models.TaskListOptions) string {
	filter := "-"
	if opts.HasCategoryFilter {
		if opts.FilterCategory == nil {
			filter = "null"
		} else {
			filter = *opts.FilterCategory
		}
	}
	return fmt.Sprintf("tasks:list:%s:%s:%s", filter, opts.SortBy, opts.SortDirection)
}

func (c *Coordinator) invalidateTasks() {
	c.cache.DeletePattern("tasks:*")
}

func (c *Coordinator) invalidateCategories() {
	c.cache.Delete(categoryListKey)
	// Category renames and deletions change how task listings resolve.
	c.cache.DeletePattern("tasks:*")
}
