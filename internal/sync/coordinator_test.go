package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/cache"
	"todo-sync/internal/models"
	"todo-sync/internal/repository"
	"todo-sync/internal/session"
	"todo-sync/internal/store"
)

// fakeRemote implements the task and category backends plus the pusher,
// with injectable failures and call counting.
type fakeRemote struct {
	mu         stdsync.Mutex
	tasks      []models.Task
	categories []models.Category
	nextID     int
	failWith   error
	userID     string

	taskListCalls int
	pushCalls     int
}

func (f *fakeRemote) SetUser(userID string) {
	f.mu.Lock()
	f.userID = userID
	f.mu.Unlock()
}

func (f *fakeRemote) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWith
}

func (f *fakeRemote) id() string {
	f.nextID++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", f.nextID)
}

func (f *fakeRemote) Create(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	title, err := models.ValidateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task := models.Task{
		ID:         f.id(),
		Title:      title,
		CreatedAt:  time.Now(),
		Order:      len(f.tasks),
		CategoryID: input.CategoryID,
		DueDate:    input.DueDate,
	}
	f.tasks = append(f.tasks, task)
	return &task, nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, upd models.TaskUpdate) (*models.Task, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		if upd.Title != nil {
			f.tasks[i].Title = *upd.Title
		}
		if upd.Completed != nil {
			f.tasks[i].Completed = *upd.Completed
		}
		if upd.ClearCategory {
			f.tasks[i].CategoryID = nil
		} else if upd.CategoryID != nil {
			f.tasks[i].CategoryID = upd.CategoryID
		}
		if upd.ClearDueDate {
			f.tasks[i].DueDate = nil
		} else if upd.DueDate != nil {
			f.tasks[i].DueDate = upd.DueDate
		}
		task := f.tasks[i]
		return &task, nil
	}
	return nil, apperrors.NotFoundf("task %s not found", id)
}

func (f *fakeRemote) Toggle(ctx context.Context, id string) (*models.Task, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Completed = !f.tasks[i].Completed
			task := f.tasks[i]
			return &task, nil
		}
	}
	return nil, apperrors.NotFoundf("task %s not found", id)
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFoundf("task %s not found", id)
}

func (f *fakeRemote) ClearCompleted(ctx context.Context) (int, error) {
	if err := f.fail(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.tasks[:0]
	removed := 0
	for _, t := range f.tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	f.tasks = kept
	return removed, nil
}

func (f *fakeRemote) List(ctx context.Context, opts models.TaskListOptions) ([]models.Task, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskListCalls++
	out := make([]models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if opts.HasCategoryFilter {
			if opts.FilterCategory == nil && t.CategoryID != nil {
				continue
			}
			if opts.FilterCategory != nil && (t.CategoryID == nil || *t.CategoryID != *opts.FilterCategory) {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRemote) Stats(ctx context.Context) (models.TaskStats, error) {
	if err := f.fail(); err != nil {
		return models.TaskStats{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return repository.ComputeStats(f.tasks, time.Now()), nil
}

// category backend half

type fakeRemoteCategories struct {
	remote *fakeRemote
}

func (f *fakeRemoteCategories) Create(ctx context.Context, input models.CategoryInput) (*models.Category, error) {
	if err := f.remote.fail(); err != nil {
		return nil, err
	}
	name, err := models.ValidateCategoryName(input.Name)
	if err != nil {
		return nil, err
	}
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	for _, c := range f.remote.categories {
		if models.EqualNames(c.Name, name) {
			return nil, apperrors.Validationf("category %q already exists", c.Name)
		}
	}
	category := models.Category{ID: f.remote.id(), Name: name, Color: input.Color, CreatedAt: time.Now()}
	f.remote.categories = append(f.remote.categories, category)
	return &category, nil
}

func (f *fakeRemoteCategories) Update(ctx context.Context, id string, upd models.CategoryUpdate) (*models.Category, error) {
	if err := f.remote.fail(); err != nil {
		return nil, err
	}
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	for i := range f.remote.categories {
		if f.remote.categories[i].ID == id {
			if upd.Name != nil {
				f.remote.categories[i].Name = *upd.Name
			}
			if upd.Color != nil {
				f.remote.categories[i].Color = *upd.Color
			}
			category := f.remote.categories[i]
			return &category, nil
		}
	}
	return nil, apperrors.NotFoundf("category %s not found", id)
}

func (f *fakeRemoteCategories) Delete(ctx context.Context, id string) error {
	if err := f.remote.fail(); err != nil {
		return err
	}
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	for i := range f.remote.categories {
		if f.remote.categories[i].ID == id {
			f.remote.categories = append(f.remote.categories[:i], f.remote.categories[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFoundf("category %s not found", id)
}

func (f *fakeRemoteCategories) List(ctx context.Context) ([]models.Category, error) {
	if err := f.remote.fail(); err != nil {
		return nil, err
	}
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	out := make([]models.Category, len(f.remote.categories))
	copy(out, f.remote.categories)
	return out, nil
}

func (f *fakeRemoteCategories) Push(ctx context.Context, local models.Category) (*models.Category, error) {
	if err := f.remote.fail(); err != nil {
		return nil, err
	}
	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	f.remote.pushCalls++
	category := models.Category{
		ID:        f.remote.id(),
		Name:      local.Name,
		Color:     local.Color,
		CreatedAt: local.CreatedAt,
	}
	f.remote.categories = append(f.remote.categories, category)
	return &category, nil
}

type fixture struct {
	coordinator *Coordinator
	sessions    *session.Manager
	store       *store.Store
	idmap       *IDMap
	remote      *fakeRemote
	localTasks  *repository.TaskRepository
	localCats   *repository.CategoryRepository
}

func newFixture(t *testing.T, withRemote bool) *fixture {
	t.Helper()
	s := newTestStore(t)
	logger := zerolog.Nop()

	f := &fixture{
		store:      s,
		sessions:   session.NewManager(logger),
		idmap:      NewIDMap(s, logger),
		remote:     &fakeRemote{},
		localTasks: repository.NewTaskRepository(s, logger),
		localCats:  repository.NewCategoryRepository(s, logger),
	}

	opts := Options{
		LocalTasks:      f.localTasks,
		LocalCategories: f.localCats,
		Session:         f.sessions,
		Store:           s,
		IDMap:           f.idmap,
		Cache:           cache.NewMultiLevelCache(nil),
		MinSyncInterval: time.Millisecond,
		Logger:          logger,
	}
	if withRemote {
		cats := &fakeRemoteCategories{remote: f.remote}
		opts.RemoteTasks = f.remote
		opts.RemoteCategories = cats
		opts.RemotePusher = cats
		opts.RemoteClient = f.remote
	}
	f.coordinator = NewCoordinator(opts)
	return f
}

// signIn emits the event and waits for the resulting sync pass.
func (f *fixture) signIn(userID string) {
	f.sessions.SignIn(userID)
	<-f.coordinator.TriggerSync(context.Background())
}

func TestCoordinator_StartsLocalOnly(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	if f.coordinator.State(CollectionTasks) != StateLocalOnly {
		t.Error("Expected tasks local-only before sign-in")
	}

	task, err := f.coordinator.CreateTask(ctx, models.TaskInput{Title: "local task"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// the record must be in the local repository, not the remote fake
	locals, _ := f.localTasks.List(ctx, models.TaskListOptions{})
	if len(locals) != 1 || locals[0].ID != task.ID {
		t.Error("Expected the task persisted locally")
	}
	if len(f.remote.tasks) != 0 {
		t.Error("Expected nothing written remotely before sign-in")
	}
}

func TestCoordinator_SignInPushesLocalCategories(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	local, _ := f.localCats.Create(ctx, models.CategoryInput{Name: "Errands", Color: "#f59e0b"})
	f.remote.categories = []models.Category{
		{ID: "00000000-0000-4000-8000-000000000099", Name: "Work", Color: "#fff"},
	}

	f.signIn("user-1")

	if got := f.coordinator.State(CollectionCategories); got != StateRemoteAuthoritative {
		t.Fatalf("Expected categories remote-authoritative, got %v", got)
	}
	if got := f.coordinator.State(CollectionTasks); got != StateRemoteAuthoritative {
		t.Fatalf("Expected tasks remote-authoritative, got %v", got)
	}

	if f.remote.pushCalls != 1 {
		t.Errorf("Expected exactly the missing category pushed, got %d pushes", f.remote.pushCalls)
	}
	if len(f.remote.categories) != 2 {
		t.Errorf("Expected 2 remote categories, got %d", len(f.remote.categories))
	}
	if _, ok := f.idmap.RemoteID(local.ID); !ok {
		t.Error("Expected the pushed category recorded in the id map")
	}
}

func TestCoordinator_SignInMatchesByNameWithoutPushing(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	local, _ := f.localCats.Create(ctx, models.CategoryInput{Name: "Work", Color: "#000"})
	remoteID := "00000000-0000-4000-8000-000000000042"
	f.remote.categories = []models.Category{{ID: remoteID, Name: "work", Color: "#fff"}}

	f.signIn("user-1")

	if f.remote.pushCalls != 0 {
		t.Errorf("Expected no push for a name match, got %d", f.remote.pushCalls)
	}
	if mapped, _ := f.idmap.RemoteID(local.ID); mapped != remoteID {
		t.Errorf("Expected id map to record the match, got %q", mapped)
	}
}

func TestCoordinator_SignInDropsLocallyCachedReads(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.coordinator.CreateTask(ctx, models.TaskInput{Title: "pre-sign-in"})
	opts := models.TaskListOptions{SortBy: models.SortByOrder, SortDirection: models.SortAsc}
	// warm the listing and stats caches with local data
	f.coordinator.ListTasks(ctx, opts)
	f.coordinator.TaskStats(ctx)

	// the remote account holds no tasks
	f.signIn("user-1")
	if f.coordinator.State(CollectionTasks) != StateRemoteAuthoritative {
		t.Fatal("Expected remote-authoritative after sign-in")
	}

	tasks, err := f.coordinator.ListTasks(ctx, opts)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Expected the remote listing after sign-in, got %d stale local tasks", len(tasks))
	}

	stats, err := f.coordinator.TaskStats(ctx)
	if err != nil {
		t.Fatalf("TaskStats failed: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Expected remote stats after sign-in, got total %d", stats.Total)
	}
}

func TestCoordinator_SyncAbortsToLocalOnRemoteFailure(t *testing.T) {
	f := newFixture(t, true)

	f.remote.failWith = apperrors.RemoteOperation("list categories", errors.New("down"))
	f.signIn("user-1")

	if got := f.coordinator.State(CollectionCategories); got != StateLocalOnly {
		t.Errorf("Expected categories local-only after failed sync, got %v", got)
	}
	if got := f.coordinator.State(CollectionTasks); got != StateLocalOnly {
		t.Errorf("Expected tasks local-only after failed sync, got %v", got)
	}
}

func TestCoordinator_RoutesToRemoteWhenAuthoritative(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.signIn("user-1")

	task, err := f.coordinator.CreateTask(ctx, models.TaskInput{Title: "remote task"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if len(f.remote.tasks) != 1 {
		t.Fatal("Expected the task written remotely")
	}
	locals, _ := f.localTasks.List(ctx, models.TaskListOptions{})
	if len(locals) != 0 {
		t.Error("Expected nothing written locally while remote is authoritative")
	}
	if task.ID != f.remote.tasks[0].ID {
		t.Error("Expected the remote record returned")
	}
}

func TestCoordinator_SilentFallbackOnRemoteError(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.signIn("user-1")
	f.remote.failWith = apperrors.RemoteOperation("create task", errors.New("down"))

	task, err := f.coordinator.CreateTask(ctx, models.TaskInput{Title: "fallback task"})
	if err != nil {
		t.Fatalf("Expected silent local fallback, got %v", err)
	}

	locals, _ := f.localTasks.List(ctx, models.TaskListOptions{})
	if len(locals) != 1 || locals[0].ID != task.ID {
		t.Error("Expected the task persisted locally by the fallback")
	}
}

func TestCoordinator_BusinessErrorsDoNotFallBack(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.signIn("user-1")

	// validation errors come back as-is
	_, err := f.coordinator.CreateTask(ctx, models.TaskInput{Title: "   "})
	if !apperrors.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}

	// not-found from the remote must not shadow-retry locally
	_, err = f.coordinator.UpdateTask(ctx, "missing", models.TaskUpdate{})
	if !apperrors.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}

	locals, _ := f.localTasks.List(ctx, models.TaskListOptions{})
	if len(locals) != 0 {
		t.Error("Expected no local writes from business-error paths")
	}
}

func TestCoordinator_SignOutPurgesLocalData(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.localTasks.Create(ctx, models.TaskInput{Title: "secret"})
	f.localCats.Create(ctx, models.CategoryInput{Name: "Private", Color: "#fff"})
	f.idmap.Record("local-1", "remote-1")

	f.signIn("user-1")
	f.sessions.SignOut()

	var tasks []models.Task
	if ok := f.store.Get(store.KeyTasks, &tasks); ok {
		t.Error("Expected tasks record removed on sign-out")
	}
	var categories []models.Category
	if ok := f.store.Get(store.KeyCategories, &categories); ok {
		t.Error("Expected categories record removed on sign-out")
	}
	if f.idmap.Len() != 0 {
		t.Error("Expected id map cleared on sign-out")
	}
	if f.coordinator.State(CollectionTasks) != StateLocalOnly {
		t.Error("Expected local-only after sign-out")
	}
	if f.remote.userID != "" {
		t.Error("Expected the remote client's user scope cleared")
	}
}

func TestCoordinator_OfflineDropsToLocal(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.signIn("user-1")
	if f.coordinator.State(CollectionTasks) != StateRemoteAuthoritative {
		t.Fatal("Expected remote-authoritative after sign-in")
	}

	f.sessions.SetOnline(false)

	if f.coordinator.State(CollectionTasks) != StateLocalOnly {
		t.Error("Expected tasks local-only while offline")
	}

	// writes while offline land locally without error
	if _, err := f.coordinator.CreateTask(ctx, models.TaskInput{Title: "offline"}); err != nil {
		t.Fatalf("Expected offline create to succeed locally, got %v", err)
	}
	if len(f.remote.tasks) != 0 {
		t.Error("Expected no remote writes while offline")
	}
}

func TestCoordinator_OnlineRetriggersSync(t *testing.T) {
	f := newFixture(t, true)

	f.signIn("user-1")
	f.sessions.SetOnline(false)
	time.Sleep(5 * time.Millisecond) // let the limiter window pass

	f.sessions.SetOnline(true)
	<-f.coordinator.TriggerSync(context.Background())

	if f.coordinator.State(CollectionTasks) != StateRemoteAuthoritative {
		t.Error("Expected remote-authoritative again after reconnecting")
	}
}

func TestCoordinator_DeleteCategoryDetachesTasks(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	category, _ := f.coordinator.CreateCategory(ctx, models.CategoryInput{Name: "Doomed", Color: "#fff"})
	f.coordinator.CreateTask(ctx, models.TaskInput{Title: "tagged", CategoryID: &category.ID})
	f.coordinator.CreateTask(ctx, models.TaskInput{Title: "other"})

	if err := f.coordinator.DeleteCategory(ctx, category.ID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	tasks, _ := f.coordinator.ListTasks(ctx, models.TaskListOptions{})
	for _, task := range tasks {
		if task.CategoryID != nil && *task.CategoryID == category.ID {
			t.Errorf("Expected task %q detached from the deleted category", task.Title)
		}
	}
}

func TestCoordinator_ListTasksCaches(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.signIn("user-1")
	f.coordinator.CreateTask(ctx, models.TaskInput{Title: "cached"})

	f.remote.mu.Lock()
	f.remote.taskListCalls = 0
	f.remote.mu.Unlock()

	opts := models.TaskListOptions{SortBy: models.SortByOrder, SortDirection: models.SortAsc}
	if _, err := f.coordinator.ListTasks(ctx, opts); err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if _, err := f.coordinator.ListTasks(ctx, opts); err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	f.remote.mu.Lock()
	calls := f.remote.taskListCalls
	f.remote.mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected the second listing served from cache, got %d backend calls", calls)
	}

	// a mutation invalidates the cached listing
	f.coordinator.CreateTask(ctx, models.TaskInput{Title: "invalidates"})
	f.coordinator.ListTasks(ctx, opts)

	f.remote.mu.Lock()
	calls = f.remote.taskListCalls
	f.remote.mu.Unlock()
	if calls != 2 {
		t.Errorf("Expected a fresh backend read after a write, got %d calls", calls)
	}
}

func TestCoordinator_SingleFlightSync(t *testing.T) {
	f := newFixture(t, true)
	f.sessions.SignIn("user-1")

	first := f.coordinator.TriggerSync(context.Background())
	second := f.coordinator.TriggerSync(context.Background())

	<-first
	<-second
}

func TestCoordinator_WithoutRemoteStaysLocal(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.sessions.SignIn("user-1")
	<-f.coordinator.TriggerSync(ctx)

	if f.coordinator.State(CollectionTasks) != StateLocalOnly {
		t.Error("Expected local-only with no remote configured")
	}

	if _, err := f.coordinator.CreateTask(ctx, models.TaskInput{Title: "still local"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
}

func TestCoordinator_Bootstrap(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.coordinator.Bootstrap(ctx)

	categories, _ := f.coordinator.ListCategories(ctx)
	if len(categories) != 3 {
		t.Fatalf("Expected 3 seeded categories, got %d", len(categories))
	}

	// a second bootstrap must not duplicate the seeds
	f.coordinator.Bootstrap(ctx)
	categories, _ = f.coordinator.ListCategories(ctx)
	if len(categories) != 3 {
		t.Errorf("Expected bootstrap to be idempotent, got %d categories", len(categories))
	}
}

func TestCoordinator_ExportImportInvalidatesCaches(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.coordinator.CreateTask(ctx, models.TaskInput{Title: "exported"})
	data, err := f.coordinator.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// warm the listing cache, then import an empty replacement
	f.coordinator.ListTasks(ctx, models.TaskListOptions{})
	if err := f.coordinator.Import(map[string]json.RawMessage{}, false); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	tasks, _ := f.coordinator.ListTasks(ctx, models.TaskListOptions{})
	if len(tasks) != 0 {
		t.Errorf("Expected empty listing after replace import, got %d", len(tasks))
	}

	if err := f.coordinator.Import(data, false); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	tasks, _ = f.coordinator.ListTasks(ctx, models.TaskListOptions{})
	if len(tasks) != 1 {
		t.Errorf("Expected the exported task restored, got %d", len(tasks))
	}
}
