package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	"github.com/Juliodvp29/venti-multi-tenant/internal/log"
	"github.com/Juliodvp29/venti-multi-tenant/internal/store"
	"github.com/Juliodvp29/venti-multi-tenant/internal/testutil"
)

type sessionFixture struct {
	session *Session
	model   *testutil.ScriptedModel
	storage *memStorage
	ds      *fakeDataStore
}

func newSessionFixture(t *testing.T, resolve TenantResolver) *sessionFixture {
	t.Helper()

	model := testutil.NewScriptedModel()
	ds := &fakeDataStore{}
	storage := &memStorage{}

	session, err := NewSession(SessionConfig{
		Orchestrator:  newTestOrchestrator(t, model, ds, 5),
		Snapshots:     NewSnapshotStore(storage, 24*time.Hour, log.NewNop()),
		ResolveTenant: resolve,
		Logger:        log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return &sessionFixture{session: session, model: model, storage: storage, ds: ds}
}

func fixedTenant(id uuid.UUID) TenantResolver {
	return func() (uuid.UUID, bool) { return id, true }
}

func noTenant() (uuid.UUID, bool) { return uuid.Nil, false }

func TestSessionSeedsWelcome(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, noTenant)

	msgs := f.session.Messages()
	if len(msgs) != 1 {
		t.Fatalf("fresh session has %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != RoleModel || msgs[0].Content != WelcomeText {
		t.Errorf("expected welcome message, got %+v", msgs[0])
	}
	if f.session.IsLoading() {
		t.Error("fresh session should not be loading")
	}
}

func TestSessionSeedsFromSnapshot(t *testing.T) {
	t.Parallel()

	model := testutil.NewScriptedModel()
	storage := &memStorage{}
	snapshots := NewSnapshotStore(storage, 24*time.Hour, log.NewNop())
	snapshots.Save([]Message{
		WelcomeMessage(time.Now()),
		{Role: RoleUser, Content: "hola", Timestamp: time.Now()},
		{Role: RoleModel, Content: "buenas", Timestamp: time.Now()},
	})

	session, err := NewSession(SessionConfig{
		Orchestrator:  newTestOrchestrator(t, model, &fakeDataStore{}, 5),
		Snapshots:     snapshots,
		ResolveTenant: noTenant,
		Logger:        log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if got := len(session.Messages()); got != 3 {
		t.Errorf("session seeded %d messages, want 3", got)
	}
}

func TestSessionSendMessage(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, fixedTenant(uuid.New()))
	f.model.Enqueue(testutil.TextResponse("Claro, aquí tienes."))

	if err := f.session.SendMessage(context.Background(), "dame las ventas"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	msgs := f.session.Messages()
	if len(msgs) != 3 {
		t.Fatalf("log has %d messages, want 3 (welcome, user, model)", len(msgs))
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "dame las ventas" {
		t.Errorf("user message = %+v", msgs[1])
	}
	if msgs[2].Role != RoleModel || msgs[2].Content != "Claro, aquí tienes." {
		t.Errorf("model message = %+v", msgs[2])
	}
	if f.session.IsLoading() {
		t.Error("loading should be cleared after the turn")
	}
	// One save per append.
	if f.storage.setCalls != 2 {
		t.Errorf("snapshot saved %d times, want 2", f.storage.setCalls)
	}
}

func TestSessionSendMessageNoTenant(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, noTenant)

	err := f.session.SendMessage(context.Background(), "hola")
	if !errors.Is(err, ErrNoTenant) {
		t.Fatalf("SendMessage = %v, want ErrNoTenant", err)
	}
	if f.model.CallCount() != 0 {
		t.Errorf("model invoked %d times without a tenant, want 0", f.model.CallCount())
	}
	// The rejected message must not enter the log.
	if got := len(f.session.Messages()); got != 1 {
		t.Errorf("log has %d messages after rejection, want 1", got)
	}
	if f.storage.setCalls != 0 {
		t.Errorf("snapshot saved %d times after rejection, want 0", f.storage.setCalls)
	}
}

func TestSessionSendMessageEmpty(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, fixedTenant(uuid.New()))

	if err := f.session.SendMessage(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("SendMessage = %v, want ErrEmptyMessage", err)
	}
	if got := len(f.session.Messages()); got != 1 {
		t.Errorf("log has %d messages, want 1", got)
	}
}

func TestSessionModelFailureContained(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, fixedTenant(uuid.New()))
	f.model.EnqueueError(errors.New("invalid API key"))

	if err := f.session.SendMessage(context.Background(), "hola"); err != nil {
		t.Fatalf("model failure must not propagate: %v", err)
	}

	msgs := f.session.Messages()
	if len(msgs) != 3 {
		t.Fatalf("log has %d messages, want 3", len(msgs))
	}
	if msgs[1].Content != "hola" {
		t.Errorf("user message should survive the failure, got %+v", msgs[1])
	}
	if msgs[2].Role != RoleModel || msgs[2].Content != ApologyText {
		t.Errorf("expected apology reply, got %+v", msgs[2])
	}
	if f.session.IsLoading() {
		t.Error("loading should be cleared after a failed turn")
	}
}

func TestSessionClear(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, fixedTenant(uuid.New()))
	f.model.Enqueue(testutil.TextResponse("ok"))
	if err := f.session.SendMessage(context.Background(), "hola"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	f.session.Clear()

	msgs := f.session.Messages()
	if len(msgs) != 1 || msgs[0].Content != WelcomeText {
		t.Errorf("Clear should reset to a fresh welcome log, got %v", msgs)
	}
	if f.storage.clearCalls == 0 {
		t.Error("Clear should drop the persisted snapshot")
	}
}

func TestSessionMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, fixedTenant(uuid.New()))

	msgs := f.session.Messages()
	msgs[0].Content = "mutated"

	if f.session.Messages()[0].Content != WelcomeText {
		t.Error("Messages must return a copy, not the internal slice")
	}
}

func TestSessionTurnLeavesNoGoroutines(t *testing.T) {
	// IgnoreCurrent excludes goroutines from tests paused in t.Parallel.
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newSessionFixture(t, fixedTenant(uuid.New()))
	f.model.Enqueue(testutil.TextResponse("ok"))

	if err := f.session.SendMessage(context.Background(), "hola"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
}

func TestSessionLowStockScenario(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, fixedTenant(uuid.New()))
	f.ds.alerts = []store.InventoryAlert{
		{Name: "Camiseta básica", SKU: "CAM-001", StockQuantity: 0},
		{Name: "Gorra azul", SKU: "GOR-014", StockQuantity: 3},
		{Name: "Medias pack x3", SKU: "MED-009", StockQuantity: 7},
	}
	f.model.Enqueue(testutil.FunctionCallResponse(&genai.FunctionCall{
		Name: "get_inventory_alerts",
		Args: map[string]any{"onlyOutOfStock": false},
	}))
	f.model.Enqueue(testutil.TextResponse(
		"Tienes 3 productos por reponer: Camiseta básica (agotada), Gorra azul (3 unidades) y Medias pack x3 (7 unidades)."))

	if err := f.session.SendMessage(context.Background(), "¿Qué productos debo reponer?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if f.ds.inventoryAlertsCalls != 1 {
		t.Errorf("GetInventoryAlerts called %d times, want 1", f.ds.inventoryAlertsCalls)
	}
	msgs := f.session.Messages()
	reply := msgs[len(msgs)-1]
	if reply.Role != RoleModel {
		t.Fatalf("last message role = %q, want model", reply.Role)
	}
	if reply.Content == ApologyText || reply.Content == FallbackText {
		t.Errorf("scenario degraded to a canned reply: %q", reply.Content)
	}
}
