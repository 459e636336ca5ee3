package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/infra/memory"
	"github.com/zentry-app/zentry-api/internal/ledger"
)

var (
	alice = domain.Identity{UserID: "u-alice", ExternalID: "ext_alice"}
	bob   = domain.Identity{UserID: "u-bob", ExternalID: "ext_bob"}
)

// stepClock returns successive timestamps one minute apart starting at base.
func stepClock(base time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := base.Add(time.Duration(n) * time.Minute)
		n++
		return t
	}
}

func newService(t *testing.T, opts ...ledger.Option) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	for _, id := range []domain.Identity{alice, bob} {
		if _, err := store.UpsertUser(ctx, domain.User{ExternalID: id.ExternalID, Email: id.ExternalID + "@example.com"}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return ledger.NewService(store, zerolog.Nop(), opts...), store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateThenGetRoundTrips(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		desc   string
		amount string
	}{
		{"Coffee", "-4.50"},
		{"Salary", "2500"},
		{"Refund", "0.01"},
		{"Zero", "0"},
		{"Large", "999999999999.99"},
		{"  Coffee at Joe's \n", "-4.50"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			created, err := svc.Create(ctx, alice, ledger.CreateInput{Description: tt.desc, Amount: dec(tt.amount)})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := svc.Get(ctx, alice, created.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Description != tt.desc {
				t.Errorf("Description = %q, want %q", got.Description, tt.desc)
			}
			if !got.Amount.Equal(dec(tt.amount)) {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.amount)
			}
			if got.UserID != alice.ExternalID {
				t.Errorf("UserID = %q, want %q", got.UserID, alice.ExternalID)
			}
		})
	}
}

func TestCreateAppliesMemoryDefaultsAndOwner(t *testing.T) {
	svc, _ := newService(t)
	url := "https://cdn.example.com/r.jpg"

	tx, err := svc.Create(context.Background(), alice, ledger.CreateInput{
		Description: "Dinner",
		Amount:      dec("-30"),
		Memories: []domain.MemoryInput{
			{},
			{Title: "Receipt", Description: "two pizzas", ImageURL: &url},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(tx.Memories) != 2 {
		t.Fatalf("got %d memories, want 2", len(tx.Memories))
	}

	first := tx.Memories[0]
	if first.Title != domain.DefaultMemoryTitle || first.Description != "" || first.ImageURL != nil {
		t.Errorf("unexpected defaults: %+v", first)
	}
	second := tx.Memories[1]
	if second.ImageURL == nil || *second.ImageURL != url {
		t.Errorf("ImageURL = %v, want %q", second.ImageURL, url)
	}
	for _, m := range tx.Memories {
		if m.UserID != tx.UserID {
			t.Errorf("memory owner %q differs from transaction owner %q", m.UserID, tx.UserID)
		}
		if m.TransactionID != tx.ID {
			t.Errorf("memory parent %q, want %q", m.TransactionID, tx.ID)
		}
	}
}

func TestCreateValidationHasNoSideEffects(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ledger.CreateInput
		code string
	}{
		{"empty description", ledger.CreateInput{Description: "", Amount: dec("1")}, "invalid_description"},
		{"blank description", ledger.CreateInput{Description: "   ", Amount: dec("1")}, "invalid_description"},
		{"amount out of range", ledger.CreateInput{Description: "Big", Amount: dec("1e15")}, "invalid_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, alice, tt.in)
			de, ok := domain.AsError(err)
			if !ok || de.Kind != domain.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if de.Code != tt.code {
				t.Errorf("Code = %q, want %q", de.Code, tt.code)
			}
		})
	}
	if n := store.TransactionCount(); n != 0 {
		t.Errorf("TransactionCount = %d, want 0", n)
	}
}

func TestCreateUnknownOwner(t *testing.T) {
	svc, store := newService(t)
	ghost := domain.Identity{UserID: "u-ghost", ExternalID: "ext_ghost"}

	_, err := svc.Create(context.Background(), ghost, ledger.CreateInput{Description: "Tea", Amount: dec("-2")})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if n := store.TransactionCount(); n != 0 {
		t.Errorf("TransactionCount = %d, want 0", n)
	}
}

func TestOtherOwnerIsForbidden(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, alice, ledger.CreateInput{
		Description: "Groceries",
		Amount:      dec("-80.25"),
		Memories:    []domain.MemoryInput{{Title: "Basket"}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(ctx, bob, tx.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Get by other owner: expected ErrForbidden, got %v", err)
	}
	newDesc := "Stolen"
	newAmount := dec("1000")
	if _, err := svc.Update(ctx, bob, tx.ID, domain.TransactionPatch{Description: &newDesc, Amount: &newAmount}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Update by other owner: expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, bob, tx.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Delete by other owner: expected ErrForbidden, got %v", err)
	}

	got, err := svc.Get(ctx, alice, tx.ID)
	if err != nil {
		t.Fatalf("Get by owner: %v", err)
	}
	if got.Description != "Groceries" || !got.Amount.Equal(dec("-80.25")) {
		t.Errorf("transaction was mutated: %+v", got)
	}
	if store.MemoryCount(tx.ID) != 1 {
		t.Errorf("MemoryCount = %d, want 1", store.MemoryCount(tx.ID))
	}
}

func TestMissingAndMalformedIDs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	missing := uuid.New().String()
	amount := dec("5")

	if _, err := svc.Get(ctx, alice, missing); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Get: expected ErrTransactionNotFound, got %v", err)
	}
	if _, err := svc.Update(ctx, alice, missing, domain.TransactionPatch{Amount: &amount}); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Update: expected ErrTransactionNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, alice, missing); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Delete: expected ErrTransactionNotFound, got %v", err)
	}

	for _, bad := range []string{"", "123", "not-a-uuid"} {
		if _, err := svc.Get(ctx, alice, bad); !errors.Is(err, domain.ErrInvalidID) {
			t.Errorf("Get(%q): expected ErrInvalidID, got %v", bad, err)
		}
	}
}

func TestDeleteCascadesMemories(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, alice, ledger.CreateInput{
		Description: "Trip",
		Amount:      dec("-300"),
		Memories:    []domain.MemoryInput{{Title: "Beach"}, {Title: "Hotel"}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, alice, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, alice, tx.ID); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Get after delete: expected ErrTransactionNotFound, got %v", err)
	}
	if n := store.MemoryCount(tx.ID); n != 0 {
		t.Errorf("orphaned memories: %d", n)
	}
}

func TestUpdateAppliesOnlySuppliedFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, alice, ledger.CreateInput{Description: "Rent", Amount: dec("-1200")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	amount := dec("-1250.499")
	got, err := svc.Update(ctx, alice, tx.ID, domain.TransactionPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Description != "Rent" {
		t.Errorf("Description changed to %q", got.Description)
	}
	if !got.Amount.Equal(dec("-1250.50")) {
		t.Errorf("Amount = %s, want -1250.50", got.Amount)
	}

	blank := " "
	if _, err := svc.Update(ctx, alice, tx.ID, domain.TransactionPatch{Description: &blank}); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error for blank description, got %v", err)
	}

	padded := " Rent (March)\t"
	if _, err := svc.Update(ctx, alice, tx.ID, domain.TransactionPatch{Description: &padded}); err != nil {
		t.Fatalf("Update description: %v", err)
	}
	got, err = svc.Get(ctx, alice, tx.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Description != padded {
		t.Errorf("Description = %q, want %q", got.Description, padded)
	}

	same, err := svc.Update(ctx, alice, tx.ID, domain.TransactionPatch{})
	if err != nil {
		t.Fatalf("empty Update: %v", err)
	}
	if !same.Amount.Equal(got.Amount) || same.Description != got.Description {
		t.Errorf("empty patch changed the transaction: %+v", same)
	}
}

func TestListFiltersInclusiveAndOrdersNewestFirst(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, ledger.WithClock(stepClock(base)))
	ctx := context.Background()

	var ids []string
	for i, desc := range []string{"t0", "t1", "t2", "t3", "t4"} {
		tx, err := svc.Create(ctx, alice, ledger.CreateInput{Description: desc, Amount: decimal.NewFromInt(int64(i))})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, tx.ID)
	}
	if _, err := svc.Create(ctx, bob, ledger.CreateInput{Description: "bob", Amount: dec("1")}); err != nil {
		t.Fatalf("Create bob: %v", err)
	}

	all, err := svc.List(ctx, alice, domain.DateRange{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("List returned %d, want 5", len(all))
	}
	for i := range all {
		if all[i].ID != ids[len(ids)-1-i] {
			t.Errorf("position %d: got %s, want %s", i, all[i].Description, ids[len(ids)-1-i])
		}
		if all[i].Owner == nil || all[i].Owner.ExternalID != alice.ExternalID {
			t.Errorf("missing owner snapshot on %s", all[i].ID)
		}
	}

	start := base.Add(1 * time.Minute)
	end := base.Add(3 * time.Minute)
	ranged, err := svc.List(ctx, alice, domain.DateRange{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("List range: %v", err)
	}
	want := []string{"t3", "t2", "t1"}
	if len(ranged) != len(want) {
		t.Fatalf("ranged List returned %d, want %d", len(ranged), len(want))
	}
	for i, w := range want {
		if ranged[i].Description != w {
			t.Errorf("ranged[%d] = %s, want %s", i, ranged[i].Description, w)
		}
	}

	onlyStart := base.Add(4 * time.Minute)
	tail, err := svc.List(ctx, alice, domain.DateRange{Start: &onlyStart})
	if err != nil {
		t.Fatalf("List open range: %v", err)
	}
	if len(tail) != 1 || tail[0].Description != "t4" {
		t.Errorf("open-ended range returned %+v", tail)
	}

	if _, err := svc.List(ctx, alice, domain.DateRange{Start: &end, End: &start}); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error for inverted range, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, a := range []string{"100", "-40.50", "-9.50", "0"} {
		if _, err := svc.Create(ctx, alice, ledger.CreateInput{Description: "x", Amount: dec(a)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	sum, err := svc.Summary(ctx, alice, domain.DateRange{})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !sum.Income.Equal(dec("100")) || !sum.Expense.Equal(dec("50")) || !sum.Net.Equal(dec("50")) || sum.Count != 4 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

// failingStore lets InsertMemories fail after the transaction row was written.
type failingStore struct {
	*memory.Store
}

type failingQueries struct {
	ledger.Queries
}

func (f failingQueries) InsertMemories(ctx context.Context, memories []domain.Memory) error {
	return errors.New("disk full")
}

func (f failingStore) InTx(ctx context.Context, fn func(q ledger.Queries) error) error {
	return f.Store.InTx(ctx, func(q ledger.Queries) error {
		return fn(failingQueries{q})
	})
}

func TestCreateIsAtomic(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if _, err := store.UpsertUser(ctx, domain.User{ExternalID: alice.ExternalID}); err != nil {
		t.Fatal(err)
	}
	svc := ledger.NewService(failingStore{store}, zerolog.Nop())

	_, err := svc.Create(ctx, alice, ledger.CreateInput{
		Description: "Half written",
		Amount:      dec("-1"),
		Memories:    []domain.MemoryInput{{Title: "m"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.KindOf(err) != "" {
		t.Errorf("storage failure should stay unclassified, got kind %q", domain.KindOf(err))
	}
	if n := store.TransactionCount(); n != 0 {
		t.Errorf("TransactionCount = %d, want 0 after rollback", n)
	}
}

func TestScenarioCoffee(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, alice, ledger.CreateInput{Description: "Coffee", Amount: dec("-4.50")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !tx.Amount.Equal(dec("-4.50")) {
		t.Errorf("Amount = %s, want -4.50", tx.Amount)
	}

	list, err := svc.List(ctx, alice, domain.DateRange{})
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d entries, err %v", len(list), err)
	}

	amount := dec("-5.00")
	updated, err := svc.Update(ctx, alice, tx.ID, domain.TransactionPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Amount.Equal(dec("-5")) {
		t.Errorf("Amount = %s, want -5.00", updated.Amount)
	}

	if err := svc.Delete(ctx, alice, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, alice, tx.ID); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("Get after delete: expected ErrTransactionNotFound, got %v", err)
	}
}
