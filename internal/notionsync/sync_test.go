package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/domain"
)

var owner = domain.Identity{UserID: "u-alice", ExternalID: "ext_alice"}

// MockNotion is an in-memory NotionService. Query results are served in
// pages of pageSize to exercise cursor handling.
type MockNotion struct {
	pages     []notionapi.Page
	pageSize  int
	created   []notionapi.Properties
	updated   map[string]notionapi.Properties
	archived  []string
	queries   []*notionapi.DatabaseQueryRequest
	CreateErr error
	UpdateErr error
}

var _ NotionService = (*MockNotion)(nil)

func newMockNotion(pages ...notionapi.Page) *MockNotion {
	return &MockNotion{pages: pages, pageSize: 2, updated: map[string]notionapi.Properties{}}
}

func (m *MockNotion) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.created = append(m.created, props)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("new-%d", len(m.created)))}, nil
}

func (m *MockNotion) UpdatePage(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.updated[pageID] = props
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	m.queries = append(m.queries, req)
	start := 0
	if req.StartCursor != "" {
		fmt.Sscanf(string(req.StartCursor), "%d", &start)
	}
	end := start + m.pageSize
	if end > len(m.pages) {
		end = len(m.pages)
	}
	resp := &notionapi.DatabaseQueryResponse{Results: m.pages[start:end]}
	if end < len(m.pages) {
		resp.HasMore = true
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("%d", end))
	}
	return resp, nil
}

func (m *MockNotion) ArchivePage(ctx context.Context, pageID string) error {
	m.archived = append(m.archived, pageID)
	return nil
}

// MockLedger returns a fixed transaction list.
type MockLedger struct {
	Txs []domain.Transaction
	Err error
}

func (m *MockLedger) List(ctx context.Context, o domain.Identity, r domain.DateRange) ([]domain.Transaction, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domain.Transaction
	for _, tx := range m.Txs {
		if tx.UserID == o.ExternalID && r.Contains(tx.CreatedAt) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func page(id, txID string, date time.Time) notionapi.Page {
	d := notionapi.Date(date)
	props := notionapi.Properties{
		PropDate: &notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}},
	}
	if txID != "" {
		props[PropTransactionID] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: txID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(id), Properties: props}
}

func tx(id string, created time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		Description: "Coffee " + id,
		Amount:      decimal.RequireFromString("-3.50"),
		UserID:      owner.ExternalID,
		CreatedAt:   created,
	}
}

func TestSyncTransactions(t *testing.T) {
	may := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	ledger := &MockLedger{Txs: []domain.Transaction{
		tx("tx-1", may),
		tx("tx-2", may.Add(time.Hour)),
		tx("tx-3", may.Add(2*time.Hour)),
	}}
	notion := newMockNotion(
		page("p-1", "tx-1", may),
		page("p-dup", "tx-1", may),
		page("p-gone", "tx-deleted", may),
		page("p-manual", "", may),
		page("p-2", "tx-2", may),
	)

	stats, err := SyncTransactions(context.Background(), ledger, notion, owner, Options{DatabaseID: "db"})
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	want := Stats{Created: 1, Updated: 2, Archived: 3}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(notion.queries) != 3 {
		t.Errorf("queries = %d, want 3 (paginated)", len(notion.queries))
	}
	if _, ok := notion.updated["p-1"]; !ok {
		t.Error("p-1 not updated")
	}
	if _, ok := notion.updated["p-2"]; !ok {
		t.Error("p-2 not updated")
	}
	wantArchived := []string{"p-dup", "p-gone", "p-manual"}
	if fmt.Sprint(notion.archived) != fmt.Sprint(wantArchived) {
		t.Errorf("archived = %v, want %v", notion.archived, wantArchived)
	}

	filter, ok := notion.queries[0].Filter.(notionapi.PropertyFilter)
	if !ok || filter.Property != PropOwner || filter.RichText == nil || filter.RichText.Equals != owner.ExternalID {
		t.Errorf("query filter = %#v, want Owner equals %s", notion.queries[0].Filter, owner.ExternalID)
	}
}

func TestSyncTransactions_DryRunWritesNothing(t *testing.T) {
	may := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	ledger := &MockLedger{Txs: []domain.Transaction{tx("tx-1", may), tx("tx-2", may)}}
	notion := newMockNotion(page("p-1", "tx-1", may), page("p-old", "tx-old", may))

	stats, err := SyncTransactions(context.Background(), ledger, notion, owner, Options{DatabaseID: "db", DryRun: true})
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}
	if want := (Stats{Created: 1, Updated: 1, Archived: 1}); stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(notion.created) != 0 || len(notion.updated) != 0 || len(notion.archived) != 0 {
		t.Errorf("dry run wrote to Notion: created=%d updated=%d archived=%d",
			len(notion.created), len(notion.updated), len(notion.archived))
	}
}

func TestSyncTransactions_RangeKeepsPagesOutside(t *testing.T) {
	may := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	ledger := &MockLedger{Txs: []domain.Transaction{tx("tx-may", may), tx("tx-april", april)}}
	notion := newMockNotion(
		page("p-april", "tx-april", april),
		page("p-may-stale", "tx-removed", may),
	)

	stats, err := SyncTransactions(context.Background(), ledger, notion, owner, Options{
		DatabaseID: "db",
		Range:      domain.DateRange{Start: &start},
	})
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}
	if want := (Stats{Created: 1, Archived: 1}); stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if fmt.Sprint(notion.archived) != "[p-may-stale]" {
		t.Errorf("archived = %v, want [p-may-stale]", notion.archived)
	}
}

func TestSyncTransactions_Errors(t *testing.T) {
	may := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	t.Run("ledger failure aborts", func(t *testing.T) {
		listErr := errors.New("db down")
		_, err := SyncTransactions(context.Background(), &MockLedger{Err: listErr}, newMockNotion(), owner, Options{DatabaseID: "db"})
		if !errors.Is(err, listErr) {
			t.Errorf("error = %v, want %v", err, listErr)
		}
	})

	t.Run("page failures are counted", func(t *testing.T) {
		ledger := &MockLedger{Txs: []domain.Transaction{tx("tx-1", may), tx("tx-2", may)}}
		notion := newMockNotion(page("p-1", "tx-1", may))
		notion.CreateErr = errors.New("rate limited")
		notion.UpdateErr = errors.New("rate limited")

		stats, err := SyncTransactions(context.Background(), ledger, notion, owner, Options{DatabaseID: "db"})
		if err != nil {
			t.Fatalf("SyncTransactions() error = %v", err)
		}
		if want := (Stats{Failed: 2}); stats != want {
			t.Errorf("stats = %+v, want %+v", stats, want)
		}
	})
}

func TestTransactionToNotionProperties(t *testing.T) {
	img := "https://storage.googleapis.com/bucket/receipts/a.png"
	created := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)
	txn := domain.Transaction{
		ID:          "tx-1",
		Description: "Groceries",
		Amount:      decimal.RequireFromString("-42.10"),
		UserID:      "ext_alice",
		CreatedAt:   created,
		Memories: []domain.Memory{
			{Title: "Receipt"},
			{Title: "AI Memory", ImageURL: &img},
		},
	}

	props := TransactionToNotionProperties(txn)

	title := props[PropDescription].(notionapi.TitleProperty)
	if got := title.Title[0].Text.Content; got != "Groceries" {
		t.Errorf("Description = %q, want Groceries", got)
	}
	if got := props[PropTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content; got != "tx-1" {
		t.Errorf("Transaction ID = %q, want tx-1", got)
	}
	if got := props[PropOwner].(notionapi.RichTextProperty).RichText[0].Text.Content; got != "ext_alice" {
		t.Errorf("Owner = %q, want ext_alice", got)
	}
	if got := props[PropAmount].(notionapi.NumberProperty).Number; got != -42.10 {
		t.Errorf("Amount = %v, want -42.10", got)
	}
	if got := props[PropMemories].(notionapi.RichTextProperty).RichText[0].Text.Content; got != "Receipt, AI Memory" {
		t.Errorf("Memories = %q, want %q", got, "Receipt, AI Memory")
	}
	if got := props[PropImage].(notionapi.URLProperty).URL; got != img {
		t.Errorf("Image = %q, want %q", got, img)
	}
	if got := time.Time(*props[PropDate].(notionapi.DateProperty).Date.Start); !got.Equal(created) {
		t.Errorf("Date = %v, want %v", got, created)
	}
}

func TestTransactionToNotionProperties_NoMemories(t *testing.T) {
	props := TransactionToNotionProperties(domain.Transaction{ID: "tx-1", Description: "Rent"})

	if _, ok := props[PropImage]; ok {
		t.Error("Image set for a transaction without images")
	}
	if got := props[PropMemories].(notionapi.RichTextProperty).RichText; len(got) != 0 {
		t.Errorf("Memories = %v, want empty", got)
	}
}

func TestRichTextTruncates(t *testing.T) {
	long := make([]rune, maxRichText+10)
	for i := range long {
		long[i] = 'é'
	}
	got := richText(string(long))
	if n := len([]rune(got[0].Text.Content)); n != maxRichText {
		t.Errorf("length = %d, want %d", n, maxRichText)
	}
}
