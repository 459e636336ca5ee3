package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// NotionService is the part of the Notion API the export needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	ArchivePage(ctx context.Context, pageID string) error
}

// TransactionLister reads an owner's transactions. ledger.Service satisfies it.
type TransactionLister interface {
	List(ctx context.Context, owner domain.Identity, r domain.DateRange) ([]domain.Transaction, error)
}
