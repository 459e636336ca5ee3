package notionsync

import (
	"strings"

	"github.com/jomei/notionapi"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// Property names of the export database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropOwner         = "Owner"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropMemories      = "Memories"
	PropImage         = "Image"
)

// maxRichText is Notion's limit on a single rich text block.
const maxRichText = 2000

// TransactionToNotionProperties maps a transaction to database properties.
// Memory titles are joined into one text column and the first memory image
// becomes the Image link.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	created := notionapi.Date(tx.CreatedAt.UTC())
	amount, _ := tx.Amount.Float64()

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropOwner: notionapi.RichTextProperty{
			RichText: richText(tx.UserID),
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &created},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropMemories: notionapi.RichTextProperty{
			RichText: richText(memoryTitles(tx.Memories)),
		},
	}

	if url := firstImage(tx.Memories); url != "" {
		props[PropImage] = notionapi.URLProperty{URL: url}
	}

	return props
}

func memoryTitles(memories []domain.Memory) string {
	titles := make([]string, 0, len(memories))
	for _, m := range memories {
		titles = append(titles, m.Title)
	}
	return strings.Join(titles, ", ")
}

func firstImage(memories []domain.Memory) string {
	for _, m := range memories {
		if m.ImageURL != nil && *m.ImageURL != "" {
			return *m.ImageURL
		}
	}
	return ""
}

// richText builds a single text block, truncated to Notion's limit.
// Empty content yields an empty block list, which clears the property.
func richText(content string) []notionapi.RichText {
	if content == "" {
		return []notionapi.RichText{}
	}
	if r := []rune(content); len(r) > maxRichText {
		content = string(r[:maxRichText])
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// pageTransactionID reads the Transaction ID property of a queried page.
// Pages written by hand or by another tool return "".
func pageTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	text, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(text.RichText) == 0 {
		return ""
	}
	return text.RichText[0].PlainText
}
