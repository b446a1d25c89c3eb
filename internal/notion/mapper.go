package notion

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/bankfeed-dev/bankfeed/internal/domain"
)

// ConfirmedToProperties converts a confirmed transaction to the property set
// of the transactions database. Entity fields are omitted for transfer and
// income rows, which carry no payee.
func ConfirmedToProperties(tx *domain.ConfirmedTransaction) notionapi.Properties {
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: tx.Description},
				},
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
	}

	if !tx.Date.IsZero() {
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						tx.Date.Year(), tx.Date.Month(), tx.Date.Day(),
						0, 0, 0, 0, time.UTC,
					))
					return &d
				}(),
			},
		}
	}

	if tx.Account != "" {
		props["Account"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Account},
		}
	}

	if tx.TransactionType != "" {
		props["Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.TransactionType)},
		}
	}

	if hasEntity(tx) {
		props["Entity"] = notionapi.RelationProperty{
			Relation: []notionapi.Relation{
				{ID: notionapi.PageID(tx.EntityID)},
			},
		}
	}

	if tx.Location != "" {
		props["Location"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: tx.Location},
				},
			},
		}
	}

	props["Online"] = notionapi.CheckboxProperty{
		Checkbox: tx.Online,
	}

	if tx.Checksum != "" {
		props["Checksum"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: tx.Checksum},
				},
			},
		}
	}

	return props
}

func hasEntity(tx *domain.ConfirmedTransaction) bool {
	if tx.EntityID == "" {
		return false
	}
	switch tx.TransactionType {
	case domain.TypeTransfer, domain.TypeIncome:
		return false
	}
	return true
}
