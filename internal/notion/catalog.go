package notion

import (
	"context"
	"fmt"
	"sync"

	"github.com/jomei/notionapi"

	"github.com/bankfeed-dev/bankfeed/internal/domain"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
)

// EntityCatalog mirrors the entities database into an in-memory lookup table
// for the matcher. Refresh replaces the table wholesale; CreateEntity writes
// through to the record store and updates the table immediately.
type EntityCatalog struct {
	svc        Service
	databaseID string

	mu       sync.RWMutex
	entities map[string]domain.EntityRef
}

// NewEntityCatalog creates an empty catalog over the given entities database.
func NewEntityCatalog(svc Service, databaseID string) *EntityCatalog {
	return &EntityCatalog{
		svc:        svc,
		databaseID: databaseID,
		entities:   make(map[string]domain.EntityRef),
	}
}

// Refresh reloads every entity page from the record store.
func (c *EntityCatalog) Refresh(ctx context.Context) error {
	pages, err := queryAllPages(ctx, c.svc, c.databaseID)
	if err != nil {
		return fmt.Errorf("refresh entity catalog: %w", err)
	}

	entities := make(map[string]domain.EntityRef, len(pages))
	for _, page := range pages {
		name := extractTitle(page, "Name")
		if name == "" {
			continue
		}
		entities[name] = domain.EntityRef{
			ID:   string(page.ID),
			Name: name,
			URL:  page.URL,
		}
	}

	c.mu.Lock()
	c.entities = entities
	c.mu.Unlock()

	log := logger.FromContext(ctx)
	log.Info().
		Int("entity_count", len(entities)).
		Msg("Refreshed entity catalog")
	return nil
}

// Lookup returns a copy of the name -> entity table.
func (c *EntityCatalog) Lookup() map[string]domain.EntityRef {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.EntityRef, len(c.entities))
	for name, ref := range c.entities {
		out[name] = ref
	}
	return out
}

// CreateEntity creates a new entity page in the record store and adds it to
// the local lookup table.
func (c *EntityCatalog) CreateEntity(ctx context.Context, name string) (domain.EntityRef, error) {
	if name == "" {
		return domain.EntityRef{}, fmt.Errorf("entity name is required")
	}

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: name},
				},
			},
		},
	}

	page, err := c.svc.CreatePage(ctx, c.databaseID, props)
	if err != nil {
		return domain.EntityRef{}, fmt.Errorf("create entity page: %w", err)
	}

	ref := domain.EntityRef{
		ID:   string(page.ID),
		Name: name,
		URL:  page.URL,
	}

	c.mu.Lock()
	c.entities[name] = ref
	c.mu.Unlock()

	log := logger.FromContext(ctx)
	log.Info().
		Str("entity_id", ref.ID).
		Str("entity_name", ref.Name).
		Msg("Created entity")
	return ref, nil
}

// extractTitle extracts the plain text of a title property.
// Returns empty string if not found.
func extractTitle(page notionapi.Page, property string) string {
	if prop, ok := page.Properties[property]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
