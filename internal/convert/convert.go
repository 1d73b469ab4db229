// Package convert turns a decoded Bitwarden export into a KeePass database
// tree: folders become groups, logins and secure notes become entries, and
// the result is committed with a single save.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/chirichan/bw2kp/internal/entities"
	"github.com/chirichan/bw2kp/internal/keepass"
)

// AttachmentSource fetches the binary content of an item's attachment.
// A nil source means the input carries no attachment data (offline exports).
type AttachmentSource interface {
	GetAttachment(ctx context.Context, itemID, attachmentID string) ([]byte, error)
}

type Stats struct {
	Folders     int
	Entries     int
	Attachments int
	Skipped     int
}

// Converter owns all mutable conversion state for one run: the folder-id
// to group mapping and the per-group title sets.
type Converter struct {
	logger      *slog.Logger
	db          *keepass.Database
	attachments AttachmentSource

	groups map[string]*keepass.Group
	titles map[*keepass.Group]map[string]struct{}
	stats  Stats
}

func New(db *keepass.Database, logger *slog.Logger, attachments AttachmentSource) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		logger:      logger,
		db:          db,
		attachments: attachments,
		groups:      make(map[string]*keepass.Group),
		titles:      make(map[*keepass.Group]map[string]struct{}),
	}
}

// Run converts the full export and saves the database exactly once. Any
// error aborts before the save, leaving the destination file untouched.
func (c *Converter) Run(ctx context.Context, folders []entities.Folder, items []entities.Item) (Stats, error) {
	c.mapFolders(folders)
	c.logger.Info("folders done", "count", c.stats.Folders)

	c.logger.Info("starting to process items", "count", len(items))
	for i := range items {
		if err := c.convertItem(ctx, &items[i]); err != nil {
			return c.stats, err
		}
	}

	if err := c.db.Save(); err != nil {
		return c.stats, fmt.Errorf("save keepass database: %w", err)
	}
	return c.stats, nil
}

// mapFolders creates the destination group hierarchy before any item is
// placed. Folder names are "/"-delimited paths; intermediate groups are
// created implicitly on first reference. Processing in name order keeps
// parents ahead of their children, as the original export tooling does.
func (c *Converter) mapFolders(folders []entities.Folder) {
	root := c.db.Root()
	c.groups[""] = root

	sorted := slices.Clone(folders)
	slices.SortStableFunc(sorted, func(a, b entities.Folder) int {
		return strings.Compare(a.Name, b.Name)
	})

	for _, f := range sorted {
		if f.ID == nil || *f.ID == "" {
			// The synthetic "No Folder" entry maps to the root group.
			continue
		}
		if _, ok := c.groups[*f.ID]; ok {
			continue
		}
		g := root
		for _, part := range splitFolderPath(f.Name) {
			g = c.db.AddGroup(g, part)
		}
		c.groups[*f.ID] = g
		c.stats.Folders++
	}
}

func splitFolderPath(name string) []string {
	var parts []string
	for _, part := range strings.Split(strings.Trim(name, "/"), "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func (c *Converter) convertItem(ctx context.Context, item *entities.Item) error {
	switch item.Type {
	case entities.ItemTypeLogin, entities.ItemTypeSecureNote:
	default:
		c.logger.Warn("skipping unsupported item", "name", item.Name, "type", int(item.Type))
		c.stats.Skipped++
		return nil
	}
	if item.ID == "" {
		return fmt.Errorf("item %q has no id", item.Name)
	}

	group := c.groupFor(item)
	entry, title := normalizeItem(item)
	entry.Title = c.uniqueTitle(group, title, item.ID)
	if err := c.fetchAttachments(ctx, item, entry); err != nil {
		return err
	}
	group.AddEntry(entry)
	c.stats.Entries++
	return nil
}

func (c *Converter) groupFor(item *entities.Item) *keepass.Group {
	if item.FolderID == nil || *item.FolderID == "" {
		return c.db.Root()
	}
	if g, ok := c.groups[*item.FolderID]; ok {
		return g
	}
	c.logger.Warn("item references unknown folder, placing under root",
		"name", item.Name, "folderId", *item.FolderID)
	return c.db.Root()
}

// uniqueTitle returns a title unused within the group and records it as
// taken. A collision gets the item id appended; item ids are unique, so one
// deterministic fallback suffices.
func (c *Converter) uniqueTitle(g *keepass.Group, title, id string) string {
	taken, ok := c.titles[g]
	if !ok {
		taken = make(map[string]struct{})
		for _, t := range g.ExistingTitles() {
			taken[t] = struct{}{}
		}
		c.titles[g] = taken
	}
	if _, dup := taken[title]; dup {
		title = fmt.Sprintf("%s - %s", title, id)
	}
	taken[title] = struct{}{}
	return title
}

func (c *Converter) fetchAttachments(ctx context.Context, item *entities.Item, entry *keepass.Entry) error {
	if len(item.Attachments) == 0 {
		return nil
	}
	if c.attachments == nil {
		c.logger.Warn("input carries no attachment data, skipping attachments",
			"name", item.Name, "count", len(item.Attachments))
		return nil
	}
	for _, a := range item.Attachments {
		data, err := c.attachments.GetAttachment(ctx, item.ID, a.ID)
		if err != nil {
			return fmt.Errorf("fetch attachment %q of item %q: %w", a.FileName, item.Name, err)
		}
		entry.AddAttachment(a.FileName, data)
		c.stats.Attachments++
	}
	return nil
}
