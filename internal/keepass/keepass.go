// Package keepass wraps gokeepasslib behind the handful of primitives the
// conversion needs: open or create a database, add groups and entries,
// attach binaries, save once. Everything added during a run lives on
// detached nodes; the underlying KDBX tree and the file on disk are only
// touched inside Save.
package keepass

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tobischo/gokeepasslib/v3"
	w "github.com/tobischo/gokeepasslib/v3/wrappers"
)

// Standard entry attribute keys. Custom properties must not use these.
const (
	KeyTitle    = "Title"
	KeyUserName = "UserName"
	KeyPassword = "Password"
	KeyURL      = "URL"
	KeyNotes    = "Notes"
)

// IsReservedKey reports whether name is one of the standard attribute keys.
func IsReservedKey(name string) bool {
	switch name {
	case KeyTitle, KeyUserName, KeyPassword, KeyURL, KeyNotes:
		return true
	}
	return false
}

type Database struct {
	path string
	db   *gokeepasslib.Database
	root *Group
}

// Group is a destination group handle. Groups that already existed in an
// opened database keep an index path into the decoded tree; groups added
// during the run stay detached until Save.
type Group struct {
	name     string
	existing bool
	path     []int

	seedTitles []string
	groups     []*Group
	entries    []*Entry
}

type Entry struct {
	Title    string
	Username string
	Password string
	URL      string
	Notes    string

	properties  []Property
	attachments []Attachment
}

type Property struct {
	Name      string
	Value     string
	Protected bool
}

type Attachment struct {
	FileName string
	Data     []byte
}

// OpenOrCreate opens the database at path, or prepares a fresh KDBX4
// database if the file does not exist yet. Nothing is written until Save.
func OpenOrCreate(path, password, keyfile string) (*Database, error) {
	creds, err := credentials(password, keyfile)
	if err != nil {
		return nil, fmt.Errorf("keepass credentials: %w", err)
	}

	var db *gokeepasslib.Database
	if _, statErr := os.Stat(path); statErr == nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		db = gokeepasslib.NewDatabase()
		db.Credentials = creds
		if err := gokeepasslib.NewDecoder(f).Decode(db); err != nil {
			return nil, fmt.Errorf("open keepass database %s: %w", path, err)
		}
		if err := db.UnlockProtectedEntries(); err != nil {
			return nil, fmt.Errorf("unlock keepass database %s: %w", path, err)
		}
	} else if os.IsNotExist(statErr) {
		db = gokeepasslib.NewDatabase(gokeepasslib.WithDatabaseKDBXVersion4())
		db.Credentials = creds
	} else {
		return nil, statErr
	}

	d := &Database{path: path, db: db}
	d.root = mirrorGroup(&db.Content.Root.Groups[0], nil)
	return d, nil
}

func credentials(password, keyfile string) (*gokeepasslib.DBCredentials, error) {
	switch {
	case keyfile != "" && password != "":
		return gokeepasslib.NewPasswordAndKeyCredentials(password, keyfile)
	case keyfile != "":
		return gokeepasslib.NewKeyCredentials(keyfile)
	default:
		return gokeepasslib.NewPasswordCredentials(password), nil
	}
}

// mirrorGroup builds run-time handles for the groups already present in an
// opened database, remembering their entry titles and index paths.
func mirrorGroup(kg *gokeepasslib.Group, path []int) *Group {
	g := &Group{name: kg.Name, existing: true, path: path}
	for i := range kg.Entries {
		g.seedTitles = append(g.seedTitles, kg.Entries[i].GetTitle())
	}
	for i := range kg.Groups {
		childPath := append(append([]int(nil), path...), i)
		g.groups = append(g.groups, mirrorGroup(&kg.Groups[i], childPath))
	}
	return g
}

// Root returns the root group of the database.
func (d *Database) Root() *Group { return d.root }

// AddGroup returns the child of parent with the given name, creating it if
// it does not exist yet. Re-adding a name is a no-op that returns the
// existing handle.
func (d *Database) AddGroup(parent *Group, name string) *Group {
	for _, c := range parent.groups {
		if c.name == name {
			return c
		}
	}
	c := &Group{name: name}
	parent.groups = append(parent.groups, c)
	return c
}

func (g *Group) Name() string { return g.name }

// ExistingTitles returns the titles of entries that were already present in
// this group when the database was opened.
func (g *Group) ExistingTitles() []string { return g.seedTitles }

// Groups returns the child groups of g, existing and newly added.
func (g *Group) Groups() []*Group { return g.groups }

// Entries returns the entries added to g during this run.
func (g *Group) Entries() []*Entry { return g.entries }

// AddEntry places a fully built entry into the group.
func (g *Group) AddEntry(e *Entry) { g.entries = append(g.entries, e) }

func NewEntry(username, password, notes string) *Entry {
	return &Entry{Username: username, Password: password, Notes: notes}
}

// SetProperty sets a custom string property. Protected properties are
// stored with in-memory protection and never shown in plaintext listings.
func (e *Entry) SetProperty(name, value string, protected bool) {
	e.properties = append(e.properties, Property{Name: name, Value: value, Protected: protected})
}

// HasProperty reports whether a custom property with the given name is set.
func (e *Entry) HasProperty(name string) bool {
	for _, p := range e.properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Property returns the named custom property.
func (e *Entry) Property(name string) (Property, bool) {
	for _, p := range e.properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Properties returns all custom properties in insertion order.
func (e *Entry) Properties() []Property { return e.properties }

// SetTOTP stores the TOTP seed and its settings the way KeePass TOTP
// plugins expect them: a protected "TOTP Seed" plus "period;digits".
func (e *Entry) SetTOTP(secret string, period, digits int) {
	e.SetProperty("TOTP Seed", secret, true)
	e.SetProperty("TOTP Settings", fmt.Sprintf("%d;%d", period, digits), false)
}

// AddAttachment attaches a binary to the entry. A duplicate filename on the
// same entry gets an index suffix. Returns the stored filename.
func (e *Entry) AddAttachment(filename string, data []byte) string {
	name := filename
	for n := 1; e.hasAttachment(name); n++ {
		name = fmt.Sprintf("%s_%d", filename, n)
	}
	e.attachments = append(e.attachments, Attachment{FileName: name, Data: data})
	return name
}

func (e *Entry) hasAttachment(name string) bool {
	for _, a := range e.attachments {
		if a.FileName == name {
			return true
		}
	}
	return false
}

// Attachments returns the binaries attached to the entry.
func (e *Entry) Attachments() []Attachment { return e.attachments }

// Save grafts everything added during the run onto the KDBX tree and
// writes the database. The encode goes to a temp file in the destination
// directory which is renamed over path, so a pre-existing database is
// either fully replaced or left byte-identical.
func (d *Database) Save() error {
	d.graft(d.root)
	if err := d.db.LockProtectedEntries(); err != nil {
		return fmt.Errorf("lock keepass database: %w", err)
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gokeepasslib.NewEncoder(tmp).Encode(d.db); err != nil {
		tmp.Close()
		return fmt.Errorf("encode keepass database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.path)
}

// graft appends the run's additions under each pre-existing group. Groups
// are resolved by index path right before mutation; new subtrees are built
// detached and appended in one step, so earlier appends never invalidate
// later lookups.
func (d *Database) graft(g *Group) {
	if !g.existing {
		return
	}
	kg := d.resolve(g.path)
	for _, c := range g.groups {
		if c.existing {
			continue
		}
		kg.Groups = append(kg.Groups, d.materializeGroup(c))
	}
	for _, e := range g.entries {
		kg.Entries = append(kg.Entries, d.materializeEntry(e))
	}
	for _, c := range g.groups {
		if c.existing {
			d.graft(c)
		}
	}
}

func (d *Database) resolve(path []int) *gokeepasslib.Group {
	kg := &d.db.Content.Root.Groups[0]
	for _, i := range path {
		kg = &kg.Groups[i]
	}
	return kg
}

func (d *Database) materializeGroup(g *Group) gokeepasslib.Group {
	kg := gokeepasslib.NewGroup()
	kg.Name = g.name
	for _, c := range g.groups {
		kg.Groups = append(kg.Groups, d.materializeGroup(c))
	}
	for _, e := range g.entries {
		kg.Entries = append(kg.Entries, d.materializeEntry(e))
	}
	return kg
}

func (d *Database) materializeEntry(e *Entry) gokeepasslib.Entry {
	ke := gokeepasslib.NewEntry()
	ke.Values = append(ke.Values,
		plainValue(KeyTitle, e.Title),
		plainValue(KeyUserName, e.Username),
		protectedValue(KeyPassword, e.Password),
		plainValue(KeyURL, e.URL),
		plainValue(KeyNotes, e.Notes),
	)
	for _, p := range e.properties {
		if p.Protected {
			ke.Values = append(ke.Values, protectedValue(p.Name, p.Value))
		} else {
			ke.Values = append(ke.Values, plainValue(p.Name, p.Value))
		}
	}
	for _, a := range e.attachments {
		binary := d.db.AddBinary(a.Data)
		ke.Binaries = append(ke.Binaries, binary.CreateReference(a.FileName))
	}
	return ke
}

func plainValue(key, value string) gokeepasslib.ValueData {
	return gokeepasslib.ValueData{Key: key, Value: gokeepasslib.V{Content: value}}
}

func protectedValue(key, value string) gokeepasslib.ValueData {
	return gokeepasslib.ValueData{
		Key:   key,
		Value: gokeepasslib.V{Content: value, Protected: w.NewBoolWrapper(true)},
	}
}
