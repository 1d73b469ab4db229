package keepass

import (
	"path/filepath"
	"testing"
)

func TestOpenOrCreateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.kdbx")

	db, err := OpenOrCreate(path, "secret", "")
	if err != nil {
		t.Fatalf("OpenOrCreate() error = %v", err)
	}
	sites := db.AddGroup(db.Root(), "Sites")
	entry := NewEntry("user", "pass", "some notes")
	entry.Title = "Example"
	entry.URL = "https://example.com"
	entry.SetProperty("Custom", "value", false)
	entry.SetTOTP("JBSWY3DPEHPK3PXP", 30, 6)
	entry.AddAttachment("readme.txt", []byte("hello"))
	sites.AddEntry(entry)
	if err := db.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := OpenOrCreate(path, "secret", "")
	if err != nil {
		t.Fatalf("OpenOrCreate() reopen error = %v", err)
	}
	// AddGroup must hand back the existing group, seeded with its titles.
	sites = reopened.AddGroup(reopened.Root(), "Sites")
	titles := sites.ExistingTitles()
	if len(titles) != 1 || titles[0] != "Example" {
		t.Errorf("ExistingTitles() = %v, want [Example]", titles)
	}
	if len(reopened.Root().Groups()) != 1 {
		t.Errorf("reopened root groups = %d, want 1", len(reopened.Root().Groups()))
	}

	if _, err := OpenOrCreate(path, "wrong", ""); err == nil {
		t.Error("OpenOrCreate() with wrong password expected error")
	}
}

func TestAddGroupIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.kdbx")
	db, err := OpenOrCreate(path, "secret", "")
	if err != nil {
		t.Fatalf("OpenOrCreate() error = %v", err)
	}
	a := db.AddGroup(db.Root(), "Work")
	b := db.AddGroup(db.Root(), "Work")
	if a != b {
		t.Error("AddGroup() must return the existing handle for a known name")
	}
	if len(db.Root().Groups()) != 1 {
		t.Errorf("root groups = %d, want 1", len(db.Root().Groups()))
	}
}

func TestEntryAttachmentDedupe(t *testing.T) {
	entry := NewEntry("", "", "")
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "report.txt", want: "report.txt"},
		{filename: "report.txt", want: "report.txt_1"},
		{filename: "report.txt", want: "report.txt_2"},
		{filename: "other.txt", want: "other.txt"},
	}
	for _, tt := range tests {
		if got := entry.AddAttachment(tt.filename, nil); got != tt.want {
			t.Errorf("AddAttachment(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestIsReservedKey(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "Title", want: true},
		{name: "UserName", want: true},
		{name: "Password", want: true},
		{name: "URL", want: true},
		{name: "Notes", want: true},
		{name: "TOTP Seed", want: false},
		{name: "title", want: false},
	}
	for _, tt := range tests {
		if got := IsReservedKey(tt.name); got != tt.want {
			t.Errorf("IsReservedKey(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
