package entities

import "testing"

func TestExportFromCSV(t *testing.T) {
	rows := []BitwardenCSV{
		{
			Folder:        "Work/Mail",
			Type:          "login",
			Name:          "Gmail",
			Fields:        "pin: 1234\nbackup: yes",
			LoginURI:      "https://mail.google.com,https://accounts.google.com",
			LoginUsername: "user@gmail.com",
			LoginPassword: "hunter2",
			LoginTOTP:     "ABCDEFGHIJKLMNOP",
		},
		{
			Folder: "Work/Mail",
			Type:   "note",
			Name:   "Backup codes",
			Notes:  "code1",
		},
		{
			Type: "card",
			Name: "Visa",
		},
	}
	export := ExportFromCSV(rows)

	if len(export.Folders) != 1 {
		t.Fatalf("folders = %d, want 1", len(export.Folders))
	}
	if export.Folders[0].Name != "Work/Mail" || export.Folders[0].ID == nil {
		t.Errorf("folder = %+v", export.Folders[0])
	}
	if len(export.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(export.Items))
	}

	login := export.Items[0]
	if login.ID != "1" || login.Type != ItemTypeLogin {
		t.Errorf("login item = %+v", login)
	}
	if login.FolderID == nil || *login.FolderID != *export.Folders[0].ID {
		t.Errorf("login folder id = %v, want %v", login.FolderID, export.Folders[0].ID)
	}
	if login.Login == nil {
		t.Fatal("login detail missing")
	}
	if got := len(login.Login.URIs); got != 2 {
		t.Errorf("login uris = %d, want 2", got)
	}
	if *login.Login.URIs[0].URI != "https://mail.google.com" {
		t.Errorf("first uri = %v", *login.Login.URIs[0].URI)
	}
	if len(login.Fields) != 2 || *login.Fields[0].Name != "pin" || *login.Fields[0].Value != "1234" {
		t.Errorf("fields = %+v", login.Fields)
	}

	note := export.Items[1]
	if note.Type != ItemTypeSecureNote || note.Notes == nil || *note.Notes != "code1" {
		t.Errorf("note item = %+v", note)
	}
	if note.FolderID == nil || *note.FolderID != *login.FolderID {
		t.Error("second row in the same folder must share the folder id")
	}

	card := export.Items[2]
	if card.Type == ItemTypeLogin || card.Type == ItemTypeSecureNote {
		t.Errorf("card type = %v, must stay unsupported", card.Type)
	}
}
