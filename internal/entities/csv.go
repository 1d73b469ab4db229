package entities

import (
	"strconv"
	"strings"
)

// BitwardenCSV is one row of `bw export --format csv`.
type BitwardenCSV struct {
	Folder        string `json:"folder" csv:"folder"`
	Favorite      string `json:"favorite" csv:"favorite"`
	Type          string `json:"type" csv:"type"`
	Name          string `json:"name" csv:"name"`
	Notes         string `json:"notes" csv:"notes"`
	Fields        string `json:"fields" csv:"fields"`
	Reprompt      string `json:"reprompt" csv:"reprompt"`
	LoginURI      string `json:"login_uri" csv:"login_uri"`
	LoginUsername string `json:"login_username" csv:"login_username"`
	LoginPassword string `json:"login_password" csv:"login_password"`
	LoginTOTP     string `json:"login_totp" csv:"login_totp"`
}

// ExportFromCSV rebuilds the Export shape from CSV rows. The CSV format
// carries neither item nor folder ids, so folder ids are synthesized per
// unique folder path and the 1-based row number stands in for the item id.
func ExportFromCSV(rows []BitwardenCSV) Export {
	var export Export
	folderIDs := make(map[string]string)

	for i, row := range rows {
		item := Item{
			ID:   strconv.Itoa(i + 1),
			Type: csvItemType(row.Type),
			Name: row.Name,
		}
		if row.Notes != "" {
			notes := row.Notes
			item.Notes = &notes
		}
		if row.Folder != "" {
			id, ok := folderIDs[row.Folder]
			if !ok {
				id = "folder-" + strconv.Itoa(len(folderIDs)+1)
				folderIDs[row.Folder] = id
				folderID := id
				export.Folders = append(export.Folders, Folder{ID: &folderID, Name: row.Folder})
			}
			folderID := id
			item.FolderID = &folderID
		}
		item.Fields = csvFields(row.Fields)
		if item.Type == ItemTypeLogin {
			item.Login = csvLogin(row)
		}
		export.Items = append(export.Items, item)
	}
	return export
}

func csvItemType(s string) ItemType {
	switch s {
	case "login":
		return ItemTypeLogin
	case "note":
		return ItemTypeSecureNote
	case "card":
		return ItemTypeCard
	case "identity":
		return ItemTypeIdentity
	}
	return 0
}

func csvLogin(row BitwardenCSV) *Login {
	login := &Login{}
	if row.LoginUsername != "" {
		username := row.LoginUsername
		login.Username = &username
	}
	if row.LoginPassword != "" {
		password := row.LoginPassword
		login.Password = &password
	}
	if row.LoginTOTP != "" {
		totp := row.LoginTOTP
		login.TOTP = &totp
	}
	// Multiple URIs are joined with "," in the CSV export.
	for _, u := range strings.Split(row.LoginURI, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		uri := u
		login.URIs = append(login.URIs, URI{URI: &uri})
	}
	return login
}

// csvFields parses the "fields" column, one "name: value" pair per line.
// The CSV export does not record field types, so everything comes back as
// a text field.
func csvFields(s string) []Field {
	var fields []Field
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, _ := strings.Cut(line, ": ")
		name = strings.TrimSuffix(name, ":")
		n, v := name, value
		fields = append(fields, Field{Name: &n, Value: &v, Type: FieldTypeText})
	}
	return fields
}
