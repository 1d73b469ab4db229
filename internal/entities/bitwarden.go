package entities

// ItemType is the item type used by bitwarden-cli.
type ItemType int

const (
	ItemTypeLogin      ItemType = 1
	ItemTypeSecureNote ItemType = 2
	ItemTypeCard       ItemType = 3
	ItemTypeIdentity   ItemType = 4
	ItemTypeSSHKey     ItemType = 5
)

// FieldType is the custom field type used by bitwarden-cli.
type FieldType int

const (
	FieldTypeText    FieldType = 0
	FieldTypeHidden  FieldType = 1
	FieldTypeBoolean FieldType = 2
	FieldTypeLinked  FieldType = 3
)

// Folder is one element of `bw list folders`. The "No Folder" entry has a
// null id.
type Folder struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

// Item is one element of `bw list items`.
type Item struct {
	ID          string       `json:"id"`
	FolderID    *string      `json:"folderId"`
	Type        ItemType     `json:"type"`
	Name        string       `json:"name"`
	Notes       *string      `json:"notes"`
	Favorite    bool         `json:"favorite"`
	Login       *Login       `json:"login,omitempty"`
	Fields      []Field      `json:"fields,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Login struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	TOTP     *string `json:"totp"`
	URIs     []URI   `json:"uris,omitempty"`
}

type URI struct {
	URI   *string `json:"uri"`
	Match *int    `json:"match"`
}

type Field struct {
	Name     *string   `json:"name"`
	Value    *string   `json:"value"`
	Type     FieldType `json:"type"`
	LinkedID *int      `json:"linkedId"`
}

type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	Size     string `json:"size"`
	SizeName string `json:"sizeName"`
	URL      string `json:"url"`
}

// Export is the layout of `bw export --format json`.
type Export struct {
	Encrypted bool     `json:"encrypted"`
	Folders   []Folder `json:"folders"`
	Items     []Item   `json:"items"`
}
