package model

// LocalListItem is the list projection served by the local/proxy-cache variant.
// It omits storage locations so clients never see filesystem paths or platform references.
type LocalListItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Date     int64  `json:"date"`
	Source   Source `json:"source"`
	Size     *int64 `json:"size"`
}

// ObjectListItem is the list projection served by the presigned-URL variant.
type ObjectListItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Key      string `json:"key"`
	Size     *int64 `json:"size"`
	Date     int64  `json:"date"`
	Source   Source `json:"source"`
}

// LocalView projects d for the local variant. Name falls back to the title.
func LocalView(d Document) LocalListItem {
	name := d.Name
	if name == "" {
		name = d.Title
	}
	return LocalListItem{
		ID:       d.ID,
		Title:    d.Title,
		Name:     name,
		Category: d.Category,
		Date:     d.Date,
		Source:   d.Source,
		Size:     d.Size,
	}
}

// ObjectView projects d for the presigned variant.
func ObjectView(d Document) ObjectListItem {
	return ObjectListItem{
		ID:       d.ID,
		Title:    d.Title,
		Category: d.Category,
		Key:      d.Key,
		Size:     d.Size,
		Date:     d.Date,
		Source:   d.Source,
	}
}
