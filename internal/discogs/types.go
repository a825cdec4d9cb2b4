package discogs

import "github.com/justestif/discat/internal/collection"

// pagination is the paging block of list responses.
type pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

type collectionPage struct {
	Pagination pagination        `json:"pagination"`
	Releases   []collection.Item `json:"releases"`
}

type foldersResponse struct {
	Folders []collection.Folder `json:"folders"`
}

type fieldsResponse struct {
	Fields []collection.Field `json:"fields"`
}

// instanceResponse carries the annotation values of one instance.
type instanceResponse struct {
	Notes []collection.FieldValue `json:"notes"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type moveRequest struct {
	FolderID int64 `json:"folder_id"`
}

type folderRequest struct {
	Name string `json:"name"`
}

// FieldSpec describes a custom field to create.
type FieldSpec struct {
	Name    string               `json:"name"`
	Type    collection.FieldType `json:"type"`
	Options []string             `json:"options,omitempty"`
	Public  bool                 `json:"public"`
	Lines   int                  `json:"lines,omitempty"`
}

type fieldPosition struct {
	ID       int `json:"id"`
	Position int `json:"position"`
}

type reorderRequest struct {
	Fields []fieldPosition `json:"fields"`
}
