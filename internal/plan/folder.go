package plan

import (
	"fmt"
	"strings"

	"github.com/justestif/discat/internal/collection"
)

// allFolderID is the virtual folder holding the whole collection.
const allFolderID = 0

// FolderMove is one pending folder reassignment.
type FolderMove struct {
	Title        string `json:"title"`
	Value        string `json:"value"`
	FromFolderID int64  `json:"from_folder_id"`
	ToFolderID   int64  `json:"to_folder_id"`
	ReleaseID    int64  `json:"release_id"`
	InstanceID   int64  `json:"instance_id"`
}

// Ref returns the current address of the instance being moved.
func (m FolderMove) Ref() collection.Ref {
	return collection.Ref{FolderID: m.FromFolderID, ReleaseID: m.ReleaseID, InstanceID: m.InstanceID}
}

// FolderPlan is the outcome of planning a folder reassignment.
type FolderPlan struct {
	Folder          collection.Folder `json:"folder"`
	Moves           []FolderMove      `json:"moves"`
	AlreadyInFolder int               `json:"already_in_folder"`
	NoValue         int               `json:"no_value"`
	Mismatched      int               `json:"mismatched"`
}

// BuildFolderPlan selects the items whose derived value equals the target
// folder name and which are not already in that folder.
func BuildFolderPlan(items []collection.Item, folders []collection.Folder, folderName string, ex Extractor) (*FolderPlan, error) {
	target, ok := findFolder(folders, folderName)
	if !ok {
		available := make([]string, len(folders))
		for i, f := range folders {
			available[i] = f.Name
		}
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrFolderNotFound, folderName, strings.Join(available, ", "))
	}
	if target.ID == allFolderID {
		return nil, fmt.Errorf("folder %q is the whole collection and cannot receive items", target.Name)
	}

	p := &FolderPlan{Folder: target, Moves: []FolderMove{}}
	for _, it := range items {
		value, ok := ex.Extract(it)
		switch {
		case !ok || value == "":
			p.NoValue++
		case value != target.Name:
			p.Mismatched++
		case it.FolderID == target.ID:
			p.AlreadyInFolder++
		default:
			p.Moves = append(p.Moves, FolderMove{
				Title:        it.Title(),
				Value:        value,
				FromFolderID: it.FolderID,
				ToFolderID:   target.ID,
				ReleaseID:    it.ReleaseID,
				InstanceID:   it.InstanceID,
			})
		}
	}
	return p, nil
}

func findFolder(folders []collection.Folder, name string) (collection.Folder, bool) {
	for _, f := range folders {
		if f.Name == name {
			return f, true
		}
	}
	return collection.Folder{}, false
}
