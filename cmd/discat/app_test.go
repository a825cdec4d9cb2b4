package main

import (
	"testing"

	"github.com/justestif/discat/internal/cache"
	"github.com/justestif/discat/internal/db"
)

func TestStorageMirror(t *testing.T) {
	database := &db.DB{}

	tests := []struct {
		name string
		st   *storage
		want bool
	}{
		{"no database", &storage{store: cache.NewFileStore(t.TempDir() + "/c.json")}, false},
		{"file cache with database", &storage{store: cache.NewFileStore(t.TempDir() + "/c.json"), database: database}, true},
		{"snapshot in database", &storage{store: database.Snapshots(), database: database, shared: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.st.mirror() != nil; got != tt.want {
				t.Errorf("mirror() set = %v, want %v", got, tt.want)
			}
		})
	}
}
