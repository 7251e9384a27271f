package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/cuefix/internal/models"
	"github.com/desertthunder/cuefix/internal/shared"
)

func TestPlaylistRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPlaylistRepository(db)
			if err := repo.Create(models.NewPersistedPlaylist(0, "  ", 0)); err == nil {
				t.Fatal("expected validation error for blank name")
			}
		})

		t.Run("DuplicateName", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPlaylistRepository(db)
			createPlaylist(t, repo, "Default")

			err := repo.Create(models.NewPersistedPlaylist(0, "Default", 0))
			if !errors.Is(err, shared.ErrPlaylistExists) {
				t.Fatalf("expected ErrPlaylistExists, got %v", err)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPlaylistRepository(db)
			if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
			}
			if _, err := repo.GetByName("nobody"); !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
			}
		})
	})

	t.Run("SetLockMask", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPlaylistRepository(db)
			if err := repo.SetLockMask("nonexistent-id", models.LockFilterRemove); !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPlaylistRepository(db)
			if err := repo.Delete("nonexistent-id"); err == nil {
				t.Fatal("expected error when deleting nonexistent playlist")
			}
		})
	})

	t.Run("Items", func(t *testing.T) {
		t.Run("UnknownPlaylist", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPlaylistRepository(db)
			if _, err := repo.AppendItems("nonexistent-id", handles("file:///a.flac")); !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Fatalf("expected ErrPlaylistNotFound from AppendItems, got %v", err)
			}
			if _, err := repo.Items("nonexistent-id"); !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Fatalf("expected ErrPlaylistNotFound from Items, got %v", err)
			}
			if _, err := repo.RemoveItems("nonexistent-id", []int{0}); !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Fatalf("expected ErrPlaylistNotFound from RemoveItems, got %v", err)
			}
		})

		t.Run("OutOfRange", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewPlaylistRepository(db)
			playlist := createPlaylist(t, repo, "Default")
			if _, err := repo.AppendItems(playlist.ID(), handles("file:///a.flac", "file:///b.flac")); err != nil {
				t.Fatalf("failed to append items: %v", err)
			}

			_, err := repo.RemoveItems(playlist.ID(), []int{0, 2})
			if !errors.Is(err, shared.ErrInvalidIndex) {
				t.Fatalf("expected ErrInvalidIndex, got %v", err)
			}

			items, err := repo.Items(playlist.ID())
			if err != nil {
				t.Fatalf("failed to list items: %v", err)
			}
			if len(items) != 2 {
				t.Errorf("expected failed removal to leave 2 items, got %d", len(items))
			}
		})
	})
}

func TestRemovalRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("NoEntries", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRemovalRepository(db)
			if err := repo.Create(models.NewRemovalRun(0, "playlist-1", "Default", nil)); err == nil {
				t.Fatal("expected validation error for a run without entries")
			}
		})

		t.Run("NoPlaylist", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRemovalRepository(db)
			entries := []models.RemovalEntry{{Position: 0, Location: "file:///a.flac", Reason: models.ReasonMissingReference}}
			if err := repo.Create(models.NewRemovalRun(0, "", "Default", entries)); err == nil {
				t.Fatal("expected validation error for a run without playlist")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRemovalRepository(db)
			if _, err := repo.Get("nonexistent-id"); !errors.Is(err, ErrRemovalRunNotFound) {
				t.Fatalf("expected ErrRemovalRunNotFound, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewRemovalRepository(db)
			if err := repo.Delete("nonexistent-id"); !errors.Is(err, ErrRemovalRunNotFound) {
				t.Fatalf("expected ErrRemovalRunNotFound, got %v", err)
			}
		})
	})
}
