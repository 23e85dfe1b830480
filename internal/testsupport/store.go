package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"terrapipe/internal/config"
	"terrapipe/internal/scenes"
)

// MustOpenStore opens a scenes.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *scenes.Store {
	t.Helper()

	store, err := scenes.Open(cfg.Database.Path)
	if err != nil {
		t.Fatalf("scenes.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewScene builds an unsaved scene with plausible metadata. The sequence
// number makes the identifiers unique and spaces acquisitions one day
// apart.
func NewScene(seq int) *scenes.Scene {
	acquired := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC).AddDate(0, 0, seq)
	return &scenes.Scene{
		SceneID:    fmt.Sprintf("LC82030240%04d", seq),
		ProductID:  fmt.Sprintf("LC08_L1TP_203024_%s_%s_01_T1", acquired.Format("20060102"), acquired.AddDate(0, 0, 5).Format("20060102")),
		Platform:   "LANDSAT_8",
		Instrument: "OLI_TIRS",
		AcquiredAt: acquired,
		NorthLat:   53.5,
		SouthLat:   51.0,
		EastLon:    -2.5,
		WestLon:    -5.5,
		CloudCover: 12.5,
		RemoteURL:  fmt.Sprintf("https://storage.invalid/scenes/%04d.tar.gz", seq),
		TotalSize:  1 << 20,
	}
}

// SeedScenes inserts n generated scenes and returns them with PIDs
// assigned.
func SeedScenes(t testing.TB, store *scenes.Store, n int) []*scenes.Scene {
	t.Helper()

	list := make([]*scenes.Scene, 0, n)
	for i := 0; i < n; i++ {
		list = append(list, NewScene(i))
	}
	if err := store.InsertScenes(context.Background(), list); err != nil {
		t.Fatalf("store.InsertScenes: %v", err)
	}
	return list
}
