package scenes

import (
	"context"
	"fmt"
	"time"

	"terrapipe/internal/services"
)

// DuplicateSceneIDs returns the natural scene identifiers that appear on
// more than one record.
func (s *Store) DuplicateSceneIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT scene_id FROM scenes GROUP BY scene_id HAVING COUNT(1) > 1 ORDER BY scene_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query duplicate scene ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResolveDuplicates settles every scene identifier that carries multiple
// records, keeping the record whose product processing date is closest to
// now and removing the rest. Removed scenes are returned so the caller can
// delete their on-disk artifacts.
//
// A record whose product identifier cannot be dated is never chosen over a
// dated one. When every record for an identifier is undatable the database
// cannot be settled and resolution stops with a corruption error.
func (s *Store) ResolveDuplicates(ctx context.Context, now time.Time) ([]*Scene, error) {
	ids, err := s.DuplicateSceneIDs(ctx)
	if err != nil {
		return nil, err
	}

	var removed []*Scene
	for _, sceneID := range ids {
		group, err := s.ScenesBySceneID(ctx, sceneID)
		if err != nil {
			return removed, err
		}
		if len(group) < 2 {
			continue
		}
		canonical, err := chooseCanonical(group, now)
		if err != nil {
			return removed, err
		}
		for _, scene := range group {
			if scene.PID == canonical.PID {
				continue
			}
			if _, err := s.Remove(ctx, scene.PID); err != nil {
				return removed, fmt.Errorf("remove duplicate pid %d: %w", scene.PID, err)
			}
			removed = append(removed, scene)
		}
	}
	return removed, nil
}

// chooseCanonical picks the record with the smallest distance between its
// product processing date and now. Ties keep the earliest PID, which is
// the first-seen record.
func chooseCanonical(group []*Scene, now time.Time) (*Scene, error) {
	var (
		best     *Scene
		bestDist time.Duration
	)
	for _, scene := range group {
		date, ok := ProductDate(scene.ProductID)
		if !ok {
			continue
		}
		dist := now.Sub(date)
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best = scene
			bestDist = dist
		}
	}
	if best == nil {
		return nil, services.Wrap(
			services.ErrCorruptState,
			"duplicates",
			"resolve",
			fmt.Sprintf("no record for scene %s has a datable product id", group[0].SceneID),
			nil,
		)
	}
	return best, nil
}
