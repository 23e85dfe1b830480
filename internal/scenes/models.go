package scenes

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scene is one acquired scene tracked through the processing lifecycle.
//
// PID is the local primary key, issued from a persistent sequence at
// insert so identifiers stay monotonic across the life of the database
// and a deleted record's PID is never reused. SceneID is
// the sensor's natural identifier; duplicates can appear when a provider
// republishes a scene under a new ProductID and are settled by the
// duplicate resolver. Stage timestamps come in start/end pairs with a
// completion flag; a flag is only set once the stage's outputs are fully
// on disk.
type Scene struct {
	PID        int64
	SceneID    string
	ProductID  string
	Platform   string
	Instrument string

	AcquiredAt time.Time
	NorthLat   float64
	SouthLat   float64
	EastLon    float64
	WestLon    float64
	CloudCover float64
	RemoteURL  string
	TotalSize  int64

	DownloadStart *time.Time
	DownloadEnd   *time.Time
	Downloaded    bool
	DownloadPath  string

	ARDStart *time.Time
	ARDEnd   *time.Time
	ARDDone  bool
	ARDPath  string

	DCLoadStart *time.Time
	DCLoadEnd   *time.Time
	DCLoaded    bool

	Invalid  bool
	Archived bool

	ExtendedInfo *ExtendedInfo

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtendedInfo carries per-scene artifact metadata that does not warrant
// its own column. Stored as JSON; sections are merged on write so one
// stage never clobbers another's entry.
type ExtendedInfo struct {
	Quicklook *QuicklookInfo `json:"quicklook,omitempty"`
	Tilecache *TilecacheInfo `json:"tilecache,omitempty"`
}

// QuicklookInfo records the quicklook output directory and images.
type QuicklookInfo struct {
	Path   string   `json:"quicklookpath"`
	Images []string `json:"quicklookimgs"`
}

// TilecacheInfo records the tile cache output and its source GeoTIFF.
type TilecacheInfo struct {
	VisGTIFF string `json:"visgtiff"`
	Path     string `json:"tilecachepath"`
}

// HasQuicklook reports whether a quicklook has been generated.
func (s *Scene) HasQuicklook() bool {
	return s.ExtendedInfo != nil && s.ExtendedInfo.Quicklook != nil && s.ExtendedInfo.Quicklook.Path != ""
}

// HasTilecache reports whether a tile cache has been generated.
func (s *Scene) HasTilecache() bool {
	return s.ExtendedInfo != nil && s.ExtendedInfo.Tilecache != nil && s.ExtendedInfo.Tilecache.Path != ""
}

// EnsureExtendedInfo returns the scene's extended info, allocating it on
// first use.
func (s *Scene) EnsureExtendedInfo() *ExtendedInfo {
	if s.ExtendedInfo == nil {
		s.ExtendedInfo = &ExtendedInfo{}
	}
	return s.ExtendedInfo
}

// DownloadDuration returns the elapsed download time when both timestamps
// are recorded.
func (s *Scene) DownloadDuration() (time.Duration, bool) {
	return spanDuration(s.DownloadStart, s.DownloadEnd)
}

// ARDDuration returns the elapsed ARD conversion time when both timestamps
// are recorded.
func (s *Scene) ARDDuration() (time.Duration, bool) {
	return spanDuration(s.ARDStart, s.ARDEnd)
}

func spanDuration(start, end *time.Time) (time.Duration, bool) {
	if start == nil || end == nil {
		return 0, false
	}
	d := end.Sub(*start)
	if d < 0 {
		return 0, false
	}
	return d, true
}

// ProductDate extracts the processing date embedded in a product
// identifier. Landsat-style product IDs carry the processing date as the
// fifth underscore-separated token in YYYYMMDD form, e.g.
// LC08_L1TP_203024_20180410_20180417_01_T1 processed on 2018-04-17.
func ProductDate(productID string) (time.Time, bool) {
	parts := strings.Split(productID, "_")
	if len(parts) < 5 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", parts[4])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// PluginRecord tracks one plugin's analysis of one scene. Completed means
// the plugin ran to an end, successfully or not; Success and Outputs are
// only meaningful when Completed is set.
type PluginRecord struct {
	ScenePID   int64
	PluginName string

	Start     *time.Time
	End       *time.Time
	Completed bool
	Success   bool
	Outputs   bool
	Error     string

	ExtendedInfo map[string]any

	UpdatedAt time.Time
}

// Duration returns the elapsed plugin run time when both timestamps are
// recorded.
func (r *PluginRecord) Duration() (time.Duration, bool) {
	return spanDuration(r.Start, r.End)
}

func marshalExtendedInfo(info *ExtendedInfo) (any, error) {
	if info == nil {
		return nil, nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal extended info: %w", err)
	}
	return string(data), nil
}

func unmarshalExtendedInfo(raw string) (*ExtendedInfo, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var info ExtendedInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("unmarshal extended info: %w", err)
	}
	return &info, nil
}

func marshalPluginInfo(info map[string]any) (any, error) {
	if len(info) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal plugin info: %w", err)
	}
	return string(data), nil
}

func unmarshalPluginInfo(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("unmarshal plugin info: %w", err)
	}
	return info, nil
}
