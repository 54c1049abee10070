package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// exchangesFile is the optional JSON file overriding the tracked indices.
type exchangesFile struct {
	IndicesToTrack []string `json:"indices_to_track"`
}

// IndicesFromFile reads configDir/exchanges.json and returns the index list
// it names. The second return is false when the file is absent or unreadable;
// callers fall back to the environment defaults in that case.
func IndicesFromFile(configDir string) ([]string, bool) {
	path := filepath.Join(configDir, "exchanges.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var ex exchangesFile
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, false
	}

	if len(ex.IndicesToTrack) == 0 {
		return nil, false
	}

	return ex.IndicesToTrack, true
}
