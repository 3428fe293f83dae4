package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// JobFile is a TOML description of a single ingestion run:
//
//	[job]
//	season = "2023-24"
//	start_date = "2023-10-24"
//	end_date = "2023-11-30"
type JobFile struct {
	Job JobSection `toml:"job"`
}

// JobSection maps the [job] table. Empty dates mean the whole season.
type JobSection struct {
	Season    string `toml:"season"`
	StartDate string `toml:"start_date"`
	EndDate   string `toml:"end_date"`
	DryRun    bool   `toml:"dry_run"`
}

// LoadJobFile reads a TOML job file. Missing file is not an error.
func LoadJobFile(path string) (JobFile, error) {
	if path == "" {
		return JobFile{}, fmt.Errorf("job file path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return JobFile{}, nil
		}
		return JobFile{}, fmt.Errorf("failed to stat job file: %w", err)
	}
	var jf JobFile
	if _, err := toml.DecodeFile(path, &jf); err != nil {
		return JobFile{}, fmt.Errorf("failed to decode job file: %w", err)
	}
	return jf, nil
}
