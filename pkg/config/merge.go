package config

// Overrides are values given on the command line. Empty fields leave the
// configuration unchanged.
type Overrides struct {
	InstallPath string
	BackupDir   string
	ProfilesDir string
	Output      string
}

// Merge returns a copy of c with the non-empty fields of o applied.
func (c *Config) Merge(o Overrides) *Config {
	merged := *c
	if o.InstallPath != "" {
		merged.InstallPath = o.InstallPath
	}
	if o.BackupDir != "" {
		merged.BackupDir = o.BackupDir
	}
	if o.ProfilesDir != "" {
		merged.ProfilesDir = o.ProfilesDir
	}
	if o.Output != "" {
		merged.Output = o.Output
	}
	return &merged
}
