package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded — the tuning knobs consumed
// per-call by recall, dream, decay, and write — are tracked. Database,
// embeddings, and MCP transport changes require a process restart and are
// deliberately left untracked here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	RecallChanged bool
	NewRecall     RecallConfig

	DreamChanged bool
	NewDream     DreamConfig

	DecayChanged bool
	NewDecay     DecayConfig

	WriteChanged bool
	NewWrite     WriteConfig
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.RecallChanged || d.DreamChanged || d.DecayChanged || d.WriteChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Recall != new.Recall {
		d.RecallChanged = true
		d.NewRecall = new.Recall
	}
	if old.Dream != new.Dream {
		d.DreamChanged = true
		d.NewDream = new.Dream
	}
	if old.Decay != new.Decay {
		d.DecayChanged = true
		d.NewDecay = new.Decay
	}
	if old.Write != new.Write {
		d.WriteChanged = true
		d.NewWrite = new.Write
	}

	return d
}
