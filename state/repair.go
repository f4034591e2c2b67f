package state

// RepairReport counts each class of fix the repair pass applied.
type RepairReport struct {
	EmptyNamesDropped   int
	KeysRewritten       int
	DuplicatesCollapsed int
	ProvidesNameFixed   int
}

// Repair implements `lint --repair-state` (§4.7): drops entries with
// empty config_name, rewrites the key on any entry whose key disagrees
// with its body, collapses duplicates preferring the more complete
// record, and normalizes a missing provides_name to config_name.
func Repair(ledger *Ledger) RepairReport {
	var report RepairReport
	candidates := make(map[string]PackageState)

	for key, entry := range ledger.Packages {
		if entry.ConfigName == "" {
			report.EmptyNamesDropped++
			continue
		}

		correctKey := entry.Key()
		if correctKey != key {
			report.KeysRewritten++
		}

		if entry.ProvidesName == "" {
			entry.ProvidesName = entry.ConfigName
			report.ProvidesNameFixed++
		}

		if existing, ok := candidates[correctKey]; ok {
			report.DuplicatesCollapsed++
			candidates[correctKey] = moreComplete(existing, entry)
			continue
		}
		candidates[correctKey] = entry
	}

	ledger.Packages = candidates
	return report
}

// moreComplete returns whichever of a, b has more populated optional
// fields, breaking ties in favor of a.
func moreComplete(a, b PackageState) PackageState {
	if score(b) > score(a) {
		return b
	}
	return a
}

func score(p PackageState) int {
	n := 0
	if p.Version != "" {
		n++
	}
	if p.ActualPackageName != "" {
		n++
	}
	if p.InstallReason != "" {
		n++
	}
	if p.SourceModule != "" {
		n++
	}
	if p.LastSeenAt != nil {
		n++
	}
	if len(p.BackendMeta) > 0 {
		n++
	}
	return n
}
