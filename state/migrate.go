package state

// migrate rewrites a ledger loaded at an older schema version in place.
// There is only one schema version today; this is the seam a future
// version bump hangs off of.
func migrate(ledger *Ledger) (*Ledger, []string) {
	var warnings []string
	if ledger.Meta.SchemaVersion == 0 {
		// Pre-versioning ledgers: stamp the current version, leave
		// entries untouched since the shape hasn't changed yet.
		ledger.Meta.SchemaVersion = CurrentSchemaVersion
		warnings = append(warnings, "migrated unversioned state to schema version 1")
	}
	return ledger, warnings
}
