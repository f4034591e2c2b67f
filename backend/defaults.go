package backend

// DefaultDescriptors returns the built-in descriptor literals for the
// common backends this tool ships data for out of the box. This is what
// replaces the teacher's one-Go-package-per-manager layout with a single
// driver plus data (spec §1 item 7): every command shape below mirrors a
// real invocation of the named tool.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:          "apt",
			Binary:        []string{"apt"},
			InstallCmd:    "{binary} install -y {packages}",
			RemoveCmd:     "{binary} remove -y {packages}",
			ListCmd:       "dpkg-query -W -f=${binary:Package} ${Version}\\n",
			SearchCmd:     "{binary} search {query}",
			UpdateCmd:     "{binary} update",
			UpgradeCmd:    "{binary} upgrade -y",
			CacheCleanCmd: "{binary} autoclean",
			ListFormat:    OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			SearchFormat:  OutputSpec{Format: FormatRegex, Pattern: `(?m)^(\S+)/\S+\s+(\S+)`, NameGroup: 1, VersionGroup: 2},
			NoConfirmFlag: "-y",
			NeedsSudo:     true,
			PreinstallEnv: []string{"DEBIAN_FRONTEND=noninteractive"},
			SupportedOS:   []string{"debian", "ubuntu"},
		},
		{
			Name:          "dnf",
			Binary:        []string{"dnf", "yum"},
			InstallCmd:    "{binary} install -y {packages}",
			RemoveCmd:     "{binary} remove -y {packages}",
			ListCmd:       "{binary} list installed",
			SearchCmd:     "{binary} search {query}",
			UpdateCmd:     "{binary} check-update",
			UpgradeCmd:    "{binary} upgrade -y",
			CacheCleanCmd: "{binary} clean all",
			ListFormat:    OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			SearchFormat:  OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			NoConfirmFlag: "-y",
			NeedsSudo:     true,
			SupportedOS:   []string{"fedora", "rhel", "centos"},
		},
		{
			Name:          "pacman",
			Binary:        []string{"pacman"},
			InstallCmd:    "{binary} -S --noconfirm {packages}",
			RemoveCmd:     "{binary} -R --noconfirm {packages}",
			ListCmd:       "{binary} -Q",
			SearchCmd:     "{binary} -Ss {query}",
			UpdateCmd:     "{binary} -Sy",
			UpgradeCmd:    "{binary} -Syu --noconfirm",
			CacheCleanCmd: "{binary} -Sc --noconfirm",
			ListFormat:    OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			SearchFormat:  OutputSpec{Format: FormatRegex, Pattern: `(?m)^\S+/(\S+)\s+(\S+)`, NameGroup: 1, VersionGroup: 2},
			NoConfirmFlag: "--noconfirm",
			NeedsSudo:     true,
			SupportedOS:   []string{"arch"},
		},
		{
			Name:           "aur",
			Binary:         []string{"yay", "paru"},
			InstallCmd:     "{binary} -S --noconfirm {packages}",
			RemoveCmd:      "{binary} -R --noconfirm {packages}",
			ListCmd:        "{binary} -Qm",
			SearchCmd:      "{binary} -Ss {query}",
			SearchLocalCmd: "{binary} -Qs {query}",
			UpgradeCmd:     "{binary} -Syu --noconfirm",
			ListFormat:     OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			SearchFormat:   OutputSpec{Format: FormatRegex, Pattern: `(?m)^\S+/(\S+)\s+(\S+)`, NameGroup: 1, VersionGroup: 2},
			NoConfirmFlag:  "--noconfirm",
			NeedsSudo:      false,
			Fallback:       "pacman",
			SupportedOS:    []string{"arch"},
		},
		{
			Name:          "flatpak",
			Binary:        []string{"flatpak"},
			InstallCmd:    "{binary} install -y flathub {packages}",
			RemoveCmd:     "{binary} uninstall -y {packages}",
			ListCmd:       "{binary} list --app --columns=application,version",
			SearchCmd:     "{binary} search {query}",
			UpdateCmd:     "{binary} update --appstream -y",
			UpgradeCmd:    "{binary} update -y",
			CacheCleanCmd: "{binary} uninstall --unused -y",
			ListFormat:    OutputSpec{Format: FormatTabSeparated, NameCol: 0, VersionCol: 1},
			SearchFormat:  OutputSpec{Format: FormatTabSeparated, NameCol: 2, VersionCol: 3},
			NoConfirmFlag: "-y",
			NeedsSudo:     false,
		},
		{
			Name:          "snap",
			Binary:        []string{"snap"},
			InstallCmd:    "{binary} install {packages}",
			RemoveCmd:     "{binary} remove {packages}",
			ListCmd:       "{binary} list",
			SearchCmd:     "{binary} find {query}",
			UpgradeCmd:    "{binary} refresh",
			ListFormat:    OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			SearchFormat:  OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			NeedsSudo:     true,
		},
		{
			Name:          "zypper",
			Binary:        []string{"zypper"},
			InstallCmd:    "{binary} install -y {packages}",
			RemoveCmd:     "{binary} remove -y {packages}",
			ListCmd:       "{binary} packages --installed-only",
			SearchCmd:     "{binary} search {query}",
			UpdateCmd:     "{binary} refresh",
			UpgradeCmd:    "{binary} update -y",
			CacheCleanCmd: "{binary} clean --all",
			ListFormat:    OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			SearchFormat:  OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 1},
			NoConfirmFlag: "-y",
			NeedsSudo:     true,
			SupportedOS:   []string{"opensuse"},
		},
		{
			Name:          "apk",
			Binary:        []string{"apk"},
			InstallCmd:    "{binary} add {packages}",
			RemoveCmd:     "{binary} del {packages}",
			ListCmd:       "{binary} info -v",
			SearchCmd:     "{binary} search {query}",
			UpdateCmd:     "{binary} update",
			UpgradeCmd:    "{binary} upgrade",
			CacheCleanCmd: "{binary} cache clean",
			ListFormat:    OutputSpec{Format: FormatRegex, Pattern: `(?m)^(\S+)-([\d.]+(?:-r\d+)?)$`, NameGroup: 1, VersionGroup: 2},
			SearchFormat:  OutputSpec{Format: FormatSplitWhitespace, NameCol: 0, VersionCol: 0},
			NeedsSudo:     true,
			SupportedOS:   []string{"alpine"},
		},
		{
			Name:       "npm",
			Binary:     []string{"npm"},
			InstallCmd: "{binary} install -g {packages}",
			RemoveCmd:  "{binary} uninstall -g {packages}",
			ListCmd:    "{binary} list -g --json --depth=0",
			SearchCmd:  "{binary} search {query} --json",
			UpgradeCmd: "{binary} update -g",
			ListFormat: OutputSpec{
				Format: FormatJSONObjectKeys, JSONPath: "dependencies", VersionKey: "version",
			},
			SearchFormat: OutputSpec{Format: FormatNPMJSON, NameKey: "name", VersionKey: "version"},
			NeedsSudo:    false,
		},
		{
			Name:       "pip",
			Binary:     []string{"pip3", "pip"},
			InstallCmd: "{binary} install {packages}",
			RemoveCmd:  "{binary} uninstall -y {packages}",
			ListCmd:    "{binary} list --format=json",
			SearchCmd:  "{binary} index versions {query}",
			UpgradeCmd: "{binary} install --upgrade {packages}",
			ListFormat: OutputSpec{Format: FormatJSON, NameKey: "name", VersionKey: "version"},
			NeedsSudo:  false,
		},
		{
			Name:       "cargo",
			Binary:     []string{"cargo"},
			InstallCmd: "{binary} install {packages}",
			RemoveCmd:  "{binary} uninstall {packages}",
			ListCmd:    "{binary} install --list",
			SearchCmd:  "{binary} search {query}",
			ListFormat: OutputSpec{Format: FormatRegex, Pattern: `(?m)^(\S+) v([\d.]+):`, NameGroup: 1, VersionGroup: 2},
			SearchFormat: OutputSpec{
				Format: FormatRegex, Pattern: `(?m)^(\S+) = "([\d.]+)"`, NameGroup: 1, VersionGroup: 2,
			},
			NeedsSudo: false,
		},
	}
}
