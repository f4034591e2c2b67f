package planner

// CriticalPackages is the closed list of package names the planner never
// prunes regardless of declaration: kernels, firmware, boot loaders,
// init system, core libc, shells, privilege escalation, PAM, base
// utilities, graphics drivers, filesystem tools, and the tool itself.
// Carried from the original implementation's constant table; the two
// self-referential entries are renamed to this tool's own binary names.
var CriticalPackages = []string{
	// Kernels & base
	"linux", "linux-lts", "linux-zen", "linux-hardened", "linux-api-headers", "linux-firmware",
	// Firmware
	"amd-ucode", "intel-ucode",
	// Boot loaders
	"grub", "systemd-boot", "efibootmgr", "os-prober",
	// System essentials
	"base", "base-devel",
	// System daemons
	"systemd", "systemd-libs", "systemd-sysvcompat", "networkmanager", "iwd", "wpa_supplicant",
	// Core libraries
	"glibc", "gcc-libs", "zlib", "openssl", "readline",
	// Shells & auth
	"bash", "zsh", "fish", "sh", "sudo", "doas", "pam", "shadow",
	// System utilities
	"util-linux", "coreutils",
	// Display & graphics
	"mesa", "nvidia", "nvidia-utils", "nvidia-dkms",
	// Filesystems
	"btrfs-progs", "e2fsprogs", "dosfstools", "ntfs-3g",
	// This tool itself
	"drift", "drift-bin",
}

var criticalSet map[string]bool

func init() {
	criticalSet = make(map[string]bool, len(CriticalPackages))
	for _, name := range CriticalPackages {
		criticalSet[name] = true
	}
}

// IsCritical reports whether name is on the protected list.
func IsCritical(name string) bool {
	return criticalSet[name]
}
