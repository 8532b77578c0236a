package partition

import "testing"

func TestMatchShort(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		want shortName
	}{
		{"partition01_8MiB_fat32", true, shortName{index: 1, end: "8MiB", fsType: "fat32"}},
		{"partition01 8MiB fat32", true, shortName{index: 1, end: "8MiB", fsType: "fat32"}},
		{"partition01_8MiB fat32.tar", true, shortName{index: 1, end: "8MiB", fsType: "fat32"}},
		{"partition12_1.5GiB_ext4.tar.gz", true, shortName{index: 12, end: "1.5GiB", fsType: "ext4"}},
		{"partition01_msdos_8MiB_fat32", true, shortName{index: 1, msdos: true, end: "8MiB", fsType: "fat32"}},
		{"partition01 msdos 8MiB fat32", true, shortName{index: 1, msdos: true, end: "8MiB", fsType: "fat32"}},
		{"partition03_4GiB_linux-swap", true, shortName{index: 3, end: "4GiB", fsType: "linux-swap"}},
		// Without two more fields the marker is the end offset.
		{"partition01_msdos_ext4", true, shortName{index: 1, end: "msdos", fsType: "ext4"}},
		{"partition1_8MiB_fat32", true, shortName{index: 1, end: "8MiB", fsType: "fat32"}},
		{"partition01_8MiB__fat32", false, shortName{}},
		{"partition01_8MiBfat32", false, shortName{}},
		{"partition01_8MiB_fat32.zip", false, shortName{}},
		{"partition01_8MiB_fat32.tar.bz2", false, shortName{}},
		{"partition01_8MiB_fat.32", false, shortName{}},
		{"partition01_8MiB_", false, shortName{}},
		{"partition01_gpt_8MiB_fat32", false, shortName{}},
		{"partition012_8MiB_fat32", false, shortName{}},
		{"partition01-8MiB-fat32", false, shortName{}},
		{"partition01", false, shortName{}},
	}

	for _, tt := range tests {
		got, ok := matchShort(tt.name)
		if ok != tt.ok {
			t.Errorf("matchShort(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("matchShort(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestMatchLong(t *testing.T) {
	tests := []struct {
		name    string
		matched bool
		fsOK    bool
		want    longName
	}{
		{
			"partition01 -- dd 256MiB -- parted mklabel msdos mkpart primary fat32 1 8MiB",
			true, true,
			longName{index: 1, script: "mklabel msdos mkpart primary fat32 1 8MiB", fsType: "fat32", diskSize: "256MiB"},
		},
		{
			"partition02 -- parted mkpart primary ext4 8MiB 100%",
			true, true,
			longName{index: 2, script: "mkpart primary ext4 8MiB 100%", fsType: "ext4"},
		},
		{
			"partition02 -- parted mkpart primary ext4 8MiB 100%.tar",
			true, true,
			longName{index: 2, script: "mkpart primary ext4 8MiB 100%", fsType: "ext4"},
		},
		{
			"partition07-- parted mkpart primary linux-swap 1GiB 2GiB.tar.gz",
			true, true,
			longName{index: 7, script: "mkpart primary linux-swap 1GiB 2GiB", fsType: "linux-swap"},
		},
		{
			"partition01 -- dd 1GiB$ -- parted x ext2 1 2",
			true, true,
			longName{index: 1, script: "x ext2 1 2", fsType: "ext2", diskSize: "1GiB"},
		},
		{
			// No space before the filesystem type.
			"partition01 -- parted ext4 1MiB 100%",
			true, false,
			longName{},
		},
		{
			"partition01 -- parted mkpart primary ext4  100%",
			true, false,
			longName{},
		},
		{"partition01_8MiB_fat32", false, false, longName{}},
		{"foo -- parted mkpart primary ext4 1 2", false, false, longName{}},
		{"partition01 --parted mkpart primary ext4 1 2", false, false, longName{}},
	}

	for _, tt := range tests {
		got, matched, err := matchLong(tt.name)
		if matched != tt.matched {
			t.Errorf("matchLong(%q) matched = %v, want %v", tt.name, matched, tt.matched)
			continue
		}
		if !matched {
			continue
		}
		if (err == nil) != tt.fsOK {
			t.Errorf("matchLong(%q) err = %v, want filesystem type ok = %v", tt.name, err, tt.fsOK)
			continue
		}
		if tt.fsOK && got != tt.want {
			t.Errorf("matchLong(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestFindDiskSize(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"partition01 -- dd 256MiB -- parted mklabel gpt", "256MiB"},
		{"partition01 -- dd 256MiB", "256MiB"},
		{"partition01 -- dd 1GiB -- dd 2GiB -- parted x", "2GiB"},
		{"partition01 -- dd 1GiB -- dd  -- parted x", "1GiB"},
		{"partition01 -- parted mklabel gpt", ""},
		{"partition01 --dd 1GiB", ""},
	}

	for _, tt := range tests {
		if got := findDiskSize(tt.name); got != tt.want {
			t.Errorf("findDiskSize(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"partition01_8MiB_fat32", FormatShort},
		{"partition01 -- dd 8MiB -- parted mklabel gpt mkpart primary fat32 1MiB 100%", FormatLong},
		// Matches the long format shape even though the script is unusable.
		{"partition01 -- parted mklabel", FormatLong},
		{"partition01", FormatUnknown},
	}

	for _, tt := range tests {
		if got := detectFormat(tt.name); got != tt.want {
			t.Errorf("detectFormat(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}
