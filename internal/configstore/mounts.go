package configstore

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ContainerHome is the home directory of the in-container user.
const ContainerHome = "/home/dev"

// Dotfiles are the host shell config files mounted when shell.mount_configs
// is enabled.
var Dotfiles = []string{
	".zshrc",
	".bashrc",
	".bash_profile",
	".profile",
	".aliases",
	".inputrc",
	".vimrc",
	".gitconfig",
	".tmux.conf",
}

// Mount describes a bind mount applied to the primary container.
type Mount struct {
	Host      string
	Container string
	Mode      string
	Kind      MountKind
}

// MountKind distinguishes between directory and file mounts.
type MountKind int

const (
	// MountKindDirectory indicates the host path is a directory.
	MountKindDirectory MountKind = iota
	// MountKindFile indicates the host path is a file.
	MountKindFile
)

// Spec renders the mount as a docker -v argument.
func (m Mount) Spec() string {
	spec := m.Host + ":" + m.Container
	if mode := strings.TrimSpace(m.Mode); mode != "" {
		spec += ":" + mode
	}
	return spec
}

// DotfileMounts returns read-only mounts for the dotfiles present in home.
// Entries that are missing or are directories are skipped.
func DotfileMounts(home string, statFn func(string) (os.FileInfo, error)) ([]Mount, error) {
	if strings.TrimSpace(home) == "" {
		return nil, fmt.Errorf("home directory required")
	}
	check := statFn
	if check == nil {
		check = os.Stat
	}
	var mounts []Mount
	for _, name := range Dotfiles {
		host := filepath.Join(home, name)
		info, err := check(host)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("check %s: %w", host, err)
		}
		if info.IsDir() {
			continue
		}
		mounts = append(mounts, Mount{
			Host:      host,
			Container: path.Join(ContainerHome, name),
			Mode:      "ro",
			Kind:      MountKindFile,
		})
	}
	return mounts, nil
}
