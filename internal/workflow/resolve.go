package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/clusterone-push/internal/model"
)

var errNotDirectory = errors.New("not a directory")

// ResolveLocation validates one location input and returns its canonical
// form: absolute against the process working directory, cleaned, and with
// symlinks resolved.
//
// An empty (or whitespace-only) input fails with ConfigMissing(name);
// anything that does not resolve to an existing directory fails with
// InvalidPath(name, input).
func ResolveLocation(name, input string) (model.Location, error) {
	if strings.TrimSpace(input) == "" {
		return model.Location{}, model.ConfigMissing(name)
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return model.Location{}, model.InvalidPath(name, input, err)
	}

	// EvalSymlinks fails for paths that do not exist, which doubles as the
	// existence check.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return model.Location{}, model.InvalidPath(name, input, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return model.Location{}, model.InvalidPath(name, input, err)
	}
	if !info.IsDir() {
		return model.Location{}, model.InvalidPath(name, input, errNotDirectory)
	}

	return model.Location{Name: name, Input: input, Path: resolved}, nil
}

// ResolveInputs validates both locations in order: project presence,
// project directory, data presence, data directory. The first violation
// is returned.
func ResolveInputs(in Inputs) (project, data model.Location, err error) {
	project, err = ResolveLocation(model.EnvProjectDir, in.ProjectDir)
	if err != nil {
		return model.Location{}, model.Location{}, err
	}
	data, err = ResolveLocation(model.EnvDataDir, in.DataDir)
	if err != nil {
		return model.Location{}, model.Location{}, err
	}
	return project, data, nil
}
