// Package compose drives Docker Compose for a deployment directory.
package compose

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"

	corecompose "github.com/artpar/dcg/internal/core/compose"
	"github.com/artpar/dcg/internal/core/domain"
)

// DotEnvFile is read from the deployment directory, as "docker compose" does.
const DotEnvFile = ".env"

// Locate returns the compose file inside dir. docker-compose.yaml is preferred
// over docker-compose.yml when both exist.
func Locate(dir string) (string, error) {
	for _, name := range corecompose.CandidateFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", domain.ErrComposeFileNotFound, dir)
}

// Project is a deployment's compose file as "docker compose" would see it.
type Project struct {
	File string
	Name string

	// Services counts the services declared in the file, whether or not it
	// loaded.
	Services int

	// Spec is nil when the file did not load; ParseErr says why.
	Spec     *corecompose.ParsedSpec
	ParseErr error
}

// Load locates the compose file in dir and resolves it with the process
// environment layered over dir/.env. An error is returned only when the
// compose or .env file cannot be read; a file that does not load still yields
// its project name and service count.
func Load(dir string) (*Project, error) {
	file, err := Locate(dir)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	env, err := Environment(dir)
	if err != nil {
		return nil, err
	}

	opts := corecompose.ParseOptions{WorkingDir: dir, Environment: env}
	p := &Project{File: file}
	p.Name, p.Services = corecompose.Outline(string(content), opts)

	spec, err := corecompose.ParseComposeSpec(string(content), opts)
	if err != nil {
		p.ParseErr = fmt.Errorf("parse %s: %w", file, err)
		return p, nil
	}
	p.Spec = spec
	p.Name = spec.ProjectName
	return p, nil
}

// Environment returns the variables compose interpolates for dir: those of
// dir/.env, overridden by the process environment.
func Environment(dir string) (map[string]string, error) {
	env := make(map[string]string)

	path := filepath.Join(dir, DotEnvFile)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		vars, err := dotenv.GetEnvFromFile(processEnv(), []string{path})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range vars {
			env[k] = v
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	for k, v := range processEnv() {
		env[k] = v
	}
	return env, nil
}

func processEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
