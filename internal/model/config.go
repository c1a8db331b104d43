package model

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	ServiceModeWatch   = "watch"
	ServiceModeOneshot = "oneshot"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version       int           `json:"version" yaml:"version"` // fixed 0 for now
	Collaborators Collaborators `json:"collaborators" yaml:"collaborators"`
	Poll          *Poll         `json:"poll,omitempty" yaml:"poll,omitempty"`
	Auth          *Auth         `json:"auth,omitempty" yaml:"auth,omitempty"`
	Service       Service       `json:"service" yaml:"service"`
}

// Collaborators are the external executables this tool supervises.
// All three inherit the caller's PATH.
type Collaborators struct {
	Inventory string `json:"inventory" yaml:"inventory"`
	Workflow  string `json:"workflow" yaml:"workflow"`
	Auth      string `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// Poll configures the inventory listing schedule. Cron takes precedence
// over Every when both are set.
type Poll struct {
	Cron  string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Every string `json:"every,omitempty" yaml:"every,omitempty"` // e.g. "1s", "2m30s"
}

// Auth configures the startup authentication session.
type Auth struct {
	Enabled *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Browser *string `json:"browser,omitempty" yaml:"browser,omitempty"` // command opening URLs, default xdg-open
}

type Service struct {
	Mode    string `json:"mode" yaml:"mode"` // "watch" | "oneshot"
	Verbose *bool  `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// DefaultConfig places all three collaborator scripts next to the
// executable, matching how the tool is shipped.
func DefaultConfig(ctx context.Context) Config {
	dir := "."
	if exe, err := os.Executable(); err == nil {
		dir = filepath.Dir(exe)
	} else {
		slog.WarnContext(ctx, "cannot resolve executable path, using cwd", "error", err)
	}

	return Config{
		Version: 0,
		Collaborators: Collaborators{
			Inventory: filepath.Join(dir, "check_card.sh"),
			Workflow:  filepath.Join(dir, "workflow_actions.sh"),
			Auth:      filepath.Join(dir, "gh_auth.sh"),
		},
		Poll:    &Poll{Every: "1s"},
		Service: Service{Mode: ServiceModeWatch},
	}
}

// LoadConfig validates YAML from r against the CUE schema and decodes it.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Get dereferences an optional config field.
func Get[T any](pt *T) T {
	var zero T
	if pt == nil {
		return zero
	}
	return *pt
}
