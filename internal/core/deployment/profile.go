package deployment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyCommand       = errors.New("command is empty")
	ErrShellOperator      = errors.New("shell operators are not supported in commands")
	ErrUnknownProfileKind = errors.New("unknown build profile")
)

// =============================================================================
// Build Profiles
// =============================================================================

// ProfileKind groups frameworks that share install/build commands.
type ProfileKind string

const (
	ProfileBundled ProfileKind = "bundled" // browser bundles and static html
	ProfileServer  ProfileKind = "server"  // server-rendered node frameworks
	ProfileService ProfileKind = "service" // plain node processes, install only
)

// Profile is the command set for one ProfileKind.
type Profile struct {
	Install        []string
	Build          []string // nil means the profile has no build step
	InstallTimeout time.Duration
	BuildTimeout   time.Duration
}

// Profiles maps each kind to its commands.
type Profiles map[ProfileKind]Profile

// DefaultProfiles returns the built-in npm profiles.
func DefaultProfiles() Profiles {
	return Profiles{
		ProfileBundled: {
			Install:        []string{"npm", "install"},
			Build:          []string{"npm", "run", "build"},
			InstallTimeout: 5 * time.Minute,
			BuildTimeout:   10 * time.Minute,
		},
		ProfileServer: {
			Install:        []string{"npm", "install", "--include=dev"},
			Build:          []string{"npm", "run", "build"},
			InstallTimeout: 5 * time.Minute,
			BuildTimeout:   15 * time.Minute,
		},
		ProfileService: {
			Install:        []string{"npm", "install", "--omit=dev"},
			InstallTimeout: 5 * time.Minute,
		},
	}
}

// KindFor dispatches a framework to its profile kind.
func KindFor(f domain.Framework) (ProfileKind, error) {
	switch f {
	case domain.FrameworkSPA, domain.FrameworkStaticHTML:
		return ProfileBundled, nil
	case domain.FrameworkSSRNode:
		return ProfileServer, nil
	case domain.FrameworkNodeService:
		return ProfileService, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownFramework, f)
	}
}

// =============================================================================
// Build Plan
// =============================================================================

// Step is one external command of a build.
type Step struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// BuildPlan lists the steps to run in a materialized workspace. Both steps
// may be nil.
type BuildPlan struct {
	Kind    ProfileKind
	Install *Step
	Build   *Step
}

// Empty reports whether the plan runs nothing.
func (p BuildPlan) Empty() bool {
	return p.Install == nil && p.Build == nil
}

// Steps returns the non-nil steps in execution order.
func (p BuildPlan) Steps() []Step {
	var steps []Step
	if p.Install != nil {
		steps = append(steps, *p.Install)
	}
	if p.Build != nil {
		steps = append(steps, *p.Build)
	}
	return steps
}

// ProfileFor resolves the build plan for a project. hasManifest reports
// whether the workspace contains a package.json; static html projects without
// one and without a build command have nothing to run.
func ProfileFor(project domain.Project, profiles Profiles, hasManifest bool) (BuildPlan, error) {
	kind, err := KindFor(project.Framework)
	if err != nil {
		return BuildPlan{}, err
	}
	profile, ok := profiles[kind]
	if !ok {
		return BuildPlan{}, fmt.Errorf("%w: %s", ErrUnknownProfileKind, kind)
	}

	plan := BuildPlan{Kind: kind}

	if project.Framework == domain.FrameworkStaticHTML && !hasManifest && strings.TrimSpace(project.BuildCommand) == "" {
		return plan, nil
	}

	plan.Install = &Step{Name: "install", Args: profile.Install, Timeout: profile.InstallTimeout}

	if profile.Build == nil {
		return plan, nil
	}

	buildArgs := profile.Build
	if strings.TrimSpace(project.BuildCommand) != "" {
		buildArgs, err = ParseCommand(project.BuildCommand)
		if err != nil {
			return BuildPlan{}, fmt.Errorf("build command: %w", err)
		}
	}
	plan.Build = &Step{Name: "build", Args: buildArgs, Timeout: profile.BuildTimeout}

	return plan, nil
}

// ParseCommand splits a user-supplied command line into an argument vector.
// Quoting is honoured; pipes, redirects and command separators are rejected
// because commands never run through a shell.
func ParseCommand(line string) ([]string, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(line)
	if err != nil {
		return nil, err
	}
	if parser.Position != -1 {
		return nil, ErrShellOperator
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// =============================================================================
// Operator Overrides
// =============================================================================

// ProfileOverride is the YAML shape of an operator override for one kind.
// Commands are written as command lines; timeouts as Go durations.
type ProfileOverride struct {
	Install        string `yaml:"install"`
	Build          string `yaml:"build"`
	InstallTimeout string `yaml:"install_timeout"`
	BuildTimeout   string `yaml:"build_timeout"`
}

// ParseProfileOverrides decodes an overrides document keyed by profile kind.
func ParseProfileOverrides(data []byte) (map[ProfileKind]ProfileOverride, error) {
	var raw map[string]ProfileOverride
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse profile overrides: %w", err)
	}

	out := make(map[ProfileKind]ProfileOverride, len(raw))
	for name, o := range raw {
		kind := ProfileKind(name)
		switch kind {
		case ProfileBundled, ProfileServer, ProfileService:
			out[kind] = o
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownProfileKind, name)
		}
	}
	return out, nil
}

// Apply returns a copy of p with the overrides merged in. Empty override
// fields keep the existing value.
func (p Profiles) Apply(overrides map[ProfileKind]ProfileOverride) (Profiles, error) {
	out := make(Profiles, len(p))
	for k, v := range p {
		out[k] = v
	}

	for kind, o := range overrides {
		profile := out[kind]
		if o.Install != "" {
			args, err := ParseCommand(o.Install)
			if err != nil {
				return nil, fmt.Errorf("%s install: %w", kind, err)
			}
			profile.Install = args
		}
		if o.Build != "" {
			if kind == ProfileService {
				return nil, fmt.Errorf("%s profile has no build step", kind)
			}
			args, err := ParseCommand(o.Build)
			if err != nil {
				return nil, fmt.Errorf("%s build: %w", kind, err)
			}
			profile.Build = args
		}
		if o.InstallTimeout != "" {
			d, err := time.ParseDuration(o.InstallTimeout)
			if err != nil {
				return nil, fmt.Errorf("%s install_timeout: %w", kind, err)
			}
			profile.InstallTimeout = d
		}
		if o.BuildTimeout != "" {
			d, err := time.ParseDuration(o.BuildTimeout)
			if err != nil {
				return nil, fmt.Errorf("%s build_timeout: %w", kind, err)
			}
			profile.BuildTimeout = d
		}
		out[kind] = profile
	}

	return out, nil
}
