// Package buildspec reads the distribution build descriptor and generates
// the Containerfile the image build consumes. The descriptor's version also
// pins the revision of the external test suite.
package buildspec

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"stackharness/internal/failure"
	"stackharness/internal/logger"
	"stackharness/internal/runner"
)

// Descriptor is the YAML build descriptor (distribution/build.yaml).
type Descriptor struct {
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Distribution DistributionSpec  `yaml:"distribution_spec"`
	Image        ImageSpec         `yaml:"image"`
	ExtraDeps    []string          `yaml:"additional_pip_packages"`
	Settings     map[string]string `yaml:"settings,omitempty"`
}

// DistributionSpec names the providers wired into each stack API.
type DistributionSpec struct {
	Description string              `yaml:"description"`
	Providers   map[string][]string `yaml:"providers"`
}

// ImageSpec configures the generated container image.
type ImageSpec struct {
	Type string `yaml:"image_type"`
	Name string `yaml:"image_name"`
}

// Load parses the descriptor at path.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.ConfigMissing, "buildspec.load",
			fmt.Errorf("reading build descriptor: %w", err))
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, failure.Wrap(failure.ConfigMissing, "buildspec.load",
			fmt.Errorf("parsing build descriptor %s: %w", path, err))
	}
	if d.Version == "" {
		return nil, failure.New(failure.ConfigMissing, "buildspec.load",
			"build descriptor %s has no version", path)
	}
	return &d, nil
}

// Revision derives the test-suite revision from the descriptor version:
// "main" is used verbatim, anything else must be a semantic version and
// maps to its "v{version}" tag.
func (d *Descriptor) Revision() (string, error) {
	if d.Version == "main" {
		return "main", nil
	}
	if _, err := semver.NewVersion(d.Version); err != nil {
		return "", failure.New(failure.ConfigMissing, "buildspec.revision",
			"version %q is neither main nor a semantic version: %v", d.Version, err)
	}
	return "v" + d.Version, nil
}

// VerifyTool checks the installed distribution CLI against the descriptor's
// version pin before dependencies are resolved; a mismatched CLI would
// resolve a dependency set for the wrong release. An unreadable version is
// only a warning, a mismatch is fatal. The "main" pin accepts any version.
func (d *Descriptor) VerifyTool(ctx context.Context, r runner.CommandRunner, bin string) error {
	output, err := r.Run(ctx, "", bin, "stack", "--version")
	if err != nil {
		logger.Warn("Could not check distribution CLI version; continuing without validation",
			"bin", bin, "error", err)
		return nil
	}

	installed := strings.TrimSpace(output)
	if d.Version != "main" && installed != d.Version {
		return failure.New(failure.ConfigMissing, "buildspec.tool",
			"%s reports version %q but the descriptor pins %q", bin, installed, d.Version)
	}
	return nil
}

// ResolveDependencies asks the distribution tooling for the image's pip
// dependency set and returns the rendered install commands. The tool prints
// "uv pip install <args...>" lines; everything else is passthrough output
// and ignored.
func ResolveDependencies(ctx context.Context, r runner.CommandRunner, bin, descriptorPath string) ([]string, error) {
	output, err := r.Run(ctx, "", bin, "stack", "build", "--config", descriptorPath, "--print-deps-only")
	if err != nil {
		return nil, failure.Wrap(failure.CommandFailed, "buildspec.deps",
			fmt.Errorf("resolving dependencies via %s: %w", bin, err))
	}
	return ParseDependencyOutput(output), nil
}

// ParseDependencyOutput converts "uv pip install" lines into RUN commands
// for the Containerfile. Install flags are preserved: lines carrying
// --index-url, --no-deps or --no-cache stay on their own single-line RUN
// commands so their flags keep applying to exactly their packages, while
// plain installs are rendered one package per continuation line. Groups are
// emitted in that fixed order, each sorted, tokens deduplicated per line.
func ParseDependencyOutput(output string) []string {
	var standard, indexed, noDeps, noCache []string

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "uv pip install") {
			continue
		}
		tokens := dedupeSorted(strings.Fields(strings.TrimPrefix(line, "uv pip install")))
		if len(tokens) == 0 {
			continue
		}

		switch {
		case strings.Contains(line, "--index-url"):
			indexed = append(indexed, "RUN pip install "+strings.Join(tokens, " "))
		case strings.Contains(line, "--no-deps"):
			noDeps = append(noDeps, "RUN pip install "+strings.Join(tokens, " "))
		case strings.Contains(line, "--no-cache"):
			noCache = append(noCache, "RUN pip install "+strings.Join(tokens, " "))
		default:
			standard = append(standard, InstallCommand(tokens))
		}
	}

	var commands []string
	for _, group := range [][]string{standard, indexed, noDeps, noCache} {
		sort.Strings(group)
		commands = append(commands, group...)
	}
	return commands
}

// InstallCommand renders one plain pip install command with one package per
// continuation line.
func InstallCommand(packages []string) string {
	return "RUN pip install \\\n    " + strings.Join(dedupeSorted(packages), " \\\n    ")
}

func dedupeSorted(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// containerfileHeader warns readers away from editing generated output.
const containerfileHeader = `# WARNING: This file is auto-generated. Do not modify it manually.
# Generated by: stackharness build

`

// GenerateContainerfile renders the Containerfile template with the
// dependency install commands and writes it next to the template.
func GenerateContainerfile(templatePath, outputPath string, commands []string) error {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return failure.Wrap(failure.ConfigMissing, "buildspec.generate",
			fmt.Errorf("reading template: %w", err))
	}

	tmpl, err := template.New("containerfile").Parse(string(raw))
	if err != nil {
		return failure.Wrap(failure.ConfigMissing, "buildspec.generate",
			fmt.Errorf("parsing template %s: %w", templatePath, err))
	}

	var sb strings.Builder
	sb.WriteString(containerfileHeader)
	data := struct{ Dependencies string }{Dependencies: strings.Join(commands, "\n")}
	if err := tmpl.Execute(&sb, data); err != nil {
		return failure.Wrap(failure.ConfigMissing, "buildspec.generate",
			fmt.Errorf("rendering template: %w", err))
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}
