// Package deploy turns a local directory into provisioning inputs: the
// directory is copied to the server and a generated startup script
// installs Docker and starts the directory's compose manifest.
package deploy

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/provision"
	"nathanbeddoewebdev/hzdeploy/internal/util"
)

// ManifestNames are the compose file names looked for, in order of
// precedence.
var ManifestNames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yaml",
	"docker-compose.yml",
}

// ScriptName is the file name of the generated startup script.
const ScriptName = "hzdeploy-compose.sh"

// Plan is the provisioning overlay for one directory.
type Plan struct {
	// Dir is the absolute path of the directory to copy.
	Dir string
	// Manifest is the detected compose file name, or "" when the
	// directory has none.
	Manifest string
	// Ports are the normalized ports opened on both firewalls.
	Ports []string
	// Script is the generated startup script.
	Script string
	// ScriptPath is where WriteScript stored Script.
	ScriptPath string
}

// DetectManifest returns the first name of ManifestNames present as a
// regular file in dir, or "" if there is none.
func DetectManifest(dir string) (string, error) {
	for _, name := range ManifestNames {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil {
			if info.Mode().IsRegular() {
				return name, nil
			}
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("check %s: %w", name, err)
		}
	}
	return "", nil
}

// Compose builds the plan for dir. remoteUser is added to the docker
// group; ports are normalized and validated.
func Compose(dir, remoteUser string, ports []string) (*Plan, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: deploy directory: %w", domain.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}
	if err := util.ValidateUsername(remoteUser); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	normalized, err := util.NormalizePorts(ports)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: no deploy ports given", domain.ErrInvalidInput)
	}

	manifest, err := DetectManifest(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	script, err := renderScript(scriptData{
		User:     remoteUser,
		Dir:      filepath.Base(abs),
		Manifest: manifest,
	})
	if err != nil {
		return nil, err
	}

	return &Plan{Dir: abs, Manifest: manifest, Ports: normalized, Script: script}, nil
}

// WriteScript stores the script in dir and records its path.
func (p *Plan) WriteScript(dir string) error {
	path := filepath.Join(dir, ScriptName)
	if err := os.WriteFile(path, []byte(p.Script), 0o700); err != nil {
		return fmt.Errorf("write startup script: %w", err)
	}
	p.ScriptPath = path
	return nil
}

// Apply returns a copy of req with the plan's ports, copy source and
// startup script. The cloud firewall defaults to "<server>-fw" unless
// req already names one.
func (p *Plan) Apply(req provision.Request) (provision.Request, error) {
	if p.ScriptPath == "" {
		return req, fmt.Errorf("deploy plan has no startup script; call WriteScript first")
	}
	req.AllowedPorts = append([]string(nil), p.Ports...)
	req.FirewallPorts = append([]string(nil), p.Ports...)
	req.CopySource = p.Dir
	req.StartupScript = p.ScriptPath
	if req.FirewallName == "" {
		req.FirewallName = req.ServerName + "-fw"
	}
	return req, nil
}

// Summary describes what the startup script will do.
func (p *Plan) Summary() string {
	if p.Manifest == "" {
		return "No compose manifest found; files only will be deployed"
	}
	return "Detected manifest " + p.Manifest
}

type scriptData struct {
	User     string
	Dir      string
	Manifest string
}

var scriptTemplate = template.Must(template.New("compose").Funcs(template.FuncMap{
	"quote": shellQuote,
}).Parse(`#!/usr/bin/env bash
set -euo pipefail
export DEBIAN_FRONTEND=noninteractive

if ! command -v docker >/dev/null 2>&1; then
  apt-get update -y
  apt-get install -y docker.io
fi
if ! docker compose version >/dev/null 2>&1; then
  apt-get update -y
  apt-get install -y docker-compose-v2 || apt-get install -y docker-compose-plugin
fi
systemctl enable --now docker
usermod -aG docker {{quote .User}}
{{if .Manifest}}
home="$(getent passwd {{quote .User}} | cut -d: -f6)"
cd "${home}"/{{quote .Dir}}
docker compose -f {{quote .Manifest}} up -d
echo "Started {{.Manifest}}"
{{- else}}
echo "No compose manifest found; files only were deployed."
{{- end}}
`))

func renderScript(data scriptData) (string, error) {
	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render startup script: %w", err)
	}
	return buf.String(), nil
}

// shellQuote wraps s in single quotes for bash.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
