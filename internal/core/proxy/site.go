// Package proxy provides pure types and functions for reverse-proxy routing:
// port allocation, hostname selection and routing-rule rendering.
// This package has no I/O dependencies and is tested with values in/out.
package proxy

import (
	"fmt"
	"strings"
)

// Target is the local upstream a routing rule forwards to.
type Target struct {
	// Port is the host port the instance is bound to
	Port int
}

// LocalAddress returns the upstream address on the loopback interface.
func (t Target) LocalAddress() string {
	return fmt.Sprintf("127.0.0.1:%d", t.Port)
}

// Site is one routing rule: a public hostname mapped to a local target.
type Site struct {
	// Name addresses the rule on disk, e.g. "project-7"
	Name     string
	Hostname string
	Target   Target
}

// FileName is the name of the rule document.
func (s Site) FileName() string {
	return s.Name + ".conf"
}

// NewSite builds the rule for a project's allocated port and optional custom
// domain.
func NewSite(projectID int64, hostPort int, customDomain string) (Site, error) {
	hostname, err := SelectHostname(projectID, customDomain)
	if err != nil {
		return Site{}, err
	}
	if hostPort <= 0 || hostPort > 65535 {
		return Site{}, ErrPortOutOfRange
	}
	return Site{
		Name:     fmt.Sprintf("project-%d", projectID),
		Hostname: hostname,
		Target:   Target{Port: hostPort},
	}, nil
}

// Render renders the nginx server block for the site. Upgrade headers are
// forwarded so websockets work; Host and client address headers are forwarded
// so the instance sees the original request.
func (s Site) Render() string {
	var b strings.Builder
	b.WriteString("server {\n")
	b.WriteString("    listen 80;\n")
	fmt.Fprintf(&b, "    server_name %s;\n", s.Hostname)
	b.WriteString("\n")
	b.WriteString("    location / {\n")
	fmt.Fprintf(&b, "        proxy_pass http://%s;\n", s.Target.LocalAddress())
	b.WriteString("        proxy_http_version 1.1;\n")
	b.WriteString("        proxy_set_header Upgrade $http_upgrade;\n")
	b.WriteString("        proxy_set_header Connection \"upgrade\";\n")
	b.WriteString("        proxy_set_header Host $host;\n")
	b.WriteString("        proxy_set_header X-Real-IP $remote_addr;\n")
	b.WriteString("        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
	b.WriteString("        proxy_set_header X-Forwarded-Proto $scheme;\n")
	b.WriteString("        proxy_cache_bypass $http_upgrade;\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}
