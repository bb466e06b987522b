// Package link derives the public addresses of an artifact.
package link

import (
	"fmt"
	"net/url"
	"strings"
)

// Links are the three public addresses of an artifact.
type Links struct {
	Info     string `json:"info"`
	View     string `json:"view"`
	Download string `json:"download"`
}

// Issuer joins a validated base address with fixed per-artifact suffixes.
type Issuer struct {
	base *url.URL
}

// NewIssuer validates base. A malformed base is a configuration error.
func NewIssuer(base string) (*Issuer, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base address %q: %w", base, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base address %q must be an absolute http(s) URL", base)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("base address %q must not carry a query or fragment", base)
	}
	return &Issuer{base: u}, nil
}

// For returns the links of publicID.
func (i *Issuer) For(publicID string) Links {
	return Links{
		Info:     i.join(publicID, "info"),
		View:     i.join(publicID, "view"),
		Download: i.join(publicID, "download"),
	}
}

func (i *Issuer) join(publicID, suffix string) string {
	return i.base.JoinPath("files", publicID, suffix).String()
}
