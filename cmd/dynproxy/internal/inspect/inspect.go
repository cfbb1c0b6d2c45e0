// Package inspect implements "dynproxy inspect": it prints the member set of
// the proxy type each loaded type would get.
package inspect

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/broady/dynproxy/cmd/dynproxy/internal/load"
	"github.com/broady/dynproxy/provider"
	"github.com/broady/dynproxy/typesys"
)

type Cmd struct {
	Load       load.Flags `embed:""`
	Types      []string   `arg:"" optional:"" help:"Types to inspect (default: all loaded types)."`
	Implements []string   `help:"Additional interfaces every proxy implements." short:"i"`
	JSON       bool       `help:"Print a JSON report." name:"json"`
}

func (c *Cmd) Run(ctx context.Context) error {
	return c.Inspect(ctx, os.Stdout)
}

// Inspect writes the report for the selected types to w.
func (c *Cmd) Inspect(ctx context.Context, w io.Writer) error {
	s, err := load.Load(ctx, c.Load, append(append([]string(nil), c.Types...), c.Implements...))
	if err != nil {
		return err
	}
	report, err := BuildReport(ctx, s, c.Types, c.Implements)
	if err != nil {
		return err
	}
	if c.JSON {
		return WriteJSON(w, report)
	}
	return WriteText(w, report)
}

// Report describes the proxy types of a set of loaded types.
type Report struct {
	Proxies  []ProxyReport      `json:"proxies"`
	Warnings []provider.Warning `json:"warnings,omitempty"`
}

// Failed returns the proxies that could not be generated.
func (r *Report) Failed() []ProxyReport {
	var out []ProxyReport
	for _, p := range r.Proxies {
		if p.Error != "" {
			out = append(out, p)
		}
	}
	return out
}

// ProxyReport is the proxy type of one declaring type.
type ProxyReport struct {
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	Key      string         `json:"key,omitempty"`
	Digest   string         `json:"digest,omitempty"`
	Members  []MemberReport `json:"members,omitempty"`
	Excluded []MemberReport `json:"excluded,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// MemberReport is one entry of a member set.
type MemberReport struct {
	ID      string   `json:"id"`
	Member  string   `json:"member"`
	Base    string   `json:"base,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// BuildReport generates the proxy type of every named type, or of every
// loaded type when names is empty. Types that cannot be proxied are reported
// with their error.
func BuildReport(ctx context.Context, s *load.Session, names, implements []string) (*Report, error) {
	types := s.Result.Types
	if len(names) > 0 {
		var err error
		if types, err = s.Types(names); err != nil {
			return nil, err
		}
	}
	extras, err := s.Types(implements)
	if err != nil {
		return nil, err
	}

	report := &Report{Warnings: s.Result.Warnings}
	for _, t := range types {
		p := ProxyReport{Type: t.Path()}
		h, err := s.Factory.For(t).Implements(extras...).Type(ctx)
		if err != nil {
			p.Error = err.Error()
			report.Proxies = append(report.Proxies, p)
			continue
		}
		key := h.Descriptor().Key()
		p.Name = h.Name()
		p.Key = key.String()
		p.Digest = key.Digest().String()
		for _, e := range h.Members().Members {
			p.Members = append(p.Members, MemberReport{
				ID:      e.ID.String(),
				Member:  typesys.FullName(e.Member),
				Base:    fullName(e.Base),
				Aliases: idStrings(e.Aliases),
			})
		}
		for _, x := range h.Members().Excluded {
			p.Excluded = append(p.Excluded, MemberReport{
				ID:      x.ID.String(),
				Member:  typesys.FullName(x.Member),
				Base:    fullName(x.Base),
				Aliases: idStrings(x.Aliases),
				Reason:  x.Reason,
			})
		}
		report.Proxies = append(report.Proxies, p)
	}
	return report, nil
}

func fullName(m *typesys.Member) string {
	if m == nil {
		return ""
	}
	return typesys.FullName(m)
}

func idStrings(ids []typesys.MemberID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	if err := json.MarshalWrite(w, r, json.Deterministic(true), jsontext.WithIndent("  ")); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteText writes r as aligned columns.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range r.Proxies {
		if p.Error != "" {
			fmt.Fprintf(tw, "%s\terror: %s\n", p.Type, p.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Type, p.Key)
		for _, m := range p.Members {
			fmt.Fprintf(tw, "  member\t%s\t%s\n", m.ID, orDash(m.Base))
			if len(m.Aliases) > 0 {
				fmt.Fprintf(tw, "    aliases\t%s\t\n", strings.Join(m.Aliases, ", "))
			}
		}
		for _, m := range p.Excluded {
			fmt.Fprintf(tw, "  excluded\t%s\t%s\n", m.ID, m.Reason)
		}
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(tw, "warning\t%s\t%s: %s\n", warn.Code, warn.TypeName, warn.Message)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
