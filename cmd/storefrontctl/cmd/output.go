package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	apierrors "github.com/pilab-dev/cartbuilder/errors"
	"github.com/pilab-dev/cartbuilder/session"
)

// render prints v as JSON or YAML, or calls table for the default format.
func (a *app) render(cmd *cobra.Command, v interface{}, table func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	switch a.output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func row(w io.Writer, cols ...interface{}) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}

// describe turns errors into a single line for the terminal.
func describe(err error) string {
	if errors.Is(err, session.ErrSessionTerminated) {
		return "session expired, please log in again"
	}

	var apiErr *apierrors.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if errors.Is(apiErr, apierrors.ErrUnauthorized) && apiErr.Message == "Authentication credentials were not provided." {
		return "not logged in"
	}
	if len(apiErr.Fields) <= 1 {
		return apiErr.Message
	}

	fields := make([]string, 0, len(apiErr.Fields))
	for f := range apiErr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	lines := []string{"validation failed:"}
	for _, f := range fields {
		lines = append(lines, fmt.Sprintf("  %s: %s", f, strings.Join(apiErr.Fields[f], " ")))
	}
	return strings.Join(lines, "\n")
}
