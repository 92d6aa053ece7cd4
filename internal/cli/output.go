// Package cli renders vitt command output as text or JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named s; anything but "json" is text.
func ParseOutputFormat(s string) OutputFormat {
	if s == string(OutputJSON) {
		return OutputJSON
	}
	return OutputText
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteVerdict writes a verdict and the facts it used.
func WriteVerdict(w io.Writer, resp *models.VerdictResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nQ: %s\n\n%s\n", resp.Question, resp.Verdict)
	if len(resp.FactsUsed) > 0 {
		fmt.Fprintf(w, "\n--- Based on %d facts ---\n", len(resp.FactsUsed))
		for i, f := range resp.FactsUsed {
			fmt.Fprintf(w, "%d. %s\n", i+1, utils.Truncate(f, 120))
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteKnowledgeStatus writes a knowledge base summary.
func WriteKnowledgeStatus(w io.Writer, st *models.KnowledgeStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if !st.Exists {
		fmt.Fprintf(w, "No knowledge base for %s\n", st.UserID)
		return nil
	}
	fmt.Fprintf(w, "Knowledge base for %s: %d facts, %d dimensions, built %s\n",
		st.UserID, st.Facts, st.Dimensions, st.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

// WriteBuild reports a finished or scheduled build.
func WriteBuild(w io.Writer, userID string, facts int, buildID string, format OutputFormat) error {
	if format == OutputJSON {
		out := map[string]interface{}{"user_id": userID}
		if buildID != "" {
			out["build_id"] = buildID
			out["status"] = "accepted"
		} else {
			out["facts"] = facts
			out["status"] = "built"
		}
		return writeJSON(w, out)
	}
	if buildID != "" {
		fmt.Fprintf(w, "Build %s scheduled for %s\n", buildID, userID)
		return nil
	}
	fmt.Fprintf(w, "Built knowledge base for %s (%d facts)\n", userID, facts)
	return nil
}

// WriteStatus writes a status map, keys sorted. Nested maps are indented one level.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	writeMap(w, status, "")
	return nil
}

func writeMap(w io.Writer, m map[string]interface{}, indent string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if nested, ok := m[k].(map[string]interface{}); ok {
			fmt.Fprintf(w, "%s%s:\n", indent, k)
			writeMap(w, nested, indent+"  ")
			continue
		}
		fmt.Fprintf(w, "%s%s: %v\n", indent, k, m[k])
	}
}
