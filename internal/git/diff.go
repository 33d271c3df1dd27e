package git

import (
	"strconv"
	"strings"
)

// ParseUnifiedDiff converts `git diff` output into per-file hunks with line
// numbers. Binary files carry no hunks.
func ParseUnifiedDiff(raw string) []FileDiff {
	var (
		diffs   []FileDiff
		current *FileDiff
		hunk    *DiffHunk
		oldLine int
		newLine int
	)

	flushHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, *hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			diffs = append(diffs, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile()
			current = &FileDiff{Path: pathFromDiffHeader(line), Status: "modified"}
		case current == nil:
			continue
		case strings.HasPrefix(line, "new file mode"):
			current.Status = "added"
		case strings.HasPrefix(line, "deleted file mode"):
			current.Status = "deleted"
		case strings.HasPrefix(line, "rename to "):
			current.Status = "renamed"
			current.Path = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, "Binary files "):
			current.IsBinary = true
		case strings.HasPrefix(line, "@@"):
			flushHunk()
			hunk = &DiffHunk{Header: line}
			oldLine, newLine = parseHunkStart(line)
		case hunk == nil:
			continue
		case strings.HasPrefix(line, "+"):
			n := newLine
			hunk.Lines = append(hunk.Lines, DiffLine{Content: line[1:], LineType: "add", NewLine: &n})
			current.Additions++
			newLine++
		case strings.HasPrefix(line, "-"):
			n := oldLine
			hunk.Lines = append(hunk.Lines, DiffLine{Content: line[1:], LineType: "delete", OldLine: &n})
			current.Deletions++
			oldLine++
		case strings.HasPrefix(line, " "), line == "":
			content := line
			if content != "" {
				content = line[1:]
			}
			o, n := oldLine, newLine
			hunk.Lines = append(hunk.Lines, DiffLine{Content: content, LineType: "context", OldLine: &o, NewLine: &n})
			oldLine++
			newLine++
		}
	}
	flushFile()
	return diffs
}

// pathFromDiffHeader extracts the target path from "diff --git a/x b/x".
func pathFromDiffHeader(line string) string {
	if idx := strings.Index(line, " b/"); idx >= 0 {
		return line[idx+3:]
	}
	fields := strings.Fields(line)
	if len(fields) >= 4 {
		return strings.TrimPrefix(fields[3], "b/")
	}
	return ""
}

// parseHunkStart reads the old/new start lines out of "@@ -l,c +l,c @@".
func parseHunkStart(header string) (oldStart, newStart int) {
	oldStart, newStart = 1, 1
	fields := strings.Fields(header)
	for _, f := range fields {
		if strings.HasPrefix(f, "-") {
			oldStart = atoiHead(f[1:])
		} else if strings.HasPrefix(f, "+") {
			newStart = atoiHead(f[1:])
		}
	}
	return oldStart, newStart
}

func atoiHead(s string) int {
	if idx := strings.Index(s, ","); idx >= 0 {
		s = s[:idx]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
