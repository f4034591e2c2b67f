package backend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// regexCache is the process-wide compiled-pattern cache described in
// spec §5: a single mutex serializes lookups and inserts. A Go
// sync.Mutex cannot be poisoned the way a Rust Mutex can, so there is no
// poisoning fallback path; a pattern missing from the cache is compiled
// and stored.
var (
	regexCacheMu sync.Mutex
	regexCache   = map[string]*regexp.Regexp{}
)

func getCachedRegex(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()

	if re, ok := regexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache[pattern] = re
	return re, nil
}

// ErrCustomParserUnavailable is returned for the `custom` output format,
// which this implementation deliberately refuses: the engine is purely
// data-driven and carries no backend-specific built-in parsers.
var ErrCustomParserUnavailable = fmt.Errorf("custom output format requires a backend-specific parser, which this engine does not provide")

// ParseOutput dispatches to the parser named by spec.Format and returns a
// uniform name-to-metadata mapping.
func ParseOutput(output string, spec OutputSpec) (map[string]Metadata, error) {
	switch spec.Format {
	case FormatSplitWhitespace:
		return parseColumns(output, spec, splitWhitespace)
	case FormatTabSeparated:
		return parseColumns(output, spec, splitTab)
	case FormatJSON:
		return parseJSON(output, spec)
	case FormatJSONObjectKeys:
		return parseJSONObjectKeys(output, spec)
	case FormatJSONLines:
		return parseJSONLines(output, spec)
	case FormatNPMJSON:
		return parseNPMJSON(output, spec)
	case FormatRegex:
		return parseRegex(output, spec)
	case FormatCustom:
		return nil, ErrCustomParserUnavailable
	default:
		return nil, fmt.Errorf("unknown output format: %s", spec.Format)
	}
}

func splitWhitespace(line string) []string { return strings.Fields(line) }
func splitTab(line string) []string        { return strings.Split(line, "\t") }

func parseColumns(output string, spec OutputSpec, split func(string) []string) (map[string]Metadata, error) {
	result := make(map[string]Metadata)
	scanner := bufio.NewScanner(strings.NewReader(output))
	now := time.Now()
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := split(line)
		maxCol := spec.NameCol
		if spec.VersionCol > maxCol {
			maxCol = spec.VersionCol
		}
		if len(cols) <= maxCol {
			continue
		}
		name := strings.TrimSpace(cols[spec.NameCol])
		if name == "" {
			continue
		}
		result[name] = Metadata{Version: strings.TrimSpace(cols[spec.VersionCol]), InstalledAt: now}
	}
	return result, nil
}

// navigateJSONPath walks a dotted path through a decoded JSON value,
// indexing objects by key and arrays by integer segment.
func navigateJSONPath(value interface{}, path string) interface{} {
	if path == "" {
		return value
	}
	current := value
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[part]
			if !ok {
				return nil
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}
	return current
}

func parseJSON(output string, spec OutputSpec) (map[string]Metadata, error) {
	if spec.NameKey == "" || spec.VersionKey == "" {
		return nil, fmt.Errorf("json parser requires NameKey and VersionKey")
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("parsing json output: %w", err)
	}

	result := make(map[string]Metadata)
	now := time.Now()
	navigated := navigateJSONPath(doc, spec.JSONPath)
	if navigated == nil {
		navigated = doc
	}

	switch v := navigated.(type) {
	case []interface{}:
		for _, entry := range v {
			obj, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := obj[spec.NameKey].(string)
			if name == "" {
				continue
			}
			version, _ := obj[spec.VersionKey].(string)
			result[name] = Metadata{Version: version, InstalledAt: now}
		}
	case map[string]interface{}:
		for _, entry := range v {
			obj, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := obj[spec.NameKey].(string)
			if name == "" {
				continue
			}
			version, _ := obj[spec.VersionKey].(string)
			result[name] = Metadata{Version: version, InstalledAt: now}
		}
	}
	return result, nil
}

func parseJSONObjectKeys(output string, spec OutputSpec) (map[string]Metadata, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		return nil, fmt.Errorf("parsing json output: %w", err)
	}

	navigated := navigateJSONPath(doc, spec.JSONPath)
	obj, ok := navigated.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("json_object_keys: resolved value is not an object")
	}

	result := make(map[string]Metadata)
	now := time.Now()
	for name, entry := range obj {
		version := ""
		if spec.VersionKey != "" {
			if fields, ok := entry.(map[string]interface{}); ok {
				version, _ = fields[spec.VersionKey].(string)
			}
		}
		result[name] = Metadata{Version: version, InstalledAt: now}
	}
	return result, nil
}

func parseJSONLines(output string, spec OutputSpec) (map[string]Metadata, error) {
	result := make(map[string]Metadata)
	now := time.Now()
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue // invalid lines are skipped silently
		}
		name, _ := obj[spec.NameKey].(string)
		if name == "" {
			continue
		}
		version, _ := obj[spec.VersionKey].(string)
		result[name] = Metadata{Version: version, InstalledAt: now}
	}
	return result, nil
}

// parseNPMJSON handles line-oriented pretty-printed JSON arrays, e.g.
// `npm ls --json` piped through a streaming reader: array markers and
// bare commas are skipped, trailing commas stripped, the rest parsed
// object-by-object like the plain json parser.
func parseNPMJSON(output string, spec OutputSpec) (map[string]Metadata, error) {
	result := make(map[string]Metadata)
	now := time.Now()

	var objLines []string
	var depth int
	var current strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		trimmed := strings.TrimSuffix(line, ",")
		switch trimmed {
		case "[", "]", "":
			continue
		}

		for _, r := range trimmed {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		current.WriteString(trimmed)
		if depth == 0 && current.Len() > 0 {
			objLines = append(objLines, current.String())
			current.Reset()
		}
	}

	for _, objStr := range objLines {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(objStr), &obj); err != nil {
			continue
		}
		name, _ := obj[spec.NameKey].(string)
		if name == "" {
			continue
		}
		version, _ := obj[spec.VersionKey].(string)
		result[name] = Metadata{Version: version, InstalledAt: now}
	}
	return result, nil
}

func parseRegex(output string, spec OutputSpec) (map[string]Metadata, error) {
	if spec.Pattern == "" {
		return nil, fmt.Errorf("regex parser requires Pattern")
	}
	re, err := getCachedRegex(spec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	nameGroup := spec.NameGroup
	if nameGroup == 0 {
		nameGroup = 1
	}
	versionGroup := spec.VersionGroup
	if versionGroup == 0 {
		versionGroup = 2
	}

	result := make(map[string]Metadata)
	now := time.Now()

	// A pattern containing the multiline flag is applied whole; otherwise
	// line-by-line, mirroring the spec's "(?m) means whole document" rule.
	multiline := strings.Contains(spec.Pattern, "(?m)")

	apply := func(text string) {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if nameGroup >= len(match) || match[nameGroup] == "" {
				continue
			}
			name := match[nameGroup]
			version := ""
			if versionGroup < len(match) {
				version = match[versionGroup]
			}
			result[name] = Metadata{Version: version, InstalledAt: now}
		}
	}

	if multiline {
		apply(output)
	} else {
		scanner := bufio.NewScanner(strings.NewReader(output))
		for scanner.Scan() {
			apply(scanner.Text())
		}
	}
	return result, nil
}

// ClearRegexCache drops every compiled pattern. Exposed for tests that
// need a clean cache between cases.
func ClearRegexCache() {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()
	regexCache = map[string]*regexp.Regexp{}
}
