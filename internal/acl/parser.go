/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package acl

import (
	"encoding/json"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// resolveInput returns the literal policy text for s: if s names an
// existing file, its contents; otherwise s itself, unchanged. This
// mirrors original_source's acl_parser.ACLParser.parse, which accepts
// either a literal policy string or a filesystem path.
func resolveInput(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if info, err := os.Stat(s); err == nil && !info.IsDir() {
		data, err := os.ReadFile(s)
		if err != nil {
			return "", newParseError("reading ACL file %q: %v", s, err)
		}
		return string(data), nil
	}
	return s, nil
}

// ParseToolACL parses a comma-separated, optionally bracketed, list of
// operation names into a set of Privileges. Unrecognized tokens are
// silently discarded, matching original_source's acl_parser.py.
func ParseToolACL(input string) ([]Privilege, error) {
	text, err := resolveInput(input)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "[")
	text = strings.TrimSuffix(text, "]")
	if text == "" {
		return nil, nil
	}

	var out []Privilege
	for _, tok := range strings.Split(text, ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		tok = strings.Trim(tok, `"'`)
		if tok == "" {
			continue
		}
		if ValidPrivilege(tok) {
			out = append(out, Privilege(tok))
		}
	}
	return out, nil
}

// objectACLDocument is the on-the-wire shape of an object-ACL document:
// top-level keys are object types, values are either a JSON/YAML array
// of names (list form) or an object mapping name -> {COLUMN: [...]}
// (dict form).
type objectACLDocument map[string]json.RawMessage

// ParseObjectACL parses a literal or path-resolved object-ACL document
// into acl entries applied via apply (AllowList/AllowColumns or
// DenyList/DenyColumns, supplied by the caller so one parser serves
// both whitelist and blacklist inputs).
func ParseObjectACL(input string, apply func(t ObjectType, names []string, columnsByObject map[string][]string)) error {
	text, err := resolveInput(input)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	raw, err := decodeObjectACLBytes(text)
	if err != nil {
		return err
	}

	for key, value := range raw {
		objType := ObjectType(strings.ToUpper(strings.TrimSpace(key)))
		if !topLevelObjectTypes[objType] {
			return newParseError("unsupported object type %q", key)
		}

		names, columnsByObject, err := parseObjectEntryValue(value)
		if err != nil {
			return err
		}
		apply(objType, names, columnsByObject)
	}
	return nil
}

// decodeObjectACLBytes accepts either JSON or YAML input (sniffed by
// leading byte, the same convention internal/skill/loader.go uses for
// skill manifests) and returns a normalized raw-message map.
func decodeObjectACLBytes(text string) (objectACLDocument, error) {
	trimmed := strings.TrimSpace(text)
	var raw objectACLDocument
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, newParseError("invalid JSON object ACL: %v", err)
		}
		return raw, nil
	}

	var generic map[string]any
	if err := yaml.Unmarshal([]byte(text), &generic); err != nil {
		return nil, newParseError("invalid object ACL document: %v", err)
	}
	raw = make(objectACLDocument, len(generic))
	for k, v := range generic {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, newParseError("re-encoding object ACL entry %q: %v", k, err)
		}
		raw[k] = b
	}
	return raw, nil
}

// parseObjectEntryValue distinguishes list form ([]string) from dict
// form (map[string]{"COLUMN": []string}) and fails closed on anything
// else (mixed/malformed shapes).
func parseObjectEntryValue(value json.RawMessage) (names []string, columnsByObject map[string][]string, err error) {
	var asList []string
	if err := json.Unmarshal(value, &asList); err == nil {
		return asList, nil, nil
	}

	var asDict map[string]map[string][]string
	if err := json.Unmarshal(value, &asDict); err != nil {
		return nil, nil, newParseError("object ACL entry must be a list of names or a map of name -> {COLUMN: [...]}: %v", err)
	}
	columnsByObject = make(map[string][]string, len(asDict))
	for objName, cols := range asDict {
		columnList, ok := cols["COLUMN"]
		if !ok {
			return nil, nil, newParseError("object ACL entry %q missing COLUMN key", objName)
		}
		columnsByObject[objName] = columnList
	}
	return nil, columnsByObject, nil
}

// LoadObjectACL parses whitelist and blacklist object-ACL inputs (each
// literal-or-path) into a single ObjectACL.
func LoadObjectACL(whitelistInput, blacklistInput string) (*ObjectACL, error) {
	result := NewObjectACL()

	if err := ParseObjectACL(whitelistInput, func(t ObjectType, names []string, cols map[string][]string) {
		result.AllowList(t, names)
		for obj, c := range cols {
			result.AllowColumns(t, obj, c)
		}
	}); err != nil {
		return nil, err
	}

	if err := ParseObjectACL(blacklistInput, func(t ObjectType, names []string, cols map[string][]string) {
		result.DenyList(t, names)
		for obj, c := range cols {
			result.DenyColumns(t, obj, c)
		}
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// LoadToolACL parses whitelist and blacklist tool-ACL inputs into a
// single ToolACL.
func LoadToolACL(whitelistInput, blacklistInput string) (*ToolACL, error) {
	result := NewToolACL()

	wl, err := ParseToolACL(whitelistInput)
	if err != nil {
		return nil, err
	}
	result.Allow(wl)

	bl, err := ParseToolACL(blacklistInput)
	if err != nil {
		return nil, err
	}
	result.Deny(bl)

	return result, nil
}
