package config

import (
	"reflect"
	"testing"
)

func TestMergeMaps(t *testing.T) {
	base := map[string]interface{}{
		"project": "analytics",
		"gateways": map[string]interface{}{
			"prod": map[string]interface{}{
				"state_schema": "mesa",
				"connection":   map[string]interface{}{"type": "sqlite"},
			},
		},
		"pinned_environments": []interface{}{"prod"},
	}
	override := map[string]interface{}{
		"gateways": map[string]interface{}{
			"prod": map[string]interface{}{
				"state_schema": "custom",
			},
			"dev": map[string]interface{}{},
		},
		"pinned_environments": []interface{}{"staging"},
	}

	got := MergeMaps(base, override)

	want := map[string]interface{}{
		"project": "analytics",
		"gateways": map[string]interface{}{
			"prod": map[string]interface{}{
				"state_schema": "custom",
				"connection":   map[string]interface{}{"type": "sqlite"},
			},
			"dev": map[string]interface{}{},
		},
		// Lists replace wholesale, they do not concatenate
		"pinned_environments": []interface{}{"staging"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merge mismatch:\n got: %#v\nwant: %#v", got, want)
	}

	// Inputs are unchanged
	if base["gateways"].(map[string]interface{})["prod"].(map[string]interface{})["state_schema"] != "mesa" {
		t.Error("expected base to be unmodified")
	}
	if _, ok := override["gateways"].(map[string]interface{})["prod"].(map[string]interface{})["connection"]; ok {
		t.Error("expected override to be unmodified")
	}
}

func TestMergeMaps_ScalarReplacesMap(t *testing.T) {
	base := map[string]interface{}{
		"connection": map[string]interface{}{"type": "sqlite"},
	}
	override := map[string]interface{}{
		"connection": "disabled",
	}

	got := MergeMaps(base, override)
	if got["connection"] != "disabled" {
		t.Errorf("expected scalar to replace map, got %#v", got["connection"])
	}
}

func TestSetPath(t *testing.T) {
	tree := map[string]interface{}{}

	if !SetPath(tree, []string{"gateways", "prod", "state_schema"}, "custom") {
		t.Fatal("expected SetPath to succeed")
	}
	got, ok := GetPath(tree, []string{"gateways", "prod", "state_schema"})
	if !ok || got != "custom" {
		t.Errorf("expected 'custom', got %v (ok=%v)", got, ok)
	}

	// A scalar on the path is replaced by a map
	SetPath(tree, []string{"gateways", "prod"}, "flat")
	SetPath(tree, []string{"gateways", "prod", "state_schema"}, "again")
	got, ok = GetPath(tree, []string{"gateways", "prod", "state_schema"})
	if !ok || got != "again" {
		t.Errorf("expected 'again', got %v (ok=%v)", got, ok)
	}

	if SetPath(tree, nil, "x") {
		t.Error("expected empty path to fail")
	}
}

func TestGetPath(t *testing.T) {
	tree := map[string]interface{}{
		"plan": map[string]interface{}{"auto_apply": true},
	}

	if v, ok := GetPath(tree, []string{"plan", "auto_apply"}); !ok || v != true {
		t.Errorf("expected true, got %v (ok=%v)", v, ok)
	}
	if _, ok := GetPath(tree, []string{"plan", "missing"}); ok {
		t.Error("expected missing key to report not found")
	}
	if _, ok := GetPath(tree, []string{"plan", "auto_apply", "deeper"}); ok {
		t.Error("expected descending into a scalar to report not found")
	}
}
