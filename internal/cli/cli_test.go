package cli

import (
	"reflect"
	"testing"

	"github.com/graphmem/graphmem/internal/config"
	"github.com/graphmem/graphmem/pkg/memory"
)

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]any
		wantErr bool
	}{
		{
			name: "empty",
			args: nil,
			want: nil,
		},
		{
			name: "string value",
			args: []string{"name=alice"},
			want: map[string]any{"name": "alice"},
		},
		{
			name: "json number",
			args: []string{"count=3"},
			want: map[string]any{"count": float64(3)},
		},
		{
			name: "json bool and array",
			args: []string{"active=true", `tags=["a","b"]`},
			want: map[string]any{"active": true, "tags": []any{"a", "b"}},
		},
		{
			name: "value containing equals",
			args: []string{"expr=a=b"},
			want: map[string]any{"expr": "a=b"},
		},
		{
			name:    "missing equals",
			args:    []string{"noequals"},
			wantErr: true,
		},
		{
			name:    "empty key",
			args:    []string{"=value"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAttributes(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAttributes() err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseAttributes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseScopeFlag(t *testing.T) {
	if scope, err := parseScopeFlag(""); err != nil || scope != "" {
		t.Errorf("parseScopeFlag(\"\") = %q, %v", scope, err)
	}
	if scope, err := parseScopeFlag("identity"); err != nil || scope != memory.ScopeIdentity {
		t.Errorf("parseScopeFlag(identity) = %q, %v", scope, err)
	}
	if _, err := parseScopeFlag("galactic"); err == nil {
		t.Error("parseScopeFlag(galactic) succeeded")
	}
}

func TestApplyRenderDefaults(t *testing.T) {
	cfg := config.Render{DefaultHours: 72, DefaultLimit: 25}

	tests := []struct {
		name      string
		changed   map[string]bool
		wantHours int
		wantLimit int
	}{
		{
			name:      "config fills unset flags",
			changed:   map[string]bool{},
			wantHours: 72,
			wantLimit: 25,
		},
		{
			name:      "explicit flags win",
			changed:   map[string]bool{"hours": true, "limit": true},
			wantHours: 24,
			wantLimit: 100,
		},
		{
			name:      "mixed",
			changed:   map[string]bool{"limit": true},
			wantHours: 72,
			wantLimit: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := renderOpts{hours: 24, limit: 100}
			applyRenderDefaults(&opts, func(name string) bool { return tt.changed[name] }, cfg)
			if opts.hours != tt.wantHours || opts.limit != tt.wantLimit {
				t.Errorf("hours = %d, limit = %d, want %d, %d",
					opts.hours, opts.limit, tt.wantHours, tt.wantLimit)
			}
		})
	}

	// Zero config values mean unset and leave the flag defaults alone.
	opts := renderOpts{hours: 24, limit: 100}
	applyRenderDefaults(&opts, func(string) bool { return false }, config.Render{})
	if opts.hours != 24 || opts.limit != 100 {
		t.Errorf("zero config changed defaults: hours = %d, limit = %d", opts.hours, opts.limit)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		format string
		want   string
	}{
		{name: "default", output: "", format: "svg", want: "memory_graph.svg"},
		{name: "default dot", output: "", format: "dot", want: "memory_graph.dot"},
		{name: "explicit with extension", output: "graph.svg", format: "svg", want: "graph.svg"},
		{name: "explicit without extension", output: "out/graph", format: "html", want: "out/graph.html"},
		{name: "unknown extension gets suffix", output: "graph.bak", format: "svg", want: "graph.bak.svg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputPath(tt.output, tt.format); got != tt.want {
				t.Errorf("outputPath(%q, %q) = %q, want %q", tt.output, tt.format, got, tt.want)
			}
		})
	}
}
