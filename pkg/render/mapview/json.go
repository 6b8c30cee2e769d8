package mapview

import (
	"encoding/json"
	"fmt"
)

type jsonOutput struct {
	*Map
	Focus *jsonFocus `json:"focus,omitempty"`
}

type jsonFocus struct {
	Cluster string `json:"cluster,omitempty"`
	School  string `json:"school,omitempty"`
}

// RenderJSON exports the map model as indented JSON. Of the SVG options
// only [WithFocus] has an effect; it is recorded as the "focus" field.
func RenderJSON(m *Map, opts ...SVGOption) ([]byte, error) {
	r := newSVGRenderer(opts...)
	out := jsonOutput{Map: m}
	if cluster, school := r.focus(m); cluster != "" {
		out.Focus = &jsonFocus{Cluster: cluster, School: school}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode map: %w", err)
	}
	return append(data, '\n'), nil
}
